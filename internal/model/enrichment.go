package model

import "encoding/json"

// EnrichmentResult is what one enrichment run hands back to the advisory
// core: the typed metrics, a free-text summary, and the raw provider
// payloads kept for the case row.
type EnrichmentResult struct {
	Metrics         Metrics         `json:"metrics"`
	Summary         string          `json:"summary"`
	RequestPayload  json.RawMessage `json:"request_payload,omitempty"`
	ResponsePayload json.RawMessage `json:"response_payload,omitempty"`
}
