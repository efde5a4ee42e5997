package model

import (
	"encoding/json"
	"time"
)

// InvestorReport is one advisory run's structured recommendation for a
// company. The recommendation payload is only ever replaced wholesale; field
// level edits are tracked as ReportChange rows.
type InvestorReport struct {
	ID             int64           `json:"id"`
	CompanyID      int64           `json:"company_id"`
	CompanyName    string          `json:"company_name"`
	Recommendation json.RawMessage `json:"recommendation"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// ReportChange is one immutable audit row for a single JSON leaf-path edit on
// an investor report. From/To hold the canonical serialized forms produced by
// the diff, not raw values.
type ReportChange struct {
	ID        int64     `json:"id"`
	ReportID  int64     `json:"report_id"`
	JSONPath  string    `json:"json_path"`
	FromValue string    `json:"from_value"`
	ToValue   string    `json:"to_value"`
	ChangedAt time.Time `json:"changed_at"`
}

// Instrument is one entry of a recommendation's instrument mix.
type Instrument struct {
	Instrument string `json:"instrument"`
	Rationale  string `json:"rationale,omitempty"`
}

// Investor is one recommended investor.
type Investor struct {
	Name string `json:"name"`
	Type string `json:"type,omitempty"`
	Fit  string `json:"fit,omitempty"`
}

// Recommendation is the known shape of an advisory payload. Unknown fields
// returned by the provider survive a round-trip through Extra so that
// additive schema changes upstream never drop data.
type Recommendation struct {
	InferredStage        string       `json:"-"`
	FundingNeedType      string       `json:"-"`
	InstrumentMix        []Instrument `json:"-"`
	RecommendedInvestors []Investor   `json:"-"`
	SearchSummary        string       `json:"-"`
	UncertaintyNotes     []string     `json:"-"`
	Extra                map[string]any
}

// recommendationKnown mirrors Recommendation's known fields for JSON codec
// purposes.
type recommendationKnown struct {
	InferredStage        string       `json:"inferred_stage,omitempty"`
	FundingNeedType      string       `json:"funding_need_type,omitempty"`
	InstrumentMix        []Instrument `json:"instrument_mix,omitempty"`
	RecommendedInvestors []Investor   `json:"recommended_investors,omitempty"`
	SearchSummary        string       `json:"search_summary,omitempty"`
	UncertaintyNotes     []string     `json:"uncertainty_notes,omitempty"`
}

var recommendationKnownKeys = map[string]bool{
	"inferred_stage":        true,
	"funding_need_type":     true,
	"instrument_mix":        true,
	"recommended_investors": true,
	"search_summary":        true,
	"uncertainty_notes":     true,
}

// UnmarshalJSON decodes the known schema and captures any remaining fields in
// Extra.
func (r *Recommendation) UnmarshalJSON(data []byte) error {
	var known recommendationKnown
	if err := json.Unmarshal(data, &known); err != nil {
		return err
	}
	r.InferredStage = known.InferredStage
	r.FundingNeedType = known.FundingNeedType
	r.InstrumentMix = known.InstrumentMix
	r.RecommendedInvestors = known.RecommendedInvestors
	r.SearchSummary = known.SearchSummary
	r.UncertaintyNotes = known.UncertaintyNotes

	var all map[string]any
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	r.Extra = nil
	for k, v := range all {
		if recommendationKnownKeys[k] {
			continue
		}
		if r.Extra == nil {
			r.Extra = map[string]any{}
		}
		r.Extra[k] = v
	}
	return nil
}

// MarshalJSON emits known fields plus any Extra fields as one flat object.
func (r Recommendation) MarshalJSON() ([]byte, error) {
	knownJSON, err := json.Marshal(recommendationKnown{
		InferredStage:        r.InferredStage,
		FundingNeedType:      r.FundingNeedType,
		InstrumentMix:        r.InstrumentMix,
		RecommendedInvestors: r.RecommendedInvestors,
		SearchSummary:        r.SearchSummary,
		UncertaintyNotes:     r.UncertaintyNotes,
	})
	if err != nil {
		return nil, err
	}
	if len(r.Extra) == 0 {
		return knownJSON, nil
	}

	var merged map[string]any
	if err := json.Unmarshal(knownJSON, &merged); err != nil {
		return nil, err
	}
	for k, v := range r.Extra {
		merged[k] = v
	}
	return json.Marshal(merged)
}
