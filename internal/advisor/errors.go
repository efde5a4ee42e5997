package advisor

import (
	"strings"

	"github.com/rotisserie/eris"
)

// Sentinel errors for the request-level failure taxonomy. Handlers map these
// to HTTP statuses with errors.Is.
var (
	// ErrNotFound means a referenced company or report id does not exist.
	ErrNotFound = eris.New("not found")

	// ErrInvalidInput means the request shape itself is malformed.
	ErrInvalidInput = eris.New("invalid input")

	// ErrProviderFailure means an upstream model provider failed or returned
	// unusable output. Enrichment absorbs it; advisory surfaces it.
	ErrProviderFailure = eris.New("provider failure")
)

// ValidationError aggregates every field-level coercion failure in a single
// request. Nothing is persisted when one is returned.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Fields, "; ")
}
