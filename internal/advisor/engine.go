// Package advisor hosts the funding-advisory core: the manual-edit
// reconciliation engines with their audit trails, and the lookup/report
// orchestration in front of the enrichment and advisory providers.
package advisor

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/funding-advisor/internal/jsondiff"
	"github.com/sells-group/funding-advisor/internal/model"
	"github.com/sells-group/funding-advisor/internal/store"
)

// EnrichmentProvider returns structured business metrics for a company name.
type EnrichmentProvider interface {
	InferMetrics(ctx context.Context, name string, detailed bool) (*model.EnrichmentResult, error)
}

// AdvisoryProvider produces a structured funding recommendation for a
// company profile.
type AdvisoryProvider interface {
	Recommend(ctx context.Context, profile model.Company) (json.RawMessage, error)
}

// Service is the advisory core. All state flows through the injected store;
// there is no ambient database handle.
type Service struct {
	store    store.Store
	enricher EnrichmentProvider
	advisory AdvisoryProvider

	fallbackCountry string
	now             func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the timestamp source, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithFallbackCountry sets the country used in degraded enrichment records.
func WithFallbackCountry(country string) Option {
	return func(s *Service) { s.fallbackCountry = country }
}

// NewService constructs the advisory core. The providers may be nil for
// callers that only use the manual update engines.
func NewService(st store.Store, enricher EnrichmentProvider, advisory AdvisoryProvider, opts ...Option) *Service {
	s := &Service{
		store:           st,
		enricher:        enricher,
		advisory:        advisory,
		fallbackCountry: "Unknown",
		now:             func() time.Time { return time.Now().UTC() },
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// CompanyUpdateResult is the outcome of one manual company edit.
type CompanyUpdateResult struct {
	Updated bool                   `json:"updated"`
	Changes []model.ChangeLogEntry `json:"changes"`
	Log     []model.ChangeLogEntry `json:"log"`
	Message string                 `json:"message"`
	Metrics model.Metrics          `json:"metrics"`
}

// ApplyCompanyUpdates applies a partial field-update map to a company
// record. Keys resolve through the alias table (unknown keys are ignored),
// values are coerced per column, unchanged fields are dropped, and the
// surviving delta is persisted together with its appended change-log entries
// in one statement. Validation failures are aggregated and nothing is
// written.
func (s *Service) ApplyCompanyUpdates(ctx context.Context, companyID int64, updates map[string]any) (*CompanyUpdateResult, error) {
	if updates == nil {
		return nil, eris.Wrap(ErrInvalidInput, "updates must be an object")
	}

	c, err := s.store.GetCompany(ctx, companyID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, eris.Wrapf(ErrNotFound, "company %d", companyID)
	}

	// Sorted key iteration keeps both validation messages and log entry
	// order deterministic.
	keys := make([]string, 0, len(updates))
	for k := range updates {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var fieldErrs []string
	writeSet := make(map[string]any)
	for _, key := range keys {
		col, ok := resolveColumn(key)
		if !ok {
			continue
		}
		val, skip, cerr := coerceValue(col, updates[key])
		if cerr != nil {
			fieldErrs = append(fieldErrs, cerr.Error())
			continue
		}
		if skip {
			continue
		}
		if equalValues(currentValue(c, col), val) {
			continue
		}
		writeSet[col] = val
	}

	if len(fieldErrs) > 0 {
		return nil, &ValidationError{Fields: fieldErrs}
	}

	if len(writeSet) == 0 {
		return &CompanyUpdateResult{
			Updated: false,
			Changes: []model.ChangeLogEntry{},
			Log:     c.ManualChangeLog,
			Message: "no changes detected",
			Metrics: c.Metrics(),
		}, nil
	}

	now := s.now()
	cols := make([]string, 0, len(writeSet))
	for col := range writeSet {
		cols = append(cols, col)
	}
	sort.Strings(cols)

	changes := make([]model.ChangeLogEntry, 0, len(cols))
	for _, col := range cols {
		changes = append(changes, model.ChangeLogEntry{
			Column:    col,
			From:      currentValue(c, col),
			To:        writeSet[col],
			ChangedAt: now,
		})
	}

	newLog := append(append([]model.ChangeLogEntry{}, c.ManualChangeLog...), changes...)
	if err := s.store.ApplyCompanyUpdate(ctx, companyID, writeSet, newLog); err != nil {
		return nil, err
	}

	for _, col := range cols {
		setColumn(c, col, writeSet[col])
	}

	zap.L().Info("manual company update applied",
		zap.Int64("company_id", companyID),
		zap.Int("changed_columns", len(cols)),
	)

	return &CompanyUpdateResult{
		Updated: true,
		Changes: changes,
		Log:     newLog,
		Message: "updated",
		Metrics: c.Metrics(),
	}, nil
}

// ReportUpdateResult is the outcome of one manual report edit.
type ReportUpdateResult struct {
	Updated        bool                 `json:"updated"`
	Changes        []model.ReportChange `json:"changes"`
	Log            []model.ReportChange `json:"log"`
	Message        string               `json:"message"`
	Recommendation any                  `json:"recommendation"`
}

// ApplyReportUpdates replaces a report's recommendation payload wholesale
// when any leaf differs from the stored one, appending one immutable change
// row per differing path. A corrupt stored payload is read as an empty
// object rather than failing the request.
func (s *Service) ApplyReportUpdates(ctx context.Context, reportID int64, recommendation map[string]any) (*ReportUpdateResult, error) {
	if recommendation == nil {
		return nil, eris.Wrap(ErrInvalidInput, "recommendation must be an object")
	}

	r, err := s.store.GetReport(ctx, reportID)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, eris.Wrapf(ErrNotFound, "report %d", reportID)
	}

	existing := parseStoredRecommendation(reportID, r.Recommendation)

	diffs := jsondiff.Diff(existing, recommendation)
	if len(diffs) == 0 {
		log, err := s.store.ListReportChanges(ctx, reportID)
		if err != nil {
			return nil, err
		}
		return &ReportUpdateResult{
			Updated:        false,
			Changes:        []model.ReportChange{},
			Log:            log,
			Message:        "no changes detected",
			Recommendation: existing,
		}, nil
	}

	payload, err := json.Marshal(recommendation)
	if err != nil {
		return nil, eris.Wrap(err, "marshal recommendation")
	}

	now := s.now()
	rows := make([]model.ReportChange, 0, len(diffs))
	for _, d := range diffs {
		rows = append(rows, model.ReportChange{
			ReportID:  reportID,
			JSONPath:  d.Path,
			FromValue: d.From,
			ToValue:   d.To,
			ChangedAt: now,
		})
	}

	if err := s.store.ReplaceRecommendation(ctx, reportID, payload, rows); err != nil {
		return nil, err
	}

	log, err := s.store.ListReportChanges(ctx, reportID)
	if err != nil {
		return nil, err
	}

	zap.L().Info("manual report update applied",
		zap.Int64("report_id", reportID),
		zap.Int("changed_paths", len(rows)),
	)

	return &ReportUpdateResult{
		Updated:        true,
		Changes:        rows,
		Log:            log,
		Message:        "updated",
		Recommendation: recommendation,
	}, nil
}

// parseStoredRecommendation decodes a stored payload, recovering to an empty
// object on corruption. Masking corruption keeps manual edits usable even
// when a past write went bad; the warning is the only trace.
func parseStoredRecommendation(reportID int64, raw json.RawMessage) any {
	if len(raw) == 0 {
		return map[string]any{}
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		zap.L().Warn("corrupt stored recommendation, treating as empty object",
			zap.Int64("report_id", reportID),
			zap.Error(err),
		)
		return map[string]any{}
	}
	return v
}
