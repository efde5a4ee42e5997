package advisor

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/funding-advisor/internal/model"
)

// LookupResult is the shaped outcome of one company lookup.
type LookupResult struct {
	CompanyID int64         `json:"company_id"`
	Name      string        `json:"name"`
	Created   bool          `json:"created"`
	Metrics   model.Metrics `json:"metrics"`
	Case      model.Case    `json:"case"`
}

// RunLookup resolves a company by name, enriches it, and records the run as
// a case. Enrichment failure is absorbed here: the lookup still succeeds
// with a degraded record so the basic flow never hard-fails on a flaky
// provider.
func (s *Service) RunLookup(ctx context.Context, name string, detailed bool) (*LookupResult, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, eris.Wrap(ErrInvalidInput, "company name is required")
	}
	if s.enricher == nil {
		return nil, eris.New("advisor: no enrichment provider configured")
	}

	c, created, err := s.store.GetOrCreateCompany(ctx, name)
	if err != nil {
		return nil, err
	}

	res, err := s.enricher.InferMetrics(ctx, name, detailed)
	if err != nil {
		zap.L().Warn("enrichment failed, recording fallback",
			zap.String("company", name),
			zap.Bool("detailed", detailed),
			zap.Error(err),
		)
		res = s.fallbackEnrichment(name)
	}

	merged, err := s.store.MergeCompanyMetrics(ctx, c.ID, res.Metrics)
	if err != nil {
		return nil, err
	}

	caseType := model.CaseTypeBasic
	if detailed {
		caseType = model.CaseTypeDetailed
	}
	kase := model.Case{
		ID:              uuid.New().String(),
		CompanyID:       c.ID,
		CaseType:        caseType,
		Summary:         res.Summary,
		RequestPayload:  res.RequestPayload,
		ResponsePayload: res.ResponsePayload,
		CreatedAt:       s.now(),
	}
	if err := s.store.CreateCase(ctx, &kase); err != nil {
		return nil, err
	}

	zap.L().Info("lookup completed",
		zap.String("company", name),
		zap.Int64("company_id", c.ID),
		zap.Bool("created", created),
		zap.String("case_type", string(caseType)),
	)

	return &LookupResult{
		CompanyID: c.ID,
		Name:      merged.Name,
		Created:   created,
		Metrics:   merged.Metrics(),
		Case:      kase,
	}, nil
}

// fallbackEnrichment is the degraded record used when the enrichment
// provider cannot answer: country defaulted, business fields null.
func (s *Service) fallbackEnrichment(name string) *model.EnrichmentResult {
	country := s.fallbackCountry
	return &model.EnrichmentResult{
		Metrics: model.Metrics{Country: &country},
		Summary: "No reliable public data found for " + name + ".",
	}
}

// GenerateReport produces a funding recommendation for an existing company
// and persists it as an investor report. Advisory failures are hard
// failures; there is no canned fallback for advice.
func (s *Service) GenerateReport(ctx context.Context, companyID int64) (*model.InvestorReport, error) {
	if s.advisory == nil {
		return nil, eris.New("advisor: no advisory provider configured")
	}

	c, err := s.store.GetCompany(ctx, companyID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, eris.Wrapf(ErrNotFound, "company %d", companyID)
	}

	payload, err := s.advisory.Recommend(ctx, *c)
	if err != nil {
		return nil, err
	}

	r := &model.InvestorReport{
		CompanyID:      c.ID,
		CompanyName:    c.Name,
		Recommendation: payload,
		CreatedAt:      s.now(),
		UpdatedAt:      s.now(),
	}
	if err := s.store.CreateReport(ctx, r); err != nil {
		return nil, err
	}

	zap.L().Info("investor report generated",
		zap.Int64("company_id", c.ID),
		zap.Int64("report_id", r.ID),
	)
	return r, nil
}
