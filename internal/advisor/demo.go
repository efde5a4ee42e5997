package advisor

import (
	"context"
	"encoding/json"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/funding-advisor/internal/model"
)

// demoTemplates are canned recommendation payloads keyed by funding need
// type, used to seed demo reports without calling the advisory provider.
var demoTemplates = map[string]model.Recommendation{
	"working_capital": {
		InferredStage:   "seed",
		FundingNeedType: "working_capital",
		InstrumentMix: []model.Instrument{
			{Instrument: "revolving_credit", Rationale: "smooths receivables cycles"},
			{Instrument: "invoice_factoring", Rationale: "fast liquidity against outstanding invoices"},
		},
		RecommendedInvestors: []model.Investor{
			{Name: "Northlake Credit Partners", Type: "debt_fund", Fit: "working-capital lines for sub-50 headcount firms"},
		},
		SearchSummary:    "Demo recommendation for a working-capital need.",
		UncertaintyNotes: []string{"seeded demo data, not model output"},
	},
	"growth": {
		InferredStage:   "series_a",
		FundingNeedType: "growth",
		InstrumentMix: []model.Instrument{
			{Instrument: "equity", Rationale: "growth capital without near-term repayment pressure"},
			{Instrument: "venture_debt", Rationale: "extends runway between equity rounds"},
		},
		RecommendedInvestors: []model.Investor{
			{Name: "Harbor Growth Ventures", Type: "vc", Fit: "B2B growth-stage rounds"},
			{Name: "Meridian Venture Debt", Type: "debt_fund", Fit: "venture debt alongside institutional equity"},
		},
		SearchSummary:    "Demo recommendation for a growth-funding need.",
		UncertaintyNotes: []string{"seeded demo data, not model output"},
	},
	"asset_purchase": {
		InferredStage:   "established",
		FundingNeedType: "asset_purchase",
		InstrumentMix: []model.Instrument{
			{Instrument: "equipment_lease", Rationale: "matches payments to asset lifetime"},
			{Instrument: "secured_term_loan", Rationale: "lower rate against the purchased asset"},
		},
		RecommendedInvestors: []model.Investor{
			{Name: "Crestline Asset Finance", Type: "lender", Fit: "equipment and vehicle financing"},
		},
		SearchSummary:    "Demo recommendation for an asset-purchase need.",
		UncertaintyNotes: []string{"seeded demo data, not model output"},
	},
}

// defaultDemoNeedType is used when a company has no funding need type on
// record and no template matches.
const defaultDemoNeedType = "growth"

// SeedDemoTemplates writes the canned recommendation payloads into the
// store so that demo seeding works the same across backends and restarts.
func (s *Service) SeedDemoTemplates(ctx context.Context) error {
	for needType, rec := range demoTemplates {
		payload, err := json.Marshal(rec)
		if err != nil {
			return eris.Wrapf(err, "marshal demo template %s", needType)
		}
		if err := s.store.UpsertRecommendationTemplate(ctx, needType, payload); err != nil {
			return err
		}
	}
	return nil
}

// SeedDemoReport inserts a canned investor report for a company, picking the
// template that matches its funding need type. Used by the demo flow so the
// report-editing surface has data without an advisory call.
func (s *Service) SeedDemoReport(ctx context.Context, companyID int64) (*model.InvestorReport, error) {
	c, err := s.store.GetCompany(ctx, companyID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, eris.Wrapf(ErrNotFound, "company %d", companyID)
	}

	needType := defaultDemoNeedType
	if c.FundingNeedType != nil && *c.FundingNeedType != "" {
		needType = *c.FundingNeedType
	}

	payload, err := s.store.GetRecommendationTemplate(ctx, needType)
	if err != nil {
		return nil, err
	}
	if payload == nil {
		payload, err = s.store.GetRecommendationTemplate(ctx, defaultDemoNeedType)
		if err != nil {
			return nil, err
		}
	}
	if payload == nil {
		rec, ok := demoTemplates[needType]
		if !ok {
			rec = demoTemplates[defaultDemoNeedType]
		}
		payload, err = json.Marshal(rec)
		if err != nil {
			return nil, eris.Wrap(err, "marshal demo template")
		}
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

	zap.L().Info("demo report seeded",
		zap.Int64("company_id", c.ID),
		zap.Int64("report_id", r.ID),
		zap.String("need_type", needType),
	)
	return r, nil
}
