package store

import (
	"context"
	"encoding/json"

	"github.com/sells-group/funding-advisor/internal/model"
)

// Store defines the persistence interface for the advisory engine. Both
// backends guarantee that multi-row mutations (recommendation replacement
// plus its change rows) commit atomically.
type Store interface {
	// Companies
	GetOrCreateCompany(ctx context.Context, name string) (*model.Company, bool, error)
	GetCompany(ctx context.Context, id int64) (*model.Company, error)
	MergeCompanyMetrics(ctx context.Context, id int64, m model.Metrics) (*model.Company, error)
	ApplyCompanyUpdate(ctx context.Context, id int64, columns map[string]any, log []model.ChangeLogEntry) error

	// Cases
	CreateCase(ctx context.Context, c *model.Case) error
	ListRecentCases(ctx context.Context, limit int) ([]model.Case, error)

	// Investor reports
	CreateReport(ctx context.Context, r *model.InvestorReport) error
	GetReport(ctx context.Context, id int64) (*model.InvestorReport, error)
	ReplaceRecommendation(ctx context.Context, reportID int64, payload json.RawMessage, changes []model.ReportChange) error
	ListReportChanges(ctx context.Context, reportID int64) ([]model.ReportChange, error)
	ListRecentReports(ctx context.Context, limit int) ([]model.InvestorReport, error)

	// Demo recommendation templates
	UpsertRecommendationTemplate(ctx context.Context, needType string, payload json.RawMessage) error
	GetRecommendationTemplate(ctx context.Context, needType string) (json.RawMessage, error)

	// Lifecycle
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}
