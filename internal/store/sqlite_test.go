package store

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/funding-advisor/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "advisor.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func strPtr(v string) *string   { return &v }
func numPtr(v float64) *float64 { return &v }

func TestSQLiteStore_GetOrCreateCompany_Idempotent(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	c1, created, err := s.GetOrCreateCompany(ctx, "Acme Robotics")
	require.NoError(t, err)
	assert.True(t, created)
	require.NotZero(t, c1.ID)

	c2, created, err := s.GetOrCreateCompany(ctx, "Acme Robotics")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, c1.ID, c2.ID)
	assert.NotNil(t, c2.ManualChangeLog)
}

func TestSQLiteStore_GetCompany_Absent(t *testing.T) {
	s := newTestSQLiteStore(t)

	c, err := s.GetCompany(context.Background(), 12345)
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestSQLiteStore_MergeCompanyMetrics_CoalesceSemantics(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	c, _, err := s.GetOrCreateCompany(ctx, "Acme Robotics")
	require.NoError(t, err)

	// First merge fills nulls.
	merged, err := s.MergeCompanyMetrics(ctx, c.ID, model.Metrics{
		Country:       strPtr("US"),
		EmployeeCount: numPtr(40),
	})
	require.NoError(t, err)
	require.NotNil(t, merged.Country)
	assert.Equal(t, "US", *merged.Country)
	require.NotNil(t, merged.EmployeeCount)
	assert.Equal(t, float64(40), *merged.EmployeeCount)

	// Second merge must not overwrite populated fields.
	merged, err = s.MergeCompanyMetrics(ctx, c.ID, model.Metrics{
		Country:       strPtr("DE"),
		EmployeeCount: numPtr(9000),
		Industry:      strPtr("robotics"),
	})
	require.NoError(t, err)
	assert.Equal(t, "US", *merged.Country)
	assert.Equal(t, float64(40), *merged.EmployeeCount)
	require.NotNil(t, merged.Industry)
	assert.Equal(t, "robotics", *merged.Industry)
}

func TestSQLiteStore_MergeCompanyMetrics_MissingCompany(t *testing.T) {
	s := newTestSQLiteStore(t)

	_, err := s.MergeCompanyMetrics(context.Background(), 999, model.Metrics{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "company not found")
}

func TestSQLiteStore_ApplyCompanyUpdate_PersistsColumnsAndLog(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	c, _, err := s.GetOrCreateCompany(ctx, "Acme Robotics")
	require.NoError(t, err)

	now := time.Now().UTC().Truncate(time.Second)
	err = s.ApplyCompanyUpdate(ctx, c.ID,
		map[string]any{"employee_count": float64(12), "website": "https://acme.example"},
		[]model.ChangeLogEntry{
			{Column: "employee_count", From: nil, To: float64(12), ChangedAt: now},
			{Column: "website", From: nil, To: "https://acme.example", ChangedAt: now},
		},
	)
	require.NoError(t, err)

	got, err := s.GetCompany(ctx, c.ID)
	require.NoError(t, err)
	require.NotNil(t, got.EmployeeCount)
	assert.Equal(t, float64(12), *got.EmployeeCount)
	require.NotNil(t, got.Website)
	assert.Equal(t, "https://acme.example", *got.Website)
	require.Len(t, got.ManualChangeLog, 2)
	assert.Equal(t, "employee_count", got.ManualChangeLog[0].Column)
}

func TestSQLiteStore_ApplyCompanyUpdate_NullsOutColumn(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	c, _, err := s.GetOrCreateCompany(ctx, "Acme Robotics")
	require.NoError(t, err)
	_, err = s.MergeCompanyMetrics(ctx, c.ID, model.Metrics{Website: strPtr("https://old.example")})
	require.NoError(t, err)

	err = s.ApplyCompanyUpdate(ctx, c.ID, map[string]any{"website": nil}, nil)
	require.NoError(t, err)

	got, err := s.GetCompany(ctx, c.ID)
	require.NoError(t, err)
	assert.Nil(t, got.Website)
}

func TestSQLiteStore_CasesOrderedNewestFirst(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	c, _, err := s.GetOrCreateCompany(ctx, "Acme Robotics")
	require.NoError(t, err)

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		require.NoError(t, s.CreateCase(ctx, &model.Case{
			ID:        uuid.New().String(),
			CompanyID: c.ID,
			CaseType:  model.CaseTypeBasic,
			Summary:   "run",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	cases, err := s.ListRecentCases(ctx, 2)
	require.NoError(t, err)
	require.Len(t, cases, 2)
	assert.True(t, cases[0].CreatedAt.After(cases[1].CreatedAt))
}

func TestSQLiteStore_ReportRoundTrip(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	c, _, err := s.GetOrCreateCompany(ctx, "Acme Robotics")
	require.NoError(t, err)

	r := &model.InvestorReport{
		CompanyID:      c.ID,
		CompanyName:    c.Name,
		Recommendation: json.RawMessage(`{"search_summary":"a","recommended_investors":[]}`),
	}
	require.NoError(t, s.CreateReport(ctx, r))
	require.NotZero(t, r.ID)

	got, err := s.GetReport(ctx, r.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.JSONEq(t, `{"search_summary":"a","recommended_investors":[]}`, string(got.Recommendation))
}

func TestSQLiteStore_ReplaceRecommendation_AppendsChangeRows(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	c, _, err := s.GetOrCreateCompany(ctx, "Acme Robotics")
	require.NoError(t, err)
	r := &model.InvestorReport{CompanyID: c.ID, CompanyName: c.Name, Recommendation: json.RawMessage(`{"search_summary":"a"}`)}
	require.NoError(t, s.CreateReport(ctx, r))

	first := time.Now().UTC().Add(-time.Minute)
	second := time.Now().UTC()
	require.NoError(t, s.ReplaceRecommendation(ctx, r.ID, json.RawMessage(`{"search_summary":"b"}`),
		[]model.ReportChange{{JSONPath: "$.search_summary", FromValue: `"a"`, ToValue: `"b"`, ChangedAt: first}}))
	require.NoError(t, s.ReplaceRecommendation(ctx, r.ID, json.RawMessage(`{"search_summary":"c"}`),
		[]model.ReportChange{{JSONPath: "$.search_summary", FromValue: `"b"`, ToValue: `"c"`, ChangedAt: second}}))

	changes, err := s.ListReportChanges(ctx, r.ID)
	require.NoError(t, err)
	require.Len(t, changes, 2)
	// Most recent first.
	assert.Equal(t, `"c"`, changes[0].ToValue)
	assert.Equal(t, `"b"`, changes[1].ToValue)

	got, err := s.GetReport(ctx, r.ID)
	require.NoError(t, err)
	assert.JSONEq(t, `{"search_summary":"c"}`, string(got.Recommendation))
}

func TestSQLiteStore_ReplaceRecommendation_MissingReport(t *testing.T) {
	s := newTestSQLiteStore(t)

	err := s.ReplaceRecommendation(context.Background(), 404, json.RawMessage(`{}`), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "report not found")
}

func TestSQLiteStore_RecommendationTemplateUpsert(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertRecommendationTemplate(ctx, "working_capital", json.RawMessage(`{"inferred_stage":"seed"}`)))
	require.NoError(t, s.UpsertRecommendationTemplate(ctx, "working_capital", json.RawMessage(`{"inferred_stage":"series_a"}`)))

	payload, err := s.GetRecommendationTemplate(ctx, "working_capital")
	require.NoError(t, err)
	assert.JSONEq(t, `{"inferred_stage":"series_a"}`, string(payload))

	missing, err := s.GetRecommendationTemplate(ctx, "unknown")
	require.NoError(t, err)
	assert.Nil(t, missing)
}
