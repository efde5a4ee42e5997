package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/funding-advisor/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func TestPostgresStore_GetCompany_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT .* FROM companies WHERE id = \$1`).
		WithArgs(int64(99)).
		WillReturnError(pgx.ErrNoRows)

	c, err := s.GetCompany(context.Background(), 99)
	require.NoError(t, err)
	assert.Nil(t, c)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetReport_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, company_id, company_name, recommendation, created_at, updated_at FROM investor_reports WHERE id = \$1`).
		WithArgs(int64(5)).
		WillReturnError(pgx.ErrNoRows)

	r, err := s.GetReport(context.Background(), 5)
	require.NoError(t, err)
	assert.Nil(t, r)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetOrCreateCompany_CreatesWhenMissing(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`SELECT .* FROM companies WHERE name = \$1`).
		WithArgs("Acme Robotics").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery(`INSERT INTO companies \(name, manual_change_log\) VALUES \(\$1, '\[\]'\) RETURNING id, created_at, updated_at`).
		WithArgs("Acme Robotics").
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(int64(7), now, now))

	c, created, err := s.GetOrCreateCompany(context.Background(), "Acme Robotics")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, int64(7), c.ID)
	assert.Equal(t, "Acme Robotics", c.Name)
	assert.NotNil(t, c.ManualChangeLog)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ApplyCompanyUpdate_DeterministicColumnOrder(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	// Map iteration order must not leak into the SQL: columns sort
	// alphabetically.
	mock.ExpectExec(`UPDATE companies SET "annual_revenue" = \$2, "employee_count" = \$3, manual_change_log = \$4, updated_at = now\(\) WHERE id = \$1`).
		WithArgs(int64(3), float64(1000000), float64(12), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := s.ApplyCompanyUpdate(context.Background(), 3, map[string]any{
		"employee_count": float64(12),
		"annual_revenue": float64(1000000),
	}, []model.ChangeLogEntry{{Column: "employee_count", From: nil, To: float64(12)}})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ApplyCompanyUpdate_MissingCompany(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE companies SET`).
		WithArgs(int64(404), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.ApplyCompanyUpdate(context.Background(), 404, map[string]any{"website": "https://x.io"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "company not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ReplaceRecommendation_Transactional(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE investor_reports SET recommendation = \$2, updated_at = \$3 WHERE id = \$1`).
		WithArgs(int64(12), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`INSERT INTO investor_report_changes`).
		WithArgs(int64(12), "$.search_summary", `"a"`, `"b"`, now).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	err := s.ReplaceRecommendation(context.Background(), 12,
		json.RawMessage(`{"search_summary":"b"}`),
		[]model.ReportChange{{JSONPath: "$.search_summary", FromValue: `"a"`, ToValue: `"b"`, ChangedAt: now}},
	)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ReplaceRecommendation_RollsBackOnChangeInsertFailure(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE investor_reports SET`).
		WithArgs(int64(12), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`INSERT INTO investor_report_changes`).
		WithArgs(int64(12), "$.a", "1", "2", pgxmock.AnyArg()).
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	err := s.ReplaceRecommendation(context.Background(), 12,
		json.RawMessage(`{"a":2}`),
		[]model.ReportChange{{JSONPath: "$.a", FromValue: "1", ToValue: "2", ChangedAt: time.Now().UTC()}},
	)
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ReplaceRecommendation_ReportNotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE investor_reports SET`).
		WithArgs(int64(77), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectRollback()

	err := s.ReplaceRecommendation(context.Background(), 77, json.RawMessage(`{}`), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "report not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertRecommendationTemplate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO recommendations .*ON CONFLICT`).
		WithArgs("working_capital", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.UpsertRecommendationTemplate(context.Background(), "working_capital", json.RawMessage(`{"inferred_stage":"seed"}`))
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetRecommendationTemplate_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT payload FROM recommendations`).
		WithArgs("unknown").
		WillReturnError(pgx.ErrNoRows)

	payload, err := s.GetRecommendationTemplate(context.Background(), "unknown")
	require.NoError(t, err)
	assert.Nil(t, payload)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDecodeChangeLog_CorruptRecoversEmpty(t *testing.T) {
	log := decodeChangeLog(1, []byte(`{not json`))
	assert.NotNil(t, log)
	assert.Empty(t, log)
}

func TestDecodeChangeLog_NullRecoversEmpty(t *testing.T) {
	log := decodeChangeLog(1, []byte(`null`))
	assert.NotNil(t, log)
	assert.Empty(t, log)
}
