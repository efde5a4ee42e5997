package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/funding-advisor/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite, for local and dev
// deployments that do not run Postgres.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given DSN and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := sqlDB.Exec(pragma); err != nil {
			sqlDB.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: sqlDB}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS companies (
	id                INTEGER PRIMARY KEY AUTOINCREMENT,
	name              TEXT NOT NULL UNIQUE,
	business_id       TEXT,
	website           TEXT,
	country           TEXT,
	industry          TEXT,
	employee_count    REAL,
	annual_revenue    REAL,
	funding_need_type TEXT,
	funding_need_min  REAL,
	funding_need_max  REAL,
	description       TEXT,
	manual_change_log TEXT NOT NULL DEFAULT '[]',
	created_at        DATETIME NOT NULL,
	updated_at        DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS company_cases (
	id               TEXT PRIMARY KEY,
	company_id       INTEGER NOT NULL REFERENCES companies(id),
	case_type        TEXT NOT NULL,
	summary          TEXT NOT NULL DEFAULT '',
	request_payload  TEXT,
	response_payload TEXT,
	created_at       DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS investor_reports (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	company_id     INTEGER NOT NULL REFERENCES companies(id),
	company_name   TEXT NOT NULL,
	recommendation TEXT NOT NULL,
	created_at     DATETIME NOT NULL,
	updated_at     DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS investor_report_changes (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	report_id  INTEGER NOT NULL REFERENCES investor_reports(id),
	json_path  TEXT NOT NULL,
	from_value TEXT NOT NULL,
	to_value   TEXT NOT NULL,
	changed_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS recommendations (
	id                INTEGER PRIMARY KEY AUTOINCREMENT,
	funding_need_type TEXT NOT NULL UNIQUE,
	payload           TEXT NOT NULL,
	created_at        DATETIME NOT NULL,
	updated_at        DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_company_cases_company_id ON company_cases(company_id);
CREATE INDEX IF NOT EXISTS idx_company_cases_created_at ON company_cases(created_at);
CREATE INDEX IF NOT EXISTS idx_investor_reports_created_at ON investor_reports(created_at);
CREATE INDEX IF NOT EXISTS idx_report_changes_report_id ON investor_report_changes(report_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const sqliteCompanyColumns = `id, name, business_id, website, country, industry,
	employee_count, annual_revenue, funding_need_type, funding_need_min, funding_need_max,
	description, manual_change_log, created_at, updated_at`

func (s *SQLiteStore) scanCompany(row *sql.Row) (*model.Company, error) {
	c := &model.Company{}
	var logJSON []byte
	err := row.Scan(
		&c.ID, &c.Name, &c.BusinessID, &c.Website, &c.Country, &c.Industry,
		&c.EmployeeCount, &c.AnnualRevenue, &c.FundingNeedType, &c.FundingNeedMin, &c.FundingNeedMax,
		&c.Description, &logJSON, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	c.ManualChangeLog = decodeChangeLog(c.ID, logJSON)
	return c, nil
}

func (s *SQLiteStore) GetOrCreateCompany(ctx context.Context, name string) (*model.Company, bool, error) {
	c, err := s.scanCompany(s.db.QueryRowContext(ctx,
		`SELECT `+sqliteCompanyColumns+` FROM companies WHERE name = ?`, name))
	if err == nil {
		return c, false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, eris.Wrapf(err, "sqlite: get company by name %q", name)
	}

	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO companies (name, manual_change_log, created_at, updated_at) VALUES (?, '[]', ?, ?)`,
		name, now, now,
	)
	if err != nil {
		return nil, false, eris.Wrapf(err, "sqlite: create company %q", name)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, false, eris.Wrap(err, "sqlite: company insert id")
	}
	return &model.Company{
		ID:              id,
		Name:            name,
		ManualChangeLog: []model.ChangeLogEntry{},
		CreatedAt:       now,
		UpdatedAt:       now,
	}, true, nil
}

func (s *SQLiteStore) GetCompany(ctx context.Context, id int64) (*model.Company, error) {
	c, err := s.scanCompany(s.db.QueryRowContext(ctx,
		`SELECT `+sqliteCompanyColumns+` FROM companies WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "sqlite: get company %d", id)
	}
	return c, nil
}

func (s *SQLiteStore) MergeCompanyMetrics(ctx context.Context, id int64, m model.Metrics) (*model.Company, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE companies SET
			business_id       = COALESCE(business_id, ?),
			website           = COALESCE(website, ?),
			country           = COALESCE(country, ?),
			industry          = COALESCE(industry, ?),
			employee_count    = COALESCE(employee_count, ?),
			annual_revenue    = COALESCE(annual_revenue, ?),
			funding_need_type = COALESCE(funding_need_type, ?),
			funding_need_min  = COALESCE(funding_need_min, ?),
			funding_need_max  = COALESCE(funding_need_max, ?),
			description       = COALESCE(description, ?),
			updated_at        = ?
		WHERE id = ?`,
		m.BusinessID, m.Website, m.Country, m.Industry,
		m.EmployeeCount, m.AnnualRevenue,
		m.FundingNeedType, m.FundingNeedMin, m.FundingNeedMax,
		m.Description, time.Now().UTC(), id,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: merge metrics for company %d", id)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, eris.Errorf("company not found: %d", id)
	}
	return s.GetCompany(ctx, id)
}

func (s *SQLiteStore) ApplyCompanyUpdate(ctx context.Context, id int64, columns map[string]any, log []model.ChangeLogEntry) error {
	logJSON, err := json.Marshal(log)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal change log")
	}

	cols := make([]string, 0, len(columns))
	for col := range columns {
		cols = append(cols, col)
	}
	sort.Strings(cols)

	sets := make([]string, 0, len(cols)+2)
	var args []any
	for _, col := range cols {
		sets = append(sets, fmt.Sprintf("%q = ?", col))
		args = append(args, columns[col])
	}
	sets = append(sets, "manual_change_log = ?", "updated_at = ?")
	args = append(args, logJSON, time.Now().UTC(), id)

	query := fmt.Sprintf(`UPDATE companies SET %s WHERE id = ?`, strings.Join(sets, ", "))
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return eris.Wrapf(err, "sqlite: apply update for company %d", id)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return eris.Errorf("company not found: %d", id)
	}
	return nil
}

func (s *SQLiteStore) CreateCase(ctx context.Context, c *model.Case) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO company_cases (id, company_id, case_type, summary, request_payload, response_payload, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.CompanyID, string(c.CaseType), c.Summary,
		nilIfEmptyJSON(c.RequestPayload), nilIfEmptyJSON(c.ResponsePayload), c.CreatedAt,
	)
	return eris.Wrapf(err, "sqlite: insert case for company %d", c.CompanyID)
}

func (s *SQLiteStore) ListRecentCases(ctx context.Context, limit int) ([]model.Case, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, company_id, case_type, summary, request_payload, response_payload, created_at
		 FROM company_cases ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list recent cases")
	}
	defer rows.Close()

	var cases []model.Case
	for rows.Next() {
		var c model.Case
		var reqJSON, respJSON []byte
		if err := rows.Scan(&c.ID, &c.CompanyID, &c.CaseType, &c.Summary, &reqJSON, &respJSON, &c.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan case")
		}
		c.RequestPayload = reqJSON
		c.ResponsePayload = respJSON
		cases = append(cases, c)
	}
	return cases, eris.Wrap(rows.Err(), "sqlite: list recent cases iterate")
}

func (s *SQLiteStore) CreateReport(ctx context.Context, r *model.InvestorReport) error {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO investor_reports (company_id, company_name, recommendation, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)`,
		r.CompanyID, r.CompanyName, string(r.Recommendation), now, now,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: insert report for company %d", r.CompanyID)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return eris.Wrap(err, "sqlite: report insert id")
	}
	r.ID = id
	r.CreatedAt = now
	r.UpdatedAt = now
	return nil
}

func (s *SQLiteStore) GetReport(ctx context.Context, id int64) (*model.InvestorReport, error) {
	r := &model.InvestorReport{}
	var recJSON []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT id, company_id, company_name, recommendation, created_at, updated_at FROM investor_reports WHERE id = ?`,
		id,
	).Scan(&r.ID, &r.CompanyID, &r.CompanyName, &recJSON, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "sqlite: get report %d", id)
	}
	r.Recommendation = recJSON
	return r, nil
}

func (s *SQLiteStore) ReplaceRecommendation(ctx context.Context, reportID int64, payload json.RawMessage, changes []model.ReportChange) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin replace recommendation")
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx,
		`UPDATE investor_reports SET recommendation = ?, updated_at = ? WHERE id = ?`,
		string(payload), time.Now().UTC(), reportID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: replace recommendation %d", reportID)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return eris.Errorf("report not found: %d", reportID)
	}

	for _, ch := range changes {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO investor_report_changes (report_id, json_path, from_value, to_value, changed_at)
			 VALUES (?, ?, ?, ?, ?)`,
			reportID, ch.JSONPath, ch.FromValue, ch.ToValue, ch.ChangedAt,
		); err != nil {
			return eris.Wrapf(err, "sqlite: insert report change %s", ch.JSONPath)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit replace recommendation")
}

func (s *SQLiteStore) ListReportChanges(ctx context.Context, reportID int64) ([]model.ReportChange, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, report_id, json_path, from_value, to_value, changed_at
		 FROM investor_report_changes WHERE report_id = ? ORDER BY changed_at DESC, id DESC`, reportID)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list changes for report %d", reportID)
	}
	defer rows.Close()

	var changes []model.ReportChange
	for rows.Next() {
		var ch model.ReportChange
		if err := rows.Scan(&ch.ID, &ch.ReportID, &ch.JSONPath, &ch.FromValue, &ch.ToValue, &ch.ChangedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan report change")
		}
		changes = append(changes, ch)
	}
	return changes, eris.Wrap(rows.Err(), "sqlite: list report changes iterate")
}

func (s *SQLiteStore) ListRecentReports(ctx context.Context, limit int) ([]model.InvestorReport, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, company_id, company_name, recommendation, created_at, updated_at
		 FROM investor_reports ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list recent reports")
	}
	defer rows.Close()

	var reports []model.InvestorReport
	for rows.Next() {
		var r model.InvestorReport
		var recJSON []byte
		if err := rows.Scan(&r.ID, &r.CompanyID, &r.CompanyName, &recJSON, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan report")
		}
		r.Recommendation = recJSON
		reports = append(reports, r)
	}
	return reports, eris.Wrap(rows.Err(), "sqlite: list recent reports iterate")
}

func (s *SQLiteStore) UpsertRecommendationTemplate(ctx context.Context, needType string, payload json.RawMessage) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO recommendations (funding_need_type, payload, created_at, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (funding_need_type) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`,
		needType, string(payload), now, now,
	)
	return eris.Wrapf(err, "sqlite: upsert recommendation template %s", needType)
}

func (s *SQLiteStore) GetRecommendationTemplate(ctx context.Context, needType string) (json.RawMessage, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM recommendations WHERE funding_need_type = ?`, needType,
	).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "sqlite: get recommendation template %s", needType)
	}
	return payload, nil
}
