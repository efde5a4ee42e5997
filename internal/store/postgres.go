package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/funding-advisor/internal/db"
	"github.com/sells-group/funding-advisor/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for the
// most frequently used store operations.
var preparedStatements = map[string]string{
	"get_company":         `SELECT ` + companyColumns + ` FROM companies WHERE id = $1`,
	"get_company_by_name": `SELECT ` + companyColumns + ` FROM companies WHERE name = $1`,
	"get_report":          `SELECT id, company_id, company_name, recommendation, created_at, updated_at FROM investor_reports WHERE id = $1`,
	"list_report_changes": `SELECT id, report_id, json_path, from_value, to_value, changed_at FROM investor_report_changes WHERE report_id = $1 ORDER BY changed_at DESC, id DESC`,
	"recent_cases":        `SELECT id, company_id, case_type, summary, request_payload, response_payload, created_at FROM company_cases ORDER BY created_at DESC LIMIT $1`,
	"recent_reports":      `SELECT id, company_id, company_name, recommendation, created_at, updated_at FROM investor_reports ORDER BY created_at DESC LIMIT $1`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS companies (
	id                BIGSERIAL PRIMARY KEY,
	name              TEXT NOT NULL UNIQUE,
	business_id       TEXT,
	website           TEXT,
	country           TEXT,
	industry          TEXT,
	employee_count    DOUBLE PRECISION,
	annual_revenue    DOUBLE PRECISION,
	funding_need_type TEXT,
	funding_need_min  DOUBLE PRECISION,
	funding_need_max  DOUBLE PRECISION,
	description       TEXT,
	manual_change_log JSONB NOT NULL DEFAULT '[]',
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS company_cases (
	id               TEXT PRIMARY KEY,
	company_id       BIGINT NOT NULL REFERENCES companies(id),
	case_type        TEXT NOT NULL,
	summary          TEXT NOT NULL DEFAULT '',
	request_payload  JSONB,
	response_payload JSONB,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS investor_reports (
	id             BIGSERIAL PRIMARY KEY,
	company_id     BIGINT NOT NULL REFERENCES companies(id),
	company_name   TEXT NOT NULL,
	recommendation JSONB NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS investor_report_changes (
	id         BIGSERIAL PRIMARY KEY,
	report_id  BIGINT NOT NULL REFERENCES investor_reports(id),
	json_path  TEXT NOT NULL,
	from_value TEXT NOT NULL,
	to_value   TEXT NOT NULL,
	changed_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS recommendations (
	id                BIGSERIAL PRIMARY KEY,
	funding_need_type TEXT NOT NULL UNIQUE,
	payload           JSONB NOT NULL,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_companies_name ON companies(name);
CREATE INDEX IF NOT EXISTS idx_company_cases_company_id ON company_cases(company_id);
CREATE INDEX IF NOT EXISTS idx_company_cases_created_at ON company_cases(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_investor_reports_company_id ON investor_reports(company_id);
CREATE INDEX IF NOT EXISTS idx_investor_reports_created_at ON investor_reports(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_report_changes_report_id ON investor_report_changes(report_id);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// GetOrCreateCompany looks a company up by exact name, inserting an empty
// record when none exists. The bool reports whether a record was created.
func (s *PostgresStore) GetOrCreateCompany(ctx context.Context, name string) (*model.Company, bool, error) {
	c := &model.Company{}
	var logJSON []byte
	err := s.pool.QueryRow(ctx, `SELECT `+companyColumns+` FROM companies WHERE name = $1`, name).
		Scan(companyDests(c, &logJSON)...)
	if err == nil {
		c.ManualChangeLog = decodeChangeLog(c.ID, logJSON)
		return c, false, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, eris.Wrapf(err, "postgres: get company by name %q", name)
	}

	c = &model.Company{Name: name, ManualChangeLog: []model.ChangeLogEntry{}}
	err = s.pool.QueryRow(ctx,
		`INSERT INTO companies (name, manual_change_log) VALUES ($1, '[]') RETURNING id, created_at, updated_at`,
		name,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, false, eris.Wrapf(err, "postgres: create company %q", name)
	}
	return c, true, nil
}

// GetCompany fetches a company by id, returning (nil, nil) when absent.
func (s *PostgresStore) GetCompany(ctx context.Context, id int64) (*model.Company, error) {
	c := &model.Company{}
	var logJSON []byte
	err := s.pool.QueryRow(ctx, `SELECT `+companyColumns+` FROM companies WHERE id = $1`, id).
		Scan(companyDests(c, &logJSON)...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get company %d", id)
	}
	c.ManualChangeLog = decodeChangeLog(id, logJSON)
	return c, nil
}

// MergeCompanyMetrics fills null company columns from the enrichment payload.
// Existing values always win; enrichment is non-destructive.
func (s *PostgresStore) MergeCompanyMetrics(ctx context.Context, id int64, m model.Metrics) (*model.Company, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE companies SET
			business_id       = COALESCE(business_id, $2),
			website           = COALESCE(website, $3),
			country           = COALESCE(country, $4),
			industry          = COALESCE(industry, $5),
			employee_count    = COALESCE(employee_count, $6),
			annual_revenue    = COALESCE(annual_revenue, $7),
			funding_need_type = COALESCE(funding_need_type, $8),
			funding_need_min  = COALESCE(funding_need_min, $9),
			funding_need_max  = COALESCE(funding_need_max, $10),
			description       = COALESCE(description, $11),
			updated_at        = now()
		WHERE id = $1`,
		id,
		m.BusinessID, m.Website, m.Country, m.Industry,
		m.EmployeeCount, m.AnnualRevenue,
		m.FundingNeedType, m.FundingNeedMin, m.FundingNeedMax,
		m.Description,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: merge metrics for company %d", id)
	}
	if tag.RowsAffected() == 0 {
		return nil, eris.Errorf("company not found: %d", id)
	}
	return s.GetCompany(ctx, id)
}

// ApplyCompanyUpdate persists a manual edit: the changed columns, the
// replaced change log, and the updated_at touch go in a single statement so
// a failure leaves nothing half-written.
func (s *PostgresStore) ApplyCompanyUpdate(ctx context.Context, id int64, columns map[string]any, log []model.ChangeLogEntry) error {
	logJSON, err := json.Marshal(log)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal change log")
	}

	cols := make([]string, 0, len(columns))
	for col := range columns {
		cols = append(cols, col)
	}
	sort.Strings(cols)

	sets := make([]string, 0, len(cols)+2)
	args := []any{id}
	argIdx := 2
	for _, col := range cols {
		sets = append(sets, fmt.Sprintf("%s = $%d", pgx.Identifier{col}.Sanitize(), argIdx))
		args = append(args, columns[col])
		argIdx++
	}
	sets = append(sets, fmt.Sprintf("manual_change_log = $%d", argIdx))
	args = append(args, logJSON)
	sets = append(sets, "updated_at = now()")

	query := fmt.Sprintf(`UPDATE companies SET %s WHERE id = $1`, strings.Join(sets, ", "))
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return eris.Wrapf(err, "postgres: apply update for company %d", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("company not found: %d", id)
	}
	return nil
}

func (s *PostgresStore) CreateCase(ctx context.Context, c *model.Case) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO company_cases (id, company_id, case_type, summary, request_payload, response_payload, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		c.ID, c.CompanyID, string(c.CaseType), c.Summary,
		nilIfEmptyJSON(c.RequestPayload), nilIfEmptyJSON(c.ResponsePayload), c.CreatedAt,
	)
	return eris.Wrapf(err, "postgres: insert case for company %d", c.CompanyID)
}

func (s *PostgresStore) ListRecentCases(ctx context.Context, limit int) ([]model.Case, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, company_id, case_type, summary, request_payload, response_payload, created_at
		 FROM company_cases ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list recent cases")
	}
	defer rows.Close()

	var cases []model.Case
	for rows.Next() {
		var c model.Case
		var reqJSON, respJSON []byte
		if err := rows.Scan(&c.ID, &c.CompanyID, &c.CaseType, &c.Summary, &reqJSON, &respJSON, &c.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan case")
		}
		c.RequestPayload = reqJSON
		c.ResponsePayload = respJSON
		cases = append(cases, c)
	}
	return cases, eris.Wrap(rows.Err(), "postgres: list recent cases iterate")
}

func (s *PostgresStore) CreateReport(ctx context.Context, r *model.InvestorReport) error {
	now := time.Now().UTC()
	err := s.pool.QueryRow(ctx,
		`INSERT INTO investor_reports (company_id, company_name, recommendation, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		r.CompanyID, r.CompanyName, []byte(r.Recommendation), now, now,
	).Scan(&r.ID)
	if err != nil {
		return eris.Wrapf(err, "postgres: insert report for company %d", r.CompanyID)
	}
	r.CreatedAt = now
	r.UpdatedAt = now
	return nil
}

// GetReport fetches a report by id, returning (nil, nil) when absent.
func (s *PostgresStore) GetReport(ctx context.Context, id int64) (*model.InvestorReport, error) {
	r := &model.InvestorReport{}
	var recJSON []byte
	err := s.pool.QueryRow(ctx,
		`SELECT id, company_id, company_name, recommendation, created_at, updated_at FROM investor_reports WHERE id = $1`,
		id,
	).Scan(&r.ID, &r.CompanyID, &r.CompanyName, &recJSON, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get report %d", id)
	}
	r.Recommendation = recJSON
	return r, nil
}

// ReplaceRecommendation swaps the stored payload and appends the audit rows
// in one transaction.
func (s *PostgresStore) ReplaceRecommendation(ctx context.Context, reportID int64, payload json.RawMessage, changes []model.ReportChange) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin replace recommendation")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	tag, err := tx.Exec(ctx,
		`UPDATE investor_reports SET recommendation = $2, updated_at = $3 WHERE id = $1`,
		reportID, []byte(payload), time.Now().UTC(),
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: replace recommendation %d", reportID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("report not found: %d", reportID)
	}

	for _, ch := range changes {
		if _, err := tx.Exec(ctx,
			`INSERT INTO investor_report_changes (report_id, json_path, from_value, to_value, changed_at)
			 VALUES ($1, $2, $3, $4, $5)`,
			reportID, ch.JSONPath, ch.FromValue, ch.ToValue, ch.ChangedAt,
		); err != nil {
			return eris.Wrapf(err, "postgres: insert report change %s", ch.JSONPath)
		}
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: commit replace recommendation")
}

func (s *PostgresStore) ListReportChanges(ctx context.Context, reportID int64) ([]model.ReportChange, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, report_id, json_path, from_value, to_value, changed_at
		 FROM investor_report_changes WHERE report_id = $1 ORDER BY changed_at DESC, id DESC`, reportID)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list changes for report %d", reportID)
	}
	defer rows.Close()

	var changes []model.ReportChange
	for rows.Next() {
		var ch model.ReportChange
		if err := rows.Scan(&ch.ID, &ch.ReportID, &ch.JSONPath, &ch.FromValue, &ch.ToValue, &ch.ChangedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan report change")
		}
		changes = append(changes, ch)
	}
	return changes, eris.Wrap(rows.Err(), "postgres: list report changes iterate")
}

func (s *PostgresStore) ListRecentReports(ctx context.Context, limit int) ([]model.InvestorReport, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, company_id, company_name, recommendation, created_at, updated_at
		 FROM investor_reports ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list recent reports")
	}
	defer rows.Close()

	var reports []model.InvestorReport
	for rows.Next() {
		var r model.InvestorReport
		var recJSON []byte
		if err := rows.Scan(&r.ID, &r.CompanyID, &r.CompanyName, &recJSON, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan report")
		}
		r.Recommendation = recJSON
		reports = append(reports, r)
	}
	return reports, eris.Wrap(rows.Err(), "postgres: list recent reports iterate")
}

func (s *PostgresStore) UpsertRecommendationTemplate(ctx context.Context, needType string, payload json.RawMessage) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO recommendations (funding_need_type, payload) VALUES ($1, $2)
		 ON CONFLICT (funding_need_type) DO UPDATE SET payload = $2, updated_at = now()`,
		needType, []byte(payload),
	)
	return eris.Wrapf(err, "postgres: upsert recommendation template %s", needType)
}

// GetRecommendationTemplate returns (nil, nil) when no template exists for
// the funding-need type.
func (s *PostgresStore) GetRecommendationTemplate(ctx context.Context, needType string) (json.RawMessage, error) {
	var payload []byte
	err := s.pool.QueryRow(ctx,
		`SELECT payload FROM recommendations WHERE funding_need_type = $1`, needType,
	).Scan(&payload)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get recommendation template %s", needType)
	}
	return payload, nil
}

// companyColumns is the standard column list for company queries.
const companyColumns = `id, name, business_id, website, country, industry,
	employee_count, annual_revenue, funding_need_type, funding_need_min, funding_need_max,
	description, manual_change_log, created_at, updated_at`

// companyDests returns scan destinations for a Company row; the change log
// scans into logJSON for separate decoding.
func companyDests(c *model.Company, logJSON *[]byte) []any {
	return []any{
		&c.ID, &c.Name, &c.BusinessID, &c.Website, &c.Country, &c.Industry,
		&c.EmployeeCount, &c.AnnualRevenue, &c.FundingNeedType, &c.FundingNeedMin, &c.FundingNeedMax,
		&c.Description, logJSON, &c.CreatedAt, &c.UpdatedAt,
	}
}

// decodeChangeLog parses a stored change log, recovering to an empty log on
// corruption. Corruption is logged, never surfaced to the request.
func decodeChangeLog(companyID int64, raw []byte) []model.ChangeLogEntry {
	if len(raw) == 0 {
		return []model.ChangeLogEntry{}
	}
	var log []model.ChangeLogEntry
	if err := json.Unmarshal(raw, &log); err != nil {
		zap.L().Warn("corrupt manual change log, treating as empty",
			zap.Int64("company_id", companyID),
			zap.Error(err),
		)
		return []model.ChangeLogEntry{}
	}
	if log == nil {
		log = []model.ChangeLogEntry{}
	}
	return log
}

func nilIfEmptyJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}
