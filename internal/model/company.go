package model

import (
	"encoding/json"
	"time"
)

// CaseType distinguishes the two enrichment flows.
type CaseType string

const (
	CaseTypeBasic    CaseType = "basic"
	CaseTypeDetailed CaseType = "detailed"
)

// Company is a persisted business profile enriched by the advisory system.
// Nullable business attributes are pointers so that "unknown" and "zero" stay
// distinguishable; enrichment merges only ever fill nil fields.
type Company struct {
	ID              int64            `json:"id"`
	Name            string           `json:"name"`
	BusinessID      *string          `json:"business_id"`
	Website         *string          `json:"website"`
	Country         *string          `json:"country"`
	Industry        *string          `json:"industry"`
	EmployeeCount   *float64         `json:"employee_count"`
	AnnualRevenue   *float64         `json:"annual_revenue"`
	FundingNeedType *string          `json:"funding_need_type"`
	FundingNeedMin  *float64         `json:"funding_need_min"`
	FundingNeedMax  *float64         `json:"funding_need_max"`
	Description     *string          `json:"description"`
	ManualChangeLog []ChangeLogEntry `json:"manual_change_log"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

// ChangeLogEntry is one immutable row of a company's manual change log.
type ChangeLogEntry struct {
	Column    string    `json:"column"`
	From      any       `json:"from"`
	To        any       `json:"to"`
	ChangedAt time.Time `json:"changed_at"`
}

// Metrics is the business-attribute view of a company, as produced by the
// enrichment provider and as returned to API callers.
type Metrics struct {
	BusinessID      *string  `json:"business_id"`
	Website         *string  `json:"website"`
	Country         *string  `json:"country"`
	Industry        *string  `json:"industry"`
	EmployeeCount   *float64 `json:"employee_count"`
	AnnualRevenue   *float64 `json:"annual_revenue"`
	FundingNeedType *string  `json:"funding_need_type"`
	FundingNeedMin  *float64 `json:"funding_need_min"`
	FundingNeedMax  *float64 `json:"funding_need_max"`
	Description     *string  `json:"description"`
}

// Metrics returns the company's business attributes shaped for display.
func (c *Company) Metrics() Metrics {
	return Metrics{
		BusinessID:      c.BusinessID,
		Website:         c.Website,
		Country:         c.Country,
		Industry:        c.Industry,
		EmployeeCount:   c.EmployeeCount,
		AnnualRevenue:   c.AnnualRevenue,
		FundingNeedType: c.FundingNeedType,
		FundingNeedMin:  c.FundingNeedMin,
		FundingNeedMax:  c.FundingNeedMax,
		Description:     c.Description,
	}
}

// Case records one enrichment run: the free-text summary it produced plus the
// raw provider request/response payloads for debugging. Read-only after
// creation.
type Case struct {
	ID              string          `json:"id"`
	CompanyID       int64           `json:"company_id"`
	CaseType        CaseType        `json:"case_type"`
	Summary         string          `json:"summary"`
	RequestPayload  json.RawMessage `json:"request_payload,omitempty"`
	ResponsePayload json.RawMessage `json:"response_payload,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}
