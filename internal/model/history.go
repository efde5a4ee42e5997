package model

import "time"

// HistoryKind tags a history feed entry as a lookup case or a report.
type HistoryKind string

const (
	HistoryKindLookup HistoryKind = "lookup"
	HistoryKindReport HistoryKind = "report"
)

// HistoryEntry is one row of the merged reverse-chronological feed. Exactly
// one of Case or Report is set, matching Kind.
type HistoryEntry struct {
	Kind      HistoryKind  `json:"kind"`
	CreatedAt time.Time    `json:"created_at"`
	Case      *CaseEntry   `json:"case,omitempty"`
	Report    *ReportEntry `json:"report,omitempty"`
}

// CaseEntry is the lookup-case view of a history entry: the case itself plus
// the company's shaped metrics and manual change log at read time.
type CaseEntry struct {
	Case        Case             `json:"case"`
	CompanyName string           `json:"company_name"`
	Metrics     Metrics          `json:"metrics"`
	ChangeLog   []ChangeLogEntry `json:"change_log"`
}

// ReportEntry is the report view of a history entry: the report plus its
// change rows, most recent first.
type ReportEntry struct {
	Report  InvestorReport `json:"report"`
	Changes []ReportChange `json:"changes"`
}
