// Package history assembles the merged activity feed of lookup cases and
// investor reports. Pure read-side: it never mutates anything.
package history

import (
	"context"
	"sort"

	"github.com/sells-group/funding-advisor/internal/model"
	"github.com/sells-group/funding-advisor/internal/store"
)

const (
	defaultLimit = 20
	maxLimit     = 100
)

// Assembler builds the history feed from the store.
type Assembler struct {
	store store.Store
}

// New builds an Assembler.
func New(st store.Store) *Assembler {
	return &Assembler{store: st}
}

// Recent returns up to limit entries merging the latest cases and reports by
// creation time descending. A non-positive limit falls back to the default
// of 20; limits above 100 are capped at 100.
func (a *Assembler) Recent(ctx context.Context, limit int) ([]model.HistoryEntry, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	cases, err := a.store.ListRecentCases(ctx, limit)
	if err != nil {
		return nil, err
	}
	reports, err := a.store.ListRecentReports(ctx, limit)
	if err != nil {
		return nil, err
	}

	entries := make([]model.HistoryEntry, 0, len(cases)+len(reports))

	// Company rows are shared across a company's cases; fetch each once.
	companies := make(map[int64]*model.Company)
	for _, c := range cases {
		comp, ok := companies[c.CompanyID]
		if !ok {
			comp, err = a.store.GetCompany(ctx, c.CompanyID)
			if err != nil {
				return nil, err
			}
			companies[c.CompanyID] = comp
		}
		entry := model.CaseEntry{Case: c}
		if comp != nil {
			entry.CompanyName = comp.Name
			entry.Metrics = comp.Metrics()
			entry.ChangeLog = comp.ManualChangeLog
		}
		entries = append(entries, model.HistoryEntry{
			Kind:      model.HistoryKindLookup,
			CreatedAt: c.CreatedAt,
			Case:      &entry,
		})
	}

	for _, r := range reports {
		changes, err := a.store.ListReportChanges(ctx, r.ID)
		if err != nil {
			return nil, err
		}
		entries = append(entries, model.HistoryEntry{
			Kind:      model.HistoryKindReport,
			CreatedAt: r.CreatedAt,
			Report:    &model.ReportEntry{Report: r, Changes: changes},
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].CreatedAt.After(entries[j].CreatedAt)
	})
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}
