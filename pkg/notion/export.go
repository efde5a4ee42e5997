package notion

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/funding-advisor/internal/model"
)

// Exporter pushes investor reports as pages into a Notion database.
type Exporter struct {
	client     Client
	databaseID string
}

// NewExporter builds an Exporter targeting one database.
func NewExporter(client Client, databaseID string) *Exporter {
	return &Exporter{client: client, databaseID: databaseID}
}

// ExportReport creates one page for a report. The recommendation payload is
// decoded through the typed form; unknown fields are not exported.
func (e *Exporter) ExportReport(ctx context.Context, report model.InvestorReport) (string, error) {
	var rec model.Recommendation
	if len(report.Recommendation) > 0 {
		if err := json.Unmarshal(report.Recommendation, &rec); err != nil {
			return "", eris.Wrapf(err, "notion: decode recommendation for report %d", report.ID)
		}
	}

	instruments := make([]string, 0, len(rec.InstrumentMix))
	for _, m := range rec.InstrumentMix {
		instruments = append(instruments, m.Instrument)
	}
	investors := make([]string, 0, len(rec.RecommendedInvestors))
	for _, inv := range rec.RecommendedInvestors {
		investors = append(investors, inv.Name)
	}

	props := notionapi.Properties{
		"Company": notionapi.TitleProperty{
			Title: richText(report.CompanyName),
		},
		"Summary": notionapi.RichTextProperty{
			RichText: richText(truncate(rec.SearchSummary, 2000)),
		},
		"Instruments": notionapi.RichTextProperty{
			RichText: richText(strings.Join(instruments, ", ")),
		},
		"Investors": notionapi.RichTextProperty{
			RichText: richText(strings.Join(investors, ", ")),
		},
		"Created": notionapi.DateProperty{
			Date: &notionapi.DateObject{Start: dateOf(report)},
		},
	}
	if rec.InferredStage != "" {
		props["Stage"] = notionapi.SelectProperty{
			Select: notionapi.Option{Name: rec.InferredStage},
		}
	}
	if rec.FundingNeedType != "" {
		props["Need"] = notionapi.SelectProperty{
			Select: notionapi.Option{Name: rec.FundingNeedType},
		}
	}

	page, err := e.client.CreatePage(ctx, &notionapi.PageCreateRequest{
		Parent: notionapi.Parent{
			Type:       notionapi.ParentTypeDatabaseID,
			DatabaseID: notionapi.DatabaseID(e.databaseID),
		},
		Properties: props,
	})
	if err != nil {
		return "", err
	}

	zap.L().Info("report exported to notion",
		zap.Int64("report_id", report.ID),
		zap.String("page_id", string(page.ID)),
	)
	return string(page.ID), nil
}

func richText(s string) []notionapi.RichText {
	return []notionapi.RichText{{
		Type: notionapi.ObjectTypeText,
		Text: &notionapi.Text{Content: s},
	}}
}

func dateOf(report model.InvestorReport) *notionapi.Date {
	d := notionapi.Date(report.CreatedAt)
	return &d
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
