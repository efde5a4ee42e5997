package notion

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/jomei/notionapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/funding-advisor/internal/model"
)

type fakeClient struct {
	req *notionapi.PageCreateRequest
	err error
}

func (f *fakeClient) CreatePage(_ context.Context, req *notionapi.PageCreateRequest) (*notionapi.Page, error) {
	f.req = req
	if f.err != nil {
		return nil, f.err
	}
	return &notionapi.Page{ID: "page-1"}, nil
}

func testReport() model.InvestorReport {
	return model.InvestorReport{
		ID:          7,
		CompanyID:   1,
		CompanyName: "Acme Robotics",
		Recommendation: json.RawMessage(`{
			"inferred_stage": "seed",
			"funding_need_type": "growth",
			"instrument_mix": [{"instrument":"equity"},{"instrument":"venture_debt"}],
			"recommended_investors": [{"name":"Harbor Growth Ventures"}],
			"search_summary": "Raise a seed round."
		}`),
		CreatedAt: time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC),
	}
}

func TestExportReport_BuildsPage(t *testing.T) {
	client := &fakeClient{}
	e := NewExporter(client, "db-1")

	pageID, err := e.ExportReport(context.Background(), testReport())
	require.NoError(t, err)
	assert.Equal(t, "page-1", pageID)

	require.NotNil(t, client.req)
	assert.Equal(t, notionapi.DatabaseID("db-1"), client.req.Parent.DatabaseID)

	title := client.req.Properties["Company"].(notionapi.TitleProperty)
	assert.Equal(t, "Acme Robotics", title.Title[0].Text.Content)

	stage := client.req.Properties["Stage"].(notionapi.SelectProperty)
	assert.Equal(t, "seed", stage.Select.Name)

	instruments := client.req.Properties["Instruments"].(notionapi.RichTextProperty)
	assert.Equal(t, "equity, venture_debt", instruments.RichText[0].Text.Content)

	investors := client.req.Properties["Investors"].(notionapi.RichTextProperty)
	assert.Equal(t, "Harbor Growth Ventures", investors.RichText[0].Text.Content)
}

func TestExportReport_EmptyStageOmitted(t *testing.T) {
	client := &fakeClient{}
	e := NewExporter(client, "db-1")

	r := testReport()
	r.Recommendation = json.RawMessage(`{"search_summary":"x"}`)
	_, err := e.ExportReport(context.Background(), r)
	require.NoError(t, err)

	_, ok := client.req.Properties["Stage"]
	assert.False(t, ok)
}

func TestExportReport_CorruptPayload(t *testing.T) {
	client := &fakeClient{}
	e := NewExporter(client, "db-1")

	r := testReport()
	r.Recommendation = json.RawMessage(`{broken`)
	_, err := e.ExportReport(context.Background(), r)
	require.Error(t, err)
	assert.Nil(t, client.req)
}

func TestExportReport_ClientFailure(t *testing.T) {
	client := &fakeClient{err: errors.New("unauthorized")}
	e := NewExporter(client, "db-1")

	_, err := e.ExportReport(context.Background(), testReport())
	require.Error(t, err)
}
