package enrich

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/funding-advisor/internal/advisor"
	"github.com/sells-group/funding-advisor/internal/prompt"
	"github.com/sells-group/funding-advisor/pkg/anthropic"
)

type fakeSearch struct {
	result string
	err    error
	query  string
}

func (f *fakeSearch) Search(_ context.Context, query string) (string, error) {
	f.query = query
	return f.result, f.err
}

type fakeLLM struct {
	text string
	err  error
	req  anthropic.MessageRequest
}

func (f *fakeLLM) CreateMessage(_ context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	f.req = req
	if f.err != nil {
		return nil, f.err
	}
	return &anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: f.text}},
	}, nil
}

func newTestEnricher(t *testing.T, search *fakeSearch, llm *fakeLLM) *Enricher {
	t.Helper()
	registry, err := prompt.Load("")
	require.NoError(t, err)
	return New(search, llm, registry, 100)
}

func TestInferMetrics_ParsesExtraction(t *testing.T) {
	search := &fakeSearch{result: "Acme Robotics is a Finnish robotics firm with 40 staff."}
	llm := &fakeLLM{text: "```json\n{\"country\":\"FI\",\"industry\":\"robotics\",\"employee_count\":40,\"summary\":\"Builds industrial arms.\"}\n```"}
	e := newTestEnricher(t, search, llm)

	res, err := e.InferMetrics(context.Background(), "Acme Robotics", false)
	require.NoError(t, err)
	require.NotNil(t, res.Metrics.Country)
	assert.Equal(t, "FI", *res.Metrics.Country)
	require.NotNil(t, res.Metrics.EmployeeCount)
	assert.Equal(t, float64(40), *res.Metrics.EmployeeCount)
	assert.Equal(t, "Builds industrial arms.", res.Summary)
	assert.JSONEq(t,
		`{"country":"FI","industry":"robotics","employee_count":40,"summary":"Builds industrial arms."}`,
		string(res.ResponsePayload))

	assert.Contains(t, search.query, "Acme Robotics")
	assert.Contains(t, llm.req.Messages[0].Content, search.result)
}

func TestInferMetrics_DetailedUsesDetailedAgent(t *testing.T) {
	search := &fakeSearch{result: "context"}
	llm := &fakeLLM{text: `{"summary":"ok"}`}
	e := newTestEnricher(t, search, llm)

	_, err := e.InferMetrics(context.Background(), "Acme Robotics", true)
	require.NoError(t, err)

	registry, err := prompt.Load("")
	require.NoError(t, err)
	detailed, err := registry.Agent(prompt.AgentDetailedEnrichment)
	require.NoError(t, err)
	assert.Equal(t, detailed.Model, llm.req.Model)
	assert.Equal(t, detailed.SystemPrompt, llm.req.System[0].Text)
}

func TestInferMetrics_SearchFailureIsProviderFailure(t *testing.T) {
	e := newTestEnricher(t, &fakeSearch{err: errors.New("down")}, &fakeLLM{})

	_, err := e.InferMetrics(context.Background(), "Acme Robotics", false)
	require.Error(t, err)
	assert.True(t, errors.Is(err, advisor.ErrProviderFailure))
}

func TestInferMetrics_LLMFailureIsProviderFailure(t *testing.T) {
	e := newTestEnricher(t, &fakeSearch{result: "ctx"}, &fakeLLM{err: errors.New("overloaded")})

	_, err := e.InferMetrics(context.Background(), "Acme Robotics", false)
	require.Error(t, err)
	assert.True(t, errors.Is(err, advisor.ErrProviderFailure))
}

func TestInferMetrics_UnparseableOutputIsProviderFailure(t *testing.T) {
	e := newTestEnricher(t, &fakeSearch{result: "ctx"}, &fakeLLM{text: "I cannot help with that."})

	_, err := e.InferMetrics(context.Background(), "Acme Robotics", false)
	require.Error(t, err)
	assert.True(t, errors.Is(err, advisor.ErrProviderFailure))
}
