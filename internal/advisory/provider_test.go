package advisory

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/funding-advisor/internal/advisor"
	"github.com/sells-group/funding-advisor/internal/model"
	"github.com/sells-group/funding-advisor/internal/prompt"
	"github.com/sells-group/funding-advisor/pkg/anthropic"
)

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

func newTestProvider(t *testing.T, llm *fakeLLM) *Provider {
	t.Helper()
	registry, err := prompt.Load("")
	require.NoError(t, err)
	return New(llm, registry)
}

func testCompany() model.Company {
	country := "FI"
	return model.Company{ID: 1, Name: "Acme Robotics", Country: &country}
}

func TestRecommend_NormalizesPayload(t *testing.T) {
	llm := &fakeLLM{text: "Here you go:\n```json\n" +
		`{"inferred_stage":"seed","funding_need_type":"growth","instrument_mix":[{"instrument":"equity"}],"novel_field":42}` +
		"\n```"}
	p := newTestProvider(t, llm)

	payload, err := p.Recommend(context.Background(), testCompany())
	require.NoError(t, err)

	var rec model.Recommendation
	require.NoError(t, json.Unmarshal(payload, &rec))
	assert.Equal(t, "seed", rec.InferredStage)
	assert.Equal(t, "growth", rec.FundingNeedType)
	require.Len(t, rec.InstrumentMix, 1)
	// Unknown provider fields survive the round-trip.
	assert.Equal(t, float64(42), rec.Extra["novel_field"])

	assert.Contains(t, llm.req.Messages[0].Content, "Acme Robotics")
	assert.Contains(t, llm.req.Messages[0].Content, `"FI"`)
}

func TestRecommend_LLMFailureIsProviderFailure(t *testing.T) {
	p := newTestProvider(t, &fakeLLM{err: errors.New("overloaded")})

	_, err := p.Recommend(context.Background(), testCompany())
	require.Error(t, err)
	assert.True(t, errors.Is(err, advisor.ErrProviderFailure))
}

func TestRecommend_UnparseableOutputIsHardFailure(t *testing.T) {
	p := newTestProvider(t, &fakeLLM{text: "no json in sight"})

	_, err := p.Recommend(context.Background(), testCompany())
	require.Error(t, err)
	assert.True(t, errors.Is(err, advisor.ErrProviderFailure))
}
