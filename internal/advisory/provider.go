// Package advisory produces structured funding recommendations from a
// company profile via the funding_advisor agent.
package advisory

import (
	"context"
	"encoding/json"

	"github.com/rotisserie/eris"

	"github.com/sells-group/funding-advisor/internal/advisor"
	"github.com/sells-group/funding-advisor/internal/llmjson"
	"github.com/sells-group/funding-advisor/internal/model"
	"github.com/sells-group/funding-advisor/internal/prompt"
	"github.com/sells-group/funding-advisor/pkg/anthropic"
)

// Provider implements advisor.AdvisoryProvider.
type Provider struct {
	llm      anthropic.Client
	registry *prompt.Registry
}

var _ advisor.AdvisoryProvider = (*Provider)(nil)

// New builds a Provider.
func New(llm anthropic.Client, registry *prompt.Registry) *Provider {
	return &Provider{llm: llm, registry: registry}
}

// Recommend asks the funding_advisor agent for a recommendation. Unusable
// output is a hard provider failure; there is no canned fallback for advice.
func (p *Provider) Recommend(ctx context.Context, profile model.Company) (json.RawMessage, error) {
	agent, err := p.registry.Agent(prompt.AgentFundingAdvisor)
	if err != nil {
		return nil, err
	}

	profileJSON, err := json.Marshal(profile.Metrics())
	if err != nil {
		return nil, eris.Wrap(err, "advisory: marshal profile")
	}

	resp, err := p.llm.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       agent.Model,
		MaxTokens:   int64(agent.MaxTokens),
		Temperature: &agent.Temperature,
		System:      []anthropic.SystemBlock{{Text: agent.SystemPrompt}},
		Messages: []anthropic.Message{{
			Role:    "user",
			Content: "Company: " + profile.Name + "\nProfile:\n" + string(profileJSON),
		}},
	})
	if err != nil {
		return nil, eris.Wrapf(advisor.ErrProviderFailure, "advisory: recommend for %s: %v", profile.Name, err)
	}
	resp.Usage.LogCost(agent.Model, prompt.AgentFundingAdvisor)

	cleaned := llmjson.Clean(resp.Text())
	var rec model.Recommendation
	if err := json.Unmarshal([]byte(cleaned), &rec); err != nil {
		return nil, eris.Wrapf(advisor.ErrProviderFailure, "advisory: parse recommendation for %s: %v", profile.Name, err)
	}

	// Re-marshal through the typed form so stored payloads are normalized
	// while unknown provider fields survive in Extra.
	payload, err := json.Marshal(rec)
	if err != nil {
		return nil, eris.Wrap(err, "advisory: marshal recommendation")
	}
	return payload, nil
}
