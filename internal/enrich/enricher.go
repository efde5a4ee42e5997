// Package enrich turns a company name into structured business metrics by
// combining a web search with a model extraction pass.
package enrich

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/funding-advisor/internal/advisor"
	"github.com/sells-group/funding-advisor/internal/llmjson"
	"github.com/sells-group/funding-advisor/internal/model"
	"github.com/sells-group/funding-advisor/internal/prompt"
	"github.com/sells-group/funding-advisor/pkg/anthropic"
	"github.com/sells-group/funding-advisor/pkg/perplexity"
)

// Searcher is the web-search arm of enrichment. The Perplexity client is
// the production implementation.
type Searcher interface {
	Search(ctx context.Context, query string) (string, error)
}

var _ Searcher = perplexity.Client(nil)

// Enricher implements advisor.EnrichmentProvider on top of a Perplexity
// search and a Claude extraction pass.
type Enricher struct {
	search   Searcher
	llm      anthropic.Client
	registry *prompt.Registry
	limiter  *rate.Limiter
}

var _ advisor.EnrichmentProvider = (*Enricher)(nil)

// New builds an Enricher. rps caps outbound provider calls per second; zero
// or negative means 1 rps.
func New(search Searcher, llm anthropic.Client, registry *prompt.Registry, rps float64) *Enricher {
	if rps <= 0 {
		rps = 1
	}
	return &Enricher{
		search:   search,
		llm:      llm,
		registry: registry,
		limiter:  rate.NewLimiter(rate.Limit(rps), 1),
	}
}

// extraction mirrors the JSON object the enrichment agents are instructed
// to return.
type extraction struct {
	model.Metrics
	Summary string `json:"summary"`
}

// InferMetrics runs the search-then-extract pipeline for a company name.
// Any provider or parse failure is a provider failure; the caller decides
// whether to absorb it.
func (e *Enricher) InferMetrics(ctx context.Context, name string, detailed bool) (*model.EnrichmentResult, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "enrich: rate limit wait")
	}

	query := fmt.Sprintf(
		"Business profile of the company %q: registration id, website, country, industry, employee count, annual revenue, funding needs and recent funding activity.",
		name,
	)
	searchCtx, err := e.search.Search(ctx, query)
	if err != nil {
		return nil, eris.Wrapf(advisor.ErrProviderFailure, "enrich: search for %s: %v", name, err)
	}

	agentName := prompt.AgentMetricsEnrichment
	if detailed {
		agentName = prompt.AgentDetailedEnrichment
	}
	agent, err := e.registry.Agent(agentName)
	if err != nil {
		return nil, err
	}

	userContent := fmt.Sprintf("Company: %s\n\nSearch context:\n%s", name, searchCtx)
	resp, err := e.llm.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       agent.Model,
		MaxTokens:   int64(agent.MaxTokens),
		Temperature: &agent.Temperature,
		System:      []anthropic.SystemBlock{{Text: agent.SystemPrompt}},
		Messages:    []anthropic.Message{{Role: "user", Content: userContent}},
	})
	if err != nil {
		return nil, eris.Wrapf(advisor.ErrProviderFailure, "enrich: extraction for %s: %v", name, err)
	}
	resp.Usage.LogCost(agent.Model, agentName)

	cleaned := llmjson.Clean(resp.Text())
	var ex extraction
	if err := json.Unmarshal([]byte(cleaned), &ex); err != nil {
		zap.L().Warn("unparseable extraction output",
			zap.String("company", name),
			zap.String("agent", agentName),
			zap.Error(err),
		)
		return nil, eris.Wrapf(advisor.ErrProviderFailure, "enrich: parse extraction for %s: %v", name, err)
	}

	reqPayload, err := json.Marshal(map[string]string{
		"query": query,
		"agent": agentName,
		"model": agent.Model,
	})
	if err != nil {
		return nil, eris.Wrap(err, "enrich: marshal request payload")
	}

	return &model.EnrichmentResult{
		Metrics:         ex.Metrics,
		Summary:         ex.Summary,
		RequestPayload:  reqPayload,
		ResponsePayload: json.RawMessage(cleaned),
	}, nil
}
