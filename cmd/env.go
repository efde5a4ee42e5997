package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/funding-advisor/internal/advisor"
	"github.com/sells-group/funding-advisor/internal/advisory"
	"github.com/sells-group/funding-advisor/internal/config"
	"github.com/sells-group/funding-advisor/internal/enrich"
	"github.com/sells-group/funding-advisor/internal/history"
	"github.com/sells-group/funding-advisor/internal/prompt"
	"github.com/sells-group/funding-advisor/internal/store"
	"github.com/sells-group/funding-advisor/pkg/anthropic"
	"github.com/sells-group/funding-advisor/pkg/perplexity"
)

// env bundles the wired application components for a command run.
type env struct {
	Store   store.Store
	Service *advisor.Service
	History *history.Assembler
}

func (e *env) Close() {
	if err := e.Store.Close(); err != nil {
		zap.L().Warn("close store", zap.Error(err))
	}
}

// openStore picks the backend from config.
func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.Store.Driver {
	case "postgres":
		if cfg.Store.DatabaseURL == "" {
			return nil, eris.New("store.database_url is required for the postgres driver")
		}
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	case "sqlite":
		return store.NewSQLite(cfg.Store.SQLitePath)
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// initEnv wires the store, providers, and advisory core from config.
func initEnv(ctx context.Context) (*env, error) {
	st, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	registry, err := prompt.Load(cfg.Agents.Path)
	if err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}

	llm := anthropic.NewClient(cfg.Anthropic.Key)
	search := perplexity.NewClient(cfg.Perplexity.Key,
		perplexity.WithBaseURL(cfg.Perplexity.BaseURL),
		perplexity.WithModel(cfg.Perplexity.Model),
	)

	enricher := enrich.New(search, llm, registry, cfg.Enrich.RequestsPerSecond)
	adv := advisory.New(llm, registry)

	svc := advisor.NewService(st, enricher, adv,
		advisor.WithFallbackCountry(cfg.Enrich.FallbackCountry),
	)

	return &env{
		Store:   st,
		Service: svc,
		History: history.New(st),
	}, nil
}
