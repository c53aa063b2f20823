package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/philippeb99/researcher-sub001/internal/auth"
	"github.com/philippeb99/researcher-sub001/internal/enrich"
	"github.com/philippeb99/researcher-sub001/internal/orchestrator"
	"github.com/philippeb99/researcher-sub001/internal/store"
	"github.com/philippeb99/researcher-sub001/internal/validate"
	"github.com/philippeb99/researcher-sub001/pkg/anthropic"
	"github.com/philippeb99/researcher-sub001/pkg/jina"
	"github.com/philippeb99/researcher-sub001/pkg/pdl"
	"github.com/philippeb99/researcher-sub001/pkg/proxycurl"
	"github.com/philippeb99/researcher-sub001/pkg/serper"
)

// pipelineEnv holds the wired components a command needs.
type pipelineEnv struct {
	Store        store.Store
	Auth         *auth.Manager
	Validator    *validate.Validator
	Orchestrator *orchestrator.Orchestrator
}

// Close releases the store.
func (e *pipelineEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// openStore connects to the configured backend, postgres or sqlite.
func openStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	case "sqlite":
		return store.NewSQLite(cfg.Store.DatabaseURL)
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// initPipeline wires the store, auth manager, provider clients, enrichers,
// validator, and orchestrator from config.
func initPipeline(ctx context.Context) (*pipelineEnv, error) {
	st, err := openStore(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}

	authMgr := auth.NewManager(
		cfg.Auth.JWTSecret,
		time.Duration(cfg.Auth.TokenTTLMinutes)*time.Minute,
		cfg.Auth.ElevatedRoles,
	)

	pdlClient := pdl.NewClient(cfg.PDL.Key, pdl.WithBaseURL(cfg.PDL.BaseURL))
	peopleClient := proxycurl.NewClient(cfg.Proxycurl.Key, proxycurl.WithBaseURL(cfg.Proxycurl.BaseURL))
	searchClient := serper.NewClient(cfg.Serper.Key, serper.WithBaseURL(cfg.Serper.BaseURL))
	readerClient := jina.NewClient(cfg.Jina.Key, jina.WithBaseURL(cfg.Jina.BaseURL))
	llm := anthropic.NewClient(cfg.Anthropic.Key)

	audit := enrich.NewAuditor(st)
	validator := validate.New(st, cfg.Anthropic.Model)
	orch := orchestrator.New(st, authMgr, validator,
		enrich.NewCompanyEnricher(st, pdlClient, searchClient, llm, cfg.Anthropic.Model, audit),
		enrich.NewLinkedInEnricher(st, peopleClient, searchClient, audit),
		enrich.NewNewsEnricher(st, searchClient, llm, cfg.Anthropic.Model, cfg.Enrich.MinRelevanceScore, cfg.Enrich.MaxNewsItems, audit),
		enrich.NewWebScrapeEnricher(st, readerClient, searchClient, cfg.Enrich.MaxScrapeURLs, cfg.Enrich.ScrapeDelaySecs, audit),
	)

	return &pipelineEnv{
		Store:        st,
		Auth:         authMgr,
		Validator:    validator,
		Orchestrator: orch,
	}, nil
}
