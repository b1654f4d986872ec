package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/civicsignal/billscan-cli/internal/annotate"
	"github.com/civicsignal/billscan-cli/internal/pipeline"
	"github.com/civicsignal/billscan-cli/internal/store"
	anthropicpkg "github.com/civicsignal/billscan-cli/pkg/anthropic"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "file":
		dir := cfg.Store.DataDir
		if dir == "" {
			dir = "bills"
		}
		return store.NewFile(dir)
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "billscan.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

func initAnnotator() (annotate.Annotator, error) {
	if cfg.Anthropic.Key == "" {
		return nil, eris.New("anthropic API key is required (BILLSCAN_ANTHROPIC_KEY)")
	}
	client := anthropicpkg.NewClient(cfg.Anthropic.Key)
	return annotate.NewClaude(client, annotate.ClaudeOptions{
		FastModel:         cfg.Anthropic.FastModel,
		SynthesisModel:    cfg.Anthropic.SynthesisModel,
		RequestsPerSecond: cfg.Anthropic.RequestsPerSecond,
		Burst:             cfg.Anthropic.Burst,
		MaxAttempts:       cfg.Anthropic.MaxAttempts,
	}), nil
}

// pipelineEnv bundles the dependencies the run-like commands share.
type pipelineEnv struct {
	Store    store.Store
	Pipeline *pipeline.Pipeline
}

func (e *pipelineEnv) Close() {
	_ = e.Store.Close()
}

func initPipeline(ctx context.Context, opts pipeline.RunnerOptions) (*pipelineEnv, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	ann, err := initAnnotator()
	if err != nil {
		st.Close()
		return nil, err
	}

	if opts.BatchSize == 0 {
		opts.BatchSize = cfg.Pipeline.BatchSize
	}
	if opts.Concurrency == 0 {
		opts.Concurrency = cfg.Pipeline.Concurrency
	}

	return &pipelineEnv{
		Store:    st,
		Pipeline: pipeline.New(st, ann, opts),
	}, nil
}
