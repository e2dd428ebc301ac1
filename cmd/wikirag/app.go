package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fyrsmithlabs/wikirag/internal/chunker"
	"github.com/fyrsmithlabs/wikirag/internal/cohere"
	"github.com/fyrsmithlabs/wikirag/internal/config"
	"github.com/fyrsmithlabs/wikirag/internal/embeddings"
	"github.com/fyrsmithlabs/wikirag/internal/generation"
	"github.com/fyrsmithlabs/wikirag/internal/logging"
	"github.com/fyrsmithlabs/wikirag/internal/rag"
	"github.com/fyrsmithlabs/wikirag/internal/source"
	"github.com/fyrsmithlabs/wikirag/internal/telemetry"
	"github.com/fyrsmithlabs/wikirag/internal/vectorstore"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
	"go.uber.org/zap"
)

// app holds everything one CLI invocation needs. Fields not required by the
// command are left nil.
type app struct {
	cfg       *config.Config
	logger    *logging.Logger
	telemetry *telemetry.Telemetry
	registry  *prometheus.Registry

	cohere    *cohere.Client
	embedder  embeddings.Provider
	index     vectorstore.Index
	generator generation.Generator
	query     *rag.QueryRunner
	pipeline  *rag.Pipeline
}

type appNeeds struct {
	ingest   bool
	generate bool
}

// loadConfig applies the persistent flag overrides on top of config.Load.
func loadConfig(opts *rootOptions) (*config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	if opts.logLevel != "" {
		cfg.Logging.Level = opts.logLevel
	}
	if opts.collection != "" {
		cfg.VectorStore.Collection = vectorstore.CollectionName(opts.collection)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (*logging.Logger, error) {
	lc, err := logging.FromAppConfig(cfg.Logging)
	if err != nil {
		return nil, err
	}
	return logging.NewLogger(lc)
}

// newApp wires the pipeline from cfg. The caller must call close.
func newApp(ctx context.Context, cfg *config.Config, needs appNeeds) (a *app, err error) {
	a = &app{cfg: cfg, registry: prometheus.NewRegistry()}
	defer func() {
		if err != nil {
			a.close(context.WithoutCancel(ctx))
			a = nil
		}
	}()

	if a.logger, err = newLogger(cfg); err != nil {
		return a, fmt.Errorf("creating logger: %w", err)
	}

	if a.telemetry, err = telemetry.New(ctx, telemetry.FromAppConfig(cfg.Telemetry, version)); err != nil {
		return a, fmt.Errorf("initializing telemetry: %w", err)
	}
	if derr := a.telemetry.Degraded(); derr != nil {
		a.logger.Warn(ctx, "telemetry degraded", zap.Error(derr))
	}

	if usesCohere(cfg, needs) {
		a.cohere, err = cohere.NewClient(cohere.Config{
			BaseURL:           cfg.Cohere.BaseURL,
			APIKey:            cfg.Cohere.APIKey,
			Timeout:           cfg.Cohere.Timeout.Duration(),
			RequestsPerSecond: cfg.Cohere.RequestsPerSecond,
		})
		if err != nil {
			return a, fmt.Errorf("creating cohere client: %w", err)
		}
	}

	a.embedder, err = embeddings.NewProvider(embeddings.ProviderConfig{
		Provider:          cfg.Embeddings.Provider,
		Model:             cfg.Embeddings.Model,
		Cohere:            a.cohere,
		DocumentInputType: cfg.Embeddings.DocumentInputType,
		QueryInputType:    cfg.Embeddings.QueryInputType,
		BaseURL:           cfg.OpenAI.BaseURL,
		APIKey:            cfg.OpenAI.APIKey.Value(),
		CacheDir:          cfg.Embeddings.CacheDir,
	}, a.logger)
	if err != nil {
		return a, err
	}

	if a.index, err = vectorstore.NewIndex(cfg.VectorStore, a.logger); err != nil {
		return a, fmt.Errorf("opening index: %w", err)
	}

	if needs.generate {
		if a.generator, err = generation.New(cfg, a.cohere, a.logger); err != nil {
			return a, fmt.Errorf("creating generator: %w", err)
		}
	}

	query, err := rag.NewQueryRunner(a.embedder, a.index, a.generator, rag.QueryConfig{
		Collection: cfg.VectorStore.Collection,
		TopK:       cfg.Query.TopK,
	}, a.logger)
	if err != nil {
		return a, err
	}

	comps := rag.Components{Query: query}
	if needs.ingest {
		if comps.Source, err = source.New(cfg.Source, a.logger); err != nil {
			return a, err
		}
		if comps.Chunker, err = chunker.New(chunker.Config{Size: cfg.Chunking.Size, Overlap: cfg.Chunking.Overlap}); err != nil {
			return a, err
		}
		comps.Orchestrator, err = embeddings.NewOrchestrator(a.embedder, embeddings.OrchestratorConfig{
			BatchSize:      cfg.Embeddings.BatchSize,
			MaxConcurrency: cfg.Embeddings.MaxConcurrency,
			Model:          cfg.Embeddings.Model,
		}, a.logger)
		if err != nil {
			return a, err
		}
		comps.Writer, err = vectorstore.NewWriter(a.index, vectorstore.WriterConfig{
			Concurrency:      cfg.VectorStore.WriteConcurrency,
			DefaultDimension: cfg.VectorStore.VectorSize,
			Metrics:          vectorstore.NewMetrics(a.registry),
		}, a.logger)
		if err != nil {
			return a, err
		}
		a.pipeline, err = rag.NewPipeline(comps, cfg.VectorStore.Collection, a.logger)
		if err != nil {
			return a, err
		}
	}
	a.query = query
	return a, nil
}

func usesCohere(cfg *config.Config, needs appNeeds) bool {
	switch cfg.Embeddings.Provider {
	case "cohere", "":
		return true
	}
	if !needs.generate {
		return false
	}
	switch cfg.Generation.Provider {
	case "cohere", "":
		return true
	}
	return false
}

// pushMetrics sends the run's index metrics to the Pushgateway when one is
// configured. Failures are logged, never fatal.
func (a *app) pushMetrics(ctx context.Context, runID string) {
	if a.cfg.Metrics.PushgatewayURL == "" {
		return
	}
	p := push.New(a.cfg.Metrics.PushgatewayURL, a.cfg.Metrics.Job).
		Gatherer(a.registry).
		Grouping("collection", a.cfg.VectorStore.Collection)
	if runID != "" {
		p = p.Grouping("run_id", runID)
	}
	if err := p.PushContext(ctx); err != nil {
		a.logger.Warn(ctx, "pushing metrics failed",
			zap.String("pushgateway", a.cfg.Metrics.PushgatewayURL),
			zap.Error(err))
		return
	}
	a.logger.Debug(ctx, "metrics pushed", zap.String("pushgateway", a.cfg.Metrics.PushgatewayURL))
}

// close releases every component, in reverse construction order.
func (a *app) close(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var errs []error
	if a.index != nil {
		errs = append(errs, a.index.Close())
	}
	if a.embedder != nil {
		errs = append(errs, a.embedder.Close())
	}
	if a.telemetry != nil {
		errs = append(errs, a.telemetry.Shutdown(ctx))
	}
	if a.logger != nil {
		if err := errors.Join(errs...); err != nil {
			a.logger.Warn(ctx, "shutdown incomplete", zap.Error(err))
		}
		_ = a.logger.Sync()
	}
}
