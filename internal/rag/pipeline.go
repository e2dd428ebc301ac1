// Package rag wires the retrieval-augmented generation pipeline: fetch an
// article, chunk it, embed the chunks, rebuild the index and answer
// questions against it.
//
// Every failure aborts the run and surfaces as a *StageError naming the
// stage (and embedding batch, when there is one).
package rag

import (
	"context"
	"fmt"
	"time"

	"github.com/fyrsmithlabs/wikirag/internal/chunker"
	"github.com/fyrsmithlabs/wikirag/internal/embeddings"
	"github.com/fyrsmithlabs/wikirag/internal/logging"
	"github.com/fyrsmithlabs/wikirag/internal/source"
	"github.com/fyrsmithlabs/wikirag/internal/vectorstore"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// IngestReport summarizes one ingest run.
type IngestReport struct {
	RunID      string
	Title      string
	URL        string
	Words      int
	Chunks     int
	Batches    int
	Embeddings int
	Collection string
	Dimension  int
	Elapsed    time.Duration
}

// Components are the pipeline's collaborators. Query may be nil for an
// ingest-only pipeline.
type Components struct {
	Source       source.Source
	Chunker      *chunker.Chunker
	Orchestrator *embeddings.Orchestrator
	Writer       *vectorstore.Writer
	Query        *QueryRunner
}

// Pipeline runs ingest and question answering for one collection.
type Pipeline struct {
	c          Components
	collection string
	logger     *logging.Logger
	tracer     trace.Tracer
}

// NewPipeline validates c and returns a Pipeline writing to collection.
func NewPipeline(c Components, collection string, logger *logging.Logger) (*Pipeline, error) {
	if c.Source == nil || c.Chunker == nil || c.Orchestrator == nil || c.Writer == nil {
		return nil, fmt.Errorf("%w: source, chunker, orchestrator and writer are required", ErrInvalidConfig)
	}
	if err := vectorstore.ValidateCollectionName(collection); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return &Pipeline{
		c:          c,
		collection: collection,
		logger:     logging.OrNop(logger).Named("rag"),
		tracer:     otel.Tracer(instrumentationName),
	}, nil
}

// Ingest fetches title, chunks and embeds it, and rebuilds the collection.
// A run id is attached to ctx for log correlation unless one is present.
func (p *Pipeline) Ingest(ctx context.Context, title string) (*IngestReport, error) {
	ctx = ensureRunID(ctx)
	start := time.Now()

	ctx, span := p.tracer.Start(ctx, "rag.Ingest",
		trace.WithAttributes(
			attribute.String("title", title),
			attribute.String("collection", p.collection),
		))
	defer span.End()

	report, err := p.ingest(ctx, title)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "ingest failed")
		p.logger.Error(ctx, "ingest failed", zap.Error(err))
		return nil, err
	}

	report.Elapsed = time.Since(start)
	span.SetAttributes(
		attribute.Int("chunks", report.Chunks),
		attribute.Int("embeddings", report.Embeddings),
	)
	span.SetStatus(codes.Ok, "")
	p.logger.Info(ctx, "ingest complete",
		zap.String("title", report.Title),
		zap.Int("words", report.Words),
		zap.Int("chunks", report.Chunks),
		zap.Int("batches", report.Batches),
		zap.Int("embeddings", report.Embeddings),
		zap.Duration("elapsed", report.Elapsed))
	return report, nil
}

func (p *Pipeline) ingest(ctx context.Context, title string) (*IngestReport, error) {
	article, err := p.c.Source.Fetch(logging.WithStage(ctx, string(StageFetch)), title)
	if err != nil {
		return nil, stageError(StageFetch, err)
	}
	report := &IngestReport{
		RunID:      logging.RunIDFromContext(ctx),
		Title:      article.Title,
		URL:        article.URL,
		Words:      article.WordCount(),
		Collection: p.collection,
	}
	p.logger.Info(ctx, "article fetched",
		zap.String("title", article.Title),
		zap.Int("words", report.Words))

	chunks := p.c.Chunker.Split(article.Text)
	report.Chunks = len(chunks)
	report.Batches = embeddings.BatchCount(len(chunks), p.c.Orchestrator.BatchSize())
	p.logger.Info(ctx, "article chunked",
		zap.Int("chunks", report.Chunks),
		zap.Int("batches", report.Batches))

	docs, err := p.c.Orchestrator.EmbedChunks(logging.WithStage(ctx, string(StageEmbed)), chunks)
	if err != nil {
		return nil, stageError(StageEmbed, err)
	}
	report.Embeddings = len(docs)

	rebuilt, err := p.c.Writer.Rebuild(logging.WithStage(ctx, string(StageIndex)), p.collection, docs)
	if err != nil {
		return nil, stageError(StageIndex, err)
	}
	report.Dimension = rebuilt.Dimension
	return report, nil
}

// Ask answers query against the collection.
func (p *Pipeline) Ask(ctx context.Context, query string) (*Answer, error) {
	if p.c.Query == nil {
		return nil, fmt.Errorf("%w: no query runner configured", ErrInvalidConfig)
	}
	return p.c.Query.Answer(ensureRunID(ctx), query)
}

// Run ingests title and answers query under one run id.
func (p *Pipeline) Run(ctx context.Context, title, query string) (*IngestReport, *Answer, error) {
	ctx = ensureRunID(ctx)
	report, err := p.Ingest(ctx, title)
	if err != nil {
		return nil, nil, err
	}
	ans, err := p.Ask(ctx, query)
	if err != nil {
		return report, nil, err
	}
	return report, ans, nil
}

func ensureRunID(ctx context.Context) context.Context {
	if logging.RunIDFromContext(ctx) != "" {
		return ctx
	}
	return logging.WithRunID(ctx, uuid.NewString())
}
