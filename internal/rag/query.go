package rag

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fyrsmithlabs/wikirag/internal/embeddings"
	"github.com/fyrsmithlabs/wikirag/internal/generation"
	"github.com/fyrsmithlabs/wikirag/internal/logging"
	"github.com/fyrsmithlabs/wikirag/internal/vectorstore"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/fyrsmithlabs/wikirag/internal/rag"

// DefaultTopK is the number of chunks retrieved per question.
const DefaultTopK = 10

// QueryConfig configures a QueryRunner.
type QueryConfig struct {
	Collection string
	// TopK defaults to DefaultTopK.
	TopK int
}

// Answer is the outcome of one question.
type Answer struct {
	Query     string
	Text      string
	Citations []generation.Citation
	// Documents are the retrieved chunks the answer cites.
	Documents []generation.Document
	// Retrieved holds every chunk handed to the generator, closest first.
	Retrieved []vectorstore.SearchResult
	Elapsed   time.Duration
}

// QueryRunner answers a question against an indexed collection.
type QueryRunner struct {
	embedder  embeddings.Embedder
	index     vectorstore.Index
	generator generation.Generator
	cfg       QueryConfig
	logger    *logging.Logger
	tracer    trace.Tracer
}

// NewQueryRunner validates its dependencies. generator may be nil when only
// Retrieve is used.
func NewQueryRunner(embedder embeddings.Embedder, index vectorstore.Index, generator generation.Generator, cfg QueryConfig, logger *logging.Logger) (*QueryRunner, error) {
	if embedder == nil || index == nil {
		return nil, fmt.Errorf("%w: embedder and index are required", ErrInvalidConfig)
	}
	if err := vectorstore.ValidateCollectionName(cfg.Collection); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if cfg.TopK < 0 {
		return nil, fmt.Errorf("%w: top k must be >= 0, got %d", ErrInvalidConfig, cfg.TopK)
	}
	if cfg.TopK == 0 {
		cfg.TopK = DefaultTopK
	}
	return &QueryRunner{
		embedder:  embedder,
		index:     index,
		generator: generator,
		cfg:       cfg,
		logger:    logging.OrNop(logger).Named("rag.query"),
		tracer:    otel.Tracer(instrumentationName),
	}, nil
}

// Retrieve embeds query with the query input type and returns the TopK
// closest chunks, closest first.
func (q *QueryRunner) Retrieve(ctx context.Context, query string) ([]vectorstore.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}

	ctx, span := q.tracer.Start(ctx, "rag.Retrieve",
		trace.WithAttributes(
			attribute.String("collection", q.cfg.Collection),
			attribute.Int("top_k", q.cfg.TopK),
		))
	defer span.End()

	vec, err := q.embedder.EmbedQuery(logging.WithStage(ctx, string(StageEmbed)), query)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "query embedding failed")
		return nil, stageError(StageEmbed, err)
	}

	results, err := q.index.Query(logging.WithStage(ctx, string(StageIndex)), q.cfg.Collection, vec, q.cfg.TopK)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "index query failed")
		return nil, stageError(StageIndex, err)
	}

	span.SetAttributes(attribute.Int("results", len(results)))
	span.SetStatus(codes.Ok, "")
	q.logger.Debug(ctx, "retrieved chunks",
		zap.Int("results", len(results)),
		zap.Int("top_k", q.cfg.TopK))
	return results, nil
}

// Answer retrieves chunks for query and hands them to the generator as
// documents named doc_<rank>.
func (q *QueryRunner) Answer(ctx context.Context, query string) (*Answer, error) {
	if q.generator == nil {
		return nil, fmt.Errorf("%w: no generator configured", ErrInvalidConfig)
	}
	start := time.Now()

	ctx, span := q.tracer.Start(ctx, "rag.Answer")
	defer span.End()

	results, err := q.Retrieve(ctx, query)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "retrieval failed")
		return nil, err
	}

	resp, err := q.generator.Chat(logging.WithStage(ctx, string(StageGenerate)), query, ToDocuments(results))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "generation failed")
		return nil, stageError(StageGenerate, err)
	}

	ans := &Answer{
		Query:     query,
		Text:      resp.Text,
		Citations: resp.Citations,
		Documents: resp.Documents,
		Retrieved: results,
		Elapsed:   time.Since(start),
	}
	span.SetStatus(codes.Ok, "")
	q.logger.Info(ctx, "question answered",
		zap.Int("retrieved", len(results)),
		zap.Int("citations", len(ans.Citations)),
		zap.Duration("elapsed", ans.Elapsed))
	return ans, nil
}

// ToDocuments converts search results into generation documents. The text
// comes from the chunk's text metadata, falling back to its content.
func ToDocuments(results []vectorstore.SearchResult) []generation.Document {
	docs := make([]generation.Document, len(results))
	for i, r := range results {
		text, ok := r.Metadata[vectorstore.MetaText]
		if !ok {
			text = r.Content
		}
		docs[i] = generation.Document{ID: fmt.Sprintf("doc_%d", r.Rank), Text: text}
	}
	return docs
}
