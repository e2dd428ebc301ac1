package embeddings

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/fyrsmithlabs/wikirag/internal/logging"
	"github.com/fyrsmithlabs/wikirag/internal/vectorstore"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// BatchError reports the first batch that failed. It matches
// ErrEmbeddingFailed as well as the underlying cause.
type BatchError struct {
	Index int
	Size  int
	Err   error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("embedding batch %d (%d texts): %v", e.Index, e.Size, e.Err)
}

func (e *BatchError) Unwrap() []error {
	return []error{ErrEmbeddingFailed, e.Err}
}

// OrchestratorConfig configures the fan-out.
type OrchestratorConfig struct {
	// BatchSize caps texts per request. Zero means DefaultBatchSize.
	BatchSize int
	// MaxConcurrency caps in-flight batches. Zero means every batch at once.
	MaxConcurrency int
	// Model labels metrics.
	Model string
}

// Orchestrator embeds a chunk list as concurrent batches.
type Orchestrator struct {
	embedder Embedder
	cfg      OrchestratorConfig
	logger   *logging.Logger
	metrics  *Metrics
	tracer   trace.Tracer
}

// NewOrchestrator returns an Orchestrator. logger may be nil.
func NewOrchestrator(embedder Embedder, cfg OrchestratorConfig, logger *logging.Logger) (*Orchestrator, error) {
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder is required", ErrInvalidConfig)
	}
	if cfg.BatchSize < 0 || cfg.MaxConcurrency < 0 {
		return nil, fmt.Errorf("%w: batch size and max concurrency must be >= 0", ErrInvalidConfig)
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	logger = logging.OrNop(logger).Named("embeddings")

	return &Orchestrator{
		embedder: embedder,
		cfg:      cfg,
		logger:   logger,
		metrics:  NewMetrics(logger.Underlying()),
		tracer:   otel.Tracer(instrumentationName),
	}, nil
}

// BatchSize returns the effective batch size.
func (o *Orchestrator) BatchSize() int { return o.cfg.BatchSize }

// EmbedChunks embeds chunks and returns one document per chunk, in chunk
// order. All batches are issued before any is awaited, and results land in a
// slot per batch, so completion order never affects output order. The first
// failure cancels the remaining batches and nothing partial is returned.
func (o *Orchestrator) EmbedChunks(ctx context.Context, chunks []string) ([]vectorstore.Document, error) {
	if len(chunks) == 0 {
		return []vectorstore.Document{}, nil
	}

	ctx, span := o.tracer.Start(ctx, "embeddings.EmbedChunks",
		trace.WithAttributes(
			attribute.Int("chunks", len(chunks)),
			attribute.Int("batch_size", o.cfg.BatchSize),
		))
	defer span.End()

	batches := PlanBatches(chunks, o.cfg.BatchSize)
	results := make([][][]float32, len(batches))

	o.logger.Debug(ctx, "dispatching embedding batches",
		zap.Int("chunks", len(chunks)),
		zap.Int("batches", len(batches)))

	g, gctx := errgroup.WithContext(ctx)
	if o.cfg.MaxConcurrency > 0 {
		g.SetLimit(o.cfg.MaxConcurrency)
	}

	start := time.Now()
	for i, batch := range batches {
		g.Go(func() error {
			vecs, err := o.embedBatch(gctx, i, batch)
			if err != nil {
				return err
			}
			results[i] = vecs
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "embedding failed")
		o.logger.Error(ctx, "embedding failed", zap.Error(err))
		return nil, err
	}

	docs := make([]vectorstore.Document, 0, len(chunks))
	pos := 0
	for _, vecs := range results {
		for _, vec := range vecs {
			docs = append(docs, vectorstore.Document{
				Content:   chunks[pos],
				Embedding: vec,
				Metadata: map[string]string{
					vectorstore.MetaText:     chunks[pos],
					vectorstore.MetaPosition: strconv.Itoa(pos),
				},
			})
			pos++
		}
	}

	o.logger.Info(ctx, "chunks embedded",
		zap.Int("embeddings", len(docs)),
		zap.Int("batches", len(batches)),
		zap.Duration("elapsed", time.Since(start)))
	span.SetAttributes(attribute.Int("embeddings", len(docs)))
	span.SetStatus(codes.Ok, "")

	return docs, nil
}

func (o *Orchestrator) embedBatch(ctx context.Context, index int, batch []string) ([][]float32, error) {
	ctx, span := o.tracer.Start(ctx, "embeddings.batch",
		trace.WithAttributes(
			attribute.Int("batch.index", index),
			attribute.Int("batch.size", len(batch)),
		))
	defer span.End()

	start := time.Now()
	vecs, err := o.embedder.EmbedDocuments(ctx, batch)
	if err == nil && len(vecs) != len(batch) {
		err = fmt.Errorf("provider returned %d vectors for %d texts", len(vecs), len(batch))
	}
	o.metrics.RecordGeneration(ctx, o.cfg.Model, "embed_batch", time.Since(start), len(batch), err)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "batch failed")
		return nil, &BatchError{Index: index, Size: len(batch), Err: err}
	}

	o.logger.Trace(ctx, "batch embedded",
		zap.Int("batch", index),
		zap.Int("size", len(batch)),
		zap.Duration("elapsed", time.Since(start)))
	return vecs, nil
}
