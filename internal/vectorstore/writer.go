package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sync/atomic"
	"time"

	"github.com/fyrsmithlabs/wikirag/internal/logging"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultWriteConcurrency bounds in-flight inserts.
const DefaultWriteConcurrency = 16

// IncompleteIndexError reports a rebuild that failed part way. RolledBack
// tells whether the partial collection was dropped.
type IncompleteIndexError struct {
	Collection string
	Inserted   int
	Total      int
	RolledBack bool
	Err        error
}

func (e *IncompleteIndexError) Error() string {
	state := "rolled back"
	if !e.RolledBack {
		state = "rollback failed"
	}
	return fmt.Sprintf("index %s incomplete: %d of %d documents inserted, %s: %v",
		e.Collection, e.Inserted, e.Total, state, e.Err)
}

func (e *IncompleteIndexError) Unwrap() []error {
	return []error{ErrIndexIncomplete, e.Err}
}

// WriterConfig configures a Writer.
type WriterConfig struct {
	// Concurrency caps in-flight inserts. Zero means DefaultWriteConcurrency.
	Concurrency int

	// DefaultDimension sizes the collection when a rebuild has no documents.
	DefaultDimension int

	// Metrics is optional.
	Metrics *Metrics
}

// RebuildReport summarizes a successful rebuild.
type RebuildReport struct {
	Collection string
	Documents  int
	Dimension  int
	Replaced   bool
	Elapsed    time.Duration
}

// Writer replaces a collection's contents with a new document set.
type Writer struct {
	index  Index
	cfg    WriterConfig
	logger *logging.Logger
	tracer trace.Tracer
}

// NewWriter returns a Writer over index. logger may be nil.
func NewWriter(index Index, cfg WriterConfig, logger *logging.Logger) (*Writer, error) {
	if index == nil {
		return nil, fmt.Errorf("%w: index is required", ErrInvalidConfig)
	}
	if cfg.Concurrency < 0 || cfg.DefaultDimension < 0 {
		return nil, fmt.Errorf("%w: concurrency and default dimension must be >= 0", ErrInvalidConfig)
	}
	if cfg.Concurrency == 0 {
		cfg.Concurrency = DefaultWriteConcurrency
	}
	return &Writer{
		index:  index,
		cfg:    cfg,
		logger: logging.OrNop(logger).Named("vectorstore.writer"),
		tracer: otel.Tracer("github.com/fyrsmithlabs/wikirag/internal/vectorstore/writer"),
	}, nil
}

// Rebuild drops collection if it exists, recreates it and inserts docs
// concurrently. Documents without an ID get a random UUID and every document
// carries its content under MetaText. When any insert fails the collection
// is dropped and an *IncompleteIndexError is returned.
//
// The input is checked for a consistent dimension before the existing
// collection is touched.
func (w *Writer) Rebuild(ctx context.Context, collection string, docs []Document) (*RebuildReport, error) {
	ctx, span := w.tracer.Start(ctx, "vectorstore.Rebuild",
		trace.WithAttributes(
			attribute.String("collection", collection),
			attribute.Int("documents", len(docs)),
		))
	defer span.End()

	start := time.Now()
	report, err := w.rebuild(ctx, collection, docs)
	inserted, size := 0, 0
	if report != nil {
		inserted, size = report.Documents, report.Documents
	}
	var incomplete *IncompleteIndexError
	if errors.As(err, &incomplete) {
		inserted = incomplete.Inserted
	}
	w.cfg.Metrics.recordRebuild(collection, inserted, size, time.Since(start), err)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "rebuild failed")
		w.logger.Error(ctx, "index rebuild failed",
			zap.String("collection", collection),
			zap.Error(err))
		return nil, err
	}

	report.Elapsed = time.Since(start)
	span.SetStatus(codes.Ok, "")
	w.logger.Info(ctx, "index rebuilt",
		zap.String("collection", collection),
		zap.Int("documents", report.Documents),
		zap.Int("dimension", report.Dimension),
		zap.Bool("replaced", report.Replaced),
		zap.Duration("elapsed", report.Elapsed))
	return report, nil
}

func (w *Writer) rebuild(ctx context.Context, collection string, docs []Document) (*RebuildReport, error) {
	if err := ValidateCollectionName(collection); err != nil {
		return nil, err
	}

	dim := w.cfg.DefaultDimension
	if len(docs) > 0 {
		dim = len(docs[0].Embedding)
	}
	if dim <= 0 {
		return nil, fmt.Errorf("%w: cannot size collection %s without vectors or a default dimension",
			ErrInvalidConfig, collection)
	}
	for i, d := range docs {
		if len(d.Embedding) != dim {
			return nil, fmt.Errorf("%w: document %d has %d dimensions, expected %d",
				ErrDimensionMismatch, i, len(d.Embedding), dim)
		}
	}

	exists, err := w.index.Exists(ctx, collection)
	if err != nil {
		return nil, err
	}
	if exists {
		if err := w.index.Delete(ctx, collection); err != nil {
			return nil, fmt.Errorf("dropping previous index: %w", err)
		}
	}
	if err := w.index.Create(ctx, collection, dim); err != nil {
		return nil, fmt.Errorf("creating index: %w", err)
	}

	var inserted atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.cfg.Concurrency)

	for _, d := range docs {
		g.Go(func() error {
			if err := w.index.Insert(gctx, collection, prepare(d)); err != nil {
				return err
			}
			inserted.Add(1)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		// The caller's ctx may be the reason for the failure; the rollback
		// must still run.
		delErr := w.index.Delete(context.WithoutCancel(ctx), collection)
		if delErr != nil {
			w.logger.Error(ctx, "rollback failed",
				zap.String("collection", collection),
				zap.Error(delErr))
		}
		return nil, &IncompleteIndexError{
			Collection: collection,
			Inserted:   int(inserted.Load()),
			Total:      len(docs),
			RolledBack: delErr == nil,
			Err:        err,
		}
	}

	return &RebuildReport{
		Collection: collection,
		Documents:  len(docs),
		Dimension:  dim,
		Replaced:   exists,
	}, nil
}

// prepare returns a copy of d with an id and the text metadata set.
func prepare(d Document) Document {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	meta := make(map[string]string, len(d.Metadata)+1)
	maps.Copy(meta, d.Metadata)
	if _, ok := meta[MetaText]; !ok {
		meta[MetaText] = d.Content
	}
	d.Metadata = meta
	return d
}
