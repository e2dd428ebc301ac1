package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/fyrsmithlabs/wikirag/internal/logging"
	chromem "github.com/philippgille/chromem-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

var chromemTracer = otel.Tracer("github.com/fyrsmithlabs/wikirag/internal/vectorstore/chromem")

// errPrecomputed is returned by the embedding func handed to chromem.
// Every vector is computed upstream, so chromem must never embed on its own.
var errPrecomputed = errors.New("embeddings must be precomputed")

// metaDimension is the collection metadata key recording the vector length.
const metaDimension = "dimension"

// ChromemConfig configures the embedded index.
type ChromemConfig struct {
	// Path is the directory for persistent storage. Empty keeps the index in
	// memory only.
	Path string

	// Compress enables gzip compression of persisted files.
	Compress bool
}

// ChromemIndex implements Index on chromem-go.
type ChromemIndex struct {
	db     *chromem.DB
	path   string
	logger *logging.Logger

	// dims caches each collection's vector length. Collections loaded from
	// disk are learned from their stored vectors, never from a query alone.
	dims sync.Map
}

// NewChromemIndex opens (or creates) the index directory. logger may be nil.
func NewChromemIndex(cfg ChromemConfig, logger *logging.Logger) (*ChromemIndex, error) {
	logger = logging.OrNop(logger).Named("vectorstore.chromem")

	if cfg.Path == "" {
		logger.Info(context.Background(), "chromem index initialized in memory")
		return &ChromemIndex{db: chromem.NewDB(), logger: logger}, nil
	}

	path, err := expandChromemPath(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("expanding path: %w", err)
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("creating directory %s: %w", path, err)
	}

	db, err := chromem.NewPersistentDB(path, cfg.Compress)
	if err != nil {
		return nil, fmt.Errorf("creating chromem DB: %w", err)
	}

	logger.Info(context.Background(), "chromem index initialized",
		zap.String("path", path),
		zap.Bool("compress", cfg.Compress),
		zap.Int("collections", len(db.ListCollections())),
	)
	return &ChromemIndex{db: db, path: path, logger: logger}, nil
}

// expandChromemPath expands ~ to home directory.
func expandChromemPath(path string) (string, error) {
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, path[1:]), nil
	}
	return path, nil
}

func precomputedOnly(context.Context, string) ([]float32, error) {
	return nil, errPrecomputed
}

// collection must be called with a validated name. chromem substitutes an
// OpenAI embedder for persisted collections when the func is nil, so one is
// always passed.
func (x *ChromemIndex) collection(name string) *chromem.Collection {
	return x.db.GetCollection(name, precomputedOnly)
}

// Exists implements Index.
func (x *ChromemIndex) Exists(ctx context.Context, name string) (bool, error) {
	if err := ValidateCollectionName(name); err != nil {
		return false, err
	}
	return x.collection(name) != nil, nil
}

// Create implements Index.
func (x *ChromemIndex) Create(ctx context.Context, name string, dim int) error {
	ctx, span := chromemTracer.Start(ctx, "ChromemIndex.Create")
	defer span.End()

	span.SetAttributes(
		attribute.String("collection", name),
		attribute.Int("dimension", dim),
	)

	if err := ValidateCollectionName(name); err != nil {
		return err
	}
	if dim <= 0 {
		return fmt.Errorf("%w: dimension must be positive, got %d", ErrInvalidConfig, dim)
	}

	// chromem's CreateCollection is idempotent; Create is not.
	if x.collection(name) != nil {
		return ErrCollectionExists
	}

	meta := map[string]string{metaDimension: strconv.Itoa(dim)}
	if _, err := x.db.CreateCollection(name, meta, precomputedOnly); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("creating collection %s: %w", name, err)
	}
	x.dims.Store(name, dim)

	span.SetStatus(codes.Ok, "success")
	x.logger.Debug(ctx, "created chromem collection",
		zap.String("collection", name),
		zap.Int("dimension", dim),
	)
	return nil
}

// Delete implements Index.
func (x *ChromemIndex) Delete(ctx context.Context, name string) error {
	ctx, span := chromemTracer.Start(ctx, "ChromemIndex.Delete")
	defer span.End()

	span.SetAttributes(attribute.String("collection", name))

	if err := ValidateCollectionName(name); err != nil {
		return err
	}
	if err := x.db.DeleteCollection(name); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("deleting collection %s: %w", name, err)
	}
	x.dims.Delete(name)

	span.SetStatus(codes.Ok, "success")
	x.logger.Debug(ctx, "deleted chromem collection", zap.String("collection", name))
	return nil
}

// Insert implements Index.
func (x *ChromemIndex) Insert(ctx context.Context, name string, doc Document) error {
	if err := ValidateCollectionName(name); err != nil {
		return err
	}
	if doc.ID == "" {
		return fmt.Errorf("%w: document id is required", ErrInvalidConfig)
	}

	coll := x.collection(name)
	if coll == nil {
		return ErrCollectionNotFound
	}
	if err := x.checkDimension(ctx, name, coll, doc.Embedding, true); err != nil {
		return err
	}

	err := coll.AddDocument(ctx, chromem.Document{
		ID:        doc.ID,
		Metadata:  doc.Metadata,
		Embedding: doc.Embedding,
		Content:   doc.Content,
	})
	if err != nil {
		return fmt.Errorf("adding document %s to %s: %w", doc.ID, name, err)
	}
	return nil
}

// Query implements Index. k is capped at the collection size because chromem
// rejects larger result counts.
func (x *ChromemIndex) Query(ctx context.Context, name string, vector []float32, k int) ([]SearchResult, error) {
	ctx, span := chromemTracer.Start(ctx, "ChromemIndex.Query")
	defer span.End()

	span.SetAttributes(
		attribute.String("collection", name),
		attribute.Int("k", k),
	)

	if err := ValidateCollectionName(name); err != nil {
		return nil, err
	}
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", ErrInvalidConfig, k)
	}
	if len(vector) == 0 {
		return nil, ErrEmptyQuery
	}

	coll := x.collection(name)
	if coll == nil {
		span.SetStatus(codes.Error, "collection not found")
		return nil, ErrCollectionNotFound
	}
	if err := x.checkDimension(ctx, name, coll, vector, false); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "dimension mismatch")
		return nil, err
	}

	n := coll.Count()
	if n == 0 {
		return []SearchResult{}, nil
	}
	k = min(k, n)

	hits, err := coll.QueryEmbedding(ctx, vector, k, nil, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if isLengthError(err) {
			return nil, fmt.Errorf("%w: collection %s: %v", ErrDimensionMismatch, name, err)
		}
		return nil, fmt.Errorf("querying collection %s: %w", name, err)
	}

	results := make([]SearchResult, len(hits))
	for i, h := range hits {
		results[i] = SearchResult{
			ID:       h.ID,
			Content:  h.Content,
			Score:    h.Similarity,
			Metadata: h.Metadata,
		}
	}

	span.SetAttributes(attribute.Int("results_count", len(results)))
	span.SetStatus(codes.Ok, "success")
	x.logger.Debug(ctx, "queried chromem collection",
		zap.String("collection", name),
		zap.Int("k", k),
		zap.Int("results", len(results)),
	)
	return rankResults(results), nil
}

// Count implements Index.
func (x *ChromemIndex) Count(ctx context.Context, name string) (int, error) {
	if err := ValidateCollectionName(name); err != nil {
		return 0, err
	}
	coll := x.collection(name)
	if coll == nil {
		return 0, ErrCollectionNotFound
	}
	return coll.Count(), nil
}

// Close implements Index. chromem persists on every write, so there is
// nothing to flush.
func (x *ChromemIndex) Close() error {
	x.logger.Debug(context.Background(), "chromem index closed")
	return nil
}

// checkDimension compares vec with the known dimension of the collection.
// An unknown dimension is learned by matching vec against the stored vectors.
// An empty collection takes its dimension from the first insert only.
func (x *ChromemIndex) checkDimension(ctx context.Context, name string, coll *chromem.Collection, vec []float32, insert bool) error {
	got := len(vec)
	if got == 0 {
		return fmt.Errorf("%w: empty vector", ErrDimensionMismatch)
	}
	if want, ok := x.dims.Load(name); ok {
		if want.(int) != got {
			return fmt.Errorf("%w: collection %s holds %d-dimensional vectors, got %d",
				ErrDimensionMismatch, name, want.(int), got)
		}
		return nil
	}

	if coll.Count() == 0 {
		if insert {
			x.dims.Store(name, got)
		}
		return nil
	}

	if _, err := coll.QueryEmbedding(ctx, vec, 1, nil, nil); err != nil {
		if isLengthError(err) {
			return fmt.Errorf("%w: collection %s does not hold %d-dimensional vectors",
				ErrDimensionMismatch, name, got)
		}
		return fmt.Errorf("checking dimension of %s: %w", name, err)
	}
	x.dims.Store(name, got)
	return nil
}

// isLengthError reports chromem's error for vectors of different lengths.
func isLengthError(err error) bool {
	return strings.Contains(err.Error(), "vectors must have the same length")
}
