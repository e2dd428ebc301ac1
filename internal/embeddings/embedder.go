package embeddings

import (
	"context"
	"errors"
)

var (
	// ErrEmptyInput is returned for an empty text list or an empty query.
	ErrEmptyInput = errors.New("empty or nil input texts")

	// ErrInvalidConfig is returned by constructors for unusable settings.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEmbeddingFailed wraps every provider or batch failure.
	ErrEmbeddingFailed = errors.New("embedding generation failed")
)

// Embedder produces vectors. Document and query embeddings may use different
// input types, so a query must go through EmbedQuery.
type Embedder interface {
	// EmbedDocuments returns one vector per text, in input order.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	// EmbedQuery returns the vector for a search query.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Provider is an Embedder with a known dimension and owned resources.
type Provider interface {
	Embedder
	Dimension() int
	Close() error
}
