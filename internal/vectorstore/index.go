package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"regexp"
)

// Metadata keys written for every embedded chunk.
const (
	MetaText     = "text"
	MetaPosition = "position"
)

var (
	// ErrCollectionNotFound indicates the collection does not exist.
	ErrCollectionNotFound = errors.New("collection not found")

	// ErrCollectionExists indicates the collection already exists.
	ErrCollectionExists = errors.New("collection already exists")

	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrInvalidCollectionName indicates collection name validation failure.
	ErrInvalidCollectionName = errors.New("invalid collection name")

	// ErrDimensionMismatch indicates a vector whose length differs from the
	// collection's dimension.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrEmptyQuery indicates a query with no vector.
	ErrEmptyQuery = errors.New("empty query vector")

	// ErrIndexIncomplete indicates a rebuild that did not insert every document.
	ErrIndexIncomplete = errors.New("index incomplete")
)

// collectionNamePattern: lowercase letters, numbers, underscores, 1-64 characters.
var collectionNamePattern = regexp.MustCompile(`^[a-z0-9_]{1,64}$`)

// Document is an embedded chunk ready for insertion.
type Document struct {
	// ID is assigned by the Writer when empty.
	ID string

	// Content is the chunk text.
	Content string

	// Embedding is the precomputed vector. All documents of a collection
	// share one dimension.
	Embedding []float32

	// Metadata carries MetaText and MetaPosition plus any extra string fields.
	Metadata map[string]string
}

// SearchResult is one hit of a nearest-neighbour query.
type SearchResult struct {
	ID      string
	Content string

	// Score is the cosine similarity, higher is closer.
	Score float32

	// Rank is the 0-based position in the result list; 0 is the closest.
	Rank int

	Metadata map[string]string
}

// Index is a named-collection vector index.
//
// Implementations must be safe for concurrent Insert calls on one collection.
type Index interface {
	// Exists reports whether the collection exists.
	Exists(ctx context.Context, collection string) (bool, error)

	// Create makes an empty collection for vectors of length dim. It returns
	// ErrCollectionExists if the collection is already present.
	Create(ctx context.Context, collection string, dim int) error

	// Delete removes the collection and everything in it.
	Delete(ctx context.Context, collection string) error

	// Insert adds one document. doc.ID must be set.
	Insert(ctx context.Context, collection string, doc Document) error

	// Query returns up to k documents closest to vector, closest first.
	Query(ctx context.Context, collection string, vector []float32, k int) ([]SearchResult, error)

	// Count returns the number of documents in the collection.
	Count(ctx context.Context, collection string) (int, error)

	// Close releases the index.
	Close() error
}

// ValidateCollectionName checks a collection name against ^[a-z0-9_]{1,64}$.
// Names end up in file paths (chromem) and URLs (qdrant).
func ValidateCollectionName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: collection name cannot be empty", ErrInvalidCollectionName)
	}
	if !collectionNamePattern.MatchString(name) {
		return fmt.Errorf("%w: collection name must match pattern ^[a-z0-9_]{1,64}$, got %q", ErrInvalidCollectionName, name)
	}
	return nil
}

func rankResults(results []SearchResult) []SearchResult {
	for i := range results {
		results[i].Rank = i
	}
	return results
}
