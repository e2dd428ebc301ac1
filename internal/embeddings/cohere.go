package embeddings

import (
	"context"
	"fmt"
	"time"

	"github.com/fyrsmithlabs/wikirag/internal/cohere"
	"github.com/fyrsmithlabs/wikirag/internal/logging"
)

// CohereConfig configures CohereProvider.
type CohereConfig struct {
	Model             string
	DocumentInputType string
	QueryInputType    string
	// Dimension overrides the model table when set.
	Dimension int
}

// CohereProvider embeds through the Cohere embed endpoint. Documents and
// queries are sent with different input types.
type CohereProvider struct {
	client  *cohere.Client
	cfg     CohereConfig
	metrics *Metrics
}

// NewCohereProvider wraps a shared Cohere client.
func NewCohereProvider(client *cohere.Client, cfg CohereConfig, logger *logging.Logger) (*CohereProvider, error) {
	if client == nil {
		return nil, fmt.Errorf("%w: cohere client is required", ErrInvalidConfig)
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("%w: model required", ErrInvalidConfig)
	}
	if cfg.DocumentInputType == "" {
		cfg.DocumentInputType = cohere.InputTypeSearchDocument
	}
	if cfg.QueryInputType == "" {
		cfg.QueryInputType = cohere.InputTypeSearchQuery
	}
	if cfg.Dimension == 0 {
		cfg.Dimension = ModelDimension(cfg.Model)
	}
	return &CohereProvider{
		client:  client,
		cfg:     cfg,
		metrics: NewMetrics(logging.OrNop(logger).Underlying()),
	}, nil
}

func (p *CohereProvider) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: texts cannot be empty", ErrEmptyInput)
	}
	return p.embed(ctx, texts, p.cfg.DocumentInputType, "embed_documents")
}

func (p *CohereProvider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("%w: query cannot be empty", ErrEmptyInput)
	}
	vecs, err := p.embed(ctx, []string{text}, p.cfg.QueryInputType, "embed_query")
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (p *CohereProvider) embed(ctx context.Context, texts []string, inputType, op string) (vecs [][]float32, err error) {
	start := time.Now()
	defer func() {
		p.metrics.RecordGeneration(ctx, p.cfg.Model, op, time.Since(start), len(texts), err)
	}()

	resp, err := p.client.Embed(ctx, cohere.EmbedRequest{
		Texts:          texts,
		Model:          p.cfg.Model,
		InputType:      inputType,
		EmbeddingTypes: []string{"float"},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEmbeddingFailed, err)
	}
	if len(resp.Embeddings.Float) != len(texts) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d texts", ErrEmbeddingFailed, len(resp.Embeddings.Float), len(texts))
	}
	return resp.Embeddings.Float, nil
}

// Dimension returns the model's vector size.
func (p *CohereProvider) Dimension() int { return p.cfg.Dimension }

// Close is a no-op; the HTTP client is shared.
func (p *CohereProvider) Close() error { return nil }
