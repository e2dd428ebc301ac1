package embeddings

import (
	"fmt"

	"github.com/fyrsmithlabs/wikirag/internal/cohere"
	"github.com/fyrsmithlabs/wikirag/internal/logging"
)

// ProviderConfig selects and configures an embedding provider.
type ProviderConfig struct {
	// Provider is "cohere", "openai" or "fastembed".
	Provider string
	Model    string

	// Cohere is required for the cohere provider.
	Cohere            *cohere.Client
	DocumentInputType string
	QueryInputType    string

	// BaseURL and APIKey are used by the openai provider.
	BaseURL string
	APIKey  string

	// CacheDir is used by the fastembed provider.
	CacheDir string
}

// NewProvider builds the configured provider.
func NewProvider(cfg ProviderConfig, logger *logging.Logger) (Provider, error) {
	var (
		p   Provider
		err error
	)
	switch cfg.Provider {
	case "cohere", "":
		p, err = asProvider(NewCohereProvider(cfg.Cohere, CohereConfig{
			Model:             cfg.Model,
			DocumentInputType: cfg.DocumentInputType,
			QueryInputType:    cfg.QueryInputType,
		}, logger))
	case "openai":
		p, err = asProvider(NewOpenAIProvider(OpenAIConfig{
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			APIKey:  cfg.APIKey,
		}, logger))
	case "fastembed":
		p, err = asProvider(NewFastEmbedProvider(FastEmbedConfig{
			Model:    cfg.Model,
			CacheDir: cfg.CacheDir,
		}))
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrInvalidConfig, cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("creating %s embedding provider: %w", cfg.Provider, err)
	}
	return p, nil
}

// asProvider keeps a typed nil pointer out of the interface on error.
func asProvider[P Provider](p P, err error) (Provider, error) {
	if err != nil {
		return nil, err
	}
	return p, nil
}
