// Package config provides configuration loading for wikirag.
package config

import (
	"errors"
	"fmt"
	"slices"
	"time"
)

// ErrInvalidConfig is returned when a loaded configuration fails validation.
var ErrInvalidConfig = errors.New("invalid configuration")

// Built-in defaults. The demo run indexes "Dune Part Two".
const (
	DefaultTitle          = "Dune Part Two"
	DefaultQuery          = "Name everyone involved in writing the script, directing, and producing 'Dune: Part Two'?"
	DefaultChunkSize      = 512
	DefaultChunkOverlap   = 50
	DefaultBatchSize      = 96
	DefaultTopK           = 10
	DefaultEmbeddingModel = "embed-english-v3.0"
	DefaultChatModel      = "command-r-plus"
	DefaultIndexPath      = "./index"
	DefaultCollection     = "wikirag"
)

// Config is the complete wikirag configuration.
type Config struct {
	Source      SourceConfig      `koanf:"source"`
	Chunking    ChunkingConfig    `koanf:"chunking"`
	Embeddings  EmbeddingsConfig  `koanf:"embeddings"`
	VectorStore VectorStoreConfig `koanf:"vectorstore"`
	Generation  GenerationConfig  `koanf:"generation"`
	Query       QueryConfig       `koanf:"query"`
	Cohere      CohereConfig      `koanf:"cohere"`
	OpenAI      OpenAIConfig      `koanf:"openai"`
	Logging     LoggingConfig     `koanf:"logging"`
	Telemetry   TelemetryConfig   `koanf:"telemetry"`
	Metrics     MetricsConfig     `koanf:"metrics"`
}

// SourceConfig selects where the article text comes from.
type SourceConfig struct {
	// Provider is "wikipedia" or "file".
	Provider  string   `koanf:"provider"`
	Title     string   `koanf:"title"`
	BaseURL   string   `koanf:"base_url"`
	UserAgent string   `koanf:"user_agent"`
	Timeout   Duration `koanf:"timeout"`
}

// ChunkingConfig controls the text splitter.
type ChunkingConfig struct {
	Size    int `koanf:"size"`
	Overlap int `koanf:"overlap"`
}

// EmbeddingsConfig controls the embedding provider and the fan-out.
type EmbeddingsConfig struct {
	// Provider is "cohere", "openai" or "fastembed".
	Provider          string `koanf:"provider"`
	Model             string `koanf:"model"`
	BatchSize         int    `koanf:"batch_size"`
	MaxConcurrency    int    `koanf:"max_concurrency"`
	DocumentInputType string `koanf:"document_input_type"`
	QueryInputType    string `koanf:"query_input_type"`
	CacheDir          string `koanf:"cache_dir"`
}

// VectorStoreConfig selects and configures the vector index.
type VectorStoreConfig struct {
	// Provider is "chromem" or "qdrant".
	Provider         string        `koanf:"provider"`
	Collection       string        `koanf:"collection"`
	VectorSize       int           `koanf:"vector_size"`
	WriteConcurrency int           `koanf:"write_concurrency"`
	Chromem          ChromemConfig `koanf:"chromem"`
	Qdrant           QdrantConfig  `koanf:"qdrant"`
}

// ChromemConfig configures the embedded index.
type ChromemConfig struct {
	Path     string `koanf:"path"`
	Compress bool   `koanf:"compress"`
}

// QdrantConfig configures the remote index.
type QdrantConfig struct {
	Host   string `koanf:"host"`
	Port   int    `koanf:"port"`
	UseTLS bool   `koanf:"use_tls"`
	APIKey Secret `koanf:"api_key"`
}

// GenerationConfig selects the chat model.
type GenerationConfig struct {
	// Provider is "cohere" or "openai".
	Provider    string  `koanf:"provider"`
	Model       string  `koanf:"model"`
	Temperature float64 `koanf:"temperature"`
}

// QueryConfig controls retrieval.
type QueryConfig struct {
	Text string `koanf:"text"`
	TopK int    `koanf:"top_k"`
}

// CohereConfig configures the shared Cohere HTTP client.
type CohereConfig struct {
	BaseURL           string   `koanf:"base_url"`
	APIKey            Secret   `koanf:"api_key"`
	Timeout           Duration `koanf:"timeout"`
	RequestsPerSecond float64  `koanf:"requests_per_second"`
}

// OpenAIConfig configures OpenAI-compatible endpoints used through langchaingo.
type OpenAIConfig struct {
	BaseURL string `koanf:"base_url"`
	APIKey  Secret `koanf:"api_key"`
}

// LoggingConfig is mapped onto logging.Config by the CLI.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// TelemetryConfig is mapped onto telemetry.Config by the CLI.
type TelemetryConfig struct {
	Enabled      bool    `koanf:"enabled"`
	Endpoint     string  `koanf:"endpoint"`
	Protocol     string  `koanf:"protocol"`
	Insecure     bool    `koanf:"insecure"`
	SamplingRate float64 `koanf:"sampling_rate"`
}

// MetricsConfig configures the Prometheus Pushgateway used at the end of a run.
type MetricsConfig struct {
	PushgatewayURL string `koanf:"pushgateway_url"`
	Job            string `koanf:"job"`
}

// Default returns a Config populated with the built-in defaults.
func Default() *Config {
	return &Config{
		Source: SourceConfig{
			Provider:  "wikipedia",
			Title:     DefaultTitle,
			BaseURL:   "https://en.wikipedia.org/w/api.php",
			UserAgent: "wikirag/0.1 (https://github.com/fyrsmithlabs/wikirag)",
			Timeout:   Duration(30 * time.Second),
		},
		Chunking: ChunkingConfig{
			Size:    DefaultChunkSize,
			Overlap: DefaultChunkOverlap,
		},
		Embeddings: EmbeddingsConfig{
			Provider:          "cohere",
			Model:             DefaultEmbeddingModel,
			BatchSize:         DefaultBatchSize,
			DocumentInputType: "search_document",
			QueryInputType:    "search_query",
			CacheDir:          "~/.cache/wikirag/models",
		},
		VectorStore: VectorStoreConfig{
			Provider:         "chromem",
			Collection:       DefaultCollection,
			VectorSize:       1024,
			WriteConcurrency: 16,
			Chromem: ChromemConfig{
				Path: DefaultIndexPath,
			},
			Qdrant: QdrantConfig{
				Host: "localhost",
				Port: 6334,
			},
		},
		Generation: GenerationConfig{
			Provider:    "cohere",
			Model:       DefaultChatModel,
			Temperature: 0.3,
		},
		Query: QueryConfig{
			Text: DefaultQuery,
			TopK: DefaultTopK,
		},
		Cohere: CohereConfig{
			BaseURL: "https://api.cohere.com",
			Timeout: Duration(60 * time.Second),
		},
		OpenAI: OpenAIConfig{
			BaseURL: "https://api.openai.com/v1",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Telemetry: TelemetryConfig{
			Endpoint:     "localhost:4317",
			Protocol:     "grpc",
			Insecure:     true,
			SamplingRate: 1.0,
		},
		Metrics: MetricsConfig{
			Job: "wikirag",
		},
	}
}

// Validate checks the configuration for values the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Chunking.Size <= 0 {
		return fmt.Errorf("%w: chunking.size must be > 0, got %d", ErrInvalidConfig, c.Chunking.Size)
	}
	if c.Chunking.Overlap < 0 || c.Chunking.Overlap >= c.Chunking.Size {
		return fmt.Errorf("%w: chunking.overlap must be in [0, %d), got %d",
			ErrInvalidConfig, c.Chunking.Size, c.Chunking.Overlap)
	}
	if c.Embeddings.BatchSize <= 0 {
		return fmt.Errorf("%w: embeddings.batch_size must be > 0, got %d", ErrInvalidConfig, c.Embeddings.BatchSize)
	}
	if c.Embeddings.MaxConcurrency < 0 {
		return fmt.Errorf("%w: embeddings.max_concurrency must be >= 0", ErrInvalidConfig)
	}
	if c.Query.TopK <= 0 {
		return fmt.Errorf("%w: query.top_k must be > 0, got %d", ErrInvalidConfig, c.Query.TopK)
	}
	if c.VectorStore.Collection == "" {
		return fmt.Errorf("%w: vectorstore.collection is required", ErrInvalidConfig)
	}

	checks := []struct {
		field string
		value string
		allow []string
	}{
		{"source.provider", c.Source.Provider, []string{"wikipedia", "file"}},
		{"embeddings.provider", c.Embeddings.Provider, []string{"cohere", "openai", "fastembed"}},
		{"vectorstore.provider", c.VectorStore.Provider, []string{"chromem", "qdrant"}},
		{"generation.provider", c.Generation.Provider, []string{"cohere", "openai"}},
		{"logging.format", c.Logging.Format, []string{"json", "console"}},
	}
	for _, chk := range checks {
		if !slices.Contains(chk.allow, chk.value) {
			return fmt.Errorf("%w: %s must be one of %v, got %q", ErrInvalidConfig, chk.field, chk.allow, chk.value)
		}
	}

	if c.Telemetry.SamplingRate < 0 || c.Telemetry.SamplingRate > 1 {
		return fmt.Errorf("%w: telemetry.sampling_rate must be between 0 and 1", ErrInvalidConfig)
	}
	return nil
}
