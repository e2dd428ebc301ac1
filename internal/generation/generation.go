// Package generation turns a question and retrieved documents into a cited
// answer.
//
// Two Generators are provided. CohereGenerator uses Cohere's grounded chat,
// which returns citations natively. LLMGenerator works with any langchaingo
// model: it lists the documents in the prompt, asks for inline [doc_N]
// markers and converts them into citation spans.
package generation

import (
	"context"
	"errors"
	"fmt"

	"github.com/fyrsmithlabs/wikirag/internal/cohere"
	"github.com/fyrsmithlabs/wikirag/internal/config"
	"github.com/fyrsmithlabs/wikirag/internal/logging"
)

var (
	// ErrGenerationFailed wraps every failed chat call.
	ErrGenerationFailed = errors.New("generation failed")

	// ErrInvalidConfig indicates an unusable generator configuration.
	ErrInvalidConfig = errors.New("invalid generation config")

	// ErrEmptyMessage indicates a chat call without a question.
	ErrEmptyMessage = errors.New("message cannot be empty")
)

// Document is a grounding document handed to the model.
type Document struct {
	ID   string
	Text string
}

// Citation ties a span of the answer to the documents supporting it. Start
// and End are character (rune) offsets into Response.Text, End exclusive.
type Citation struct {
	Start       int
	End         int
	Text        string
	DocumentIDs []string
}

// Response is a generated answer.
type Response struct {
	Text      string
	Citations []Citation
	// Documents are the documents the answer cites.
	Documents []Document
}

// Generator answers message grounded on docs.
type Generator interface {
	Chat(ctx context.Context, message string, docs []Document) (*Response, error)
}

// New returns the Generator named by cfg.Generation.Provider. client is the
// shared Cohere client and is only required for the cohere provider.
func New(cfg *config.Config, client *cohere.Client, logger *logging.Logger) (Generator, error) {
	temperature := cfg.Generation.Temperature

	switch cfg.Generation.Provider {
	case "cohere", "":
		g, err := NewCohereGenerator(client, CohereConfig{
			Model:       cfg.Generation.Model,
			Temperature: &temperature,
		}, logger)
		if err != nil {
			return nil, err
		}
		return g, nil
	case "openai":
		g, err := NewOpenAIGenerator(OpenAIConfig{
			BaseURL:     cfg.OpenAI.BaseURL,
			Model:       cfg.Generation.Model,
			APIKey:      cfg.OpenAI.APIKey.Value(),
			Temperature: temperature,
		}, logger)
		if err != nil {
			return nil, err
		}
		return g, nil
	default:
		return nil, fmt.Errorf("%w: unsupported generation provider: %s (supported: cohere, openai)",
			ErrInvalidConfig, cfg.Generation.Provider)
	}
}
