package generation

import (
	"context"
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/wikirag/internal/cohere"
	"github.com/fyrsmithlabs/wikirag/internal/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/fyrsmithlabs/wikirag/internal/generation"

// CohereConfig configures a CohereGenerator.
type CohereConfig struct {
	// Model defaults to command-r-plus.
	Model string
	// Temperature is left to the API default when nil.
	Temperature *float64
}

// CohereGenerator answers through Cohere's /v1/chat with documents.
type CohereGenerator struct {
	client *cohere.Client
	cfg    CohereConfig
	logger *logging.Logger
	tracer trace.Tracer
}

// NewCohereGenerator returns a CohereGenerator over a shared client.
func NewCohereGenerator(client *cohere.Client, cfg CohereConfig, logger *logging.Logger) (*CohereGenerator, error) {
	if client == nil {
		return nil, fmt.Errorf("%w: cohere client is required", ErrInvalidConfig)
	}
	if cfg.Model == "" {
		cfg.Model = "command-r-plus"
	}
	return &CohereGenerator{
		client: client,
		cfg:    cfg,
		logger: logging.OrNop(logger).Named("generation.cohere"),
		tracer: otel.Tracer(instrumentationName),
	}, nil
}

// Chat implements Generator.
func (g *CohereGenerator) Chat(ctx context.Context, message string, docs []Document) (*Response, error) {
	if strings.TrimSpace(message) == "" {
		return nil, ErrEmptyMessage
	}

	ctx, span := g.tracer.Start(ctx, "generation.cohere.Chat",
		trace.WithAttributes(
			attribute.String("model", g.cfg.Model),
			attribute.Int("documents", len(docs)),
		))
	defer span.End()

	req := cohere.ChatRequest{
		Model:       g.cfg.Model,
		Message:     message,
		Temperature: g.cfg.Temperature,
	}
	for _, d := range docs {
		req.Documents = append(req.Documents, cohere.ChatDocument{ID: d.ID, Text: d.Text})
	}

	resp, err := g.client.Chat(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "chat failed")
		return nil, fmt.Errorf("%w: %w", ErrGenerationFailed, err)
	}

	out := &Response{Text: resp.Text}
	for _, c := range resp.Citations {
		out.Citations = append(out.Citations, Citation{
			Start:       c.Start,
			End:         c.End,
			Text:        c.Text,
			DocumentIDs: c.DocumentIDs,
		})
	}
	for _, d := range resp.Documents {
		out.Documents = append(out.Documents, Document{ID: d.ID, Text: d.Text})
	}

	span.SetAttributes(
		attribute.Int("citations", len(out.Citations)),
		attribute.String("finish_reason", resp.FinishReason),
	)
	span.SetStatus(codes.Ok, "")
	g.logger.Debug(ctx, "chat completed",
		zap.String("generation_id", resp.GenerationID),
		zap.String("finish_reason", resp.FinishReason),
		zap.Int("citations", len(out.Citations)),
		zap.Int("documents", len(out.Documents)))
	return out, nil
}
