package generation

import (
	"context"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"unicode"

	"github.com/fyrsmithlabs/wikirag/internal/logging"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// markerPattern matches an inline citation such as " [doc_0]" or
// "[doc_1, doc_4]", including one leading space.
var markerPattern = regexp.MustCompile(`\s?\[([A-Za-z0-9_]+(?:\s*,\s*[A-Za-z0-9_]+)*)\]`)

const promptTemplate = `Answer the question using only the documents below. After each statement, cite the documents that support it with their ids in square brackets, for example [doc_0] or [doc_0, doc_3]. If the documents do not contain the answer, say so.

%s
Question: %s
Answer:`

// LLMConfig configures an LLMGenerator.
type LLMConfig struct {
	// Name labels logs and spans.
	Name        string
	Temperature float64
}

// LLMGenerator answers with any langchaingo model. Citations are derived
// from [doc_N] markers in the completion; the markers are removed from the
// returned text.
type LLMGenerator struct {
	model  llms.Model
	cfg    LLMConfig
	logger *logging.Logger
	tracer trace.Tracer
}

// NewLLMGenerator wraps model.
func NewLLMGenerator(model llms.Model, cfg LLMConfig, logger *logging.Logger) (*LLMGenerator, error) {
	if model == nil {
		return nil, fmt.Errorf("%w: model is required", ErrInvalidConfig)
	}
	if cfg.Name == "" {
		cfg.Name = "llm"
	}
	return &LLMGenerator{
		model:  model,
		cfg:    cfg,
		logger: logging.OrNop(logger).Named("generation.llm"),
		tracer: otel.Tracer(instrumentationName),
	}, nil
}

// OpenAIConfig configures an OpenAI-compatible chat endpoint.
type OpenAIConfig struct {
	BaseURL     string
	Model       string
	APIKey      string
	Temperature float64
}

// NewOpenAIGenerator builds an LLMGenerator on langchaingo's OpenAI client.
func NewOpenAIGenerator(cfg OpenAIConfig, logger *logging.Logger) (*LLMGenerator, error) {
	if cfg.BaseURL == "" || cfg.Model == "" {
		return nil, fmt.Errorf("%w: base URL and model required", ErrInvalidConfig)
	}
	// langchaingo refuses an empty token; local servers ignore it.
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = "placeholder"
	}

	llm, err := openai.New(
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithModel(cfg.Model),
		openai.WithToken(apiKey),
	)
	if err != nil {
		return nil, fmt.Errorf("creating OpenAI client: %w", err)
	}
	return NewLLMGenerator(llm, LLMConfig{Name: cfg.Model, Temperature: cfg.Temperature}, logger)
}

// Chat implements Generator.
func (g *LLMGenerator) Chat(ctx context.Context, message string, docs []Document) (*Response, error) {
	if strings.TrimSpace(message) == "" {
		return nil, ErrEmptyMessage
	}

	ctx, span := g.tracer.Start(ctx, "generation.llm.Chat",
		trace.WithAttributes(
			attribute.String("model", g.cfg.Name),
			attribute.Int("documents", len(docs)),
		))
	defer span.End()

	completion, err := llms.GenerateFromSinglePrompt(ctx, g.model, buildPrompt(message, docs),
		llms.WithTemperature(g.cfg.Temperature))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "completion failed")
		return nil, fmt.Errorf("%w: %w", ErrGenerationFailed, err)
	}

	known := make(map[string]bool, len(docs))
	for _, d := range docs {
		known[d.ID] = true
	}
	text, citations := extractCitations(strings.TrimSpace(completion), known)

	resp := &Response{Text: text, Citations: citations}
	for _, d := range docs {
		if cited(citations, d.ID) {
			resp.Documents = append(resp.Documents, d)
		}
	}

	span.SetAttributes(attribute.Int("citations", len(citations)))
	span.SetStatus(codes.Ok, "")
	g.logger.Debug(ctx, "completion parsed",
		zap.Int("citations", len(citations)),
		zap.Int("documents", len(resp.Documents)))
	return resp, nil
}

func buildPrompt(message string, docs []Document) string {
	var b strings.Builder
	for _, d := range docs {
		fmt.Fprintf(&b, "[%s] %s\n\n", d.ID, strings.TrimSpace(d.Text))
	}
	return fmt.Sprintf(promptTemplate, b.String(), message)
}

// extractCitations removes known markers from raw and returns one citation
// per marker. A citation covers the text between the previous sentence end
// (or previous citation) and the marker. Adjacent markers merge into one
// citation. Markers naming no known document are left in place.
func extractCitations(raw string, known map[string]bool) (string, []Citation) {
	var (
		clean     []rune
		citations []Citation
		lastEnd   int
		prev      int
	)

	for _, m := range markerPattern.FindAllStringSubmatchIndex(raw, -1) {
		ids := knownIDs(raw[m[2]:m[3]], known)
		if len(ids) == 0 {
			continue
		}
		clean = append(clean, []rune(raw[prev:m[0]])...)
		prev = m[1]

		end := len(clean)
		for end > 0 && unicode.IsSpace(clean[end-1]) {
			end--
		}
		start := spanStart(clean[:end], lastEnd)

		if start < end {
			citations = append(citations, Citation{
				Start:       start,
				End:         end,
				Text:        string(clean[start:end]),
				DocumentIDs: ids,
			})
			lastEnd = end
			continue
		}
		if n := len(citations); n > 0 && citations[n-1].End == end {
			for _, id := range ids {
				if !slices.Contains(citations[n-1].DocumentIDs, id) {
					citations[n-1].DocumentIDs = append(citations[n-1].DocumentIDs, id)
				}
			}
		}
	}

	clean = append(clean, []rune(raw[prev:])...)
	return string(clean), citations
}

func knownIDs(list string, known map[string]bool) []string {
	var ids []string
	for _, id := range strings.Split(list, ",") {
		id = strings.TrimSpace(id)
		if known[id] && !slices.Contains(ids, id) {
			ids = append(ids, id)
		}
	}
	return ids
}

// spanStart finds the first non-space rune after the last sentence end in
// text, not before floor. A terminator in the final position belongs to the
// cited sentence itself.
func spanStart(text []rune, floor int) int {
	start := floor
	for i := len(text) - 2; i >= floor; i-- {
		if strings.ContainsRune(".!?\n", text[i]) {
			start = i + 1
			break
		}
	}
	for start < len(text) && unicode.IsSpace(text[start]) {
		start++
	}
	return start
}

func cited(citations []Citation, id string) bool {
	for _, c := range citations {
		if slices.Contains(c.DocumentIDs, id) {
			return true
		}
	}
	return false
}
