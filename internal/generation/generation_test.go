package generation

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/fyrsmithlabs/wikirag/internal/cohere"
	"github.com/fyrsmithlabs/wikirag/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

var testDocs = []Document{
	{ID: "doc_0", Text: "Dune: Part Two is directed by Denis Villeneuve."},
	{ID: "doc_1", Text: "The screenplay is by Villeneuve and Jon Spaihts."},
	{ID: "doc_2", Text: "It is produced by Mary Parent, Cale Boyter, Tanya Lapointe and Villeneuve."},
}

// fakeModel is an llms.Model returning a fixed completion.
type fakeModel struct {
	completion string
	err        error

	prompt      string
	temperature float64
}

func (f *fakeModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	var opts llms.CallOptions
	for _, o := range options {
		o(&opts)
	}
	f.temperature = opts.Temperature
	for _, m := range messages {
		for _, p := range m.Parts {
			if t, ok := p.(llms.TextContent); ok {
				f.prompt += t.Text
			}
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: f.completion}}}, nil
}

func (f *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, f, prompt, options...)
}

func assertSpans(t *testing.T, resp *Response) {
	t.Helper()
	runes := []rune(resp.Text)
	for _, c := range resp.Citations {
		require.LessOrEqual(t, c.End, len(runes))
		assert.Equal(t, c.Text, string(runes[c.Start:c.End]))
	}
}

func TestLLMGenerator_ParsesCitations(t *testing.T) {
	model := &fakeModel{completion: "Denis Villeneuve directed the film [doc_0]. " +
		"It was written by Villeneuve and Jon Spaihts [doc_1, doc_0]. " +
		"Producers include Mary Parent [doc_2][doc_0]. Nothing else [doc_9] is known."}

	g, err := NewLLMGenerator(model, LLMConfig{Name: "fake", Temperature: 0.3}, nil)
	require.NoError(t, err)

	resp, err := g.Chat(context.Background(), "Who made Dune: Part Two?", testDocs)
	require.NoError(t, err)

	assert.Equal(t, "Denis Villeneuve directed the film. "+
		"It was written by Villeneuve and Jon Spaihts. "+
		"Producers include Mary Parent. Nothing else [doc_9] is known.", resp.Text)

	require.Len(t, resp.Citations, 3)
	assert.Equal(t, "Denis Villeneuve directed the film", resp.Citations[0].Text)
	assert.Equal(t, 0, resp.Citations[0].Start)
	assert.Equal(t, []string{"doc_0"}, resp.Citations[0].DocumentIDs)

	assert.Equal(t, "It was written by Villeneuve and Jon Spaihts", resp.Citations[1].Text)
	assert.Equal(t, []string{"doc_1", "doc_0"}, resp.Citations[1].DocumentIDs)

	assert.Equal(t, "Producers include Mary Parent", resp.Citations[2].Text)
	assert.Equal(t, []string{"doc_2", "doc_0"}, resp.Citations[2].DocumentIDs)
	assertSpans(t, resp)

	assert.Equal(t, testDocs, resp.Documents)

	assert.InDelta(t, 0.3, model.temperature, 1e-9)
	assert.Contains(t, model.prompt, "[doc_1] The screenplay is by Villeneuve and Jon Spaihts.")
	assert.Contains(t, model.prompt, "Question: Who made Dune: Part Two?")
}

func TestLLMGenerator_NoCitations(t *testing.T) {
	g, err := NewLLMGenerator(&fakeModel{completion: "  I don't know.  "}, LLMConfig{}, nil)
	require.NoError(t, err)

	resp, err := g.Chat(context.Background(), "Who?", testDocs)
	require.NoError(t, err)
	assert.Equal(t, "I don't know.", resp.Text)
	assert.Empty(t, resp.Citations)
	assert.Empty(t, resp.Documents)
}

func TestLLMGenerator_Errors(t *testing.T) {
	boom := errors.New("model overloaded")
	g, err := NewLLMGenerator(&fakeModel{err: boom}, LLMConfig{}, nil)
	require.NoError(t, err)

	_, err = g.Chat(context.Background(), "Who?", testDocs)
	assert.ErrorIs(t, err, ErrGenerationFailed)
	assert.ErrorIs(t, err, boom)

	_, err = g.Chat(context.Background(), " ", testDocs)
	assert.ErrorIs(t, err, ErrEmptyMessage)

	_, err = NewLLMGenerator(nil, LLMConfig{}, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestExtractCitations_MultibyteOffsets(t *testing.T) {
	known := map[string]bool{"doc_0": true}
	text, cites := extractCitations("Frank Herbert’s novel «Dune» [doc_0].", known)

	assert.Equal(t, "Frank Herbert’s novel «Dune».", text)
	require.Len(t, cites, 1)
	assert.Equal(t, "Frank Herbert’s novel «Dune»", cites[0].Text)
	assert.Equal(t, len([]rune("Frank Herbert’s novel «Dune»")), cites[0].End)
}

func TestCohereGenerator_Chat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat", r.URL.Path)

		var req cohere.ChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "command-r-plus", req.Model)
		assert.Equal(t, "Who directed it?", req.Message)
		require.Len(t, req.Documents, 3)
		assert.Equal(t, "doc_0", req.Documents[0].ID)
		require.NotNil(t, req.Temperature)
		assert.InDelta(t, 0.3, *req.Temperature, 1e-9)

		_, _ = w.Write([]byte(`{
			"text": "Denis Villeneuve directed it.",
			"generation_id": "g-1",
			"citations": [{"start": 0, "end": 16, "text": "Denis Villeneuve", "document_ids": ["doc_0"]}],
			"documents": [{"id": "doc_0", "text": "Dune: Part Two is directed by Denis Villeneuve."}],
			"finish_reason": "COMPLETE"
		}`))
	}))
	defer srv.Close()

	client, err := cohere.NewClient(cohere.Config{BaseURL: srv.URL, APIKey: "k"})
	require.NoError(t, err)

	temp := 0.3
	g, err := NewCohereGenerator(client, CohereConfig{Temperature: &temp}, nil)
	require.NoError(t, err)

	resp, err := g.Chat(context.Background(), "Who directed it?", testDocs)
	require.NoError(t, err)
	assert.Equal(t, "Denis Villeneuve directed it.", resp.Text)
	assert.Equal(t, []Citation{{Start: 0, End: 16, Text: "Denis Villeneuve", DocumentIDs: []string{"doc_0"}}}, resp.Citations)
	assert.Equal(t, []Document{testDocs[0]}, resp.Documents)
	assertSpans(t, resp)
}

func TestCohereGenerator_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"message":"rate limited"}`))
	}))
	defer srv.Close()

	client, err := cohere.NewClient(cohere.Config{BaseURL: srv.URL, APIKey: "k"})
	require.NoError(t, err)
	g, err := NewCohereGenerator(client, CohereConfig{}, nil)
	require.NoError(t, err)

	_, err = g.Chat(context.Background(), "Who?", testDocs)
	assert.ErrorIs(t, err, ErrGenerationFailed)
	assert.ErrorIs(t, err, cohere.ErrAPI)

	var apiErr *cohere.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
}

func TestOpenAIGenerator_AgainstCompatibleServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"), r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "c-1",
			"object": "chat.completion",
			"created": 1,
			"model": "local-model",
			"choices": [{"index": 0, "finish_reason": "stop",
				"message": {"role": "assistant", "content": "Villeneuve directed it [doc_0]."}}]
		}`))
	}))
	defer srv.Close()

	g, err := NewOpenAIGenerator(OpenAIConfig{BaseURL: srv.URL + "/v1", Model: "local-model"}, nil)
	require.NoError(t, err)

	resp, err := g.Chat(context.Background(), "Who directed it?", testDocs)
	require.NoError(t, err)
	assert.Equal(t, "Villeneuve directed it.", resp.Text)
	require.Len(t, resp.Citations, 1)
	assert.Equal(t, []string{"doc_0"}, resp.Citations[0].DocumentIDs)
}

func TestNew(t *testing.T) {
	cfg := config.Default()

	_, err := New(cfg, nil, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig, "cohere provider needs a client")

	cfg.Generation.Provider = "openai"
	cfg.Generation.Model = "gpt-4o-mini"
	g, err := New(cfg, nil, nil)
	require.NoError(t, err)
	assert.IsType(t, &LLMGenerator{}, g)

	cfg.Generation.Provider = "bard"
	_, err = New(cfg, nil, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
