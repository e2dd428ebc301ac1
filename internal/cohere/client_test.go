package cohere

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := NewClient(Config{BaseURL: srv.URL + "/", APIKey: "test-key"})
	require.NoError(t, err)
	return c
}

func TestNewClient_Validation(t *testing.T) {
	_, err := NewClient(Config{BaseURL: "https://api.cohere.com"})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewClient(Config{APIKey: "k"})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	c, err := NewClient(Config{BaseURL: "https://api.cohere.com", APIKey: "k", RequestsPerSecond: 0.5})
	require.NoError(t, err)
	assert.Equal(t, 1, c.limiter.Burst())
}

func TestClient_Embed(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/embed", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req EmbedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []string{"a", "b"}, req.Texts)
		assert.Equal(t, "embed-english-v3.0", req.Model)
		assert.Equal(t, InputTypeSearchDocument, req.InputType)
		assert.Equal(t, []string{"float"}, req.EmbeddingTypes)

		_, _ = w.Write([]byte(`{"id":"e1","texts":["a","b"],"embeddings":{"float":[[1,0],[0,1]]}}`))
	})

	resp, err := c.Embed(context.Background(), EmbedRequest{
		Texts:          []string{"a", "b"},
		Model:          "embed-english-v3.0",
		InputType:      InputTypeSearchDocument,
		EmbeddingTypes: []string{"float"},
	})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 0}, {0, 1}}, resp.Embeddings.Float)
}

func TestClient_Chat(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat", r.URL.Path)

		var req ChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "who directed it?", req.Message)
		require.Len(t, req.Documents, 1)
		assert.Equal(t, "doc_0", req.Documents[0].ID)

		_, _ = w.Write([]byte(`{
			"text": "Denis Villeneuve directed it.",
			"citations": [{"start": 0, "end": 15, "text": "Denis Villeneuve", "document_ids": ["doc_0"]}],
			"documents": [{"id": "doc_0", "text": "Directed by Denis Villeneuve"}]
		}`))
	})

	resp, err := c.Chat(context.Background(), ChatRequest{
		Model:     "command-r-plus",
		Message:   "who directed it?",
		Documents: []ChatDocument{{ID: "doc_0", Text: "Directed by Denis Villeneuve"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "Denis Villeneuve directed it.", resp.Text)
	require.Len(t, resp.Citations, 1)
	assert.Equal(t, []string{"doc_0"}, resp.Citations[0].DocumentIDs)
	assert.Len(t, resp.Documents, 1)
}

func TestClient_APIError(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{"json message", http.StatusUnauthorized, `{"message":"invalid api token"}`, "invalid api token"},
		{"plain body", http.StatusTooManyRequests, "slow down", "slow down"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := c.Embed(context.Background(), EmbedRequest{Texts: []string{"x"}})
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrAPI)

			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.status, apiErr.StatusCode)
			assert.Equal(t, tt.wantMsg, apiErr.Message)
		})
	}
}

func TestClient_CanceledContext(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Chat(ctx, ChatRequest{Message: "x"})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
