package cohere

// Input types for embed requests.
const (
	InputTypeSearchDocument = "search_document"
	InputTypeSearchQuery    = "search_query"
)

type EmbedRequest struct {
	Texts          []string `json:"texts"`
	Model          string   `json:"model"`
	InputType      string   `json:"input_type"`
	EmbeddingTypes []string `json:"embedding_types,omitempty"`
	Truncate       string   `json:"truncate,omitempty"`
}

type EmbedResponse struct {
	ID         string        `json:"id"`
	Texts      []string      `json:"texts"`
	Embeddings EmbeddingsSet `json:"embeddings"`
}

// EmbeddingsSet holds the typed embeddings returned when embedding_types is set.
type EmbeddingsSet struct {
	Float [][]float32 `json:"float"`
}

// ChatDocument is a grounding document. Cohere accepts arbitrary string
// fields; id and text are the ones wikirag sends.
type ChatDocument struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type ChatRequest struct {
	Model       string         `json:"model"`
	Message     string         `json:"message"`
	Documents   []ChatDocument `json:"documents,omitempty"`
	Temperature *float64       `json:"temperature,omitempty"`
}

type ChatCitation struct {
	Start       int      `json:"start"`
	End         int      `json:"end"`
	Text        string   `json:"text"`
	DocumentIDs []string `json:"document_ids"`
}

type ChatResponse struct {
	Text         string         `json:"text"`
	GenerationID string         `json:"generation_id"`
	Citations    []ChatCitation `json:"citations"`
	Documents    []ChatDocument `json:"documents"`
	FinishReason string         `json:"finish_reason"`
}
