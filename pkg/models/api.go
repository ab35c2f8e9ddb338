package models

import (
	"errors"
	"strings"
)

// Message is one chat turn in a completion request
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest is the body of POST /v1/features/:feature/complete
type CompletionRequest struct {
	System      string    `json:"system,omitempty"`
	Messages    []Message `json:"messages,omitempty"`
	Prompt      string    `json:"prompt,omitempty"`
	Temperature *float64  `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Model       string    `json:"model,omitempty"`
	Stream      bool      `json:"stream,omitempty"`
}

// Conversation returns the turns in send order: system, messages, then prompt
// as a final user turn.
func (r *CompletionRequest) Conversation() []Message {
	out := make([]Message, 0, len(r.Messages)+2)
	if s := strings.TrimSpace(r.System); s != "" {
		out = append(out, Message{Role: "system", Content: s})
	}
	out = append(out, r.Messages...)
	if p := strings.TrimSpace(r.Prompt); p != "" {
		out = append(out, Message{Role: "user", Content: p})
	}
	return out
}

// Validate checks roles and that there is something to complete
func (r *CompletionRequest) Validate() error {
	if len(r.Messages) == 0 && strings.TrimSpace(r.Prompt) == "" {
		return errors.New("either prompt or messages is required")
	}
	for _, m := range r.Messages {
		switch m.Role {
		case "system", "user", "assistant":
		default:
			return errors.New("message role must be 'system', 'user' or 'assistant'")
		}
	}
	if r.Temperature != nil && (*r.Temperature < 0 || *r.Temperature > 2) {
		return errors.New("temperature must be between 0 and 2")
	}
	if r.MaxTokens < 0 {
		return errors.New("max_tokens must not be negative")
	}
	return nil
}

// Usage records token accounting reported by the provider
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// CompletionResponse is returned for non-streaming completions
type CompletionResponse struct {
	ID       string `json:"id"`
	Feature  string `json:"feature"`
	Provider string `json:"provider"`
	Content  string `json:"content"`
	Usage    *Usage `json:"usage,omitempty"`
}

// StreamChunk is the payload of one SSE data frame
type StreamChunk struct {
	ID       string `json:"id"`
	Provider string `json:"provider,omitempty"`
	Delta    string `json:"delta,omitempty"`
	Done     bool   `json:"done,omitempty"`
	Error    string `json:"error,omitempty"`
}

// FlashcardsRequest is the body of POST /v1/features/flashcards/generate
type FlashcardsRequest struct {
	Material string `json:"material"`
	Count    int    `json:"count,omitempty"`
}

// Flashcard is one generated card
type Flashcard struct {
	Front string `json:"front"`
	Back  string `json:"back"`
}

// FlashcardsResponse carries a generated deck
type FlashcardsResponse struct {
	ID           string      `json:"id"`
	DeckID       string      `json:"deck_id"`
	MaterialHash string      `json:"material_hash"`
	Provider     string      `json:"provider"`
	Cards        []Flashcard `json:"cards"`
}

// SpeechRequest is the body of POST /v1/speech
type SpeechRequest struct {
	Text  string  `json:"text"`
	Voice string  `json:"voice,omitempty"`
	Model string  `json:"model,omitempty"`
	Speed float64 `json:"speed,omitempty"`
}

// EmbeddingsRequest is the body of POST /v1/embeddings
type EmbeddingsRequest struct {
	Input []string `json:"input"`
}

// Embedding is the vector for one input, by position
type Embedding struct {
	Index     int       `json:"index"`
	Embedding []float32 `json:"embedding"`
}

// EmbeddingsResponse is returned by POST /v1/embeddings
type EmbeddingsResponse struct {
	ID       string      `json:"id"`
	Provider string      `json:"provider"`
	Data     []Embedding `json:"data"`
}

// SearchRequest is the body of POST /v1/search. Passages wins over Material;
// Material is split on blank lines.
type SearchRequest struct {
	Query    string   `json:"query"`
	Material string   `json:"material,omitempty"`
	Passages []string `json:"passages,omitempty"`
	Limit    int      `json:"limit,omitempty"`
}

// SearchMatch is one ranked passage
type SearchMatch struct {
	Index int     `json:"index"`
	Text  string  `json:"text"`
	Score float64 `json:"score"`
}

// SearchResponse is returned by POST /v1/search
type SearchResponse struct {
	ID       string        `json:"id"`
	Provider string        `json:"provider"`
	Matches  []SearchMatch `json:"matches"`
}

// FeatureRoute describes how one feature resolves right now
type FeatureRoute struct {
	Primary string `json:"primary"`
	Served  string `json:"served"`
	Ready   bool   `json:"ready"`
}

// ProvidersResponse is returned by GET /v1/providers
type ProvidersResponse struct {
	Configured []string                `json:"configured"`
	Features   map[string]FeatureRoute `json:"features"`
}

// ErrorResponse is the body of every non-2xx JSON response
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// ErrorBody describes a failed request
type ErrorBody struct {
	Message   string `json:"message"`
	Type      string `json:"type"`
	RequestID string `json:"request_id,omitempty"`
}
