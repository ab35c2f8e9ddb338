package llm

import (
	"context"
	"fmt"
	"iter"
	"strings"
)

// ProviderType identifies an AI vendor. The set is closed: adding a vendor means
// adding a constant here and an adapter in this package.
type ProviderType string

const (
	OpenAI    ProviderType = "openai"
	DeepSeek  ProviderType = "deepseek"
	Anthropic ProviderType = "anthropic"
)

// ProviderTypes returns every supported vendor in a stable order.
func ProviderTypes() []ProviderType {
	return []ProviderType{OpenAI, DeepSeek, Anthropic}
}

// Valid reports whether t is one of the supported vendors.
func (t ProviderType) Valid() bool {
	switch t {
	case OpenAI, DeepSeek, Anthropic:
		return true
	}
	return false
}

func (t ProviderType) String() string {
	return string(t)
}

// ParseProviderType converts a config or env value into a ProviderType.
func ParseProviderType(s string) (ProviderType, error) {
	t := ProviderType(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownProvider, s)
	}
	return t, nil
}

// Role is the author of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message represents a chat message
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// SystemMessage, UserMessage and AssistantMessage build messages for the given role.
func SystemMessage(content string) Message    { return Message{Role: RoleSystem, Content: content} }
func UserMessage(content string) Message      { return Message{Role: RoleUser, Content: content} }
func AssistantMessage(content string) Message { return Message{Role: RoleAssistant, Content: content} }

// CompletionOptions tunes a completion. A nil *CompletionOptions is valid and
// every zero field falls back to the adapter default.
type CompletionOptions struct {
	// Temperature is a pointer so that an explicit 0 is distinguishable from unset.
	Temperature *float64
	MaxTokens   int
	Stream      bool
	// Model overrides the adapter's configured model for this call.
	Model string
}

// Float64 returns a pointer to v, for CompletionOptions.Temperature.
func Float64(v float64) *float64 {
	return &v
}

// Usage records token accounting information.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// CompletionResponse is the vendor-agnostic result of Complete. Content is
// always set (possibly empty); Usage is nil when the vendor reported nothing.
type CompletionResponse struct {
	Content string `json:"content"`
	Usage   *Usage `json:"usage,omitempty"`
}

// TTSOptions tunes speech synthesis. Zero fields use adapter defaults.
type TTSOptions struct {
	Voice string
	Speed float64
	Model string
}

// ProviderConfig describes an ad-hoc adapter built with a caller-supplied key.
type ProviderConfig struct {
	Type   ProviderType
	APIKey string
}

// Provider is the contract every vendor adapter satisfies.
type Provider interface {
	Type() ProviderType
	// IsConfigured reports whether the adapter holds a credential. It never
	// touches the network.
	IsConfigured() bool
	Complete(ctx context.Context, messages []Message, opts *CompletionOptions) (*CompletionResponse, error)
}

// Stream yields text fragments in emission order. It can be ranged over once;
// a vendor or connection failure is yielded as the final non-nil error.
type Stream = iter.Seq2[string, error]

// Streamer is implemented by adapters that support incremental output.
type Streamer interface {
	StreamComplete(ctx context.Context, messages []Message, opts *CompletionOptions) (Stream, error)
}

// SpeechGenerator is implemented by adapters that offer text-to-speech.
type SpeechGenerator interface {
	GenerateSpeech(ctx context.Context, text string, opts *TTSOptions) ([]byte, error)
}

// Embedder is implemented by adapters that can embed text for vector search.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// AsStreamer returns p as a Streamer if it supports streaming.
func AsStreamer(p Provider) (Streamer, bool) {
	s, ok := p.(Streamer)
	return s, ok
}

// AsSpeechGenerator returns p as a SpeechGenerator if it supports TTS.
func AsSpeechGenerator(p Provider) (SpeechGenerator, bool) {
	s, ok := p.(SpeechGenerator)
	return s, ok
}

// AsEmbedder returns p as an Embedder if it supports embeddings.
func AsEmbedder(p Provider) (Embedder, bool) {
	e, ok := p.(Embedder)
	return e, ok
}

// Collect drains a stream into a single string.
func Collect(stream Stream) (string, error) {
	var b strings.Builder
	for chunk, err := range stream {
		if err != nil {
			return b.String(), err
		}
		b.WriteString(chunk)
	}
	return b.String(), nil
}
