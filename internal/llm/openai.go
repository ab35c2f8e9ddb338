package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/sashabaranov/go-openai"
)

const (
	defaultOpenAIModel    = "gpt-4o-mini"
	defaultOpenAIBaseURL  = "https://api.openai.com/v1"
	defaultTTSModel       = string(openai.TTSModel1)
	defaultTTSVoice       = string(openai.VoiceAlloy)
	defaultTTSSpeed       = 1.0
	defaultEmbeddingModel = string(openai.SmallEmbedding3)
)

// OpenAIProvider implements Provider, Streamer, SpeechGenerator and Embedder
// using OpenAI's API
type OpenAIProvider struct {
	chat *chatClient
}

// NewOpenAIProvider creates an OpenAI adapter. Without an explicit key it reads
// OPENAI_API_KEY; a missing key yields an unconfigured adapter, not an error.
func NewOpenAIProvider(opts ...Option) *OpenAIProvider {
	s := newSettings(OpenAI, defaultOpenAIModel, defaultOpenAIBaseURL, opts)
	if s.ttsModel == "" {
		s.ttsModel = defaultTTSModel
	}
	if s.ttsVoice == "" {
		s.ttsVoice = defaultTTSVoice
	}
	if s.embeddingModel == "" {
		s.embeddingModel = defaultEmbeddingModel
	}
	return &OpenAIProvider{chat: newChatClient(OpenAI, s)}
}

func (p *OpenAIProvider) Type() ProviderType { return OpenAI }

func (p *OpenAIProvider) IsConfigured() bool { return p.chat.configured() }

// Complete generates a completion for the given conversation
func (p *OpenAIProvider) Complete(ctx context.Context, messages []Message, opts *CompletionOptions) (*CompletionResponse, error) {
	return p.chat.complete(ctx, messages, opts)
}

// StreamComplete streams a completion as text deltas
func (p *OpenAIProvider) StreamComplete(ctx context.Context, messages []Message, opts *CompletionOptions) (Stream, error) {
	return p.chat.stream(ctx, messages, opts)
}

// GenerateSpeech synthesizes text as MP3 audio.
func (p *OpenAIProvider) GenerateSpeech(ctx context.Context, text string, opts *TTSOptions) ([]byte, error) {
	c := p.chat
	if !c.configured() {
		c.s.metrics.RecordError(string(OpenAI), "not_configured")
		return nil, notConfigured(OpenAI)
	}
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("openai: speech text must not be empty")
	}

	model, voice, speed := c.s.ttsModel, c.s.ttsVoice, defaultTTSSpeed
	if opts != nil {
		if opts.Model != "" {
			model = opts.Model
		}
		if opts.Voice != "" {
			voice = opts.Voice
		}
		if opts.Speed > 0 {
			speed = opts.Speed
		}
	}

	ctx, cl := c.s.begin(ctx, OpenAI, "speech", model)
	reqCtx, cancel := c.s.withTimeout(ctx)
	defer cancel()

	resp, err := c.sdk().CreateSpeech(reqCtx, openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(model),
		Input:          text,
		Voice:          openai.SpeechVoice(voice),
		ResponseFormat: openai.SpeechResponseFormatMp3,
		Speed:          speed,
	})
	if err != nil {
		err = fmt.Errorf("openai: failed to create speech: %w", err)
		cl.end(ctx, nil, err)
		return nil, err
	}
	defer resp.Close()

	audio, err := io.ReadAll(resp)
	if err != nil {
		err = fmt.Errorf("openai: failed to read speech audio: %w", err)
		cl.end(ctx, nil, err)
		return nil, err
	}
	if len(audio) == 0 {
		err = invalidResponse(OpenAI, "empty audio payload")
		cl.end(ctx, nil, err)
		return nil, err
	}

	cl.end(ctx, nil, nil)
	return audio, nil
}

// Embed generates embeddings for multiple texts
func (p *OpenAIProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	c := p.chat
	if !c.configured() {
		c.s.metrics.RecordError(string(OpenAI), "not_configured")
		return nil, notConfigured(OpenAI)
	}
	if len(texts) == 0 {
		return nil, nil
	}

	ctx, cl := c.s.begin(ctx, OpenAI, "embed", c.s.embeddingModel)
	reqCtx, cancel := c.s.withTimeout(ctx)
	defer cancel()

	resp, err := c.sdk().CreateEmbeddings(reqCtx, openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(c.s.embeddingModel),
	})
	if err != nil {
		err = fmt.Errorf("openai: failed to generate embeddings: %w", err)
		cl.end(ctx, nil, err)
		return nil, err
	}

	if len(resp.Data) != len(texts) {
		err = invalidResponse(OpenAI, fmt.Sprintf("got %d embeddings for %d inputs", len(resp.Data), len(texts)))
		cl.end(ctx, nil, err)
		return nil, err
	}

	embeddings := make([][]float32, len(resp.Data))
	for i, data := range resp.Data {
		embeddings[i] = data.Embedding
	}

	cl.end(ctx, normalizeUsage(resp.Usage.PromptTokens, 0, resp.Usage.TotalTokens), nil)
	return embeddings, nil
}
