package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"sync"
	"sync/atomic"

	"github.com/sashabaranov/go-openai"
)

// chatClient speaks the OpenAI chat-completions protocol through go-openai.
// OpenAI and DeepSeek share it; they differ only in base URL, key and model.
type chatClient struct {
	t ProviderType
	s settings

	once   sync.Once
	client *openai.Client
}

func newChatClient(t ProviderType, s settings) *chatClient {
	return &chatClient{t: t, s: s}
}

func (c *chatClient) configured() bool {
	return c.s.apiKey != ""
}

// sdk builds the vendor client on first use. Callers check configured() first.
func (c *chatClient) sdk() *openai.Client {
	c.once.Do(func() {
		cfg := openai.DefaultConfig(c.s.apiKey)
		if c.s.baseURL != "" {
			cfg.BaseURL = c.s.baseURL
		}
		cfg.HTTPClient = c.s.httpClient
		c.client = openai.NewClientWithConfig(cfg)
	})
	return c.client
}

func (c *chatClient) request(messages []Message, r resolved, stream bool) openai.ChatCompletionRequest {
	msgs := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		msgs = append(msgs, openai.ChatCompletionMessage{
			Role:    string(m.Role),
			Content: m.Content,
		})
	}

	// go-openai drops a zero temperature (omitempty); the smallest non-zero
	// float32 is sent instead so an explicit 0 still reaches the vendor.
	temperature := float32(r.temperature)
	if temperature == 0 {
		temperature = math.SmallestNonzeroFloat32
	}

	req := openai.ChatCompletionRequest{
		Model:       r.model,
		Messages:    msgs,
		MaxTokens:   r.maxTokens,
		Temperature: temperature,
		Stream:      stream,
	}
	if stream {
		req.StreamOptions = &openai.StreamOptions{IncludeUsage: true}
	}
	return req
}

func (c *chatClient) complete(ctx context.Context, messages []Message, opts *CompletionOptions) (*CompletionResponse, error) {
	if !c.configured() {
		c.s.metrics.RecordError(string(c.t), "not_configured")
		return nil, notConfigured(c.t)
	}

	r := resolveOptions(c.s.model, opts)
	ctx, cl := c.s.begin(ctx, c.t, "complete", r.model)
	reqCtx, cancel := c.s.withTimeout(ctx)
	defer cancel()

	resp, err := c.sdk().CreateChatCompletion(reqCtx, c.request(messages, r, false))
	if err != nil {
		err = fmt.Errorf("%s: failed to create chat completion: %w", c.t, err)
		cl.end(ctx, nil, err)
		return nil, err
	}

	if len(resp.Choices) == 0 {
		err = invalidResponse(c.t, "no completion choices returned")
		cl.end(ctx, nil, err)
		return nil, err
	}

	usage := normalizeUsage(resp.Usage.PromptTokens, resp.Usage.CompletionTokens, resp.Usage.TotalTokens)
	cl.end(ctx, usage, nil)

	return &CompletionResponse{
		Content: resp.Choices[0].Message.Content,
		Usage:   usage,
	}, nil
}

func (c *chatClient) stream(ctx context.Context, messages []Message, opts *CompletionOptions) (Stream, error) {
	if !c.configured() {
		c.s.metrics.RecordError(string(c.t), "not_configured")
		return nil, notConfigured(c.t)
	}

	r := resolveOptions(c.s.model, opts)
	req := c.request(messages, r, true)
	var used atomic.Bool

	return func(yield func(string, error) bool) {
		if used.Swap(true) {
			yield("", ErrStreamConsumed)
			return
		}

		callCtx, cl := c.s.begin(ctx, c.t, "stream", r.model)
		stream, err := c.sdk().CreateChatCompletionStream(callCtx, req)
		if err != nil {
			err = fmt.Errorf("%s: failed to open chat completion stream: %w", c.t, err)
			cl.end(callCtx, nil, err)
			yield("", err)
			return
		}
		defer stream.Close()

		var usage *Usage
		for {
			chunk, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				cl.end(callCtx, usage, nil)
				return
			}
			if err != nil {
				err = fmt.Errorf("%s: failed to read chat completion stream: %w", c.t, err)
				cl.end(callCtx, usage, err)
				yield("", err)
				return
			}

			if chunk.Usage != nil {
				usage = normalizeUsage(chunk.Usage.PromptTokens, chunk.Usage.CompletionTokens, chunk.Usage.TotalTokens)
			}
			if len(chunk.Choices) == 0 || chunk.Choices[0].Delta.Content == "" {
				continue
			}

			if !yield(chunk.Choices[0].Delta.Content, nil) {
				cl.end(callCtx, usage, nil)
				return
			}
		}
	}, nil
}
