package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
)

const (
	defaultAnthropicModel   = "claude-3-5-sonnet-20241022"
	defaultAnthropicBaseURL = "https://api.anthropic.com"
	anthropicVersion        = "2023-06-01"

	contentTypeJSON = "application/json"
	userAgent       = "synaptic-ai/1.0"
)

// AnthropicProvider implements Provider and Streamer against the Anthropic
// Messages API.
type AnthropicProvider struct {
	s           settings
	messagesURL string
}

// NewAnthropicProvider creates an Anthropic adapter, reading ANTHROPIC_API_KEY
// when no explicit key is given.
func NewAnthropicProvider(opts ...Option) *AnthropicProvider {
	s := newSettings(Anthropic, defaultAnthropicModel, defaultAnthropicBaseURL, opts)
	return &AnthropicProvider{
		s:           s,
		messagesURL: strings.TrimRight(s.baseURL, "/") + "/v1/messages",
	}
}

func (p *AnthropicProvider) Type() ProviderType { return Anthropic }

func (p *AnthropicProvider) IsConfigured() bool { return p.s.apiKey != "" }

// Complete sends one Messages request and concatenates the text blocks of the reply.
func (p *AnthropicProvider) Complete(ctx context.Context, messages []Message, opts *CompletionOptions) (*CompletionResponse, error) {
	if !p.IsConfigured() {
		p.s.metrics.RecordError(string(Anthropic), "not_configured")
		return nil, notConfigured(Anthropic)
	}

	r := resolveOptions(p.s.model, opts)
	payload := buildAnthropicRequest(messages, r, false)

	ctx, cl := p.s.begin(ctx, Anthropic, "complete", r.model)
	reqCtx, cancel := p.s.withTimeout(ctx)
	defer cancel()

	resp, err := p.do(reqCtx, payload)
	if err != nil {
		cl.end(ctx, nil, err)
		return nil, err
	}
	defer resp.Body.Close()

	var msg anthropicResponse
	if err := json.NewDecoder(resp.Body).Decode(&msg); err != nil {
		if ctxErr := reqCtx.Err(); ctxErr != nil {
			err = fmt.Errorf("anthropic: read response: %w", ctxErr)
		} else {
			err = invalidResponse(Anthropic, "decode response: "+err.Error())
		}
		cl.end(ctx, nil, err)
		return nil, err
	}

	out, err := msg.toCompletion()
	cl.end(ctx, usageOrNil(out), err)
	return out, err
}

// StreamComplete streams text deltas from the Messages API. Only
// content_block_delta/text_delta events produce fragments.
func (p *AnthropicProvider) StreamComplete(ctx context.Context, messages []Message, opts *CompletionOptions) (Stream, error) {
	if !p.IsConfigured() {
		p.s.metrics.RecordError(string(Anthropic), "not_configured")
		return nil, notConfigured(Anthropic)
	}

	r := resolveOptions(p.s.model, opts)
	payload := buildAnthropicRequest(messages, r, true)
	var used atomic.Bool

	return func(yield func(string, error) bool) {
		if used.Swap(true) {
			yield("", ErrStreamConsumed)
			return
		}

		callCtx, cl := p.s.begin(ctx, Anthropic, "stream", r.model)
		resp, err := p.do(callCtx, payload)
		if err != nil {
			cl.end(callCtx, nil, err)
			yield("", err)
			return
		}
		defer resp.Body.Close()

		events := newSSEReader(resp.Body)
		var prompt, completion int
		for {
			ev, err := events.next()
			if err == io.EOF {
				err = fmt.Errorf("anthropic: stream ended before message_stop: %w", io.ErrUnexpectedEOF)
			}
			if err != nil {
				if ctxErr := callCtx.Err(); ctxErr != nil {
					err = fmt.Errorf("anthropic: stream interrupted: %w", ctxErr)
				}
				cl.end(callCtx, normalizeUsage(prompt, completion, 0), err)
				yield("", err)
				return
			}

			switch ev.Type {
			case "message_start":
				if ev.Message != nil {
					prompt = ev.Message.Usage.InputTokens
				}
			case "content_block_delta":
				if ev.Delta == nil || ev.Delta.Type != "text_delta" || ev.Delta.Text == "" {
					continue
				}
				if !yield(ev.Delta.Text, nil) {
					cl.end(callCtx, normalizeUsage(prompt, completion, 0), nil)
					return
				}
			case "message_delta":
				if ev.Usage != nil {
					completion = ev.Usage.OutputTokens
				}
			case "message_stop":
				cl.end(callCtx, normalizeUsage(prompt, completion, 0), nil)
				return
			case "error":
				err := &APIError{Provider: Anthropic, Message: "stream error"}
				if ev.Error != nil {
					err.Type = ev.Error.Type
					err.Message = ev.Error.Message
				}
				cl.end(callCtx, nil, err)
				yield("", err)
				return
			}
		}
	}, nil
}

func (p *AnthropicProvider) do(ctx context.Context, payload anthropicRequest) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("anthropic: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.messagesURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("anthropic: construct request: %w", err)
	}

	req.Header.Set("Content-Type", contentTypeJSON)
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("x-api-key", p.s.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)
	if payload.Stream {
		req.Header.Set("Accept", "text/event-stream")
	} else {
		req.Header.Set("Accept", contentTypeJSON)
	}

	resp, err := p.s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("anthropic: messages request failed: %w", err)
	}

	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		return nil, parseAnthropicError(resp)
	}
	return resp, nil
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float64            `json:"temperature"`
	Stream      bool               `json:"stream,omitempty"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// buildAnthropicRequest lifts the first system message into the top-level
// system field. Only user and assistant turns go into messages, in order.
func buildAnthropicRequest(messages []Message, r resolved, stream bool) anthropicRequest {
	req := anthropicRequest{
		Model:       r.model,
		Messages:    make([]anthropicMessage, 0, len(messages)),
		MaxTokens:   r.maxTokens,
		Temperature: r.temperature,
		Stream:      stream,
	}

	systemSeen := false
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			if !systemSeen {
				req.System = m.Content
				systemSeen = true
			}
		case RoleUser, RoleAssistant:
			req.Messages = append(req.Messages, anthropicMessage{Role: string(m.Role), Content: m.Content})
		}
	}

	return req
}

type anthropicResponse struct {
	ID         string                  `json:"id"`
	Type       string                  `json:"type"`
	Role       string                  `json:"role"`
	Content    []anthropicContentBlock `json:"content"`
	StopReason string                  `json:"stop_reason"`
	Usage      anthropicUsage          `json:"usage"`
}

type anthropicContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type anthropicUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

func (r anthropicResponse) toCompletion() (*CompletionResponse, error) {
	var text strings.Builder
	found := false
	for _, block := range r.Content {
		if block.Type != "text" {
			continue
		}
		found = true
		text.WriteString(block.Text)
	}

	if !found {
		return nil, invalidResponse(Anthropic, "response has no text content block")
	}

	return &CompletionResponse{
		Content: text.String(),
		Usage:   normalizeUsage(r.Usage.InputTokens, r.Usage.OutputTokens, 0),
	}, nil
}

type anthropicErrorResponse struct {
	Error anthropicErrorBody `json:"error"`
}

type anthropicErrorBody struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func parseAnthropicError(resp *http.Response) error {
	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return &APIError{
			Provider:   Anthropic,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("failed to read error body: %v", err),
		}
	}

	var apiErr anthropicErrorResponse
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error.Message != "" {
		return &APIError{
			Provider:   Anthropic,
			StatusCode: resp.StatusCode,
			Type:       apiErr.Error.Type,
			Message:    apiErr.Error.Message,
		}
	}

	return &APIError{
		Provider:   Anthropic,
		StatusCode: resp.StatusCode,
		Message:    strings.TrimSpace(string(body)),
	}
}

func usageOrNil(r *CompletionResponse) *Usage {
	if r == nil {
		return nil
	}
	return r.Usage
}
