// Package study implements the learning features on top of the provider
// factory: chat-style completions, streaming, podcast audio and flashcards.
package study

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/EndaleK/Synaptic-sub005/internal/llm"
)

var (
	// ErrUnsupported means the resolved provider lacks the capability.
	ErrUnsupported = errors.New("operation not supported by provider")

	// ErrEmptyInput means the caller sent nothing to work on.
	ErrEmptyInput = errors.New("input must not be empty")
)

// ProviderSource resolves the provider for a feature. *llm.Factory satisfies it.
type ProviderSource interface {
	ProviderForFeature(feature llm.Feature) llm.Provider
}

// RetryPolicy bounds retries of transient vendor failures.
type RetryPolicy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxElapsed      time.Duration
}

// DefaultRetryPolicy matches the config defaults.
var DefaultRetryPolicy = RetryPolicy{
	MaxAttempts:     3,
	InitialInterval: 500 * time.Millisecond,
	MaxElapsed:      30 * time.Second,
}

// Result is a completed feature request.
type Result struct {
	Provider llm.ProviderType `json:"provider"`
	Content  string           `json:"content"`
	Usage    *llm.Usage       `json:"usage,omitempty"`
}

// Service runs features against the provider chosen by the routing policy.
type Service struct {
	providers ProviderSource
	retry     RetryPolicy
	logger    *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithRetry sets the retry policy. MaxAttempts below 1 disables retries.
func WithRetry(p RetryPolicy) Option {
	return func(s *Service) {
		if p.MaxAttempts < 1 {
			p.MaxAttempts = 1
		}
		s.retry = p
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewService creates a Service.
func NewService(providers ProviderSource, opts ...Option) *Service {
	s := &Service{
		providers: providers,
		retry:     DefaultRetryPolicy,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Complete runs a completion for feature, retrying transient failures.
func (s *Service) Complete(ctx context.Context, feature llm.Feature, messages []llm.Message, opts *llm.CompletionOptions) (*Result, error) {
	if len(messages) == 0 {
		return nil, ErrEmptyInput
	}

	p := s.providers.ProviderForFeature(feature)
	resp, err := withRetry(ctx, s, feature, p.Type(), func() (*llm.CompletionResponse, error) {
		return p.Complete(ctx, messages, opts)
	})
	if err != nil {
		return nil, err
	}

	return &Result{Provider: p.Type(), Content: resp.Content, Usage: resp.Usage}, nil
}

// Stream opens a streaming completion for feature. Streams are not retried.
func (s *Service) Stream(ctx context.Context, feature llm.Feature, messages []llm.Message, opts *llm.CompletionOptions) (llm.Stream, llm.ProviderType, error) {
	if len(messages) == 0 {
		return nil, "", ErrEmptyInput
	}

	p := s.providers.ProviderForFeature(feature)
	streamer, ok := llm.AsStreamer(p)
	if !ok {
		return nil, p.Type(), fmt.Errorf("%s: streaming: %w", p.Type(), ErrUnsupported)
	}

	stream, err := streamer.StreamComplete(ctx, messages, opts)
	if err != nil {
		return nil, p.Type(), err
	}
	return stream, p.Type(), nil
}

// Speak renders text as audio with the podcast_tts provider.
func (s *Service) Speak(ctx context.Context, text string, opts *llm.TTSOptions) ([]byte, llm.ProviderType, error) {
	if strings.TrimSpace(text) == "" {
		return nil, "", ErrEmptyInput
	}

	p := s.providers.ProviderForFeature(llm.FeaturePodcastTTS)
	tts, ok := llm.AsSpeechGenerator(p)
	if !ok {
		return nil, p.Type(), fmt.Errorf("%s: speech: %w", p.Type(), ErrUnsupported)
	}

	audio, err := withRetry(ctx, s, llm.FeaturePodcastTTS, p.Type(), func() ([]byte, error) {
		return tts.GenerateSpeech(ctx, text, opts)
	})
	if err != nil {
		return nil, p.Type(), err
	}
	return audio, p.Type(), nil
}

func withRetry[T any](ctx context.Context, s *Service, feature llm.Feature, provider llm.ProviderType, fn func() (T, error)) (T, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.retry.InitialInterval

	attempt := 0
	opts := []backoff.RetryOption{
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(s.retry.MaxAttempts)),
		backoff.WithNotify(func(err error, wait time.Duration) {
			s.logger.WarnContext(ctx, "ai call failed, retrying",
				"feature", string(feature),
				"provider", string(provider),
				"attempt", attempt,
				"wait", wait,
				"error", err,
			)
		}),
	}
	if s.retry.MaxElapsed > 0 {
		opts = append(opts, backoff.WithMaxElapsedTime(s.retry.MaxElapsed))
	}

	v, err := backoff.Retry(ctx, func() (T, error) {
		attempt++
		v, err := fn()
		if err != nil && !llm.IsRetryable(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}, opts...)

	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		err = permanent.Unwrap()
	}
	return v, err
}
