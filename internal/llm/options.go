package llm

import (
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/EndaleK/Synaptic-sub005/internal/metrics"
)

// Defaults applied by every adapter when CompletionOptions leaves a field unset.
const (
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 2000
)

const (
	defaultDialTimeout     = 10 * time.Second
	defaultKeepAlive       = 30 * time.Second
	defaultIdleConnTimeout = 90 * time.Second
)

// LookupEnv reads an environment variable. os.LookupEnv is the default; tests
// inject a map-backed lookup.
type LookupEnv func(key string) (string, bool)

// MapEnv returns a LookupEnv backed by m.
func MapEnv(m map[string]string) LookupEnv {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

// noEnv never finds a variable. Used for ad-hoc providers built from an
// explicit key.
func noEnv(string) (string, bool) { return "", false }

// APIKeyEnv returns the environment variable holding the key for t.
func APIKeyEnv(t ProviderType) string {
	switch t {
	case OpenAI:
		return "OPENAI_API_KEY"
	case DeepSeek:
		return "DEEPSEEK_API_KEY"
	case Anthropic:
		return "ANTHROPIC_API_KEY"
	}
	return ""
}

// settings is the per-adapter configuration assembled from Options.
type settings struct {
	apiKey         string
	model          string
	baseURL        string
	timeout        time.Duration
	httpClient     *http.Client
	lookupEnv      LookupEnv
	logger         *slog.Logger
	metrics        *metrics.Recorder
	ttsModel       string
	ttsVoice       string
	embeddingModel string
}

// Option configures an adapter.
type Option func(*settings)

// WithAPIKey sets an explicit key. It takes precedence over the environment.
func WithAPIKey(key string) Option {
	return func(s *settings) { s.apiKey = key }
}

// WithModel sets the default chat model.
func WithModel(model string) Option {
	return func(s *settings) {
		if model != "" {
			s.model = model
		}
	}
}

// WithBaseURL points the adapter at a different API root (proxies, tests).
func WithBaseURL(url string) Option {
	return func(s *settings) {
		if url != "" {
			s.baseURL = url
		}
	}
}

// WithTimeout bounds Complete, GenerateSpeech and Embed. Streams are bounded
// only by the caller's context.
func WithTimeout(d time.Duration) Option {
	return func(s *settings) { s.timeout = d }
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(s *settings) {
		if c != nil {
			s.httpClient = c
		}
	}
}

// WithLookupEnv replaces os.LookupEnv for API key discovery.
func WithLookupEnv(fn LookupEnv) Option {
	return func(s *settings) {
		if fn != nil {
			s.lookupEnv = fn
		}
	}
}

// WithLogger sets the logger used for call diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics records call metrics on r.
func WithMetrics(r *metrics.Recorder) Option {
	return func(s *settings) { s.metrics = r }
}

// WithTTSModel and WithTTSVoice set OpenAI speech defaults.
func WithTTSModel(model string) Option {
	return func(s *settings) {
		if model != "" {
			s.ttsModel = model
		}
	}
}

func WithTTSVoice(voice string) Option {
	return func(s *settings) {
		if voice != "" {
			s.ttsVoice = voice
		}
	}
}

// WithEmbeddingModel sets the OpenAI embedding model.
func WithEmbeddingModel(model string) Option {
	return func(s *settings) {
		if model != "" {
			s.embeddingModel = model
		}
	}
}

func newSettings(t ProviderType, model, baseURL string, opts []Option) settings {
	s := settings{
		model:     model,
		baseURL:   baseURL,
		lookupEnv: os.LookupEnv,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(&s)
	}

	if s.apiKey == "" {
		if v, ok := s.lookupEnv(APIKeyEnv(t)); ok {
			s.apiKey = v
		}
	}
	if s.httpClient == nil {
		s.httpClient = newHTTPClient()
	}
	s.logger = s.logger.With("provider", string(t))

	return s
}

// newHTTPClient has no overall timeout so that streams are not cut off; request
// lifetimes come from contexts.
func newHTTPClient() *http.Client {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: defaultDialTimeout, KeepAlive: defaultKeepAlive}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          50,
		IdleConnTimeout:       defaultIdleConnTimeout,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &http.Client{Transport: transport}
}

// resolved holds the per-call values after defaults are applied.
type resolved struct {
	model       string
	temperature float64
	maxTokens   int
}

func resolveOptions(defaultModel string, opts *CompletionOptions) resolved {
	r := resolved{
		model:       defaultModel,
		temperature: DefaultTemperature,
		maxTokens:   DefaultMaxTokens,
	}
	if opts == nil {
		return r
	}
	if opts.Model != "" {
		r.model = opts.Model
	}
	if opts.Temperature != nil {
		r.temperature = *opts.Temperature
	}
	if opts.MaxTokens > 0 {
		r.maxTokens = opts.MaxTokens
	}
	return r
}

func normalizeUsage(prompt, completion, total int) *Usage {
	if prompt == 0 && completion == 0 && total == 0 {
		return nil
	}
	if total == 0 {
		total = prompt + completion
	}
	return &Usage{
		PromptTokens:     prompt,
		CompletionTokens: completion,
		TotalTokens:      total,
	}
}
