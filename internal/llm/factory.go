package llm

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/EndaleK/Synaptic-sub005/internal/metrics"
)

// Factory holds one adapter per vendor and resolves providers with fallback.
// Adapters are built once in NewFactory; credentials are not re-read.
type Factory struct {
	providers map[ProviderType]Provider
	policy    *Policy
	logger    *slog.Logger
	metrics   *metrics.Recorder
	shared    []Option
}

type factoryConfig struct {
	lookupEnv  LookupEnv
	logger     *slog.Logger
	metrics    *metrics.Recorder
	policy     *Policy
	shared     []Option
	perVendor  map[ProviderType][]Option
	overridden map[ProviderType]Provider
}

// FactoryOption configures a Factory.
type FactoryOption func(*factoryConfig)

// WithEnv sets the environment used to discover API keys.
func WithEnv(fn LookupEnv) FactoryOption {
	return func(c *factoryConfig) {
		if fn != nil {
			c.lookupEnv = fn
		}
	}
}

// WithFactoryLogger sets the logger for fallback warnings and adapters.
func WithFactoryLogger(l *slog.Logger) FactoryOption {
	return func(c *factoryConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithFactoryMetrics records adapter calls and fallbacks on r.
func WithFactoryMetrics(r *metrics.Recorder) FactoryOption {
	return func(c *factoryConfig) { c.metrics = r }
}

// WithPolicy sets the feature routing policy.
func WithPolicy(p *Policy) FactoryOption {
	return func(c *factoryConfig) { c.policy = p }
}

// WithSharedOptions applies opts to every adapter, including ones from CreateProvider.
func WithSharedOptions(opts ...Option) FactoryOption {
	return func(c *factoryConfig) { c.shared = append(c.shared, opts...) }
}

// WithVendorOptions applies opts to the singleton adapter for t only.
func WithVendorOptions(t ProviderType, opts ...Option) FactoryOption {
	return func(c *factoryConfig) { c.perVendor[t] = append(c.perVendor[t], opts...) }
}

// WithProvider replaces the adapter for p.Type(). Intended for tests and
// embedding custom transports.
func WithProvider(p Provider) FactoryOption {
	return func(c *factoryConfig) { c.overridden[p.Type()] = p }
}

// NewFactory builds every adapter eagerly, reading API keys from the
// environment at this point.
func NewFactory(opts ...FactoryOption) *Factory {
	cfg := factoryConfig{
		lookupEnv:  os.LookupEnv,
		logger:     slog.Default(),
		perVendor:  make(map[ProviderType][]Option),
		overridden: make(map[ProviderType]Provider),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	f := &Factory{
		providers: make(map[ProviderType]Provider, len(ProviderTypes())),
		policy:    cfg.policy,
		logger:    cfg.logger,
		metrics:   cfg.metrics,
		shared:    append([]Option{WithLogger(cfg.logger), WithMetrics(cfg.metrics)}, cfg.shared...),
	}

	for _, t := range ProviderTypes() {
		if p, ok := cfg.overridden[t]; ok {
			f.providers[t] = p
			continue
		}
		adapterOpts := append([]Option{WithLookupEnv(cfg.lookupEnv)}, f.shared...)
		adapterOpts = append(adapterOpts, cfg.perVendor[t]...)
		p, _ := newAdapter(t, adapterOpts...)
		f.providers[t] = p
	}

	return f
}

// newAdapter creates an adapter based on type
func newAdapter(t ProviderType, opts ...Option) (Provider, error) {
	switch t {
	case OpenAI:
		return NewOpenAIProvider(opts...), nil
	case DeepSeek:
		return NewDeepSeekProvider(opts...), nil
	case Anthropic:
		return NewAnthropicProvider(opts...), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, t)
	}
}

// GetProvider returns the singleton adapter for t.
func (f *Factory) GetProvider(t ProviderType) (Provider, error) {
	p, ok := f.providers[t]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, t)
	}
	return p, nil
}

// FallbackChain is the ordered list of candidates tried for primary: the
// primary itself, the caller's fallback, then DeepSeek as the last resort.
func FallbackChain(primary, fallback ProviderType) []ProviderType {
	if fallback == "" {
		fallback = OpenAI
	}
	return []ProviderType{primary, fallback, DeepSeek}
}

// GetProviderWithFallback returns the first configured adapter in
// FallbackChain(primary, fallback). A zero fallback means OpenAI. When nothing
// is configured the primary is returned anyway, so the caller gets
// ErrNotConfigured at first use.
func (f *Factory) GetProviderWithFallback(primary, fallback ProviderType) Provider {
	if !primary.Valid() {
		f.logger.Warn("unknown primary provider, using openai", "requested", string(primary))
		primary = OpenAI
	}

	served, ok := f.firstConfigured(primary, fallback)
	if !ok {
		return f.providers[primary]
	}
	if served != primary {
		f.logger.Warn("provider not configured, falling back",
			"requested", string(primary),
			"served", string(served),
		)
		f.metrics.RecordFallback(string(primary), string(served))
	}
	return f.providers[served]
}

func (f *Factory) firstConfigured(primary, fallback ProviderType) (ProviderType, bool) {
	for _, t := range FallbackChain(primary, fallback) {
		if p, ok := f.providers[t]; ok && p.IsConfigured() {
			return t, true
		}
	}
	return primary, false
}

// Route reports which vendor would serve feature, without logging or
// counting a fallback. ready is false when no candidate is configured.
func (f *Factory) Route(feature Feature) (primary, served ProviderType, ready bool) {
	primary = f.policy.Resolve(feature)
	served, ready = f.firstConfigured(primary, OpenAI)
	return primary, served, ready
}

// ProviderForFeature resolves the vendor for a feature and applies the
// standard fallback chain.
func (f *Factory) ProviderForFeature(feature Feature) Provider {
	return f.GetProviderWithFallback(f.policy.Resolve(feature), OpenAI)
}

// Policy returns the feature routing policy in use.
func (f *Factory) Policy() *Policy {
	return f.policy
}

// CreateProvider builds a fresh adapter from an explicit key. The
// environment is never consulted.
func (f *Factory) CreateProvider(cfg ProviderConfig) (Provider, error) {
	opts := append([]Option{}, f.shared...)
	opts = append(opts, WithLookupEnv(noEnv), WithAPIKey(cfg.APIKey))
	return newAdapter(cfg.Type, opts...)
}

// ConfiguredProviders lists the vendors whose singleton adapter has a key.
func (f *Factory) ConfiguredProviders() []ProviderType {
	var out []ProviderType
	for _, t := range ProviderTypes() {
		if p, ok := f.providers[t]; ok && p.IsConfigured() {
			out = append(out, t)
		}
	}
	return out
}
