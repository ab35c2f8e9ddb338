package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/EndaleK/Synaptic-sub005/internal/llm"
)

// Config represents the full application configuration
type Config struct {
	Providers ProvidersConfig   `yaml:"providers"`
	Features  map[string]string `yaml:"features"`
	Retry     RetryConfig       `yaml:"retry"`
	Logging   LoggingConfig     `yaml:"logging"`
	Metrics   MetricsConfig     `yaml:"metrics"`
	Server    ServerConfig      `yaml:"server"`

	unsetKeys []UnsetKey
}

// ProvidersConfig holds per-vendor settings
type ProvidersConfig struct {
	OpenAI    ProviderConfig `yaml:"openai"`
	DeepSeek  ProviderConfig `yaml:"deepseek"`
	Anthropic ProviderConfig `yaml:"anthropic"`
}

// ProviderConfig contains settings for one AI vendor. An empty APIKey leaves
// key discovery to the vendor's environment variable.
type ProviderConfig struct {
	APIKey         string        `yaml:"api_key"`
	Model          string        `yaml:"model"`
	BaseURL        string        `yaml:"base_url"`
	Timeout        time.Duration `yaml:"timeout"`
	TTSModel       string        `yaml:"tts_model,omitempty"`
	TTSVoice       string        `yaml:"tts_voice,omitempty"`
	EmbeddingModel string        `yaml:"embedding_model,omitempty"`
}

// RetryConfig bounds the consumer-side exponential backoff
type RetryConfig struct {
	MaxAttempts     int           `yaml:"max_attempts"`
	InitialInterval time.Duration `yaml:"initial_interval"`
	MaxElapsed      time.Duration `yaml:"max_elapsed"`
}

// LoggingConfig selects the slog handler
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig contains Prometheus settings
type MetricsConfig struct {
	Namespace string `yaml:"namespace"`
}

// ServerConfig contains HTTP gateway settings
type ServerConfig struct {
	Port int `yaml:"port"`
}

// Default returns the configuration used when no config file exists.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Load reads and parses config from the given path, expanding ${VAR} from
// the process environment.
func Load(path string) (*Config, error) {
	return LoadWithEnv(path, os.LookupEnv)
}

// LoadWithEnv is Load with ${VAR} values taken from lookup.
func LoadWithEnv(path string, lookup llm.LookupEnv) (*Config, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	expandConfigEnvVars(&cfg, lookup)
	applyDefaults(&cfg)

	return &cfg, nil
}

// LoadOrDefault loads the config found by FindConfigPath, or Default() when
// there is none. The returned path is empty in the latter case. An explicit
// path that does not exist is an error.
func LoadOrDefault(explicit string, lookup llm.LookupEnv) (*Config, string, error) {
	path := FindConfigPath(explicit)
	if path == "" {
		return Default(), "", nil
	}

	cfg, err := LoadWithEnv(path, lookup)
	if err != nil {
		if explicit == "" && errors.Is(err, os.ErrNotExist) {
			return Default(), "", nil
		}
		return nil, path, err
	}
	return cfg, path, nil
}

// FindConfigPath looks for config in common locations
func FindConfigPath(explicit string) string {
	if explicit != "" {
		return explicit
	}

	// Check common locations
	paths := []string{
		"synaptic.yaml",
		"synaptic.yml",
		filepath.Join("config", "synaptic.yaml"),
	}

	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	// Check home directory
	if home, err := os.UserHomeDir(); err == nil {
		homePath := filepath.Join(home, ".config", "synaptic", "config.yaml")
		if _, err := os.Stat(homePath); err == nil {
			return homePath
		}
	}

	return ""
}

// Provider returns the settings block for t.
func (cfg *Config) Provider(t llm.ProviderType) ProviderConfig {
	switch t {
	case llm.OpenAI:
		return cfg.Providers.OpenAI
	case llm.DeepSeek:
		return cfg.Providers.DeepSeek
	case llm.Anthropic:
		return cfg.Providers.Anthropic
	}
	return ProviderConfig{}
}

// UnsetKeys lists api_key fields whose ${VAR} was not set at load time.
func (cfg *Config) UnsetKeys() []UnsetKey {
	return cfg.unsetKeys
}

func (cfg *Config) providerRef(t llm.ProviderType) *ProviderConfig {
	switch t {
	case llm.OpenAI:
		return &cfg.Providers.OpenAI
	case llm.DeepSeek:
		return &cfg.Providers.DeepSeek
	default:
		return &cfg.Providers.Anthropic
	}
}

// AdapterOptions converts a provider block into adapter options. Empty fields
// keep the adapter defaults.
func (p ProviderConfig) AdapterOptions() []llm.Option {
	opts := []llm.Option{
		llm.WithModel(p.Model),
		llm.WithBaseURL(p.BaseURL),
		llm.WithTimeout(p.Timeout),
		llm.WithTTSModel(p.TTSModel),
		llm.WithTTSVoice(p.TTSVoice),
		llm.WithEmbeddingModel(p.EmbeddingModel),
	}
	if p.APIKey != "" {
		opts = append(opts, llm.WithAPIKey(p.APIKey))
	}
	return opts
}

// applyDefaults sets default values for unset fields
func applyDefaults(cfg *Config) {
	for _, p := range []*ProviderConfig{&cfg.Providers.OpenAI, &cfg.Providers.DeepSeek, &cfg.Providers.Anthropic} {
		if p.Timeout == 0 {
			p.Timeout = 60 * time.Second
		}
	}

	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry.MaxAttempts = 3
	}
	if cfg.Retry.InitialInterval == 0 {
		cfg.Retry.InitialInterval = 500 * time.Millisecond
	}
	if cfg.Retry.MaxElapsed == 0 {
		cfg.Retry.MaxElapsed = 30 * time.Second
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}

	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = "synaptic"
	}

	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
}
