package config

import (
	"fmt"
	"net/url"
	"slices"
	"sort"

	"github.com/EndaleK/Synaptic-sub005/internal/llm"
)

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks the configuration for errors
func Validate(cfg *Config) []error {
	var errs []error

	// Validate providers
	for _, t := range llm.ProviderTypes() {
		p := cfg.Provider(t)
		prefix := "providers." + string(t)

		if p.BaseURL != "" {
			u, err := url.Parse(p.BaseURL)
			if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
				errs = append(errs, ValidationError{prefix + ".base_url", "must be an absolute http(s) URL"})
			}
		}

		if p.Timeout < 0 {
			errs = append(errs, ValidationError{prefix + ".timeout", "must not be negative"})
		}
	}

	// Validate feature overrides, in a stable order
	features := make([]string, 0, len(cfg.Features))
	for f := range cfg.Features {
		features = append(features, f)
	}
	sort.Strings(features)
	for _, f := range features {
		if _, err := llm.ParseProviderType(cfg.Features[f]); err != nil {
			errs = append(errs, ValidationError{"features." + f, "must be 'openai', 'deepseek' or 'anthropic'"})
		}
	}

	// Validate retry
	if cfg.Retry.MaxAttempts < 1 {
		errs = append(errs, ValidationError{"retry.max_attempts", "must be at least 1"})
	}
	if cfg.Retry.InitialInterval < 0 {
		errs = append(errs, ValidationError{"retry.initial_interval", "must not be negative"})
	}
	if cfg.Retry.MaxElapsed < 0 {
		errs = append(errs, ValidationError{"retry.max_elapsed", "must not be negative"})
	}

	// Validate logging
	if !slices.Contains([]string{"debug", "info", "warn", "error"}, cfg.Logging.Level) {
		errs = append(errs, ValidationError{"logging.level", "must be 'debug', 'info', 'warn' or 'error'"})
	}
	if cfg.Logging.Format != "text" && cfg.Logging.Format != "json" {
		errs = append(errs, ValidationError{"logging.format", "must be 'text' or 'json'"})
	}

	// Validate server
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		errs = append(errs, ValidationError{"server.port", "must be between 1 and 65535"})
	}

	return errs
}
