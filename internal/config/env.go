package config

import (
	"regexp"

	"github.com/EndaleK/Synaptic-sub005/internal/llm"
)

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// UnsetKey records an api_key whose ${VAR} was not set when the config was
// loaded. The key is treated as absent.
type UnsetKey struct {
	Field string
	Var   string
}

// expandEnvVars replaces ${VAR_NAME} patterns with values from lookup
func expandEnvVars(s string, lookup llm.LookupEnv) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR_NAME}
		varName := envVarPattern.FindStringSubmatch(match)[1]
		if value, ok := lookup(varName); ok && value != "" {
			return value
		}
		return match // Keep original if env var not set
	})
}

// expandConfigEnvVars expands environment variables in config string fields.
// An api_key still holding a ${VAR} afterwards is cleared so the vendor falls
// back to its own environment variable, or stays unconfigured.
func expandConfigEnvVars(cfg *Config, lookup llm.LookupEnv) {
	for _, t := range llm.ProviderTypes() {
		p := cfg.providerRef(t)
		p.APIKey = expandEnvVars(p.APIKey, lookup)
		p.BaseURL = expandEnvVars(p.BaseURL, lookup)

		if name := unexpandedVar(p.APIKey); name != "" {
			cfg.unsetKeys = append(cfg.unsetKeys, UnsetKey{Field: "providers." + string(t) + ".api_key", Var: name})
			p.APIKey = ""
		}
	}
	for feature, vendor := range cfg.Features {
		cfg.Features[feature] = expandEnvVars(vendor, lookup)
	}
}

// unexpandedVar returns the first ${VAR} left in s after expansion.
func unexpandedVar(s string) string {
	if m := envVarPattern.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	return ""
}
