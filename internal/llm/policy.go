package llm

import (
	"errors"
	"fmt"
	"maps"
	"strings"
)

// Feature is a logical use case that maps to a preferred vendor.
type Feature string

const (
	FeatureChat          Feature = "chat"
	FeatureFlashcards    Feature = "flashcards"
	FeaturePodcastScript Feature = "podcast_script"
	FeaturePodcastTTS    Feature = "podcast_tts"
	FeatureMindmap       Feature = "mindmap"
	FeatureExam          Feature = "exam"
	FeatureStudyGuide    Feature = "study_guide"

	// FeatureMaterialSearch embeds study material for similarity search.
	FeatureMaterialSearch Feature = "material_search"
)

// defaultFeatureProviders is the static routing table. Features not listed
// here resolve to OpenAI.
var defaultFeatureProviders = map[Feature]ProviderType{
	FeatureChat:          Anthropic,
	FeatureMindmap:       Anthropic,
	FeatureExam:          Anthropic,
	FeatureFlashcards:    DeepSeek,
	FeaturePodcastScript: DeepSeek,
	FeatureStudyGuide:    DeepSeek,
	FeaturePodcastTTS:    OpenAI,

	FeatureMaterialSearch: OpenAI,
}

// Features returns the known features in a stable order.
func Features() []Feature {
	return []Feature{
		FeatureChat,
		FeatureFlashcards,
		FeaturePodcastScript,
		FeaturePodcastTTS,
		FeatureMindmap,
		FeatureExam,
		FeatureStudyGuide,
		FeatureMaterialSearch,
	}
}

// ParseFeature normalizes a feature name. Unknown names are allowed; they
// route to OpenAI.
func ParseFeature(s string) Feature {
	return Feature(strings.ToLower(strings.TrimSpace(s)))
}

// OverrideEnv is the environment variable that overrides the vendor for f,
// e.g. CHAT_PROVIDER.
func OverrideEnv(f Feature) string {
	return strings.ToUpper(string(f)) + "_PROVIDER"
}

// OverrideError reports an override naming an unsupported vendor.
type OverrideError struct {
	Feature Feature
	Source  string
	Value   string
}

func (e *OverrideError) Error() string {
	return fmt.Sprintf("%s: feature %q override %q is not one of openai, deepseek, anthropic", e.Source, e.Feature, e.Value)
}

// Policy maps features to their primary vendor: override first, then the
// static table, then OpenAI. A nil *Policy has no overrides.
type Policy struct {
	overrides map[Feature]ProviderType
	sources   map[Feature]string
}

// OverrideSourceConfig is the source recorded for overrides read from the
// config file's features section.
const OverrideSourceConfig = "config"

// NewPolicy validates overrides once at startup. fileOverrides come from the
// config file; env overrides (<FEATURE>_PROVIDER) win over them. Every invalid
// value is reported.
func NewPolicy(lookup LookupEnv, fileOverrides map[string]string) (*Policy, error) {
	p := &Policy{
		overrides: make(map[Feature]ProviderType),
		sources:   make(map[Feature]string),
	}
	var errs []error

	candidates := Features()
	for name, value := range fileOverrides {
		f := ParseFeature(name)
		t, err := ParseProviderType(value)
		if err != nil {
			errs = append(errs, &OverrideError{Feature: f, Source: OverrideSourceConfig, Value: value})
			continue
		}
		p.overrides[f] = t
		p.sources[f] = OverrideSourceConfig
		if _, known := defaultFeatureProviders[f]; !known {
			candidates = append(candidates, f)
		}
	}

	if lookup != nil {
		for _, f := range candidates {
			value, ok := lookup(OverrideEnv(f))
			if !ok || strings.TrimSpace(value) == "" {
				continue
			}
			t, err := ParseProviderType(value)
			if err != nil {
				errs = append(errs, &OverrideError{Feature: f, Source: OverrideEnv(f), Value: value})
				continue
			}
			p.overrides[f] = t
			p.sources[f] = OverrideEnv(f)
		}
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return p, nil
}

// Resolve returns the primary vendor for f.
func (p *Policy) Resolve(f Feature) ProviderType {
	if p != nil {
		if t, ok := p.overrides[f]; ok {
			return t
		}
	}
	if t, ok := defaultFeatureProviders[f]; ok {
		return t
	}
	return OpenAI
}

// Overrides returns a copy of the validated overrides.
func (p *Policy) Overrides() map[Feature]ProviderType {
	if p == nil {
		return map[Feature]ProviderType{}
	}
	return maps.Clone(p.overrides)
}

// Override returns the override for f and where it came from: the
// environment variable name, or OverrideSourceConfig.
func (p *Policy) Override(f Feature) (t ProviderType, source string, ok bool) {
	if p == nil {
		return "", "", false
	}
	t, ok = p.overrides[f]
	return t, p.sources[f], ok
}
