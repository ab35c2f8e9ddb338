package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// DefaultNamespace is used when the config leaves metrics.namespace empty.
const DefaultNamespace = "synaptic"

// Recorder tracks AI provider calls and fallback decisions.
//
// Metrics:
//   - <ns>_ai_requests_total{provider,operation}
//   - <ns>_ai_errors_total{provider,kind}
//   - <ns>_ai_request_duration_seconds{provider,operation}
//   - <ns>_ai_tokens_total{provider,type}
//   - <ns>_ai_fallbacks_total{requested,served}
//
// A nil *Recorder is valid and records nothing.
type Recorder struct {
	requests  *prometheus.CounterVec
	errors    *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	tokens    *prometheus.CounterVec
	fallbacks *prometheus.CounterVec
}

// NewRecorder creates the provider metrics and registers them with reg.
func NewRecorder(namespace string, reg prometheus.Registerer) *Recorder {
	if namespace == "" {
		namespace = DefaultNamespace
	}

	r := &Recorder{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "ai",
				Name:      "requests_total",
				Help:      "Total number of calls made to each AI provider",
			},
			[]string{"provider", "operation"},
		),
		errors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "ai",
				Name:      "errors_total",
				Help:      "Total number of AI provider errors by kind",
			},
			[]string{"provider", "kind"},
		),
		latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "ai",
				Name:      "request_duration_seconds",
				Help:      "AI provider call latency in seconds",
				Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"provider", "operation"},
		),
		tokens: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "ai",
				Name:      "tokens_total",
				Help:      "Tokens reported by AI providers",
			},
			[]string{"provider", "type"},
		),
		fallbacks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "ai",
				Name:      "fallbacks_total",
				Help:      "Provider substitutions made because the requested provider was not configured",
			},
			[]string{"requested", "served"},
		),
	}

	if reg != nil {
		reg.MustRegister(r.requests, r.errors, r.latency, r.tokens, r.fallbacks)
	}

	return r
}

// RecordRequest counts one call to a provider operation.
func (r *Recorder) RecordRequest(provider, operation string) {
	if r == nil {
		return
	}
	r.requests.WithLabelValues(provider, operation).Inc()
}

// RecordLatency records how long a provider operation took.
func (r *Recorder) RecordLatency(provider, operation string, seconds float64) {
	if r == nil {
		return
	}
	r.latency.WithLabelValues(provider, operation).Observe(seconds)
}

// RecordError counts a failed call.
//
// Kinds used by the llm package: not_configured, invalid_response, api, transport, canceled, timeout.
func (r *Recorder) RecordError(provider, kind string) {
	if r == nil {
		return
	}
	r.errors.WithLabelValues(provider, kind).Inc()
}

// RecordTokens adds the prompt and completion token counts for a provider.
func (r *Recorder) RecordTokens(provider string, prompt, completion int) {
	if r == nil {
		return
	}
	if prompt > 0 {
		r.tokens.WithLabelValues(provider, "prompt").Add(float64(prompt))
	}
	if completion > 0 {
		r.tokens.WithLabelValues(provider, "completion").Add(float64(completion))
	}
}

// RecordFallback counts a substitution of served for requested.
func (r *Recorder) RecordFallback(requested, served string) {
	if r == nil {
		return
	}
	r.fallbacks.WithLabelValues(requested, served).Inc()
}
