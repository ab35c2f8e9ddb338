package llm

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/EndaleK/Synaptic-sub005/internal/llm"

// call tracks one vendor operation across logs, metrics and tracing.
type call struct {
	s        *settings
	provider ProviderType
	op       string
	id       string
	start    time.Time
	span     trace.Span
}

func (s *settings) begin(ctx context.Context, t ProviderType, op, model string) (context.Context, *call) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "llm."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("llm.provider", string(t)),
			attribute.String("llm.model", model),
		),
	)

	c := &call{
		s:        s,
		provider: t,
		op:       op,
		id:       uuid.NewString(),
		start:    time.Now(),
		span:     span,
	}
	s.metrics.RecordRequest(string(t), op)
	s.logger.DebugContext(ctx, "ai call started", "op", op, "model", model, "call_id", c.id)
	return ctx, c
}

// end closes the call. usage may be nil.
func (c *call) end(ctx context.Context, usage *Usage, err error) {
	elapsed := time.Since(c.start)
	c.s.metrics.RecordLatency(string(c.provider), c.op, elapsed.Seconds())

	if usage != nil {
		c.s.metrics.RecordTokens(string(c.provider), usage.PromptTokens, usage.CompletionTokens)
		c.span.SetAttributes(
			attribute.Int("llm.usage.prompt_tokens", usage.PromptTokens),
			attribute.Int("llm.usage.completion_tokens", usage.CompletionTokens),
		)
	}

	if err != nil {
		kind := ErrorKind(err)
		c.s.metrics.RecordError(string(c.provider), kind)
		c.span.RecordError(err)
		c.span.SetStatus(codes.Error, kind)
		c.s.logger.WarnContext(ctx, "ai call failed",
			"op", c.op, "call_id", c.id, "kind", kind, "latency_ms", elapsed.Milliseconds(), "error", err)
	} else {
		c.span.SetStatus(codes.Ok, "")
		c.s.logger.DebugContext(ctx, "ai call finished",
			"op", c.op, "call_id", c.id, "latency_ms", elapsed.Milliseconds())
	}
	c.span.End()
}

// withTimeout applies the configured per-call timeout, if any.
func (s *settings) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}
