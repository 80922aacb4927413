package observability

import (
	"context"

	"gatekeeper/internal/ratelimit"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentedLimiter counts admission decisions by verdict and traces each
// check. Errors are counted with verdict "error".
type InstrumentedLimiter struct {
	inner     ratelimit.Limiter
	algorithm string
	tracer    trace.Tracer
	decisions metric.Int64Counter
}

// NewInstrumentedLimiter wraps inner. algorithm labels the metric.
func NewInstrumentedLimiter(inner ratelimit.Limiter, algorithm string) (*InstrumentedLimiter, error) {
	meter := otel.Meter("gatekeeper/ratelimit")

	decisions, err := meter.Int64Counter(
		"ratelimit.decisions",
		metric.WithDescription("Number of rate limit decisions by verdict"),
		metric.WithUnit("{decision}"),
	)
	if err != nil {
		return nil, err
	}

	return &InstrumentedLimiter{
		inner:     inner,
		algorithm: algorithm,
		tracer:    otel.Tracer("gatekeeper/ratelimit"),
		decisions: decisions,
	}, nil
}

func (l *InstrumentedLimiter) CheckAndRecord(ctx context.Context, key ratelimit.Key) (ratelimit.Decision, error) {
	ctx, span := l.tracer.Start(ctx, "ratelimit.CheckAndRecord",
		trace.WithAttributes(
			attribute.String("ratelimit.client", key.Client),
			attribute.String("ratelimit.path", key.Path),
			attribute.String("ratelimit.algorithm", l.algorithm),
		),
	)
	defer span.End()

	decision, err := l.inner.CheckAndRecord(ctx, key)

	verdict := decision.Verdict.String()
	if err != nil {
		verdict = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetAttributes(
			attribute.String("ratelimit.verdict", verdict),
			attribute.Int("ratelimit.remaining", decision.Info.Remaining),
		)
	}

	l.decisions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("verdict", verdict),
		attribute.String("algorithm", l.algorithm),
	))

	return decision, err
}

func (l *InstrumentedLimiter) Close() {
	l.inner.Close()
}
