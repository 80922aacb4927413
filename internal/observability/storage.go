package observability

import (
	"context"
	"errors"
	"time"

	"gatekeeper/internal/storage"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentedStore wraps a storage.Store implementation with
// OpenTelemetry tracing and metrics instrumentation.
type InstrumentedStore struct {
	inner    storage.Store
	backend  string
	tracer   trace.Tracer
	duration metric.Float64Histogram
	errors   metric.Int64Counter
}

// NewInstrumentedStore creates a new store wrapper that records trace spans,
// operation latency histograms, and error counters for every store method call.
// backend labels the metrics (memory, redis, ...).
func NewInstrumentedStore(inner storage.Store, backend string) (*InstrumentedStore, error) {
	tracer := otel.Tracer("gatekeeper/storage")
	meter := otel.Meter("gatekeeper/storage")

	duration, err := meter.Float64Histogram(
		"storage.operation.duration",
		metric.WithDescription("Duration of window store operations in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	errCounter, err := meter.Int64Counter(
		"storage.operation.errors",
		metric.WithDescription("Number of window store operation errors"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	return &InstrumentedStore{
		inner:    inner,
		backend:  backend,
		tracer:   tracer,
		duration: duration,
		errors:   errCounter,
	}, nil
}

func (s *InstrumentedStore) startSpan(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	ctx, span := s.tracer.Start(ctx, "storage."+operation,
		trace.WithAttributes(append([]attribute.KeyValue{
			attribute.String("storage.operation", operation),
			attribute.String("storage.backend", s.backend),
		}, attrs...)...),
	)
	return ctx, span
}

func (s *InstrumentedStore) record(ctx context.Context, span trace.Span, operation string, start time.Time, err error) {
	elapsed := time.Since(start).Seconds()
	attrs := metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("backend", s.backend),
	)

	s.duration.Record(ctx, elapsed, attrs)

	// A missing window is an expected answer, not a failure.
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		s.errors.Add(ctx, 1, attrs)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}

	span.End()
}

func (s *InstrumentedStore) Record(ctx context.Context, key string, now time.Time, window time.Duration) (storage.Window, error) {
	ctx, span := s.startSpan(ctx, "Record", attribute.String("ratelimit.key", key))
	start := time.Now()
	result, err := s.inner.Record(ctx, key, now, window)
	if err == nil {
		span.SetAttributes(attribute.Int64("ratelimit.count", result.Count))
	}
	s.record(ctx, span, "Record", start, err)
	return result, err
}

func (s *InstrumentedStore) Get(ctx context.Context, key string) (storage.Window, error) {
	ctx, span := s.startSpan(ctx, "Get", attribute.String("ratelimit.key", key))
	start := time.Now()
	result, err := s.inner.Get(ctx, key)
	s.record(ctx, span, "Get", start, err)
	return result, err
}

func (s *InstrumentedStore) Reset(ctx context.Context, key string) error {
	ctx, span := s.startSpan(ctx, "Reset", attribute.String("ratelimit.key", key))
	start := time.Now()
	err := s.inner.Reset(ctx, key)
	s.record(ctx, span, "Reset", start, err)
	return err
}

func (s *InstrumentedStore) PurgeExpired(ctx context.Context, now time.Time, window time.Duration) (int, error) {
	ctx, span := s.startSpan(ctx, "PurgeExpired")
	start := time.Now()
	removed, err := s.inner.PurgeExpired(ctx, now, window)
	span.SetAttributes(attribute.Int("storage.removed", removed))
	s.record(ctx, span, "PurgeExpired", start, err)
	return removed, err
}

func (s *InstrumentedStore) Ping(ctx context.Context) error {
	ctx, span := s.startSpan(ctx, "Ping")
	start := time.Now()
	err := s.inner.Ping(ctx)
	s.record(ctx, span, "Ping", start, err)
	return err
}

func (s *InstrumentedStore) Close() error {
	return s.inner.Close()
}
