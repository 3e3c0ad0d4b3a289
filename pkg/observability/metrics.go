package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// BookingMetrics are the counters and histograms of the booking core.
// A zero-value *BookingMetrics is not usable; call NewBookingMetrics.
type BookingMetrics struct {
	tracer trace.Tracer

	bookings      metric.Int64Counter
	conflicts     metric.Int64Counter
	transitions   metric.Int64Counter
	auditFailures metric.Int64Counter
	slotDuration  metric.Float64Histogram
}

// NewBookingMetrics registers the booking instruments on the global meter
// provider. Instrument creation errors fall back to no-op instruments.
func NewBookingMetrics() *BookingMetrics {
	meter := otel.Meter(tracerName)

	bookings, _ := meter.Int64Counter(
		"booking_requests_total",
		metric.WithDescription("Booking requests by outcome"),
		metric.WithUnit("{request}"),
	)
	conflicts, _ := meter.Int64Counter(
		"booking_conflicts_total",
		metric.WithDescription("Rejected bookings and windows because of overlap"),
		metric.WithUnit("{conflict}"),
	)
	transitions, _ := meter.Int64Counter(
		"session_transitions_total",
		metric.WithDescription("Applied session lifecycle transitions"),
		metric.WithUnit("{transition}"),
	)
	auditFailures, _ := meter.Int64Counter(
		"audit_append_failures_total",
		metric.WithDescription("Audit entries that could not be persisted"),
		metric.WithUnit("{entry}"),
	)
	slotDuration, _ := meter.Float64Histogram(
		"slot_computation_duration_ms",
		metric.WithDescription("Time spent computing open slots"),
		metric.WithUnit("ms"),
	)

	return &BookingMetrics{
		tracer:        otel.Tracer(tracerName),
		bookings:      bookings,
		conflicts:     conflicts,
		transitions:   transitions,
		auditFailures: auditFailures,
		slotDuration:  slotDuration,
	}
}

// StartSpan opens an internal span for a booking operation.
// A nil receiver returns the span already in ctx, which is a no-op when
// tracing is off.
func (m *BookingMetrics) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if m == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return m.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func (m *BookingMetrics) BookingRequested(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.bookings.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func (m *BookingMetrics) Conflict(ctx context.Context, kind string) {
	if m == nil {
		return
	}
	m.conflicts.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

func (m *BookingMetrics) Transition(ctx context.Context, from, to string) {
	if m == nil {
		return
	}
	m.transitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("from", from),
		attribute.String("to", to),
	))
}

func (m *BookingMetrics) AuditAppendFailed(ctx context.Context) {
	if m == nil {
		return
	}
	m.auditFailures.Add(ctx, 1)
}

// SlotsComputed records how long a slot computation took.
func (m *BookingMetrics) SlotsComputed(ctx context.Context, took time.Duration, count int) {
	if m == nil {
		return
	}
	m.slotDuration.Record(ctx, float64(took.Microseconds())/1000,
		metric.WithAttributes(attribute.Int("slots", count)))
}
