// Package telemetry defines the logging, metrics, and tracing interfaces used
// throughout the control plane. Noop implementations are substituted by
// runtime constructors when a concrete backend is not configured, so every
// component can unconditionally log/record/trace without nil checks.
package telemetry

import "context"

type (
	// Logger emits structured key/value logs. Backed by zerolog in production
	// (see NewZerologLogger); NoopLogger discards everything.
	Logger interface {
		Debug(ctx context.Context, msg string, kv ...any)
		Info(ctx context.Context, msg string, kv ...any)
		Warn(ctx context.Context, msg string, kv ...any)
		Error(ctx context.Context, msg string, kv ...any)
	}

	// Metrics records counters, gauges, and histograms. Backed by OpenTelemetry
	// metrics in production (see NewOtelMetrics).
	Metrics interface {
		Counter(name string, value float64, labels map[string]string)
		Histogram(name string, value float64, labels map[string]string)
		Gauge(name string, value float64, labels map[string]string)
	}

	// Tracer starts spans for operations worth observing end-to-end (heartbeat
	// dispatch, tool execution, LLM calls). Backed by OpenTelemetry tracing.
	Tracer interface {
		Start(ctx context.Context, name string) (context.Context, Span)
	}

	// Span is the minimal handle returned by Tracer.Start.
	Span interface {
		SetAttribute(key string, value any)
		RecordError(err error)
		End()
	}
)

// NoopLogger discards all log calls.
type NoopLogger struct{}

func (NoopLogger) Debug(context.Context, string, ...any) {}
func (NoopLogger) Info(context.Context, string, ...any)  {}
func (NoopLogger) Warn(context.Context, string, ...any)  {}
func (NoopLogger) Error(context.Context, string, ...any) {}

// NoopMetrics discards all metrics calls.
type NoopMetrics struct{}

func (NoopMetrics) Counter(string, float64, map[string]string)   {}
func (NoopMetrics) Histogram(string, float64, map[string]string) {}
func (NoopMetrics) Gauge(string, float64, map[string]string)     {}

// NoopTracer returns spans that do nothing.
type NoopTracer struct{}

func (NoopTracer) Start(ctx context.Context, _ string) (context.Context, Span) {
	return ctx, noopSpan{}
}

type noopSpan struct{}

func (noopSpan) SetAttribute(string, any) {}
func (noopSpan) RecordError(error)        {}
func (noopSpan) End()                     {}
