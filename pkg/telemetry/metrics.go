package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/polisai/polis-compose/pkg/domain"
)

const callsTotalName = "compose.calls_total"

const (
	attrType   = attribute.Key("compose.type")
	attrMethod = attribute.Key("compose.method")
)

var (
	metricsOnce      sync.Once
	metricsInitErr   error
	callCounter      metric.Int64Counter
	callArgHistogram metric.Int64Histogram
)

// CallMetrics captures the fields recorded for one intercepted call.
type CallMetrics struct {
	Type   string
	Method string
	Args   int
}

// RecordCall emits the OpenTelemetry counters describing an intercepted call.
func RecordCall(ctx context.Context, m CallMetrics) {
	if err := ensureMetrics(); err != nil {
		return
	}
	attrs := metric.WithAttributes(
		attrType.String(m.Type),
		attrMethod.String(m.Method),
	)
	callCounter.Add(ctx, 1, attrs)
	callArgHistogram.Record(ctx, int64(m.Args), attrs)
}

func ensureMetrics() error {
	metricsOnce.Do(func() {
		meter := otel.GetMeterProvider().Meter("polis.compose")

		callCounter, metricsInitErr = meter.Int64Counter(
			callsTotalName,
			metric.WithDescription("Intercepted method calls partitioned by type and method"),
			metric.WithUnit("{count}"),
		)
		if metricsInitErr != nil {
			return
		}

		callArgHistogram, metricsInitErr = meter.Int64Histogram(
			"compose.call_args",
			metric.WithDescription("Argument count of intercepted method calls"),
			metric.WithUnit("{count}"),
		)
	})

	return metricsInitErr
}

func resetInstruments() {
	metricsOnce = sync.Once{}
	metricsInitErr = nil
	callCounter = nil
	callArgHistogram = nil
}

// MeterHook returns a hook recording every call through RecordCall.
func MeterHook(ctx context.Context) domain.Hook {
	return func(self domain.Object, args []any, method string) error {
		RecordCall(ctx, CallMetrics{Type: typeName(self), Method: method, Args: len(args)})
		return nil
	}
}

// TraceHook returns a hook adding a "compose.call" event to the span active in
// ctx for every call. Calls are not traced when no span is recording.
func TraceHook(ctx context.Context) domain.Hook {
	return func(self domain.Object, args []any, method string) error {
		span := trace.SpanFromContext(ctx)
		if !span.IsRecording() {
			return nil
		}
		attrs := []attribute.KeyValue{
			attrType.String(typeName(self)),
			attrMethod.String(method),
			attribute.Int("compose.args.count", len(args)),
		}
		if d, ok := self.(domain.Described); ok {
			attrs = append(attrs, attribute.String("compose.instance.id", d.ID()))
		}
		span.AddEvent("compose.call", trace.WithAttributes(attrs...))
		return nil
	}
}

func typeName(self domain.Object) string {
	if d, ok := self.(domain.Described); ok {
		return d.TypeName()
	}
	return ""
}
