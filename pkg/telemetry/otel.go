package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
)

const defaultServiceName = "polis-compose"

// Config describes the telemetry bootstrap options.
type Config struct {
	ServiceName  string
	Endpoint     string
	Insecure     bool
	Headers      map[string]string
	ResourceTags map[string]string
}

// Provider owns the process-wide meter provider and, when an OTLP endpoint is
// configured, the tracer provider exporting to it.
type Provider struct {
	meter  *sdkmetric.MeterProvider
	reader *sdkmetric.ManualReader
	tracer *sdktrace.TracerProvider
}

// CallCount is the number of intercepted calls recorded for one method.
type CallCount struct {
	Type   string
	Method string
	Count  int64
}

// SetupProvider installs a metered OpenTelemetry pipeline as the global meter
// provider. Spans are exported over OTLP/gRPC only when cfg.Endpoint is set.
// Callers must Shutdown the provider to flush buffered spans.
func SetupProvider(ctx context.Context, cfg Config) (*Provider, error) {
	res, err := newResource(ctx, cfg)
	if err != nil {
		return nil, err
	}

	p := &Provider{reader: sdkmetric.NewManualReader()}

	if cfg.Endpoint != "" {
		exporter, err := newTraceExporter(ctx, cfg)
		if err != nil {
			return nil, err
		}
		p.tracer = sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(exporter, sdktrace.WithMaxExportBatchSize(100), sdktrace.WithBatchTimeout(5*time.Second)),
			sdktrace.WithResource(res),
		)
		otel.SetTracerProvider(p.tracer)
	}

	p.meter = sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(p.reader),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(p.meter)
	// Instruments cached against a previous provider would keep writing there.
	resetInstruments()

	return p, nil
}

func newResource(ctx context.Context, cfg Config) (*resource.Resource, error) {
	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = defaultServiceName
	}
	attrs := []attribute.KeyValue{semconv.ServiceName(serviceName)}
	for k, v := range cfg.ResourceTags {
		attrs = append(attrs, attribute.String(k, v))
	}

	res, err := resource.New(ctx,
		resource.WithSchemaURL(semconv.SchemaURL),
		resource.WithAttributes(attrs...),
	)
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}
	return res, nil
}

func newTraceExporter(ctx context.Context, cfg Config) (*otlptrace.Exporter, error) {
	clientOpts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(cfg.Endpoint),
	}
	if cfg.Insecure {
		clientOpts = append(clientOpts, otlptracegrpc.WithInsecure())
	} else {
		clientOpts = append(clientOpts, otlptracegrpc.WithTLSCredentials(credentials.NewClientTLSFromCert(nil, "")))
	}
	if len(cfg.Headers) > 0 {
		clientOpts = append(clientOpts, otlptracegrpc.WithHeaders(cfg.Headers))
	}
	clientOpts = append(clientOpts, otlptracegrpc.WithDialOption(
		grpc.WithReturnConnectionError(), //nolint:staticcheck // Surfaces dial failures without grpc.WithBlock.
	))

	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	exporter, err := otlptrace.New(dialCtx, otlptracegrpc.NewClient(clientOpts...))
	if err != nil {
		return nil, fmt.Errorf("create otlp exporter: %w", err)
	}
	return exporter, nil
}

// Shutdown flushes and stops the tracer and meter providers.
func (p *Provider) Shutdown(ctx context.Context) error {
	var errs []error
	if p.tracer != nil {
		if err := p.tracer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown tracer provider: %w", err))
		}
	}
	if err := p.meter.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown meter provider: %w", err))
	}
	return errors.Join(errs...)
}

// CallCounts reads the compose.calls_total counter, sorted by type and method.
func (p *Provider) CallCounts(ctx context.Context) ([]CallCount, error) {
	var rm metricdata.ResourceMetrics
	if err := p.reader.Collect(ctx, &rm); err != nil {
		return nil, fmt.Errorf("collect metrics: %w", err)
	}

	var counts []CallCount
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			if m.Name != callsTotalName {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, dp := range sum.DataPoints {
				typ, _ := dp.Attributes.Value(attrType)
				method, _ := dp.Attributes.Value(attrMethod)
				counts = append(counts, CallCount{Type: typ.AsString(), Method: method.AsString(), Count: dp.Value})
			}
		}
	}

	sort.Slice(counts, func(i, j int) bool {
		if counts[i].Type != counts[j].Type {
			return counts[i].Type < counts[j].Type
		}
		return counts[i].Method < counts[j].Method
	})
	return counts, nil
}

// WriteCallCounts writes one line per counted method in the form
// compose.calls_total{method="add",type="Calculator"} 2.
func (p *Provider) WriteCallCounts(ctx context.Context, w io.Writer) error {
	counts, err := p.CallCounts(ctx)
	if err != nil {
		return err
	}
	for _, c := range counts {
		if _, err := fmt.Fprintf(w, "%s{method=%q,type=%q} %d\n", callsTotalName, c.Method, c.Type, c.Count); err != nil {
			return err
		}
	}
	return nil
}
