// Package telemetry provides OpenTelemetry instrumentation for autotag.
package telemetry

import (
	"context"
	"fmt"
	"net/http"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/yairfalse/autotag/internal/config"
)

// Provider wraps OTEL tracer and meter providers.
// A nil *Provider is valid and records nothing.
type Provider struct {
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	tracer         trace.Tracer
	meter          metric.Meter
	registry       *promclient.Registry

	discoveryDuration metric.Float64Histogram
	resourceCount     metric.Int64Counter
	collectorErrors   metric.Int64Counter
	tagOutcomes       metric.Int64Counter
	completionErrors  metric.Int64Counter
}

// NewProvider creates a new telemetry provider.
func NewProvider(ctx context.Context, cfg config.OTELConfig) (*Provider, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	p := &Provider{}

	if err := p.setupTracing(ctx, cfg, res); err != nil {
		return nil, err
	}

	if err := p.setupMetrics(ctx, cfg, res); err != nil {
		if p.tracerProvider != nil {
			_ = p.tracerProvider.Shutdown(ctx)
		}
		return nil, err
	}

	if err := p.initMetrics(); err != nil {
		return nil, err
	}

	return p, nil
}

func (p *Provider) setupTracing(ctx context.Context, cfg config.OTELConfig, res *resource.Resource) error {
	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
	}

	if cfg.Traces.Enabled && cfg.Endpoint != "" {
		exp, err := createTraceExporter(ctx, cfg)
		if err != nil {
			return fmt.Errorf("create trace exporter: %w", err)
		}
		sampler := sdktrace.TraceIDRatioBased(cfg.Traces.SampleRate)
		opts = append(opts, sdktrace.WithBatcher(exp), sdktrace.WithSampler(sampler))
	}

	p.tracerProvider = sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(p.tracerProvider)
	p.tracer = p.tracerProvider.Tracer("autotag")

	return nil
}

func (p *Provider) setupMetrics(ctx context.Context, cfg config.OTELConfig, res *resource.Resource) error {
	opts := []sdkmetric.Option{
		sdkmetric.WithResource(res),
	}

	if cfg.Metrics.Enabled && cfg.Endpoint != "" {
		exp, err := createMetricExporter(ctx, cfg)
		if err != nil {
			return fmt.Errorf("create metric exporter: %w", err)
		}
		opts = append(opts, sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp)))
	}

	if cfg.Metrics.Prometheus {
		p.registry = promclient.NewRegistry()
		exp, err := prometheus.New(prometheus.WithRegisterer(p.registry))
		if err != nil {
			return fmt.Errorf("create prometheus exporter: %w", err)
		}
		opts = append(opts, sdkmetric.WithReader(exp))
	}

	p.meterProvider = sdkmetric.NewMeterProvider(opts...)
	otel.SetMeterProvider(p.meterProvider)
	p.meter = p.meterProvider.Meter("autotag")

	return nil
}

func createTraceExporter(ctx context.Context, cfg config.OTELConfig) (sdktrace.SpanExporter, error) {
	opts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(cfg.Endpoint),
	}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithDialOption(
			grpc.WithTransportCredentials(insecure.NewCredentials()),
		))
	}
	return otlptracegrpc.New(ctx, opts...)
}

func createMetricExporter(ctx context.Context, cfg config.OTELConfig) (sdkmetric.Exporter, error) {
	opts := []otlpmetricgrpc.Option{
		otlpmetricgrpc.WithEndpoint(cfg.Endpoint),
	}
	if cfg.Insecure {
		opts = append(opts, otlpmetricgrpc.WithDialOption(
			grpc.WithTransportCredentials(insecure.NewCredentials()),
		))
	}
	return otlpmetricgrpc.New(ctx, opts...)
}

func (p *Provider) initMetrics() error {
	var err error

	p.discoveryDuration, err = p.meter.Float64Histogram(
		"autotag_discovery_duration_seconds",
		metric.WithDescription("Duration of discovery runs"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return fmt.Errorf("create discovery_duration: %w", err)
	}

	p.resourceCount, err = p.meter.Int64Counter(
		"autotag_resources_discovered_total",
		metric.WithDescription("Total resources discovered"),
	)
	if err != nil {
		return fmt.Errorf("create resource_count: %w", err)
	}

	p.collectorErrors, err = p.meter.Int64Counter(
		"autotag_collector_errors_total",
		metric.WithDescription("Total collector failures"),
	)
	if err != nil {
		return fmt.Errorf("create collector_errors: %w", err)
	}

	p.tagOutcomes, err = p.meter.Int64Counter(
		"autotag_tag_outcomes_total",
		metric.WithDescription("Tag writes by result"),
	)
	if err != nil {
		return fmt.Errorf("create tag_outcomes: %w", err)
	}

	p.completionErrors, err = p.meter.Int64Counter(
		"autotag_completion_errors_total",
		metric.WithDescription("Failed writes of the tagging-completed flag"),
	)
	if err != nil {
		return fmt.Errorf("create completion_errors: %w", err)
	}

	return nil
}

// Tracer returns the tracer.
func (p *Provider) Tracer() trace.Tracer {
	if p == nil {
		return otel.Tracer("autotag")
	}
	return p.tracer
}

// Meter returns the meter.
func (p *Provider) Meter() metric.Meter {
	if p == nil {
		return otel.Meter("autotag")
	}
	return p.meter
}

// MetricsHandler returns the Prometheus scrape handler, or nil when Prometheus export is off.
func (p *Provider) MetricsHandler() http.Handler {
	if p == nil || p.registry == nil {
		return nil
	}
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

// StartSpan starts a new span.
func (p *Provider) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return p.Tracer().Start(ctx, name, trace.WithAttributes(attrs...))
}

// RecordDiscoveryDuration records how long a discovery run took.
func (p *Provider) RecordDiscoveryDuration(ctx context.Context, status string, d time.Duration) {
	if p == nil {
		return
	}
	p.discoveryDuration.Record(ctx, d.Seconds(), metric.WithAttributes(
		attribute.String("status", status),
	))
}

// RecordResourceCount records resources found by one collector call.
func (p *Provider) RecordResourceCount(ctx context.Context, category, region string, count int) {
	if p == nil {
		return
	}
	p.resourceCount.Add(ctx, int64(count), metric.WithAttributes(
		attribute.String("category", category),
		attribute.String("region", region),
	))
}

// RecordCollectorError records a failed collector call.
func (p *Provider) RecordCollectorError(ctx context.Context, category, region string) {
	if p == nil {
		return
	}
	p.collectorErrors.Add(ctx, 1, metric.WithAttributes(
		attribute.String("category", category),
		attribute.String("region", region),
	))
}

// RecordTagOutcome records the result of one tag write.
func (p *Provider) RecordTagOutcome(ctx context.Context, category string, tagged bool) {
	if p == nil {
		return
	}
	result := "tagged"
	if !tagged {
		result = "failed"
	}
	p.tagOutcomes.Add(ctx, 1, metric.WithAttributes(
		attribute.String("category", category),
		attribute.String("result", result),
	))
}

// RecordCompletionError records a failed completion-flag write.
func (p *Provider) RecordCompletionError(ctx context.Context) {
	if p == nil {
		return
	}
	p.completionErrors.Add(ctx, 1)
}

// Shutdown flushes and shuts down the providers.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil {
		return nil
	}
	if p.tracerProvider != nil {
		if err := p.tracerProvider.Shutdown(ctx); err != nil {
			return fmt.Errorf("shutdown tracer: %w", err)
		}
	}
	if p.meterProvider != nil {
		if err := p.meterProvider.Shutdown(ctx); err != nil {
			return fmt.Errorf("shutdown meter: %w", err)
		}
	}
	return nil
}
