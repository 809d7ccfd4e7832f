package telemetry

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/straja-ai/adaware/internal/redact"
)

// Config controls telemetry setup.
type Config struct {
	Enabled  bool
	Exporter string // otlp | prometheus
	Endpoint string
	Protocol string // grpc | http
	Service  string
	Version  string
}

// Provider wires tracer/meter providers and exposes helpers.
type Provider struct {
	Enabled bool
	tracer  trace.Tracer
	meter   metric.Meter
	metrics http.Handler

	evaluations        metric.Int64Counter
	evaluationDuration metric.Float64Histogram
	opinionCalls       metric.Int64Counter
	opinionDuration    metric.Float64Histogram
	cacheLookups       metric.Int64Counter
	historyDropped     metric.Int64Counter

	shutdownTraceProvider func(context.Context) error
	shutdownMeterProvider func(context.Context) error
}

// NewProvider configures exporters and providers. When disabled, returns no-op providers.
func NewProvider(ctx context.Context, cfg Config) (*Provider, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if !cfg.Enabled {
		return Noop(), nil
	}
	service := cfg.Service
	if service == "" {
		service = "adaware"
	}

	res, err := resource.New(ctx,
		resource.WithFromEnv(),
		resource.WithTelemetrySDK(),
		resource.WithAttributes(
			attribute.String("service.name", service),
			attribute.String("service.version", cfg.Version),
		),
	)
	if err != nil {
		return nil, err
	}

	p := &Provider{Enabled: true}

	switch strings.ToLower(cfg.Exporter) {
	case "", "prometheus":
		redact.Logf("telemetry enabled (prometheus exporter on /metrics)")
		reg := prometheus.NewRegistry()
		exp, err := promexporter.New(promexporter.WithRegisterer(reg))
		if err != nil {
			return nil, fmt.Errorf("prometheus exporter: %w", err)
		}
		mp := sdkmetric.NewMeterProvider(sdkmetric.WithResource(res), sdkmetric.WithReader(exp))
		otel.SetMeterProvider(mp)
		p.meter = mp.Meter(service)
		p.shutdownMeterProvider = mp.Shutdown
		p.metrics = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
		p.tracer = tracenoop.NewTracerProvider().Tracer("")

	case "otlp":
		redact.Logf("telemetry enabled (OpenTelemetry OTLP %s) endpoint=%s; if no collector is listening, periodic 'failed to upload metrics' warnings are expected", strings.ToLower(cfg.Protocol), cfg.Endpoint)
		tp, mp, err := newOTLP(ctx, cfg, res)
		if err != nil {
			return nil, err
		}
		otel.SetTracerProvider(tp)
		otel.SetMeterProvider(mp)
		p.tracer = tp.Tracer(service)
		p.meter = mp.Meter(service)
		p.shutdownTraceProvider = tp.Shutdown
		p.shutdownMeterProvider = mp.Shutdown

	default:
		return nil, fmt.Errorf("unknown telemetry exporter %q", cfg.Exporter)
	}

	p.initInstruments()
	return p, nil
}

// Noop returns a provider that records nothing.
func Noop() *Provider {
	p := &Provider{
		tracer: tracenoop.NewTracerProvider().Tracer(""),
		meter:  metricnoop.NewMeterProvider().Meter(""),
	}
	p.initInstruments()
	return p
}

func newOTLP(ctx context.Context, cfg Config, res *resource.Resource) (*sdktrace.TracerProvider, *sdkmetric.MeterProvider, error) {
	var (
		traceExp  sdktrace.SpanExporter
		metricExp sdkmetric.Exporter
		err       error
	)
	switch strings.ToLower(cfg.Protocol) {
	case "", "grpc":
		traceExp, err = otlptracegrpc.New(ctx, otlptracegrpc.WithEndpoint(cfg.Endpoint), otlptracegrpc.WithInsecure())
		if err != nil {
			return nil, nil, err
		}
		metricExp, err = otlpmetricgrpc.New(ctx, otlpmetricgrpc.WithEndpoint(cfg.Endpoint), otlpmetricgrpc.WithInsecure())
	case "http":
		traceExp, err = otlptracehttp.New(ctx, otlptracehttp.WithEndpoint(cfg.Endpoint), otlptracehttp.WithInsecure())
		if err != nil {
			return nil, nil, err
		}
		metricExp, err = otlpmetrichttp.New(ctx, otlpmetrichttp.WithEndpoint(cfg.Endpoint), otlpmetrichttp.WithInsecure())
	default:
		return nil, nil, fmt.Errorf("unknown telemetry protocol %q", cfg.Protocol)
	}
	if err != nil {
		return nil, nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithBatcher(traceExp),
		sdktrace.WithResource(res),
	)
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExp)),
	)
	return tp, mp, nil
}

func (p *Provider) initInstruments() {
	// best-effort: a failed instrument falls back to the meter's no-op
	p.evaluations, _ = p.meter.Int64Counter("adaware_evaluations_total")
	p.evaluationDuration, _ = p.meter.Float64Histogram("adaware_evaluation_duration_ms")
	p.opinionCalls, _ = p.meter.Int64Counter("adaware_opinion_calls_total")
	p.opinionDuration, _ = p.meter.Float64Histogram("adaware_opinion_duration_ms")
	p.cacheLookups, _ = p.meter.Int64Counter("adaware_cache_lookups_total")
	p.historyDropped, _ = p.meter.Int64Counter("adaware_history_dropped_total")
}

// Tracer returns the tracer.
func (p *Provider) Tracer() trace.Tracer {
	if p == nil {
		return tracenoop.NewTracerProvider().Tracer("")
	}
	return p.tracer
}

// Meter returns the meter.
func (p *Provider) Meter() metric.Meter {
	if p == nil {
		return metricnoop.NewMeterProvider().Meter("")
	}
	return p.meter
}

// MetricsHandler serves the prometheus scrape endpoint, or nil when the
// prometheus exporter is not active.
func (p *Provider) MetricsHandler() http.Handler {
	if p == nil {
		return nil
	}
	return p.metrics
}

// Shutdown flushes providers.
func (p *Provider) Shutdown(ctx context.Context) {
	if p == nil {
		return
	}
	if p.shutdownTraceProvider != nil {
		_ = p.shutdownTraceProvider(ctx)
	}
	if p.shutdownMeterProvider != nil {
		_ = p.shutdownMeterProvider(ctx)
	}
}

// RecordEvaluation emits the per-evaluation counter and latency with safe labels.
func (p *Provider) RecordEvaluation(ctx context.Context, label, source, opinionStatus, clientID string, durMs float64) {
	if p == nil || p.evaluations == nil {
		return
	}
	labels := metric.WithAttributes(
		attribute.String("adaware.label", label),
		attribute.String("adaware.verdict_source", source),
		attribute.String("adaware.opinion_status", opinionStatus),
		attribute.String("adaware.client_id", clientID),
	)
	p.evaluations.Add(ctx, 1, labels)
	p.evaluationDuration.Record(ctx, durMs, labels)
}

// RecordOpinion tracks one call to the external opinion provider.
func (p *Provider) RecordOpinion(ctx context.Context, provider, status string, durMs float64) {
	if p == nil || p.opinionCalls == nil {
		return
	}
	labels := metric.WithAttributes(
		attribute.String("adaware.provider", provider),
		attribute.String("adaware.status", status),
	)
	p.opinionCalls.Add(ctx, 1, labels)
	if durMs > 0 {
		p.opinionDuration.Record(ctx, durMs, labels)
	}
}

// RecordCacheLookup counts result cache hits and misses.
func (p *Provider) RecordCacheLookup(ctx context.Context, hit bool) {
	if p == nil || p.cacheLookups == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	p.cacheLookups.Add(ctx, 1, metric.WithAttributes(attribute.String("adaware.result", result)))
}

// RecordHistoryDropped counts history records the emitter could not queue.
func (p *Provider) RecordHistoryDropped(ctx context.Context) {
	if p == nil || p.historyDropped == nil {
		return
	}
	p.historyDropped.Add(ctx, 1)
}
