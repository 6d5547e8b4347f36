package telemetry

import (
	"context"
	"fmt"
	"net/url"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// ProviderConfig configures the OTLP/HTTP exporter that backs the process's
// global tracer provider.
type ProviderConfig struct {
	// Endpoint is the OTLP collector's host:port (no scheme). Required.
	Endpoint string

	// ServiceName labels every span's resource. Defaults to "claude-route".
	ServiceName string

	// Insecure disables TLS for the exporter connection.
	Insecure bool

	// Headers are sent with every export request, e.g. collector auth.
	Headers map[string]string
}

// Provider wraps the SDK tracer provider so the caller can flush and shut
// it down at process exit without reaching into the otel SDK directly.
type Provider struct {
	tracerProvider *sdktrace.TracerProvider
	exporter       *otlptrace.Exporter
}

// NewProvider builds an OTLP/HTTP-backed tracer provider and installs it as
// the process-global provider, so GetTracer (and any otel.Tracer(...) call
// anywhere else in the process) starts exporting through it.
func NewProvider(cfg ProviderConfig) (*Provider, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("telemetry: Endpoint is required")
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "claude-route"
	}

	opts := []otlptracehttp.Option{
		otlptracehttp.WithEndpoint(endpointHost(cfg.Endpoint)),
	}
	if len(cfg.Headers) > 0 {
		opts = append(opts, otlptracehttp.WithHeaders(cfg.Headers))
	}
	if cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}

	exporter, err := otlptracehttp.New(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("telemetry: failed to create OTLP exporter: %w", err)
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes("", attribute.String("service.name", cfg.ServiceName)),
	)
	if err != nil {
		return nil, fmt.Errorf("telemetry: failed to build resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	return &Provider{tracerProvider: tp, exporter: exporter}, nil
}

// Tracer returns a tracer scoped to this provider.
func (p *Provider) Tracer() trace.Tracer {
	return p.tracerProvider.Tracer(TracerName)
}

// Shutdown flushes and stops the underlying batch span processor.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.tracerProvider == nil {
		return nil
	}
	if err := p.tracerProvider.Shutdown(ctx); err != nil {
		return fmt.Errorf("telemetry: failed to shutdown tracer provider: %w", err)
	}
	return nil
}

// endpointHost strips any scheme from a URL-shaped endpoint, since
// otlptracehttp.WithEndpoint wants host:port only.
func endpointHost(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	return u.Host
}
