// Package observability wires the OpenTelemetry tracing and metrics SDKs
// used for ambient instrumentation beyond the Prometheus /metrics scrape
// surface (see internal/adapter/inbound/http.Server.buildMux): per-route
// request tracing in the HTTP adapter (the OAuth Proxy's upstream calls get
// no spans of their own), and an independent metrics export path for
// environments that consume OTel metrics rather than scraping Prometheus.
package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const serviceName = "mcpgateway"

// Config selects which OTel signals this gateway exports. Both default to
// off; neither affects the always-on Prometheus instrumentation in the HTTP
// adapter (see internal/config.ObservabilityConfig's doc comment).
type Config struct {
	TracingEnabled bool
	MetricsEnabled bool
}

// Provider owns the process-wide TracerProvider/MeterProvider and their
// exporters. Shutdown flushes both; safe to call on a nil Provider.
type Provider struct {
	tp *sdktrace.TracerProvider
	mp *sdkmetric.MeterProvider
}

// Setup builds and installs the global OTel providers according to cfg. A
// disabled signal gets a no-op provider (otel.GetTracerProvider's/
// GetMeterProvider's built-in default), so callers never need to branch on
// cfg themselves when acquiring a Tracer/Meter.
func Setup(ctx context.Context, cfg Config) (*Provider, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String(serviceName)),
	)
	if err != nil {
		return nil, fmt.Errorf("observability: build resource: %w", err)
	}

	p := &Provider{}

	if cfg.TracingEnabled {
		exp, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("observability: build trace exporter: %w", err)
		}
		p.tp = sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(exp),
			sdktrace.WithResource(res),
		)
		otel.SetTracerProvider(p.tp)
		otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{}, propagation.Baggage{},
		))
	}

	if cfg.MetricsEnabled {
		exp, err := stdoutmetric.New()
		if err != nil {
			return nil, fmt.Errorf("observability: build metric exporter: %w", err)
		}
		p.mp = sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
			sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp)),
		)
		otel.SetMeterProvider(p.mp)
	}

	return p, nil
}

// Shutdown flushes and shuts down whichever providers were built. Safe to
// call on a nil Provider.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil {
		return nil
	}
	if p.tp != nil {
		if err := p.tp.Shutdown(ctx); err != nil {
			return err
		}
	}
	if p.mp != nil {
		if err := p.mp.Shutdown(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Tracer returns the named tracer from the global TracerProvider, a no-op
// implementation when tracing is disabled.
func Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}
