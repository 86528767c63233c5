package observability

import (
	"context"
	"testing"
)

func TestSetup_DisabledSignalsReturnNoopProviders(t *testing.T) {
	p, err := Setup(context.Background(), Config{})
	if err != nil {
		t.Fatalf("Setup() error: %v", err)
	}
	if err := p.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() error: %v", err)
	}
}

func TestSetup_TracingEnabledInstallsExporter(t *testing.T) {
	p, err := Setup(context.Background(), Config{TracingEnabled: true})
	if err != nil {
		t.Fatalf("Setup() error: %v", err)
	}
	defer p.Shutdown(context.Background())

	_, span := Tracer("test").Start(context.Background(), "op")
	defer span.End()
	if !span.SpanContext().IsValid() {
		t.Error("expected a valid span context once tracing is enabled")
	}
}

func TestSetup_MetricsEnabledInstallsExporter(t *testing.T) {
	p, err := Setup(context.Background(), Config{MetricsEnabled: true})
	if err != nil {
		t.Fatalf("Setup() error: %v", err)
	}
	if err := p.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() error: %v", err)
	}
}

func TestShutdown_NilProviderIsSafe(t *testing.T) {
	var p *Provider
	if err := p.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() on nil provider error: %v", err)
	}
}
