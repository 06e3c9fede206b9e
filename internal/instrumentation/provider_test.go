package instrumentation

import (
	"context"
	"testing"
	"time"
)

func TestNewProvider_Disabled(t *testing.T) {
	config := Config{
		ServiceName:    "mailsort-test",
		ServiceVersion: "0.0.0",
		Enabled:        false,
	}

	provider, err := NewProvider(context.Background(), config)
	if err != nil {
		t.Fatalf("NewProvider() error = %v", err)
	}

	if provider.Enabled() {
		t.Error("provider should be disabled")
	}
	if provider.Metrics() == nil {
		t.Error("a disabled provider must still hand out a metrics recorder")
	}
	if err := provider.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
}

func TestNewProvider_PrometheusExporter(t *testing.T) {
	config := Config{
		ServiceName:     "mailsort-test",
		ServiceVersion:  "0.0.0",
		Enabled:         true,
		MetricsExporter: ExporterPrometheus,
		TracingExporter: ExporterNone,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	provider, err := NewProvider(ctx, config)
	if err != nil {
		t.Fatalf("NewProvider() error = %v", err)
	}
	defer func() { _ = provider.Shutdown(ctx) }()

	if !provider.Enabled() {
		t.Error("provider should be enabled")
	}
	if provider.Metrics() == nil {
		t.Error("Metrics() should be non-nil")
	}
	if provider.PrometheusExporter() == nil {
		t.Error("PrometheusExporter() should be non-nil for the prometheus exporter")
	}
	if provider.Tracer("test") == nil {
		t.Error("Tracer() should be non-nil")
	}
}

func TestNewProvider_StdoutExporter(t *testing.T) {
	config := Config{
		ServiceName:     "mailsort-test",
		ServiceVersion:  "0.0.0",
		Enabled:         true,
		MetricsExporter: ExporterStdout,
		TracingExporter: ExporterStdout,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	provider, err := NewProvider(ctx, config)
	if err != nil {
		t.Fatalf("NewProvider() error = %v", err)
	}
	defer func() { _ = provider.Shutdown(ctx) }()

	if !provider.Enabled() {
		t.Error("provider should be enabled")
	}
	if provider.PrometheusExporter() != nil {
		t.Error("PrometheusExporter() should be nil for the stdout exporter")
	}
}

func TestNewProvider_InvalidMetricsExporter(t *testing.T) {
	config := Config{
		ServiceName:     "mailsort-test",
		ServiceVersion:  "0.0.0",
		Enabled:         true,
		MetricsExporter: "invalid",
		TracingExporter: ExporterNone,
	}

	if _, err := NewProvider(context.Background(), config); err == nil {
		t.Error("NewProvider() should fail for an unknown metrics exporter")
	}
}

func TestNewProvider_InvalidTracingExporter(t *testing.T) {
	config := Config{
		ServiceName:     "mailsort-test",
		ServiceVersion:  "0.0.0",
		Enabled:         true,
		MetricsExporter: ExporterPrometheus,
		TracingExporter: "invalid",
	}

	if _, err := NewProvider(context.Background(), config); err == nil {
		t.Error("NewProvider() should fail for an unknown tracing exporter")
	}
}

func TestNewProvider_OTLPTracingWithoutEndpoint(t *testing.T) {
	config := Config{
		ServiceName:     "mailsort-test",
		ServiceVersion:  "0.0.0",
		Enabled:         true,
		MetricsExporter: ExporterPrometheus,
		TracingExporter: ExporterOTLP,
	}

	if _, err := NewProvider(context.Background(), config); err == nil {
		t.Error("NewProvider() should fail when OTLP tracing has no endpoint")
	}
}

func TestProvider_Shutdown(t *testing.T) {
	config := Config{
		ServiceName:     "mailsort-test",
		ServiceVersion:  "0.0.0",
		Enabled:         true,
		MetricsExporter: ExporterPrometheus,
		TracingExporter: ExporterNone,
	}

	ctx := context.Background()
	provider, err := NewProvider(ctx, config)
	if err != nil {
		t.Fatalf("NewProvider() error = %v", err)
	}

	if err := provider.Shutdown(ctx); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
}

func TestProvider_Tracer_Disabled(t *testing.T) {
	provider, err := NewProvider(context.Background(), Config{Enabled: false})
	if err != nil {
		t.Fatalf("NewProvider() error = %v", err)
	}

	if provider.Tracer("test") == nil {
		t.Error("a disabled provider should hand out a no-op tracer, not nil")
	}
}
