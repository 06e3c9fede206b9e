package instrumentation

import (
	"strings"
	"testing"
)

func TestDefaultConfigWithoutEnv(t *testing.T) {
	for _, key := range []string{"OTEL_SERVICE_NAME", "INSTRUMENTATION_ENABLED", "METRICS_EXPORTER", "TRACING_EXPORTER", "OTEL_TRACES_SAMPLER_ARG"} {
		t.Setenv(key, "")
	}

	config := DefaultConfig()

	if config.ServiceName != "mailsort" {
		t.Errorf("ServiceName = %q, want mailsort", config.ServiceName)
	}
	if !config.Enabled {
		t.Error("instrumentation should be enabled by default")
	}
	if config.MetricsExporter != ExporterPrometheus {
		t.Errorf("MetricsExporter = %q, want %q", config.MetricsExporter, ExporterPrometheus)
	}
	if config.TracingExporter != ExporterNone {
		t.Errorf("TracingExporter = %q, want %q", config.TracingExporter, ExporterNone)
	}
	if config.TraceSamplingRate != 0.1 {
		t.Errorf("TraceSamplingRate = %f, want 0.1", config.TraceSamplingRate)
	}
	if !config.AuditLogging.Enabled {
		t.Error("audit logging should be enabled by default")
	}
	if config.AuditLogging.IncludePII {
		t.Error("audit logging should not include PII by default")
	}
}

func TestDefaultConfigFromEnv(t *testing.T) {
	t.Setenv("OTEL_SERVICE_NAME", "mailsort-staging")
	t.Setenv("INSTRUMENTATION_ENABLED", "false")
	t.Setenv("METRICS_EXPORTER", "stdout")
	t.Setenv("TRACING_EXPORTER", "stdout")
	t.Setenv("OTEL_TRACES_SAMPLER_ARG", "0.5")

	config := DefaultConfig()

	if config.ServiceName != "mailsort-staging" {
		t.Errorf("ServiceName = %q, want mailsort-staging", config.ServiceName)
	}
	if config.Enabled {
		t.Error("INSTRUMENTATION_ENABLED=false should disable instrumentation")
	}
	if config.MetricsExporter != ExporterStdout {
		t.Errorf("MetricsExporter = %q, want %q", config.MetricsExporter, ExporterStdout)
	}
	if config.TracingExporter != ExporterStdout {
		t.Errorf("TracingExporter = %q, want %q", config.TracingExporter, ExporterStdout)
	}
	if config.TraceSamplingRate != 0.5 {
		t.Errorf("TraceSamplingRate = %f, want 0.5", config.TraceSamplingRate)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr string
	}{
		{
			name:   "prometheus metrics with tracing off",
			config: Config{MetricsExporter: ExporterPrometheus, TracingExporter: ExporterNone},
		},
		{
			name: "otlp tracing with endpoint",
			config: Config{
				MetricsExporter: ExporterPrometheus,
				TracingExporter: ExporterOTLP,
				OTLPEndpoint:    "localhost:4318",
			},
		},
		{
			name:    "negative sampling rate",
			config:  Config{TraceSamplingRate: -0.5},
			wantErr: "sampling rate",
		},
		{
			name:    "sampling rate above one",
			config:  Config{TraceSamplingRate: 1.5},
			wantErr: "sampling rate",
		},
		{
			name:    "unknown metrics exporter",
			config:  Config{MetricsExporter: "statsd"},
			wantErr: "invalid metrics exporter",
		},
		{
			name:    "unknown tracing exporter",
			config:  Config{TracingExporter: "jaeger"},
			wantErr: "invalid tracing exporter",
		},
		{
			name:    "otlp tracing without endpoint",
			config:  Config{TracingExporter: ExporterOTLP},
			wantErr: "OTLP endpoint is required",
		},
		{
			name:    "otlp metrics without endpoint",
			config:  Config{MetricsExporter: ExporterOTLP},
			wantErr: "OTLP endpoint is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatal("Validate() expected an error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %q, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestEnvHelpers(t *testing.T) {
	t.Setenv("MAILSORT_TEST_STR", "set")
	t.Setenv("MAILSORT_TEST_BOOL", "true")
	t.Setenv("MAILSORT_TEST_BOOL_BAD", "not_a_bool")
	t.Setenv("MAILSORT_TEST_FLOAT", "0.75")
	t.Setenv("MAILSORT_TEST_FLOAT_BAD", "not_a_float")

	if v := getEnvOrDefault("MAILSORT_TEST_STR", "fallback"); v != "set" {
		t.Errorf("getEnvOrDefault() = %q, want set", v)
	}
	if v := getEnvOrDefault("MAILSORT_TEST_MISSING", "fallback"); v != "fallback" {
		t.Errorf("getEnvOrDefault() = %q, want fallback", v)
	}

	if !getEnvBoolOrDefault("MAILSORT_TEST_BOOL", false) {
		t.Error("getEnvBoolOrDefault() should parse true")
	}
	if !getEnvBoolOrDefault("MAILSORT_TEST_BOOL_BAD", true) {
		t.Error("getEnvBoolOrDefault() should fall back on an unparseable value")
	}
	if !getEnvBoolOrDefault("MAILSORT_TEST_MISSING", true) {
		t.Error("getEnvBoolOrDefault() should fall back when unset")
	}

	if v := getEnvFloatOrDefault("MAILSORT_TEST_FLOAT", 0.5); v != 0.75 {
		t.Errorf("getEnvFloatOrDefault() = %f, want 0.75", v)
	}
	if v := getEnvFloatOrDefault("MAILSORT_TEST_FLOAT_BAD", 0.5); v != 0.5 {
		t.Errorf("getEnvFloatOrDefault() = %f, want fallback 0.5", v)
	}
}
