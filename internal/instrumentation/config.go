package instrumentation

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds the OpenTelemetry instrumentation settings. DefaultConfig
// reads everything from environment variables, so the serve command needs no
// extra flags for observability.
type Config struct {
	// ServiceName identifies the service in telemetry (default: mailsort)
	ServiceName string

	// ServiceVersion is stamped on every span and metric
	ServiceVersion string

	// ServiceInstanceID distinguishes replicas. In Kubernetes this is
	// usually the pod name; it defaults to the hostname.
	ServiceInstanceID string

	// K8sNamespace and K8sPodName fill the k8s resource attributes when
	// running in a cluster
	K8sNamespace string
	K8sPodName   string

	// Enabled turns the whole provider on or off
	// (INSTRUMENTATION_ENABLED, default true)
	Enabled bool

	// MetricsExporter is one of prometheus, otlp or stdout
	// (default: prometheus)
	MetricsExporter string

	// TracingExporter is one of otlp, stdout or none (default: none)
	TracingExporter string

	// OTLPEndpoint is the collector endpoint without a protocol prefix,
	// e.g. "localhost:4318". Required when either exporter is otlp.
	OTLPEndpoint string

	// OTLPInsecure switches OTLP export to plain HTTP. Spans carry
	// metadata about mailbox operations, so leave TLS on outside local
	// development.
	OTLPInsecure bool

	// TraceSamplingRate is the head sampling ratio, 0.0 to 1.0
	// (default: 0.1)
	TraceSamplingRate float64

	// PrometheusEndpoint is the scrape path (default: /metrics)
	PrometheusEndpoint string

	// DetailedLabels admits high-cardinality label values such as full
	// account names. Keep it off in production.
	DetailedLabels bool

	// AuditLogging configures the tool invocation audit trail
	AuditLogging AuditLoggingConfig
}

// AuditLoggingConfig controls the audit trail of MCP tool invocations.
type AuditLoggingConfig struct {
	// Enabled turns audit records on (default: true)
	Enabled bool

	// IncludePII writes full email addresses instead of domains. Route
	// the stream to access-controlled storage before turning this on.
	IncludePII bool

	// LogLevel is the slog level audit messages are tagged with
	// (default: info)
	LogLevel string
}

// DefaultConfig builds a Config from environment variables, falling back to
// defaults that serve a single-process deployment with Prometheus scraping.
func DefaultConfig() Config {
	return Config{
		ServiceName:        getEnvOrDefault("OTEL_SERVICE_NAME", "mailsort"),
		ServiceVersion:     "unknown",
		ServiceInstanceID:  getEnvOrDefault("OTEL_SERVICE_INSTANCE_ID", ""),
		K8sNamespace:       getEnvOrDefault("K8S_NAMESPACE", getEnvOrDefault("POD_NAMESPACE", "")),
		K8sPodName:         getEnvOrDefault("K8S_POD_NAME", getEnvOrDefault("HOSTNAME", "")),
		Enabled:            getEnvBoolOrDefault("INSTRUMENTATION_ENABLED", true),
		MetricsExporter:    getEnvOrDefault("METRICS_EXPORTER", ExporterPrometheus),
		TracingExporter:    getEnvOrDefault("TRACING_EXPORTER", ExporterNone),
		OTLPEndpoint:       getEnvOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		OTLPInsecure:       getEnvBoolOrDefault("OTEL_EXPORTER_OTLP_INSECURE", false),
		TraceSamplingRate:  getEnvFloatOrDefault("OTEL_TRACES_SAMPLER_ARG", 0.1),
		PrometheusEndpoint: getEnvOrDefault("PROMETHEUS_ENDPOINT", "/metrics"),
		DetailedLabels:     getEnvBoolOrDefault("METRICS_DETAILED_LABELS", false),
		AuditLogging: AuditLoggingConfig{
			Enabled:    getEnvBoolOrDefault("AUDIT_LOGGING_ENABLED", true),
			IncludePII: getEnvBoolOrDefault("AUDIT_LOGGING_INCLUDE_PII", false),
			LogLevel:   getEnvOrDefault("AUDIT_LOGGING_LEVEL", "info"),
		},
	}
}

// Validate rejects configurations the provider could not start with.
func (c *Config) Validate() error {
	if c.TraceSamplingRate < 0 || c.TraceSamplingRate > 1 {
		return fmt.Errorf("trace sampling rate must be between 0.0 and 1.0, got %f", c.TraceSamplingRate)
	}

	switch c.MetricsExporter {
	case "", ExporterPrometheus, ExporterOTLP, ExporterStdout:
	default:
		return fmt.Errorf("invalid metrics exporter %q, must be one of: prometheus, otlp, stdout", c.MetricsExporter)
	}

	switch c.TracingExporter {
	case "", ExporterOTLP, ExporterStdout, ExporterNone:
	default:
		return fmt.Errorf("invalid tracing exporter %q, must be one of: otlp, stdout, none", c.TracingExporter)
	}

	if c.TracingExporter == ExporterOTLP && c.OTLPEndpoint == "" {
		return fmt.Errorf("OTLP endpoint is required when using OTLP tracing exporter")
	}
	if c.MetricsExporter == ExporterOTLP && c.OTLPEndpoint == "" {
		return fmt.Errorf("OTLP endpoint is required when using OTLP metrics exporter")
	}

	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBoolOrDefault parses a boolean environment variable; unparseable
// values fall back to the default rather than failing startup.
func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return defaultValue
		}
		return parsed
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return defaultValue
		}
		return parsed
	}
	return defaultValue
}

// Label values shared across the metric instruments.
const (
	// Outcome status of a tool or API call
	StatusSuccess = "success"
	StatusError   = "error"
	StatusUnknown = "unknown"

	// Outcome of a pipeline run
	RunResultSuccess = "success"
	RunResultError   = "error"
	RunResultBusy    = "busy"

	// Upstream service names
	ServiceGmail  = "gmail"
	ServiceOpenAI = "openai"

	// Exporter types
	ExporterPrometheus = "prometheus"
	ExporterOTLP       = "otlp"
	ExporterStdout     = "stdout"
	ExporterNone       = "none"

	// DefaultMetricInterval is the push period for the periodic readers
	DefaultMetricInterval = 10 * time.Second
)
