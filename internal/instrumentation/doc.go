// Package instrumentation wires OpenTelemetry metrics, tracing and audit
// logging into the mailsort server.
//
// NewProvider builds the exporters selected by Config and installs the
// meter and tracer providers as the OpenTelemetry globals; DefaultConfig
// reads the whole configuration from environment variables. The Metrics
// recorder and the span helpers degrade to no-ops when instrumentation is
// disabled, so callers never need to branch.
//
// # Metrics
//
// Server metrics:
//   - http_requests_total: HTTP requests by method, path and status
//   - http_request_duration_seconds: HTTP request latency
//   - active_sessions: currently active user sessions
//
// Upstream API metrics:
//   - api_operations_total: Gmail and OpenAI calls by service, operation and status
//   - api_operation_duration_seconds: upstream call latency
//
// Pipeline metrics:
//   - organize_runs_total: organize runs by result
//   - organize_run_duration_seconds: run duration
//   - messages_processed_total: messages handled across runs
//   - classifications_total: classifier outcomes by category and status
//   - labels_applied_total: labels applied by category
//
// MCP tool metrics:
//   - mcp_tool_invocations_total: tool calls by tool name and status
//   - mcp_tool_duration_seconds: tool execution time
//
// # Tracing
//
// Spans cover HTTP request handling, MCP tool invocations (tool.<name>),
// pipeline runs (pipeline.run) and upstream API calls
// (<service>.<operation>). Trace IDs surface in run logs and audit records
// for correlation.
//
// # Configuration
//
//   - INSTRUMENTATION_ENABLED: turn the provider on or off (default: true)
//   - METRICS_EXPORTER: prometheus, otlp or stdout (default: prometheus)
//   - TRACING_EXPORTER: otlp, stdout or none (default: none)
//   - OTEL_EXPORTER_OTLP_ENDPOINT: collector endpoint for the otlp exporters
//   - OTEL_TRACES_SAMPLER_ARG: head sampling ratio, 0.0 to 1.0 (default: 0.1)
//   - OTEL_SERVICE_NAME: service name in telemetry (default: mailsort)
//
// A typical serve-mode setup:
//
//	provider, err := instrumentation.NewProvider(ctx, instrumentation.DefaultConfig())
//	if err != nil {
//		return err
//	}
//	defer provider.Shutdown(ctx)
//
//	provider.Metrics().RecordRun(ctx, "success", 25, time.Since(start))
package instrumentation
