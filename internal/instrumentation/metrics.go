package instrumentation

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Attribute keys shared across instruments
const (
	attrMethod    = "method"
	attrPath      = "path"
	attrStatus    = "status"
	attrOperation = "operation"
	attrService   = "service"
	attrResult    = "result"
	attrTool      = "tool"
	attrAccount   = "account"
	attrCategory  = "category"
)

// Metrics holds the application's OpenTelemetry instruments. A zero Metrics
// is inert: every recorder checks its instruments before use, so callers can
// record unconditionally whether or not instrumentation is configured.
type Metrics struct {
	// HTTP surface
	httpRequestsTotal   metric.Int64Counter
	httpRequestDuration metric.Float64Histogram
	activeSessions      metric.Int64UpDownCounter

	// Upstream APIs (Gmail, OpenAI)
	apiOperationsTotal   metric.Int64Counter
	apiOperationDuration metric.Float64Histogram

	// Organize pipeline
	runsTotal              metric.Int64Counter
	runDuration            metric.Float64Histogram
	messagesProcessedTotal metric.Int64Counter
	classificationsTotal   metric.Int64Counter
	labelsAppliedTotal     metric.Int64Counter

	// MCP tools
	toolInvocationsTotal metric.Int64Counter
	toolDuration         metric.Float64Histogram

	// detailedLabels opts in to high-cardinality labels such as the account name
	detailedLabels bool
}

// NewMetrics creates the instrument set on meter.
func NewMetrics(meter metric.Meter, detailedLabels bool) (*Metrics, error) {
	m := &Metrics{detailedLabels: detailedLabels}

	var err error
	counter := func(name, description, unit string) metric.Int64Counter {
		c, cerr := meter.Int64Counter(name,
			metric.WithDescription(description),
			metric.WithUnit(unit),
		)
		if cerr != nil && err == nil {
			err = fmt.Errorf("failed to create %s counter: %w", name, cerr)
		}
		return c
	}
	histogram := func(name, description string, boundaries ...float64) metric.Float64Histogram {
		h, herr := meter.Float64Histogram(name,
			metric.WithDescription(description),
			metric.WithUnit("s"),
			metric.WithExplicitBucketBoundaries(boundaries...),
		)
		if herr != nil && err == nil {
			err = fmt.Errorf("failed to create %s histogram: %w", name, herr)
		}
		return h
	}

	m.httpRequestsTotal = counter("http_requests_total",
		"Total number of HTTP requests", "{request}")
	m.httpRequestDuration = histogram("http_request_duration_seconds",
		"HTTP request duration in seconds",
		0.001, 0.01, 0.1, 0.5, 1.0, 2.5, 5.0, 10.0)

	m.apiOperationsTotal = counter("api_operations_total",
		"Total number of upstream API operations", "{operation}")
	m.apiOperationDuration = histogram("api_operation_duration_seconds",
		"Upstream API operation duration in seconds",
		0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0)

	m.runsTotal = counter("organize_runs_total",
		"Total number of organize runs", "{run}")
	m.runDuration = histogram("organize_run_duration_seconds",
		"Organize run duration in seconds",
		0.1, 0.5, 1.0, 5.0, 10.0, 30.0, 60.0, 120.0, 300.0)
	m.messagesProcessedTotal = counter("messages_processed_total",
		"Total number of messages processed by organize runs", "{message}")
	m.classificationsTotal = counter("classifications_total",
		"Total number of message classifications by category and status", "{classification}")
	m.labelsAppliedTotal = counter("labels_applied_total",
		"Total number of labels applied to messages", "{label}")

	m.toolInvocationsTotal = counter("mcp_tool_invocations_total",
		"Total number of MCP tool invocations", "{invocation}")
	m.toolDuration = histogram("mcp_tool_duration_seconds",
		"MCP tool execution duration in seconds",
		0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0)

	if err != nil {
		return nil, err
	}

	sessions, serr := meter.Int64UpDownCounter("active_sessions",
		metric.WithDescription("Number of active user sessions"),
		metric.WithUnit("{session}"),
	)
	if serr != nil {
		return nil, fmt.Errorf("failed to create active_sessions gauge: %w", serr)
	}
	m.activeSessions = sessions

	return m, nil
}

// RecordHTTPRequest counts one served HTTP request and observes its duration.
func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, path string, statusCode int, duration time.Duration) {
	if m.httpRequestsTotal == nil || m.httpRequestDuration == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrMethod, method),
		attribute.String(attrPath, path),
		attribute.String(attrStatus, strconv.Itoa(statusCode)),
	}

	m.httpRequestsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.httpRequestDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordAPIOperation records one call against an upstream service. Service
// and operation take the Service* and Operation* constants so the label set
// stays closed.
func (m *Metrics) RecordAPIOperation(ctx context.Context, service, operation, status string, duration time.Duration) {
	if m.apiOperationsTotal == nil || m.apiOperationDuration == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrService, service),
		attribute.String(attrOperation, operation),
		attribute.String(attrStatus, status),
	}

	m.apiOperationsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.apiOperationDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordRun records one organize run with its result, the number of messages
// it processed, and its duration. Result takes the RunResult* constants.
func (m *Metrics) RecordRun(ctx context.Context, result string, processed int64, duration time.Duration) {
	if m.runsTotal == nil || m.runDuration == nil || m.messagesProcessedTotal == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrResult, result),
	}

	m.runsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.runDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	if processed > 0 {
		m.messagesProcessedTotal.Add(ctx, processed)
	}
}

// RecordClassification records one message classification outcome.
// Category is the resolved category name (empty when classification failed);
// status is "success" or "error". Categories form a small closed set, so
// they are safe as a metric label.
func (m *Metrics) RecordClassification(ctx context.Context, category, status string) {
	if m.classificationsTotal == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrStatus, status),
	}
	if category != "" {
		attrs = append(attrs, attribute.String(attrCategory, category))
	}

	m.classificationsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordLabelApplied records one label application by category.
func (m *Metrics) RecordLabelApplied(ctx context.Context, category string) {
	if m.labelsAppliedTotal == nil {
		return
	}

	m.labelsAppliedTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrCategory, category),
	))
}

// RecordToolInvocation records one MCP tool call and its outcome.
func (m *Metrics) RecordToolInvocation(ctx context.Context, toolName, status string, duration time.Duration) {
	if m.toolInvocationsTotal == nil || m.toolDuration == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrTool, toolName),
		attribute.String(attrStatus, status),
	}

	m.toolInvocationsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.toolDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordToolInvocationWithAccount additionally labels the invocation with
// the account name. Account names are unbounded, so the label stays off
// unless detailed labels are enabled.
func (m *Metrics) RecordToolInvocationWithAccount(ctx context.Context, toolName, status, account string, duration time.Duration) {
	if m.toolInvocationsTotal == nil || m.toolDuration == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrTool, toolName),
		attribute.String(attrStatus, status),
	}
	if m.detailedLabels && account != "" {
		attrs = append(attrs, attribute.String(attrAccount, account))
	}

	m.toolInvocationsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.toolDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// IncrementActiveSessions adds one to the active session gauge.
func (m *Metrics) IncrementActiveSessions(ctx context.Context) {
	if m.activeSessions == nil {
		return
	}
	m.activeSessions.Add(ctx, 1)
}

// DecrementActiveSessions subtracts one from the active session gauge.
func (m *Metrics) DecrementActiveSessions(ctx context.Context) {
	if m.activeSessions == nil {
		return
	}
	m.activeSessions.Add(ctx, -1)
}
