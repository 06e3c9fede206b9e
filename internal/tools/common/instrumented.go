package common

import (
	"context"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/mlindner/mailsort/internal/instrumentation"
	"github.com/mlindner/mailsort/internal/server"
)

// ToolHandlerFunc matches the handler signature mcp-go expects for tools.
type ToolHandlerFunc = func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)

// InstrumentedToolHandler wraps handler with a span, invocation metrics and
// an audit record. Instrumented tools show up as tool.<name> spans and feed
// the mcp_tool_* metrics. When the server context carries neither metrics
// nor an audit logger the handler runs unwrapped.
//
//	s.AddTool(myTool, common.InstrumentedToolHandler("my_tool", sc, handler))
func InstrumentedToolHandler(toolName string, sc *server.ServerContext, handler ToolHandlerFunc) ToolHandlerFunc {
	return instrumentHandler(toolName, "", "", sc, handler)
}

// InstrumentedToolHandlerWithService additionally tags the invocation with
// the upstream service and operation class, and feeds the api_operations_*
// metrics alongside the tool metrics.
//
//	s.AddTool(myTool, common.InstrumentedToolHandlerWithService("my_tool", "gmail", "list", sc, handler))
func InstrumentedToolHandlerWithService(toolName, serviceName, operation string, sc *server.ServerContext, handler ToolHandlerFunc) ToolHandlerFunc {
	return instrumentHandler(toolName, serviceName, operation, sc, handler)
}

// instrumentHandler is the shared wrapper. An empty serviceName means the
// tool does not map onto a single upstream operation and only the tool
// metrics are recorded.
func instrumentHandler(toolName, serviceName, operation string, sc *server.ServerContext, handler ToolHandlerFunc) ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		metrics := sc.Metrics()
		auditLogger := sc.AuditLogger()
		if metrics == nil && auditLogger == nil {
			return handler(ctx, request)
		}

		start := time.Now()

		// The account is resolved before the span opens so it lands on
		// the span attributes as well as the audit record.
		account := GetAccountFromArgs(ctx, request.GetArguments())

		attrs := instrumentation.NewSpanAttributeBuilder().WithAccount(account)
		if serviceName != "" {
			// list and get do not mutate upstream state
			readOnly := operation == instrumentation.OperationList ||
				operation == instrumentation.OperationGet
			attrs.WithService(serviceName).WithOperation(operation).WithReadOnly(readOnly)
		}

		// The handler runs inside the tool span so that upstream API
		// spans become its children.
		ctx, span := instrumentation.StartToolSpan(ctx, toolName, attrs.Build()...)
		defer span.End()

		invocation := instrumentation.NewToolInvocation(toolName).WithSpanContext(ctx)
		if serviceName != "" {
			invocation.WithService(serviceName, operation)
		}
		if account != "" {
			invocation.WithAccount(account)
		}

		result, err := handler(ctx, request)
		duration := time.Since(start)

		status := instrumentation.StatusSuccess
		if err != nil || (result != nil && result.IsError) {
			status = instrumentation.StatusError
			if err != nil {
				invocation.CompleteWithError(err)
				instrumentation.SetSpanError(span, err)
			} else {
				// The tool reported its failure in the result body.
				invocation.Complete(false, nil)
			}
		} else {
			invocation.CompleteSuccess()
			instrumentation.SetSpanSuccess(span)
		}

		if metrics != nil {
			if account != "" {
				metrics.RecordToolInvocationWithAccount(ctx, toolName, status, account, duration)
			} else {
				metrics.RecordToolInvocation(ctx, toolName, status, duration)
			}
			if serviceName != "" {
				metrics.RecordAPIOperation(ctx, serviceName, operation, status, duration)
			}
		}

		if auditLogger != nil {
			auditLogger.LogToolInvocation(invocation)
		}

		return result, err
	}
}
