// Package server provides the MCP server context, the OAuth-protected HTTP
// transport, and the operational endpoints for the mailsort application.
//
// # Key Components
//
// ServerContext manages Gmail clients and pipeline runners with lazy
// initialization and caching. It supports multiple accounts and can use
// different token providers:
//   - FileTokenProvider: For STDIO transport, reads tokens from disk
//   - OAuth TokenProvider: For HTTP transport, uses tokens validated on the wire
//
// OAuthHTTPServer wraps an MCP server with Google token validation on the
// streamable HTTP transport. Bearer tokens are checked against Google's
// userinfo endpoint, cached briefly, and stored so Gmail clients can use them
// per account.
//
// HealthChecker exposes Kubernetes-style probes (/healthz, /readyz,
// /healthz/detailed) on the transport listener.
//
// MetricsServer serves Prometheus metrics on a dedicated port, isolated from
// application traffic.
//
// # Security Features
//
//   - HTTPS required for production (localhost exempt for development)
//   - Per-IP rate limiting on the MCP endpoint
//   - Proxy headers only trusted when explicitly configured
//   - Metrics isolated on a dedicated listener
package server
