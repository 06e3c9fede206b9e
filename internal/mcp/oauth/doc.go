// Package oauth bridges the github.com/giantswarm/mcp-oauth library with the
// mailsort server architecture. It provides token storage integration for the
// HTTP transport, Google token validation middleware, and helpers for parsing
// OAuth authorization callbacks.
//
// Dependency Security Note:
// This package depends on github.com/giantswarm/mcp-oauth for token storage
// and OAuth error handling. The library implements the OAuth 2.1
// specification and is actively maintained.
// Action required: Monitor https://github.com/giantswarm/mcp-oauth for
// security updates.
package oauth
