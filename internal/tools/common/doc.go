// Package common carries the plumbing shared by the MCP tool packages:
// account resolution from request arguments or the OAuth context, and the
// instrumentation wrapper that adds tracing, metrics and audit logging to a
// tool handler.
package common
