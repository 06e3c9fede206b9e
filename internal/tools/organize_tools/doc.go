// Package organize_tools provides MCP (Model Context Protocol) tools for the
// inbox classification pipeline.
//
// This package exposes the pipeline through MCP tools that can be called by
// AI agents or other MCP clients. It provides capabilities for:
//
// Pipeline:
//   - organize_inbox: Classify unread messages and apply category labels
//     (write operation, only registered when write mode is enabled)
//   - classify_text: Dry-run a classification on arbitrary text without
//     touching the mailbox
//
// Mailbox inspection:
//   - list_unread: List unread Gmail messages
//   - list_labels: List the Gmail labels of the account
//
// All tools accept an optional "account" argument for multi-account setups
// and resolve the authenticated OAuth user from the request context when the
// server runs over HTTP. Tools are registered with the instrumented handler
// wrappers from the common package, so invocations are traced, measured and
// audit-logged when instrumentation is configured.
package organize_tools
