// Package google handles OAuth2 authorization against Google and the
// storage of the resulting tokens.
//
// Tokens live in per-account files under the user cache directory when the
// CLI or the stdio MCP transport is used. The HTTP MCP transport instead
// resolves tokens through a TokenProvider backed by its OAuth store, so the
// rest of the code never cares where a token came from.
package google
