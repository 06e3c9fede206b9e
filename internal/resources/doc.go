// Package resources provides MCP resources for exposing mailbox data.
// Resources are read-only data sources that MCP clients can fetch, such as
// the account profile and the label list.
//
// Resources resolve the account from the OAuth context when the server runs
// over HTTP, so each authenticated user sees their own mailbox; the STDIO
// transport falls back to the default account.
package resources
