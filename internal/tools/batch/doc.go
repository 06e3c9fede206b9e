// Package batch provides helpers for MCP tools that operate on several
// message IDs in one call.
//
// Tool arguments that name messages accept a single ID, an array of IDs, or
// a JSON-encoded array passed as a string. Each ID is processed
// independently and reported with its own success or error entry, so one
// failing message never hides what happened to the rest.
package batch
