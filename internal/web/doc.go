// Package web serves the HTML front-end for the classification pipeline:
// a run form with the most recent report, the label catalog, per-label
// message listings and a message view with a deep link into Gmail. It
// drives the same trigger surface as the MCP tools, so a run started here
// and a run started over MCP exclude each other; a busy trigger answers
// 409.
package web
