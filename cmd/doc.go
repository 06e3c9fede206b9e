// Package cmd implements the command-line interface for mailsort.
//
// This package provides the following commands:
//   - organize: Classify unread Gmail messages and label them by category
//   - auth: Authorize mailsort to access a Gmail account
//   - web: Start the local web interface for browsing and triggering runs
//   - serve: Start the MCP server to provide tools for AI assistants
//   - version: Display version information
//
// The organize command is the default command when no subcommand is specified.
package cmd
