// Package gmail provides the mailbox client for the classification pipeline.
//
// This package offers the Gmail operations the pipeline needs:
//   - Listing unread messages with subject and snippet populated
//   - Label management (list, get-or-create by name)
//   - Applying and removing labels on messages
//   - Message body extraction for text and HTML parts
//
// The client supports multi-account authentication using the Google OAuth2
// flow. Errors from the Gmail API are mapped to the pipeline fault taxonomy:
// credential failures surface as AuthError, everything else as ProviderError.
//
// Authentication:
// This package uses the unified Google OAuth token from the google package.
// For HTTP transports: OAuth is handled by the MCP client through a token
// provider. For STDIO and CLI usage: tokens are loaded from the file system
// (~/.cache/mailsort/).
//
// Example usage:
//
//	ctx := context.Background()
//	client, err := gmail.NewClient(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// List unread messages
//	messages, err := client.ListUnread(ctx, 10)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Apply a label, creating it if needed
//	labelID, err := client.EnsureLabel(ctx, "Work")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := client.ApplyLabel(ctx, messages[0].ID, labelID); err != nil {
//	    log.Fatal(err)
//	}
package gmail
