// Package google_tools registers the MCP tools for the Google OAuth
// bootstrap flow.
//
// A client that has no stored Gmail token calls google_get_auth_url,
// sends the user to the returned URL, and passes the authorization code
// back through google_save_auth_code. The saved per-account token file
// is the same one the mailsort auth command writes, so the organize and
// listing tools pick it up immediately and refresh it as needed.
//
// Both tools take an optional account argument for keeping several
// mailboxes authorized side by side.
package google_tools
