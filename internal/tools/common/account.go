package common

import (
	"context"

	"github.com/mlindner/mailsort/internal/mcp/oauth"
)

// DefaultAccount is the token name used when a call names no account.
const DefaultAccount = "default"

// GetAccountFromArgs resolves the token account a tool call acts on. The
// OAuth identity from the request context takes precedence over the
// "account" argument; unauthenticated callers fall back to the argument
// and then to DefaultAccount.
func GetAccountFromArgs(ctx context.Context, args map[string]any) string {
	if user, ok := oauth.GetUserFromContext(ctx); ok && user != nil && user.Email != "" {
		return user.Email
	}

	if account, ok := args["account"].(string); ok && account != "" {
		return account
	}
	return DefaultAccount
}
