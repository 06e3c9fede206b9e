package oauth

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"

	"github.com/giantswarm/mcp-oauth/storage"
)

// TokenProvider implements the google.TokenProvider interface using the
// mcp-oauth library's storage. It bridges the library's token store with the
// Gmail clients that need per-account token access.
type TokenProvider struct {
	store storage.TokenStore
}

// NewTokenProvider creates a new token provider from an mcp-oauth TokenStore.
func NewTokenProvider(store storage.TokenStore) *TokenProvider {
	return &TokenProvider{
		store: store,
	}
}

// GetTokenForAccount retrieves a Google OAuth token for the specified account.
// If an authenticated user is present in the context (set by the token
// validation middleware), their email takes precedence over the account name.
// This lets HTTP clients address the "default" account and still reach their
// own mailbox.
func (p *TokenProvider) GetTokenForAccount(ctx context.Context, account string) (*oauth2.Token, error) {
	if userInfo, ok := GetUserFromContext(ctx); ok && userInfo != nil && userInfo.Email != "" {
		if token, err := p.store.GetToken(ctx, userInfo.Email); err == nil {
			return token, nil
		}
		// Token not found by email, fall through to the account name.
	}

	token, err := p.store.GetToken(ctx, account)
	if err != nil {
		return nil, fmt.Errorf("no Google OAuth token found for account %s. Please authenticate with Google through your MCP client", account)
	}
	return token, nil
}

// HasTokenForAccount checks if a token exists for the specified account.
// This implements the google.TokenProvider interface.
func (p *TokenProvider) HasTokenForAccount(account string) bool {
	_, err := p.store.GetToken(context.Background(), account)
	return err == nil
}

// GetToken retrieves the stored Google OAuth token for the given user ID.
func (p *TokenProvider) GetToken(ctx context.Context, userID string) (*oauth2.Token, error) {
	return p.store.GetToken(ctx, userID)
}

// SaveToken saves a Google OAuth token for the given user ID.
// This is used when tokens are validated on the HTTP transport or refreshed.
func (p *TokenProvider) SaveToken(ctx context.Context, userID string, token *oauth2.Token) error {
	return p.store.SaveToken(ctx, userID, token)
}
