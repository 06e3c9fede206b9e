package google

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
)

// TokenProvider resolves the OAuth token behind an account name. The stdio
// transport reads tokens saved by `mailsort auth`; the HTTP transport hands
// out tokens captured by its own OAuth flow.
type TokenProvider interface {
	// GetTokenForAccount returns a live token for the account, refreshing
	// it when necessary.
	GetTokenForAccount(ctx context.Context, account string) (*oauth2.Token, error)

	// HasTokenForAccount reports whether the account has a stored token.
	HasTokenForAccount(account string) bool
}

// FileTokenProvider serves tokens saved to disk by `mailsort auth`
type FileTokenProvider struct{}

// NewFileTokenProvider creates a token provider backed by the token files
// under the user config directory
func NewFileTokenProvider() *FileTokenProvider {
	return &FileTokenProvider{}
}

// GetTokenForAccount loads the account's token file and refreshes the token
// if it has expired
func (p *FileTokenProvider) GetTokenForAccount(ctx context.Context, account string) (*oauth2.Token, error) {
	ts, err := GetTokenSourceForAccount(ctx, account)
	if err != nil {
		return nil, err
	}
	token, err := ts.Token()
	if err != nil {
		return nil, fmt.Errorf("failed to read token for account %s: %w", account, err)
	}
	return token, nil
}

// HasTokenForAccount reports whether a token file exists for the account
func (p *FileTokenProvider) HasTokenForAccount(account string) bool {
	return HasTokenForAccount(account)
}
