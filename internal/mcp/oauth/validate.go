package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/giantswarm/mcp-oauth/storage"

	"github.com/mlindner/mailsort/internal/logging"
)

// contextKey is the type for context keys
type contextKey string

const (
	// userContextKey is the key for storing the user info in the request context
	userContextKey contextKey = "oauth_user"

	// tokenContextKey is the key for storing the Google token in the request context
	tokenContextKey contextKey = "google_token"
)

// googleUserinfoEndpoint is where Bearer tokens presented on the HTTP
// transport are validated.
const googleUserinfoEndpoint = "https://www.googleapis.com/oauth2/v2/userinfo"

// userCacheTTL bounds how long a validated token is trusted before the
// userinfo endpoint is consulted again.
const userCacheTTL = 5 * time.Minute

// ValidatorConfig holds the token validator configuration
type ValidatorConfig struct {
	// Resource is the server's resource identifier, reported in
	// WWW-Authenticate challenges
	Resource string

	// Store receives validated Google tokens keyed by the user's email so
	// Gmail clients can look them up by account
	Store storage.TokenStore

	// UserinfoEndpoint overrides Google's userinfo URL. Tests point this at
	// a local server.
	UserinfoEndpoint string

	// Logger for structured logging (optional, uses default if not provided)
	Logger *slog.Logger
}

// Validator authenticates HTTP requests against Google. Each Bearer token is
// checked with the userinfo endpoint, cached briefly, and saved to the token
// store under the user's email.
type Validator struct {
	resource string
	store    storage.TokenStore
	endpoint string
	logger   logging.Logger

	mu    sync.Mutex
	users map[string]cachedUser
}

type cachedUser struct {
	info    *GoogleUserInfo
	expires time.Time
}

// NewValidator creates a new token validator
func NewValidator(config ValidatorConfig) (*Validator, error) {
	if config.Resource == "" {
		return nil, fmt.Errorf("resource is required")
	}
	if config.Store == nil {
		return nil, fmt.Errorf("token store is required")
	}

	endpoint := config.UserinfoEndpoint
	if endpoint == "" {
		endpoint = googleUserinfoEndpoint
	}

	return &Validator{
		resource: config.Resource,
		store:    config.Store,
		endpoint: endpoint,
		logger:   logging.NewSlogAdapter(config.Logger),
		users:    make(map[string]cachedUser),
	}, nil
}

// ValidateGoogleToken is middleware that validates Google OAuth tokens.
// It validates the token with Google's userinfo endpoint and stores the user
// info in the request context.
func (v *Validator) ValidateGoogleToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			w.Header().Set("WWW-Authenticate", fmt.Sprintf(`Bearer realm=%q`, v.resource))
			v.writeUnauthorizedError(w, "missing_token", "Missing Authorization header")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			w.Header().Set("WWW-Authenticate", fmt.Sprintf(
				`Bearer realm=%q, error="invalid_token", error_description="Invalid Authorization header format"`,
				v.resource,
			))
			v.writeUnauthorizedError(w, "invalid_token", "Invalid Authorization header format")
			return
		}

		token := &oauth2.Token{
			AccessToken: parts[1],
			TokenType:   "Bearer",
		}

		userInfo, err := v.lookupUser(r.Context(), token)
		if err != nil {
			errorDesc := actionableAuthError(err)
			w.Header().Set("WWW-Authenticate", fmt.Sprintf(
				`Bearer realm=%q, error="invalid_token", error_description=%q`,
				v.resource, errorDesc,
			))
			v.writeUnauthorizedError(w, "invalid_token", errorDesc)
			return
		}

		ctx := context.WithValue(r.Context(), userContextKey, userInfo)
		ctx = context.WithValue(ctx, tokenContextKey, token)

		// Save the token under the user's email so Gmail clients can address
		// it as an account.
		if err := v.store.SaveToken(ctx, userInfo.Email, token); err != nil {
			v.logger.Warn("Failed to save Google token",
				logging.UserHash(userInfo.Email),
				logging.Err(err),
			)
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// lookupUser resolves the user behind an access token, consulting the cache
// before calling Google.
func (v *Validator) lookupUser(ctx context.Context, token *oauth2.Token) (*GoogleUserInfo, error) {
	v.mu.Lock()
	cached, ok := v.users[token.AccessToken]
	v.mu.Unlock()
	if ok && time.Now().Before(cached.expires) {
		return cached.info, nil
	}

	userInfo, err := v.fetchUserInfo(ctx, token)
	if err != nil {
		return nil, err
	}

	v.mu.Lock()
	v.users[token.AccessToken] = cachedUser{
		info:    userInfo,
		expires: time.Now().Add(userCacheTTL),
	}
	// Drop stale entries while we hold the lock. Tokens expire upstream, so
	// the map stays small without a background janitor.
	for key, entry := range v.users {
		if time.Now().After(entry.expires) {
			delete(v.users, key)
		}
	}
	v.mu.Unlock()

	return userInfo, nil
}

// fetchUserInfo validates a token by calling Google's userinfo endpoint
func (v *Validator) fetchUserInfo(ctx context.Context, token *oauth2.Token) (*GoogleUserInfo, error) {
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(token))

	resp, err := client.Get(v.endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to get user info: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("userinfo request failed with status %d", resp.StatusCode)
	}

	var userInfo GoogleUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&userInfo); err != nil {
		return nil, fmt.Errorf("failed to decode user info: %w", err)
	}

	return &userInfo, nil
}

func (v *Validator) writeUnauthorizedError(w http.ResponseWriter, errorCode, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:            errorCode,
		ErrorDescription: description,
	})
}

// GetUserFromContext retrieves the Google user info from the request context
func GetUserFromContext(ctx context.Context) (*GoogleUserInfo, bool) {
	userInfo, ok := ctx.Value(userContextKey).(*GoogleUserInfo)
	return userInfo, ok
}

// GetGoogleTokenFromContext retrieves the Google token from the request context
func GetGoogleTokenFromContext(ctx context.Context) (*oauth2.Token, bool) {
	token, ok := ctx.Value(tokenContextKey).(*oauth2.Token)
	return token, ok
}

// ContextWithUser stores the Google user info in the context. Exposed for
// transports that authenticate outside the HTTP middleware.
func ContextWithUser(ctx context.Context, userInfo *GoogleUserInfo) context.Context {
	return context.WithValue(ctx, userContextKey, userInfo)
}

// actionableAuthError converts technical errors into user-friendly, actionable messages
func actionableAuthError(err error) string {
	errStr := err.Error()

	if strings.Contains(errStr, "401") || strings.Contains(errStr, "Unauthorized") {
		return "Google token is invalid or expired. Please re-authenticate through your MCP client to continue."
	}

	if strings.Contains(errStr, "403") || strings.Contains(errStr, "Forbidden") {
		return "Access denied by Google. Please ensure your token has the required scopes and re-authenticate through your MCP client."
	}

	if strings.Contains(errStr, "network") || strings.Contains(errStr, "connection") ||
		strings.Contains(errStr, "timeout") || strings.Contains(errStr, "dial") {
		return "Unable to verify token with Google due to network issues. Please try again in a moment."
	}

	if strings.Contains(errStr, "429") || strings.Contains(errStr, "rate limit") {
		return "Google API rate limit exceeded. Please wait a moment and try again."
	}

	return fmt.Sprintf("Token validation failed: %v. Please re-authenticate through your MCP client.", err)
}
