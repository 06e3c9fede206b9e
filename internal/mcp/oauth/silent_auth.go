package oauth

import (
	oauth "github.com/giantswarm/mcp-oauth"
)

// SilentAuthError is returned when the IdP cannot complete authorization
// without user interaction (login_required, consent_required and friends,
// per OIDC Core section 3.1.2.6). Callers fall back to an interactive flow
// when they see one.
type SilentAuthError = oauth.SilentAuthError

// CallbackResult holds the query parameters of an OAuth redirect. A success
// carries Code and State; a failure carries Error, ErrorDescription and
// optionally ErrorURI. Err() turns an error response into a typed error.
type CallbackResult = oauth.CallbackResult

// ParseCallbackQuery builds a CallbackResult from the query parameters of an
// OAuth redirect URL. The auth command uses it to pull the authorization
// code out of a redirect URL pasted from the browser.
func ParseCallbackQuery(code, state, errorCode, errorDescription, errorURI string) *CallbackResult {
	return oauth.ParseCallbackQuery(code, state, errorCode, errorDescription, errorURI)
}

// IsSilentAuthError reports whether err means authorization needs user
// interaction. It matches both the *SilentAuthError type, wrapped or not,
// and the known error code strings inside plain error messages.
func IsSilentAuthError(err error) bool {
	return oauth.IsSilentAuthError(err)
}
