package oauth

// GoogleUserInfo is the decoded answer of Google's userinfo endpoint. Email
// is what mailsort uses as the account key for tokens and Gmail clients.
type GoogleUserInfo struct {
	// Sub is the stable Google account ID
	Sub string `json:"sub"`

	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

// ErrorResponse is the JSON body of an OAuth error answer
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
	ErrorURI         string `json:"error_uri,omitempty"`
}
