package google

// DefaultOAuthScopes are the Google OAuth scopes the application requests,
// shared by the CLI auth flow and the HTTP server's OAuth handler.
//
// Gmail modify covers adding and removing message labels; the labels scope
// covers creating the category labels themselves. The OpenID Connect scopes
// identify which user a stored token belongs to.
var DefaultOAuthScopes = []string{
	// OpenID Connect
	"openid",
	"https://www.googleapis.com/auth/userinfo.email",

	// Gmail
	"https://www.googleapis.com/auth/gmail.readonly",
	"https://www.googleapis.com/auth/gmail.modify",
	"https://www.googleapis.com/auth/gmail.labels",
}
