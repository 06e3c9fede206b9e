package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/giantswarm/mcp-oauth/storage"
	"github.com/giantswarm/mcp-oauth/storage/memory"

	"github.com/mlindner/mailsort/internal/instrumentation"
	"github.com/mlindner/mailsort/internal/mcp/oauth"
)

// OAuthConfig holds configuration for the OAuth-protected HTTP transport
type OAuthConfig struct {
	// BaseURL is the externally visible base URL of the server
	BaseURL string

	// RateLimitRate is requests per second allowed per IP (0 disables limiting)
	RateLimitRate int

	// RateLimitBurst is the maximum burst size allowed per IP
	RateLimitBurst int

	// TrustProxy trusts X-Forwarded-For and X-Real-IP headers.
	// Only enable behind a trusted reverse proxy.
	TrustProxy bool

	// UserinfoEndpoint overrides Google's userinfo URL. Tests point this at
	// a local server.
	UserinfoEndpoint string

	// Logger for structured logging (optional, uses default if not provided)
	Logger *slog.Logger
}

// DefaultOAuthConfig returns a config with secure defaults for the given base URL
func DefaultOAuthConfig(baseURL string) OAuthConfig {
	return OAuthConfig{
		BaseURL:        baseURL,
		RateLimitRate:  10, // 10 requests per second per IP
		RateLimitBurst: 20, // Allow burst of 20 requests
	}
}

// OAuthHTTPServer wraps an MCP server with Google token validation on the
// streamable HTTP transport. Validated tokens land in the token store, where
// a TokenProvider built from it makes them available to Gmail clients.
type OAuthHTTPServer struct {
	mcpServer        *mcpserver.MCPServer
	serverType       string
	store            storage.TokenStore
	validator        *oauth.Validator
	rateLimiter      *oauth.RateLimiter
	httpServer       *http.Server
	healthChecker    *HealthChecker
	metrics          *instrumentation.Metrics
	tlsCertFile      string
	tlsKeyFile       string
	disableStreaming bool
}

// NewOAuthHTTPServer creates an OAuth-protected HTTP server for the MCP server
func NewOAuthHTTPServer(mcpServer *mcpserver.MCPServer, serverType string, config OAuthConfig) (*OAuthHTTPServer, error) {
	if err := validateHTTPSRequirement(config.BaseURL); err != nil {
		return nil, err
	}

	store := memory.New()

	validator, err := oauth.NewValidator(oauth.ValidatorConfig{
		Resource:         config.BaseURL,
		Store:            store,
		UserinfoEndpoint: config.UserinfoEndpoint,
		Logger:           config.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create token validator: %w", err)
	}

	var rateLimiter *oauth.RateLimiter
	if config.RateLimitRate > 0 {
		rateLimiter = oauth.NewRateLimiter(config.RateLimitRate, config.RateLimitBurst, config.TrustProxy)
	}

	return &OAuthHTTPServer{
		mcpServer:   mcpServer,
		serverType:  serverType,
		store:       store,
		validator:   validator,
		rateLimiter: rateLimiter,
	}, nil
}

// Store returns the token store backing the HTTP transport
func (s *OAuthHTTPServer) Store() storage.TokenStore {
	return s.store
}

// SetHealthChecker registers health endpoints on the transport listener
func (s *OAuthHTTPServer) SetHealthChecker(healthChecker *HealthChecker) {
	s.healthChecker = healthChecker
}

// SetMetrics enables HTTP request metrics on the transport
func (s *OAuthHTTPServer) SetMetrics(metrics *instrumentation.Metrics) {
	s.metrics = metrics
}

// SetTLS configures certificate files for HTTPS serving
func (s *OAuthHTTPServer) SetTLS(certFile, keyFile string) {
	s.tlsCertFile = certFile
	s.tlsKeyFile = keyFile
}

// SetDisableStreaming turns off SSE streaming upgrades on the /mcp endpoint
func (s *OAuthHTTPServer) SetDisableStreaming(disable bool) {
	s.disableStreaming = disable
}

// Start starts the HTTP server on the given address
func (s *OAuthHTTPServer) Start(addr string) error {
	mux := http.NewServeMux()

	if s.healthChecker != nil {
		s.healthChecker.RegisterHealthEndpoints(mux)
	}

	switch s.serverType {
	case "streamable-http":
		opts := []mcpserver.StreamableHTTPOption{
			mcpserver.WithEndpointPath("/mcp"),
		}
		if s.disableStreaming {
			opts = append(opts, mcpserver.WithDisableStreaming(true))
		}
		streamable := mcpserver.NewStreamableHTTPServer(s.mcpServer, opts...)

		mux.Handle("/mcp", s.rateLimiter.Middleware(s.validator.ValidateGoogleToken(streamable)))
	default:
		return fmt.Errorf("unsupported server type for OAuth HTTP server: %s (use streamable-http)", s.serverType)
	}

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.instrumentationMiddleware(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	if s.tlsCertFile != "" && s.tlsKeyFile != "" {
		return s.httpServer.ListenAndServeTLS(s.tlsCertFile, s.tlsKeyFile)
	}
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server
func (s *OAuthHTTPServer) Shutdown(ctx context.Context) error {
	if stopper, ok := s.store.(interface{ Stop() }); ok {
		stopper.Stop()
	}

	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// responseWriter captures the response status code for instrumentation
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func newResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Flush forwards to the underlying writer so SSE streaming keeps working
func (rw *responseWriter) Flush() {
	if flusher, ok := rw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// instrumentationMiddleware records request metrics when metrics are configured
func (s *OAuthHTTPServer) instrumentationMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.metrics == nil {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		rw := newResponseWriter(w)
		next.ServeHTTP(rw, r)

		s.metrics.RecordHTTPRequest(r.Context(), r.Method, r.URL.Path, rw.statusCode, time.Since(start))
	})
}

// validateHTTPSRequirement ensures OAuth 2.1 HTTPS compliance
// Allows HTTP only for loopback addresses (localhost, 127.0.0.1, ::1)
func validateHTTPSRequirement(baseURL string) error {
	if baseURL == "" {
		return fmt.Errorf("base URL cannot be empty")
	}

	// Parse URL to properly validate scheme and host
	u, err := url.Parse(baseURL)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}

	// Allow HTTP only for loopback addresses
	if u.Scheme == "http" {
		host := u.Hostname()
		if host != "localhost" && host != "127.0.0.1" && host != "::1" {
			return fmt.Errorf("OAuth 2.1 requires HTTPS for production (got: %s). Use HTTPS or localhost for development", baseURL)
		}
	} else if u.Scheme != "https" {
		return fmt.Errorf("invalid URL scheme: %s. Must be http (localhost only) or https", u.Scheme)
	}

	return nil
}
