package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/mlindner/mailsort/internal/classify"
	"github.com/mlindner/mailsort/internal/instrumentation"
	"github.com/mlindner/mailsort/internal/logging"
	"github.com/mlindner/mailsort/internal/mcp/oauth"
	"github.com/mlindner/mailsort/internal/resources"
	"github.com/mlindner/mailsort/internal/server"
	"github.com/mlindner/mailsort/internal/tools/google_tools"
	"github.com/mlindner/mailsort/internal/tools/organize_tools"
)

// HTTPTransportConfig holds settings specific to the streamable HTTP transport
type HTTPTransportConfig struct {
	// BaseURL is the externally visible base URL of the server
	BaseURL string

	// DisableStreaming turns off SSE streaming upgrades on /mcp
	DisableStreaming bool

	// RateLimitRate is requests per second allowed per IP (0 disables limiting)
	RateLimitRate int

	// RateLimitBurst is the maximum burst size allowed per IP
	RateLimitBurst int

	// TrustProxy trusts X-Forwarded-For headers for rate limiting.
	// Only enable behind a trusted reverse proxy.
	TrustProxy bool

	// TLS/HTTPS support
	TLSCertFile string
	TLSKeyFile  string
}

// MetricsConfig holds the settings for the dedicated metrics listener
type MetricsConfig struct {
	// Enabled determines whether to start the metrics server (default: true)
	Enabled bool

	// Addr is the listen address, e.g. ":9090"
	Addr string

	// Endpoint is the scrape path served on Addr
	Endpoint string
}

func newServeCmd() *cobra.Command {
	var (
		debugMode        bool
		transport        string
		httpAddr         string
		yolo             bool
		disableStreaming bool
		baseURL          string
		rateLimitRate    int
		rateLimitBurst   int
		trustProxy       bool
		tlsCertFile      string
		tlsKeyFile       string
		metricsEnabled   bool
		metricsAddr      string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server",
		Long: `Start the Model Context Protocol (MCP) server to provide inbox
classification tools for AI assistants.

Supports multiple transport types:
  - stdio: Standard input/output (default)
  - streamable-http: Streamable HTTP transport

Safety Mode:
  By default, the server operates in read-only mode, providing only safe
  operations. Use --yolo to enable write operations (labeling messages).

OAuth Configuration:
  HTTP Transport:
    Base URL (required for deployed instances):
      --base-url https://your-domain.com OR MCP_BASE_URL env var
      Auto-detected for localhost (development only)

    Clients authenticate with a Google access token. Tokens are validated
    against Google's userinfo endpoint and cached for the session.

  STDIO Transport:
    Uses the token files created by 'mailsort auth'.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if tlsCertFile == "" {
				tlsCertFile = os.Getenv("TLS_CERT_FILE")
			}
			if tlsKeyFile == "" {
				tlsKeyFile = os.Getenv("TLS_KEY_FILE")
			}

			httpConfig := HTTPTransportConfig{
				BaseURL:          baseURL,
				DisableStreaming: disableStreaming,
				RateLimitRate:    rateLimitRate,
				RateLimitBurst:   rateLimitBurst,
				TrustProxy:       trustProxy,
				TLSCertFile:      tlsCertFile,
				TLSKeyFile:       tlsKeyFile,
			}

			metricsConfig := MetricsConfig{
				Enabled: metricsEnabled,
				Addr:    metricsAddr,
			}

			return runServe(transport, debugMode, httpAddr, yolo, httpConfig, metricsConfig)
		},
	}

	cmd.Flags().BoolVar(&debugMode, "debug", false, "Enable debug logging")
	cmd.Flags().StringVar(&transport, "transport", "stdio", "Transport type: stdio or streamable-http")
	cmd.Flags().StringVar(&httpAddr, "http-addr", ":8080", "HTTP server address (for streamable-http transport)")
	cmd.Flags().BoolVar(&yolo, "yolo", false, "Enable write operations (labeling messages). Default is read-only mode.")
	cmd.Flags().BoolVar(&disableStreaming, "disable-streaming", false, "Disable streaming for HTTP transport (for compatibility with certain clients)")
	cmd.Flags().StringVar(&baseURL, "base-url", "", "Public base URL for OAuth (HTTP transport only). Required for deployed instances. Can also use MCP_BASE_URL env var. Example: https://mcp.example.com")
	cmd.Flags().IntVar(&rateLimitRate, "rate-limit", 10, "Requests per second allowed per client IP on the HTTP transport (0 disables limiting)")
	cmd.Flags().IntVar(&rateLimitBurst, "rate-limit-burst", 20, "Maximum request burst allowed per client IP on the HTTP transport")
	cmd.Flags().BoolVar(&trustProxy, "trust-proxy", false, "Trust X-Forwarded-For headers for rate limiting. Only enable behind a trusted reverse proxy.")
	cmd.Flags().StringVar(&tlsCertFile, "tls-cert-file", "", "Path to TLS certificate file (PEM format). If provided with --tls-key-file, enables HTTPS. Can also use TLS_CERT_FILE env var.")
	cmd.Flags().StringVar(&tlsKeyFile, "tls-key-file", "", "Path to TLS private key file (PEM format). If provided with --tls-cert-file, enables HTTPS. Can also use TLS_KEY_FILE env var.")
	cmd.Flags().BoolVar(&metricsEnabled, "metrics-enabled", true, "Enable the metrics server on a dedicated port. Can also use METRICS_ENABLED env var.")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", server.DefaultMetricsAddr, "Metrics server address. Can also use METRICS_ADDR env var.")

	return cmd
}

func runServe(transport string, debugMode bool, httpAddr string, yolo bool, httpConfig HTTPTransportConfig, metricsConfig MetricsConfig) error {
	shutdownCtx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if debugMode {
		logging.SetLevel(slog.LevelDebug)
	}

	// Environment overrides for deployments that cannot pass flags
	if !metricsConfig.Enabled && os.Getenv("METRICS_ENABLED") == "true" {
		metricsConfig.Enabled = true
	}
	if metricsConfig.Addr == "" || metricsConfig.Addr == server.DefaultMetricsAddr {
		if addr := os.Getenv("METRICS_ADDR"); addr != "" {
			metricsConfig.Addr = addr
		}
	}

	instrConfig := instrumentation.DefaultConfig()
	instrConfig.ServiceVersion = version
	metricsConfig.Endpoint = instrConfig.PrometheusEndpoint

	provider, err := instrumentation.NewProvider(shutdownCtx, instrConfig)
	if err != nil {
		return fmt.Errorf("failed to create instrumentation provider: %w", err)
	}
	defer func() {
		if err := provider.Shutdown(shutdownCtx); err != nil && transport != "stdio" {
			slog.Error("instrumentation shutdown failed", logging.Err(err))
		}
	}()

	// No metrics listener for the stdio transport.
	var metricsServer *server.MetricsServer
	if transport != "stdio" && metricsConfig.Enabled && provider.Enabled() {
		metricsServer, err = startMetricsServer(metricsConfig, provider)
		if err != nil {
			return err
		}
	}

	// The classifier is optional at startup. Without OPENAI_API_KEY the
	// server still serves listing tools; classification tools return errors.
	classifier, err := newClassifier()
	if err != nil {
		return fmt.Errorf("failed to create classifier: %w", err)
	}
	if classifier == nil && transport != "stdio" {
		slog.Warn("OPENAI_API_KEY not set; classification tools will be unavailable")
	}

	runCfg, err := runConfigFromViper()
	if err != nil {
		return err
	}

	serverContext, err := server.NewServerContext(shutdownCtx, classifier, runCfg)
	if err != nil {
		return fmt.Errorf("failed to create server context: %w", err)
	}
	if provider.Enabled() {
		serverContext.SetMetrics(provider.Metrics())
		serverContext.SetAuditLogger(instrumentation.NewAuditLoggerWithConfig(nil, instrConfig.AuditLogging))
	}
	defer func() {
		if err := serverContext.Shutdown(); err != nil && transport != "stdio" {
			slog.Error("server context shutdown failed", logging.Err(err))
		}
	}()
	defer stopMetricsServer(metricsServer)

	serverOpts := []mcpserver.ServerOption{
		mcpserver.WithToolCapabilities(true),
		mcpserver.WithResourceCapabilities(false, false), // no subscribe, no listChanged
	}
	if provider.Enabled() {
		serverOpts = append(serverOpts, mcpserver.WithHooks(sessionGaugeHooks(provider.Metrics())))
	}
	mcpSrv := mcpserver.NewMCPServer("mailsort", version, serverOpts...)

	readOnly := !yolo
	if transport != "stdio" {
		if readOnly {
			slog.Info("starting in read-only mode, use --yolo to enable write operations")
		} else {
			slog.Info("write operations enabled")
		}
	}

	if err := registerAllTools(mcpSrv, serverContext, readOnly); err != nil {
		return err
	}

	switch transport {
	case "stdio":
		return runStdioServer(mcpSrv)
	case "streamable-http":
		return runStreamableHTTPServer(shutdownCtx, mcpSrv, serverContext, httpServeOptions{
			addr:       httpAddr,
			readOnly:   readOnly,
			classifier: classifier,
			runCfg:     runCfg,
			transport:  httpConfig,
			metrics:    metricsConfig,
			provider:   provider,
		})
	default:
		return fmt.Errorf("unsupported transport type: %s (supported: stdio, streamable-http)", transport)
	}
}

func runStdioServer(mcpSrv *mcpserver.MCPServer) error {
	if err := mcpserver.ServeStdio(mcpSrv); err != nil {
		return fmt.Errorf("server stopped with error: %w", err)
	}
	return nil
}

// sessionGaugeHooks tracks connected MCP clients in the active session gauge.
func sessionGaugeHooks(m *instrumentation.Metrics) *mcpserver.Hooks {
	hooks := &mcpserver.Hooks{}
	hooks.AddOnRegisterSession(func(ctx context.Context, session mcpserver.ClientSession) {
		m.IncrementActiveSessions(ctx)
	})
	hooks.AddOnUnregisterSession(func(ctx context.Context, session mcpserver.ClientSession) {
		m.DecrementActiveSessions(ctx)
	})
	return hooks
}

// registerAllTools registers the MCP tools and resources on the server. It
// runs once for stdio and again when the HTTP transport rebuilds the server
// context around its OAuth token store.
func registerAllTools(mcpSrv *mcpserver.MCPServer, sc *server.ServerContext, readOnly bool) error {
	if err := organize_tools.RegisterOrganizeTools(mcpSrv, sc, readOnly); err != nil {
		return fmt.Errorf("failed to register organize tools: %w", err)
	}
	if err := google_tools.RegisterGoogleTools(mcpSrv, sc); err != nil {
		return fmt.Errorf("failed to register auth tools: %w", err)
	}
	if err := resources.RegisterUserResources(mcpSrv, sc); err != nil {
		return fmt.Errorf("failed to register user resources: %w", err)
	}
	return nil
}

// startMetricsServer brings up the Prometheus listener and blocks until it
// accepts connections, bounded by a timeout.
func startMetricsServer(cfg MetricsConfig, provider *instrumentation.Provider) (*server.MetricsServer, error) {
	metricsServer, err := server.NewMetricsServer(server.MetricsServerConfig{
		Addr:                    cfg.Addr,
		Endpoint:                cfg.Endpoint,
		InstrumentationProvider: provider,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics server: %w", err)
	}

	ready := make(chan struct{})
	failed := make(chan error, 1)
	go func() {
		if err := metricsServer.StartWithReadySignal(ready); err != nil && err != http.ErrServerClosed {
			failed <- err
		}
		close(failed)
	}()

	select {
	case <-ready:
		slog.Info("metrics server started", "addr", metricsServer.Addr())
		return metricsServer, nil
	case err := <-failed:
		return nil, fmt.Errorf("metrics server failed to start: %w", err)
	case <-time.After(5 * time.Second):
		return nil, fmt.Errorf("metrics server startup timed out")
	}
}

// stopMetricsServer shuts the metrics listener down with a bounded wait.
// A nil server is fine, so callers can defer this unconditionally.
func stopMetricsServer(metricsServer *server.MetricsServer) {
	if metricsServer == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := metricsServer.Shutdown(ctx); err != nil {
		slog.Error("metrics server shutdown failed", logging.Err(err))
	}
}

// resolveBaseURL picks the externally visible URL advertised in the OAuth
// metadata. An explicit flag wins over MCP_BASE_URL; with neither set the
// listen address is assumed to be reachable directly, which only holds in
// local development.
func resolveBaseURL(configured, addr string) string {
	if configured == "" {
		configured = os.Getenv("MCP_BASE_URL")
	}
	if configured != "" {
		slog.Info("using configured base URL", "base_url", configured)
		return configured
	}

	baseURL := "http://" + addr
	if strings.HasPrefix(addr, ":") {
		baseURL = "http://localhost" + addr
	}
	slog.Info("no base URL configured, derived one from the listen address",
		"base_url", baseURL)
	return baseURL
}

type httpServeOptions struct {
	addr       string
	readOnly   bool
	classifier *classify.Client
	runCfg     server.RunConfig
	transport  HTTPTransportConfig
	metrics    MetricsConfig
	provider   *instrumentation.Provider
}

func runStreamableHTTPServer(ctx context.Context, mcpSrv *mcpserver.MCPServer, bootstrapContext *server.ServerContext, opts httpServeOptions) error {
	baseURL := resolveBaseURL(opts.transport.BaseURL, opts.addr)

	oauthConfig := server.DefaultOAuthConfig(baseURL)
	oauthConfig.RateLimitRate = opts.transport.RateLimitRate
	oauthConfig.RateLimitBurst = opts.transport.RateLimitBurst
	oauthConfig.TrustProxy = opts.transport.TrustProxy
	oauthConfig.Logger = slog.Default()

	oauthServer, err := server.NewOAuthHTTPServer(mcpSrv, "streamable-http", oauthConfig)
	if err != nil {
		return fmt.Errorf("failed to create OAuth HTTP server: %w", err)
	}
	oauthServer.SetDisableStreaming(opts.transport.DisableStreaming)
	if opts.transport.TLSCertFile != "" && opts.transport.TLSKeyFile != "" {
		oauthServer.SetTLS(opts.transport.TLSCertFile, opts.transport.TLSKeyFile)
	}

	// Gmail access on this transport uses tokens from the server's own OAuth
	// flow, so the bootstrap context and its file-token clients are replaced.
	tokenProvider := oauth.NewTokenProvider(oauthServer.Store())
	if err := bootstrapContext.Shutdown(); err != nil {
		slog.Warn("failed to shutdown bootstrap server context", logging.Err(err))
	}

	serverContext, err := server.NewServerContextWithProvider(ctx, opts.classifier, opts.runCfg, tokenProvider)
	if err != nil {
		return fmt.Errorf("failed to create server context with OAuth token provider: %w", err)
	}
	defer func() {
		if err := serverContext.Shutdown(); err != nil {
			slog.Error("server context shutdown failed", logging.Err(err))
		}
	}()

	if opts.provider.Enabled() {
		serverContext.SetMetrics(opts.provider.Metrics())
		serverContext.SetAuditLogger(instrumentation.NewAuditLoggerWithConfig(nil, instrumentation.AuditLoggingConfig{
			Enabled:    true,
			IncludePII: os.Getenv("AUDIT_LOGGING_INCLUDE_PII") == "true",
		}))
		oauthServer.SetMetrics(opts.provider.Metrics())
	}

	// The tools registered during bootstrap close over the old context;
	// register again so the handlers see the OAuth-backed one.
	if err := registerAllTools(mcpSrv, serverContext, opts.readOnly); err != nil {
		return err
	}

	oauthServer.SetHealthChecker(server.NewHealthChecker(serverContext))

	fmt.Printf("Streamable HTTP server with Google OAuth authentication starting on %s\n", opts.addr)
	fmt.Printf("  MCP endpoint: /mcp\n")
	fmt.Printf("  Health endpoints: /healthz, /readyz\n")
	if opts.metrics.Enabled {
		fmt.Printf("  Metrics endpoint: %s%s\n", opts.metrics.Addr, opts.metrics.Endpoint)
	}
	fmt.Println("\nClients must authenticate with a Google access token to use this server.")

	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := oauthServer.Start(opts.addr); err != nil && err != http.ErrServerClosed {
			serverDone <- err
		}
	}()

	select {
	case <-ctx.Done():
		fmt.Println("Shutdown signal received, stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
		defer cancel()
		if err := oauthServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("error shutting down HTTP server: %w", err)
		}
	case err := <-serverDone:
		if err != nil {
			return fmt.Errorf("HTTP server stopped with error: %w", err)
		}
	}

	fmt.Println("HTTP server stopped")
	return nil
}
