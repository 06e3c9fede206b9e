package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mlindner/mailsort/internal/instrumentation"
)

const (
	// DefaultMetricsAddr is the dedicated listen address for Prometheus scrapes.
	DefaultMetricsAddr = ":9090"

	DefaultMetricsReadTimeout  = 10 * time.Second
	DefaultMetricsWriteTimeout = 10 * time.Second
	DefaultMetricsIdleTimeout  = 60 * time.Second

	// DefaultShutdownTimeout bounds graceful shutdown of the long-running
	// commands' listeners.
	DefaultShutdownTimeout = 30 * time.Second
)

// MetricsServerConfig configures the dedicated metrics listener.
type MetricsServerConfig struct {
	// Addr is the listen address. Defaults to DefaultMetricsAddr.
	Addr string

	// Endpoint is the scrape path. Defaults to /metrics.
	Endpoint string

	// InstrumentationProvider must be enabled; its Prometheus exporter
	// feeds the scrape handler through the global registry.
	InstrumentationProvider *instrumentation.Provider
}

// MetricsServer exposes Prometheus metrics on its own port so operational
// data never shares a listener with the MCP or web surfaces.
type MetricsServer struct {
	httpServer *http.Server
	addr       string
	endpoint   string
}

// NewMetricsServer validates the configuration and returns an unstarted server.
func NewMetricsServer(config MetricsServerConfig) (*MetricsServer, error) {
	if config.Addr == "" {
		config.Addr = DefaultMetricsAddr
	}
	if config.Endpoint == "" {
		config.Endpoint = "/metrics"
	}

	if config.InstrumentationProvider == nil {
		return nil, fmt.Errorf("instrumentation provider is required for metrics server")
	}
	if !config.InstrumentationProvider.Enabled() {
		return nil, fmt.Errorf("instrumentation provider is not enabled")
	}

	return &MetricsServer{
		addr:     config.Addr,
		endpoint: config.Endpoint,
	}, nil
}

// The OTel prometheus exporter feeds the default registry, so
// promhttp.Handler serves everything the provider records.
func (s *MetricsServer) handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle(s.endpoint, promhttp.Handler())

	// Liveness of the metrics listener itself
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return mux
}

func (s *MetricsServer) buildServer() *http.Server {
	return &http.Server{
		Addr:              s.addr,
		Handler:           s.handler(),
		ReadHeaderTimeout: DefaultMetricsReadTimeout,
		WriteTimeout:      DefaultMetricsWriteTimeout,
		IdleTimeout:       DefaultMetricsIdleTimeout,
	}
}

// Start runs the server until Shutdown or listen failure. It blocks; run
// it in a goroutine when startup should continue.
func (s *MetricsServer) Start() error {
	s.httpServer = s.buildServer()
	slog.Info("starting metrics server", "addr", s.addr)
	return s.httpServer.ListenAndServe()
}

// StartWithReadySignal is Start with a ready channel that closes once the
// listener is bound, so callers know the port is held before continuing
// startup.
func (s *MetricsServer) StartWithReadySignal(ready chan<- struct{}) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}

	s.httpServer = s.buildServer()
	close(ready)
	slog.Info("starting metrics server", "addr", s.addr)
	return s.httpServer.Serve(ln)
}

// Shutdown drains in-flight scrapes and stops the listener.
func (s *MetricsServer) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	slog.Info("shutting down metrics server")
	return s.httpServer.Shutdown(ctx)
}

// Addr returns the configured listen address.
func (s *MetricsServer) Addr() string {
	return s.addr
}
