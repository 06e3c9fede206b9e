package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mlindner/mailsort/internal/google"
	"github.com/mlindner/mailsort/internal/instrumentation"
	"github.com/mlindner/mailsort/internal/logging"
	"github.com/mlindner/mailsort/internal/server"
	"github.com/mlindner/mailsort/internal/web"
)

func newWebCmd() *cobra.Command {
	var (
		addr           string
		account        string
		metricsEnabled bool
		metricsAddr    string
	)

	cmd := &cobra.Command{
		Use:   "web",
		Short: "Start the local web interface",
		Long: `Start a local web server for browsing Gmail folders and messages and for
triggering classification runs from the browser.

The interface is intended for local use and performs no authentication of
its own.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWeb(addr, account, metricsEnabled, metricsAddr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8000", "Address for the web interface")
	cmd.Flags().StringVar(&account, "account", "", "Google account name to use (default: from config or 'default')")
	cmd.Flags().BoolVar(&metricsEnabled, "metrics-enabled", false, "Enable the metrics server on a dedicated port")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", server.DefaultMetricsAddr, "Metrics server address")

	return cmd
}

func runWeb(addr, account string, metricsEnabled bool, metricsAddr string) error {
	shutdownCtx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if account == "" {
		account = viper.GetString(cfgAccount)
	}

	classifier, err := newClassifier()
	if err != nil {
		return fmt.Errorf("failed to create classifier: %w", err)
	}
	if classifier == nil {
		return fmt.Errorf("no classifier configured. Set OPENAI_API_KEY to enable classification")
	}

	runCfg, err := runConfigFromViper()
	if err != nil {
		return err
	}

	instrConfig := instrumentation.DefaultConfig()
	instrConfig.ServiceVersion = version

	provider, err := instrumentation.NewProvider(shutdownCtx, instrConfig)
	if err != nil {
		return fmt.Errorf("failed to create instrumentation provider: %w", err)
	}
	defer func() {
		if err := provider.Shutdown(shutdownCtx); err != nil {
			slog.Error("instrumentation shutdown failed", logging.Err(err))
		}
	}()

	serverContext, err := server.NewServerContext(shutdownCtx, classifier, runCfg)
	if err != nil {
		return fmt.Errorf("failed to create server context: %w", err)
	}
	defer func() {
		if err := serverContext.Shutdown(); err != nil {
			slog.Error("server context shutdown failed", logging.Err(err))
		}
	}()

	var metrics *instrumentation.Metrics
	if provider.Enabled() {
		metrics = provider.Metrics()
		serverContext.SetMetrics(metrics)
	}

	client := serverContext.GmailClientForAccount(account)
	if client == nil {
		return fmt.Errorf("%s", google.GetAuthenticationErrorMessage(account))
	}

	runner, err := serverContext.RunnerForAccount(account)
	if err != nil {
		return err
	}

	if metricsEnabled && provider.Enabled() {
		metricsServer, err := startMetricsServer(MetricsConfig{
			Enabled:  true,
			Addr:     metricsAddr,
			Endpoint: instrConfig.PrometheusEndpoint,
		}, provider)
		if err != nil {
			return err
		}
		defer stopMetricsServer(metricsServer)
	}

	gin.SetMode(gin.ReleaseMode)

	router, err := web.NewRouter(web.Config{
		Mailbox: client,
		Runner:  runner,
		Health:  server.NewHealthChecker(serverContext),
		Metrics: metrics,
	})
	if err != nil {
		return fmt.Errorf("failed to create web router: %w", err)
	}

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           router.Engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	fmt.Printf("Web interface for account %q listening on %s\n", account, addr)

	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverDone <- err
		}
	}()

	select {
	case <-shutdownCtx.Done():
		fmt.Println("Shutdown signal received, stopping web server...")
		ctx, cancel := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(ctx); err != nil {
			return fmt.Errorf("error shutting down web server: %w", err)
		}
	case err := <-serverDone:
		if err != nil {
			return fmt.Errorf("web server stopped with error: %w", err)
		}
	}

	return nil
}
