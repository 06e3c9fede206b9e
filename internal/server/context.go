package server

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/mlindner/mailsort/internal/category"
	"github.com/mlindner/mailsort/internal/classify"
	"github.com/mlindner/mailsort/internal/gmail"
	"github.com/mlindner/mailsort/internal/google"
	"github.com/mlindner/mailsort/internal/instrumentation"
	"github.com/mlindner/mailsort/internal/logging"
	"github.com/mlindner/mailsort/internal/pipeline"
	"github.com/mlindner/mailsort/internal/trigger"
)

// RunConfig carries the run settings shared by every account's pipeline
type RunConfig struct {
	// MaxTextLength bounds the classification input per message
	MaxTextLength int

	// LabelNames overrides the label name used for a category
	LabelNames map[category.Category]string

	// DefaultOptions fill unset fields of a run's options
	DefaultOptions pipeline.Options
}

// ServerContext holds the context for the MCP server
type ServerContext struct {
	ctx           context.Context
	cancel        context.CancelFunc
	gmailClients  map[string]*gmail.Client          // Maps account name to Gmail client
	orchestrators map[string]*pipeline.Orchestrator // Maps account name to its pipeline
	runners       map[string]*trigger.Runner        // Maps account name to its run gate

	classifier    *classify.Client
	runCfg        RunConfig
	tokenProvider google.TokenProvider

	metrics     *instrumentation.Metrics
	auditLogger *instrumentation.AuditLogger

	mu       sync.RWMutex
	shutdown bool
}

// NewServerContext creates a new server context. The classifier is shared by
// all accounts; Gmail clients and run gates are created per account on first
// use.
func NewServerContext(ctx context.Context, classifier *classify.Client, runCfg RunConfig) (*ServerContext, error) {
	return NewServerContextWithProvider(ctx, classifier, runCfg, nil)
}

// NewServerContextWithProvider creates a new server context that resolves
// Google tokens through the given provider. A nil provider falls back to
// file-based tokens.
func NewServerContextWithProvider(ctx context.Context, classifier *classify.Client, runCfg RunConfig, tokenProvider google.TokenProvider) (*ServerContext, error) {
	shutdownCtx, cancel := context.WithCancel(ctx)

	sc := &ServerContext{
		ctx:           shutdownCtx,
		cancel:        cancel,
		gmailClients:  make(map[string]*gmail.Client),
		orchestrators: make(map[string]*pipeline.Orchestrator),
		runners:       make(map[string]*trigger.Runner),
		classifier:    classifier,
		runCfg:        runCfg,
		tokenProvider: tokenProvider,
		shutdown:      false,
	}

	// Try to create the default Gmail client, but don't fail if the token is
	// missing. Clients are lazily initialized when first needed.
	if sc.hasToken("default") {
		client, err := sc.newGmailClient("default")
		if err != nil {
			// Log but don't fail - will be re-attempted on first use
			slog.Warn("failed to create Gmail client for default account", logging.Err(err))
		} else {
			sc.gmailClients["default"] = client
		}
	}

	return sc, nil
}

// Context returns the server context
func (sc *ServerContext) Context() context.Context {
	return sc.ctx
}

func (sc *ServerContext) hasToken(account string) bool {
	if sc.tokenProvider != nil {
		return gmail.HasTokenForAccountWithProvider(account, sc.tokenProvider)
	}
	return gmail.HasTokenForAccount(account)
}

func (sc *ServerContext) newGmailClient(account string) (*gmail.Client, error) {
	if sc.tokenProvider != nil {
		return gmail.NewClientForAccountWithProvider(sc.ctx, account, sc.tokenProvider)
	}
	return gmail.NewClientForAccount(sc.ctx, account)
}

// GmailClientForAccount returns the Gmail client for a specific account
// Creates and caches the client if it doesn't exist yet
// Returns nil if the account has no token
func (sc *ServerContext) GmailClientForAccount(account string) *gmail.Client {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	// Check if client already exists
	if client, ok := sc.gmailClients[account]; ok {
		return client
	}

	// Try to create client if token exists
	if !sc.hasToken(account) {
		return nil
	}

	client, err := sc.newGmailClient(account)
	if err != nil {
		slog.Warn("failed to create Gmail client", logging.Account(account), logging.Err(err))
		return nil
	}

	sc.gmailClients[account] = client
	return client
}

// GmailClient returns the Gmail client for the default account
func (sc *ServerContext) GmailClient() *gmail.Client {
	return sc.GmailClientForAccount("default")
}

// SetGmailClientForAccount sets the Gmail client for a specific account
func (sc *ServerContext) SetGmailClientForAccount(account string, client *gmail.Client) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.gmailClients[account] = client
}

// SetGmailClient sets the Gmail client for the default account
func (sc *ServerContext) SetGmailClient(client *gmail.Client) {
	sc.SetGmailClientForAccount("default", client)
}

// ActiveAccounts returns the number of accounts with an initialized Gmail
// client
func (sc *ServerContext) ActiveAccounts() int {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return len(sc.gmailClients)
}

// OrchestratorForAccount returns the pipeline for a specific account,
// building it on first use. The account must have a Gmail token and the
// context must carry a classifier.
func (sc *ServerContext) OrchestratorForAccount(account string) (*pipeline.Orchestrator, error) {
	sc.mu.RLock()
	orchestrator, ok := sc.orchestrators[account]
	sc.mu.RUnlock()
	if ok {
		return orchestrator, nil
	}

	if sc.classifier == nil {
		return nil, fmt.Errorf("no classifier configured. Set OPENAI_API_KEY to enable classification")
	}

	// The client map has its own locking, so resolve it before taking the
	// write lock.
	client := sc.GmailClientForAccount(account)
	if client == nil {
		return nil, fmt.Errorf("%s", google.GetAuthenticationErrorMessage(account))
	}

	sc.mu.Lock()
	defer sc.mu.Unlock()

	if orchestrator, ok := sc.orchestrators[account]; ok {
		return orchestrator, nil
	}

	orchestrator, err := pipeline.New(pipeline.Config{
		Mailbox:       client,
		Classifier:    sc.classifier,
		MaxTextLength: sc.runCfg.MaxTextLength,
		LabelNames:    sc.runCfg.LabelNames,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline for account %s: %w", account, err)
	}

	sc.orchestrators[account] = orchestrator
	return orchestrator, nil
}

// RunnerForAccount returns the run gate for a specific account, building its
// pipeline on first use. The account must have a Gmail token and the context
// must carry a classifier.
func (sc *ServerContext) RunnerForAccount(account string) (*trigger.Runner, error) {
	sc.mu.RLock()
	runner, ok := sc.runners[account]
	sc.mu.RUnlock()
	if ok {
		return runner, nil
	}

	orchestrator, err := sc.OrchestratorForAccount(account)
	if err != nil {
		return nil, err
	}

	sc.mu.Lock()
	defer sc.mu.Unlock()

	if runner, ok := sc.runners[account]; ok {
		return runner, nil
	}

	runner = trigger.NewRunner(orchestrator, sc.runCfg.DefaultOptions)
	sc.runners[account] = runner
	return runner, nil
}

// Runner returns the run gate for the default account
func (sc *ServerContext) Runner() (*trigger.Runner, error) {
	return sc.RunnerForAccount("default")
}

// Classifier returns the shared classification client. May be nil when no
// OpenAI key is configured.
func (sc *ServerContext) Classifier() *classify.Client {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.classifier
}

// Metrics returns the metrics recorder, or nil if instrumentation is not
// configured
func (sc *ServerContext) Metrics() *instrumentation.Metrics {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.metrics
}

// SetMetrics sets the metrics recorder for tool instrumentation
func (sc *ServerContext) SetMetrics(metrics *instrumentation.Metrics) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.metrics = metrics
}

// AuditLogger returns the audit logger, or nil if audit logging is not
// configured
func (sc *ServerContext) AuditLogger() *instrumentation.AuditLogger {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.auditLogger
}

// SetAuditLogger sets the audit logger for tool instrumentation
func (sc *ServerContext) SetAuditLogger(auditLogger *instrumentation.AuditLogger) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.auditLogger = auditLogger
}

// IsShutdown returns whether the server has been shutdown
func (sc *ServerContext) IsShutdown() bool {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.shutdown
}

// Shutdown shuts down the server context
func (sc *ServerContext) Shutdown() error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.shutdown {
		return nil
	}

	sc.shutdown = true
	sc.cancel()
	return nil
}
