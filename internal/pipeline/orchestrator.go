package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/mlindner/mailsort/internal/category"
	"github.com/mlindner/mailsort/internal/gmail"
	"github.com/mlindner/mailsort/internal/instrumentation"
	"github.com/mlindner/mailsort/internal/logging"
)

const (
	// DefaultMaxCount bounds a run when the caller does not say otherwise
	DefaultMaxCount = 100

	// DefaultMaxTextLength bounds the classification input per message.
	// Subject plus snippet rarely comes close; the bound protects the
	// downstream request size when they do.
	DefaultMaxTextLength = 2000
)

// Mailbox is the mailbox surface the orchestrator depends on
type Mailbox interface {
	ListUnread(ctx context.Context, maxCount int64) ([]*gmail.Message, error)
	EnsureLabel(ctx context.Context, name string) (string, error)
	ApplyLabel(ctx context.Context, messageID, labelID string) error
}

// Classifier is the classification surface the orchestrator depends on.
// Instructions, when non-empty, replace the classifier's default prompt
// for the call.
type Classifier interface {
	Classify(ctx context.Context, text string, allowed []category.Category, instructions string) (category.Category, error)
}

// Config configures an Orchestrator
type Config struct {
	Mailbox    Mailbox
	Classifier Classifier

	// MaxTextLength bounds the classification input per message.
	// Defaults to DefaultMaxTextLength.
	MaxTextLength int

	// LabelNames overrides the label name used for a category. Categories
	// without an entry are labeled under their own name.
	LabelNames map[category.Category]string
}

// Options control a single run
type Options struct {
	// MaxCount bounds how many unread messages the run fetches.
	// Defaults to DefaultMaxCount.
	MaxCount int64

	// Allowed restricts the category set for this run. Empty means the
	// stock set.
	Allowed []category.Category

	// Instructions replace the classifier's default prompt for this run.
	// When Allowed is empty, instructions phrased as a restriction ("only
	// sort Work and Personal") also narrow the category set.
	Instructions string
}

// Orchestrator drives one classification-and-labeling pass over unread
// messages. It holds no state between runs; every run's outcome lives in
// its RunReport.
type Orchestrator struct {
	mailbox    Mailbox
	classifier Classifier
	maxText    int
	labelNames map[category.Category]string
}

// New creates an Orchestrator from the given configuration
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Mailbox == nil {
		return nil, fmt.Errorf("mailbox client is required")
	}
	if cfg.Classifier == nil {
		return nil, fmt.Errorf("classifier client is required")
	}

	maxText := cfg.MaxTextLength
	if maxText <= 0 {
		maxText = DefaultMaxTextLength
	}

	return &Orchestrator{
		mailbox:    cfg.Mailbox,
		classifier: cfg.Classifier,
		maxText:    maxText,
		labelNames: cfg.LabelNames,
	}, nil
}

// labelName resolves the label a category files under, honoring any
// configured override.
func (o *Orchestrator) labelName(cat category.Category) string {
	if name, ok := o.labelNames[cat]; ok && name != "" {
		return name
	}
	return cat.String()
}

// resolveAllowed expands a run's options into the effective category set
func resolveAllowed(opts Options) []category.Category {
	allowed := opts.Allowed
	if len(allowed) == 0 && opts.Instructions != "" {
		allowed = category.RestrictionFromInstructions(opts.Instructions)
	}
	if len(allowed) == 0 {
		allowed = category.Stock()
	}
	return allowed
}

// Run fetches unread messages, classifies each one and applies the matching
// label. A failure to classify or label one message is recorded in the
// report and does not stop the run; only a fetch-stage failure aborts,
// returning a nil report.
//
// On cancellation the run stops before the next message's classification
// call and the partial report is returned alongside the context error.
// Already-applied labels stay applied; label application is idempotent so a
// later run can safely cover the same messages again.
func (o *Orchestrator) Run(ctx context.Context, opts Options) (*RunReport, error) {
	maxCount := opts.MaxCount
	if maxCount <= 0 {
		maxCount = DefaultMaxCount
	}

	allowed := resolveAllowed(opts)

	report := &RunReport{
		RunID:     uuid.NewString(),
		StartedAt: time.Now(),
	}

	ctx, span := instrumentation.StartSpan(ctx, "pipeline.run",
		instrumentation.NewSpanAttributeBuilder().WithResource("run", report.RunID).Build()...)
	defer span.End()

	logger := logging.WithRun(slog.Default(), report.RunID)
	if traceID := instrumentation.GetTraceID(ctx); traceID != "" {
		logger = logger.With(slog.String("trace_id", traceID))
	}
	logger.Info("starting run",
		slog.Int64(logging.KeyCount, maxCount),
		slog.Any("categories", category.Names(allowed)))

	messages, err := o.listUnread(ctx, maxCount)
	if err != nil {
		instrumentation.SetSpanError(span, err)
		logger.Error("failed to list unread messages", logging.Err(err))
		return nil, err
	}

	// Label IDs are resolved once per category per run; the provider-side
	// label is created on first use.
	labelIDs := make(map[category.Category]string)

	for _, msg := range messages {
		if err := ctx.Err(); err != nil {
			report.Duration = time.Since(report.StartedAt)
			instrumentation.SetSpanError(span, err)
			logger.Warn("run cancelled", slog.Int("processed", report.Processed))
			return report, err
		}

		report.record(o.processMessage(ctx, logger, msg, allowed, opts.Instructions, labelIDs))
	}

	report.Duration = time.Since(report.StartedAt)
	instrumentation.AddSpanEvent(span, "run complete",
		attribute.Int("processed", report.Processed),
		attribute.Int("labeled", report.Labeled),
		attribute.Int("failed", report.Failed))
	instrumentation.SetSpanSuccess(span)
	logger.Info("run complete",
		slog.Int("processed", report.Processed),
		slog.Int("labeled", report.Labeled),
		slog.Int("failed", report.Failed))

	return report, nil
}

// ProcessOne classifies a single message and applies the matching label,
// using the same bounds, category resolution and label names as Run. The
// message is the caller's to fetch; MaxCount is ignored.
func (o *Orchestrator) ProcessOne(ctx context.Context, msg *gmail.Message, opts Options) Outcome {
	allowed := resolveAllowed(opts)
	return o.processMessage(ctx, slog.Default(), msg, allowed, opts.Instructions, make(map[category.Category]string))
}

// processMessage classifies one message and applies its label. Any failure
// along the way becomes a failed outcome.
func (o *Orchestrator) processMessage(ctx context.Context, logger *slog.Logger, msg *gmail.Message, allowed []category.Category, instructions string, labelIDs map[category.Category]string) Outcome {
	text := truncate(msg.Text(), o.maxText)

	cat, err := o.classify(ctx, text, allowed, instructions)
	if err != nil {
		logger.Warn("classification failed",
			logging.MessageID(msg.ID),
			logging.Err(err))
		return Outcome{
			MessageID: msg.ID,
			Subject:   msg.Subject,
			Status:    StatusFailed,
			Error:     err.Error(),
		}
	}

	labelID, ok := labelIDs[cat]
	if !ok {
		labelID, err = o.ensureLabel(ctx, o.labelName(cat))
		if err != nil {
			logger.Warn("label lookup failed",
				logging.MessageID(msg.ID),
				logging.Category(cat.String()),
				logging.Err(err))
			return Outcome{
				MessageID: msg.ID,
				Subject:   msg.Subject,
				Category:  cat,
				Status:    StatusFailed,
				Error:     err.Error(),
			}
		}
		labelIDs[cat] = labelID
	}

	if err := o.applyLabel(ctx, msg.ID, labelID); err != nil {
		logger.Warn("label apply failed",
			logging.MessageID(msg.ID),
			logging.Category(cat.String()),
			logging.Err(err))
		return Outcome{
			MessageID: msg.ID,
			Subject:   msg.Subject,
			Category:  cat,
			Status:    StatusFailed,
			Error:     err.Error(),
		}
	}

	logger.Info("message labeled",
		logging.MessageID(msg.ID),
		logging.Category(cat.String()))

	return Outcome{
		MessageID: msg.ID,
		Subject:   msg.Subject,
		Category:  cat,
		Status:    StatusLabeled,
	}
}

// Each upstream call gets its own client span so a run's trace shows
// where the time went. With no tracer provider installed these are no-ops.
func (o *Orchestrator) listUnread(ctx context.Context, maxCount int64) ([]*gmail.Message, error) {
	ctx, span := instrumentation.StartAPISpan(ctx, instrumentation.ServiceGmail, instrumentation.OperationList)
	defer span.End()

	messages, err := o.mailbox.ListUnread(ctx, maxCount)
	if err != nil {
		instrumentation.SetSpanError(span, err)
		return nil, err
	}
	instrumentation.SetSpanSuccess(span)
	return messages, nil
}

func (o *Orchestrator) classify(ctx context.Context, text string, allowed []category.Category, instructions string) (category.Category, error) {
	ctx, span := instrumentation.StartAPISpan(ctx, instrumentation.ServiceOpenAI, instrumentation.OperationClassify)
	defer span.End()

	cat, err := o.classifier.Classify(ctx, text, allowed, instructions)
	if err != nil {
		instrumentation.SetSpanError(span, err)
		return cat, err
	}
	instrumentation.SetSpanSuccess(span)
	return cat, nil
}

func (o *Orchestrator) ensureLabel(ctx context.Context, name string) (string, error) {
	ctx, span := instrumentation.StartAPISpan(ctx, instrumentation.ServiceGmail, instrumentation.OperationCreate)
	defer span.End()

	id, err := o.mailbox.EnsureLabel(ctx, name)
	if err != nil {
		instrumentation.SetSpanError(span, err)
		return "", err
	}
	instrumentation.SetSpanSuccess(span)
	return id, nil
}

func (o *Orchestrator) applyLabel(ctx context.Context, messageID, labelID string) error {
	ctx, span := instrumentation.StartAPISpan(ctx, instrumentation.ServiceGmail, instrumentation.OperationModify,
		instrumentation.NewSpanAttributeBuilder().WithResource("message", messageID).Build()...)
	defer span.End()

	if err := o.mailbox.ApplyLabel(ctx, messageID, labelID); err != nil {
		instrumentation.SetSpanError(span, err)
		return err
	}
	instrumentation.SetSpanSuccess(span)
	return nil
}

// truncate bounds s to max bytes without splitting a UTF-8 sequence
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := s[:max]
	for len(cut) > 0 && !utf8.ValidString(cut) {
		cut = cut[:len(cut)-1]
	}
	return cut
}
