package web

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	gmail_v1 "google.golang.org/api/gmail/v1"

	"github.com/mlindner/mailsort/internal/category"
	"github.com/mlindner/mailsort/internal/gmail"
	"github.com/mlindner/mailsort/internal/instrumentation"
	"github.com/mlindner/mailsort/internal/logging"
	"github.com/mlindner/mailsort/internal/pipeline"
	"github.com/mlindner/mailsort/internal/trigger"
)

// defaultFolderPageSize bounds a folder listing when the query does not say
// otherwise
const defaultFolderPageSize = 100

// Mailbox is the provider surface the web UI reads from. *gmail.Client
// implements it.
type Mailbox interface {
	ListLabels(ctx context.Context) ([]*gmail_v1.Label, error)
	ListMessagesWithLabel(ctx context.Context, labelID string, maxCount int64) ([]*gmail.Message, error)
	GetMessageDetails(ctx context.Context, messageID string) (*gmail.Message, error)
	GetMessageBody(ctx context.Context, messageID string, format string) (string, error)
}

// RunTrigger is the run surface behind the form. *trigger.Runner
// implements it.
type RunTrigger interface {
	Run(ctx context.Context, opts pipeline.Options) (*pipeline.RunReport, error)
	LastReport() *pipeline.RunReport
}

// Handlers serves the web UI pages
type Handlers struct {
	mailbox Mailbox
	runner  RunTrigger
	metrics *instrumentation.Metrics
}

// Index renders the run form together with the most recent report.
func (h *Handlers) Index(c *gin.Context) {
	h.renderIndex(c, http.StatusOK, "", h.runner.LastReport())
}

// Run starts a pipeline run from the form and renders the outcome. A run
// already in progress answers 409 without starting another one.
func (h *Handlers) Run(c *gin.Context) {
	opts, err := runOptionsFromForm(c)
	if err != nil {
		h.renderIndex(c, http.StatusBadRequest, err.Error(), h.runner.LastReport())
		return
	}

	report, err := h.runner.Run(c.Request.Context(), opts)
	h.recordRun(c.Request.Context(), report, err)

	switch {
	case errors.Is(err, trigger.ErrBusy):
		h.renderIndex(c, http.StatusConflict, "A run is already in progress. Try again once it finishes.", h.runner.LastReport())
	case err != nil:
		slog.Error("run failed", logging.Err(err))
		// A partial report from a stopped run is still worth showing.
		h.renderIndex(c, http.StatusInternalServerError, fmt.Sprintf("Run failed: %v", err), report)
	default:
		h.renderIndex(c, http.StatusOK, "", report)
	}
}

// Folders renders the label catalog.
func (h *Handlers) Folders(c *gin.Context) {
	labels, err := h.mailbox.ListLabels(c.Request.Context())
	if err != nil {
		h.renderError(c, "list labels", err)
		return
	}
	c.HTML(http.StatusOK, "folders", gin.H{"Labels": labels})
}

// Folder renders the messages carrying one label.
func (h *Handlers) Folder(c *gin.Context) {
	labelID := c.Param("id")

	maxCount := int64(defaultFolderPageSize)
	if raw := c.DefaultQuery("maxCount", ""); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n <= 0 {
			c.HTML(http.StatusBadRequest, "error", gin.H{"Error": "maxCount must be a positive number"})
			return
		}
		maxCount = n
	}

	ctx := c.Request.Context()

	messages, err := h.mailbox.ListMessagesWithLabel(ctx, labelID, maxCount)
	if err != nil {
		h.renderError(c, "list messages", err)
		return
	}

	c.HTML(http.StatusOK, "folder", gin.H{
		"LabelName": h.labelName(ctx, labelID),
		"Messages":  messages,
	})
}

// labelName resolves a label ID to its display name, falling back to the
// ID when the lookup fails.
func (h *Handlers) labelName(ctx context.Context, labelID string) string {
	labels, err := h.mailbox.ListLabels(ctx)
	if err != nil {
		return labelID
	}
	for _, label := range labels {
		if label.Id == labelID {
			return label.Name
		}
	}
	return labelID
}

// Message renders a single message with its text body and a link that opens
// it in the Gmail web interface.
func (h *Handlers) Message(c *gin.Context) {
	messageID := c.Param("id")

	msg, err := h.mailbox.GetMessageDetails(c.Request.Context(), messageID)
	if err != nil {
		h.renderError(c, "get message", err)
		return
	}

	// Not every message carries a text/plain part; the snippet and the
	// permalink still render without one.
	body, err := h.mailbox.GetMessageBody(c.Request.Context(), messageID, "text")
	if err != nil {
		body = ""
	}

	c.HTML(http.StatusOK, "message", gin.H{
		"Message": msg,
		"Body":    body,
		"WebLink": msg.WebLink(),
	})
}

func (h *Handlers) renderIndex(c *gin.Context, status int, errMsg string, report *pipeline.RunReport) {
	c.HTML(status, "index", gin.H{
		"Error":           errMsg,
		"Report":          report,
		"DefaultMaxCount": pipeline.DefaultMaxCount,
	})
}

func (h *Handlers) renderError(c *gin.Context, op string, err error) {
	slog.Error("request failed", logging.Operation(op), logging.Err(err))
	c.HTML(http.StatusInternalServerError, "error", gin.H{"Error": err.Error()})
}

// runOptionsFromForm parses the run form into pipeline options. Unset fields
// stay zero and fall back to the trigger defaults.
func runOptionsFromForm(c *gin.Context) (pipeline.Options, error) {
	var opts pipeline.Options

	if raw := strings.TrimSpace(c.PostForm("max_count")); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n <= 0 {
			return opts, fmt.Errorf("max messages must be a positive number")
		}
		opts.MaxCount = n
	}

	allowed, err := category.ParseList(c.PostForm("categories"))
	if err != nil {
		return opts, err
	}
	opts.Allowed = allowed

	opts.Instructions = strings.TrimSpace(c.PostForm("custom_prompt"))
	return opts, nil
}

// recordRun translates a run outcome into the domain metrics
func (h *Handlers) recordRun(ctx context.Context, report *pipeline.RunReport, err error) {
	if h.metrics == nil {
		return
	}

	if errors.Is(err, trigger.ErrBusy) {
		h.metrics.RecordRun(ctx, instrumentation.RunResultBusy, 0, 0)
		return
	}

	result := instrumentation.RunResultSuccess
	if err != nil {
		result = instrumentation.RunResultError
	}
	if report == nil {
		h.metrics.RecordRun(ctx, result, 0, 0)
		return
	}

	h.metrics.RecordRun(ctx, result, int64(report.Processed), report.Duration)
	for _, o := range report.Outcomes {
		if o.Category != "" {
			h.metrics.RecordClassification(ctx, o.Category.String(), instrumentation.StatusSuccess)
		} else {
			h.metrics.RecordClassification(ctx, "", instrumentation.StatusError)
		}
		if o.Status == pipeline.StatusLabeled {
			h.metrics.RecordLabelApplied(ctx, o.Category.String())
		}
	}
}
