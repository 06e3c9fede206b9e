package pipeline

import (
	"fmt"
	"strings"
	"time"

	"github.com/mlindner/mailsort/internal/category"
)

// Per-message outcome statuses
const (
	StatusLabeled = "labeled"
	StatusFailed  = "failed"
)

// Outcome records what happened to a single message during a run
type Outcome struct {
	MessageID string            `json:"messageId"`
	Subject   string            `json:"subject"`
	Category  category.Category `json:"category,omitempty"`
	Status    string            `json:"status"` // "labeled" or "failed"
	Error     string            `json:"error,omitempty"`
}

// RunReport aggregates the outcomes of one pipeline run. It is ephemeral:
// produced by the orchestrator, rendered by the trigger, never persisted.
type RunReport struct {
	RunID     string        `json:"runId"`
	StartedAt time.Time     `json:"startedAt"`
	Duration  time.Duration `json:"duration"`
	Processed int           `json:"processed"`
	Labeled   int           `json:"labeled"`
	Failed    int           `json:"failed"`
	Outcomes  []Outcome     `json:"outcomes"`
}

// record appends an outcome and maintains the aggregate counts
func (r *RunReport) record(o Outcome) {
	r.Processed++
	switch o.Status {
	case StatusLabeled:
		r.Labeled++
	default:
		r.Failed++
	}
	r.Outcomes = append(r.Outcomes, o)
}

// Summary returns the one-line aggregate result of the run
func (r *RunReport) Summary() string {
	return fmt.Sprintf("processed %d, labeled %d, failed %d", r.Processed, r.Labeled, r.Failed)
}

// Lines renders the per-message report lines for display
func (r *RunReport) Lines() []string {
	if len(r.Outcomes) == 0 {
		return []string{"No messages found."}
	}

	lines := make([]string, 0, len(r.Outcomes))
	for _, o := range r.Outcomes {
		switch o.Status {
		case StatusLabeled:
			lines = append(lines, fmt.Sprintf("Email '%s' classified as %s and labeled.", o.Subject, o.Category))
		default:
			lines = append(lines, fmt.Sprintf("Email '%s' failed: %s", o.Subject, o.Error))
		}
	}
	return lines
}

// String renders the full report as display text
func (r *RunReport) String() string {
	return strings.Join(r.Lines(), "\n")
}
