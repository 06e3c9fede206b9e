// Package trigger gates access to the classification pipeline. A Runner
// admits one run at a time, rejects concurrent requests with ErrBusy and
// retains the most recent report in memory for display surfaces.
package trigger

import (
	"context"
	"errors"
	"sync"

	"github.com/mlindner/mailsort/internal/pipeline"
)

// ErrBusy is returned when a run is requested while another one is still
// active. Callers decide whether to retry; the web surface maps it to a
// 409 response.
var ErrBusy = errors.New("a run is already in progress")

// Pipeline is the run surface the Runner wraps
type Pipeline interface {
	Run(ctx context.Context, opts pipeline.Options) (*pipeline.RunReport, error)
}

// Runner serializes pipeline runs. Reports are ephemeral: only the most
// recent one is kept, and only in memory.
type Runner struct {
	pipeline Pipeline
	defaults pipeline.Options

	runMu sync.Mutex // held for the duration of a run

	mu   sync.RWMutex
	last *pipeline.RunReport
}

// NewRunner creates a Runner around the given pipeline. Zero fields in a
// run's options fall back to defaults.
func NewRunner(p Pipeline, defaults pipeline.Options) *Runner {
	return &Runner{
		pipeline: p,
		defaults: defaults,
	}
}

// Run executes one pipeline run. If another run is active it returns
// ErrBusy immediately. Any report the run produces, including a partial one
// from cancellation, becomes the last report.
func (r *Runner) Run(ctx context.Context, opts pipeline.Options) (*pipeline.RunReport, error) {
	if !r.runMu.TryLock() {
		return nil, ErrBusy
	}
	defer r.runMu.Unlock()

	report, err := r.pipeline.Run(ctx, r.merge(opts))
	if report != nil {
		r.mu.Lock()
		r.last = report
		r.mu.Unlock()
	}
	return report, err
}

// LastReport returns the most recent report, or nil if no run has
// produced one yet.
func (r *Runner) LastReport() *pipeline.RunReport {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.last
}

// merge fills zero fields of opts from the runner defaults
func (r *Runner) merge(opts pipeline.Options) pipeline.Options {
	if opts.MaxCount <= 0 {
		opts.MaxCount = r.defaults.MaxCount
	}
	if len(opts.Allowed) == 0 {
		opts.Allowed = r.defaults.Allowed
	}
	if opts.Instructions == "" {
		opts.Instructions = r.defaults.Instructions
	}
	return opts
}
