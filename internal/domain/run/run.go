// Package run is the persisted record of one search or raster job.
package run

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kailas-cloud/edgescan/internal/domain/feature"
	"github.com/kailas-cloud/edgescan/internal/domain/sample"
)

// Mode is the kind of job that produced the run.
type Mode string

const (
	// ModeSearch finds, traces and fits features.
	ModeSearch Mode = "search"
	// ModeRaster maps the whole area without tracing.
	ModeRaster Mode = "raster"
)

// IsValid checks if the mode is supported.
func (m Mode) IsValid() bool {
	return m == ModeSearch || m == ModeRaster
}

// Status is the lifecycle state of a run.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Run is one job execution with everything it measured.
type Run struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	Mode       Mode              `json:"mode"`
	Status     Status            `json:"status"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at,omitzero"`
	Params     map[string]any    `json:"params,omitempty"`
	Trace      sample.Trace      `json:"trace"`
	Features   []feature.Feature `json:"features"`
	Error      string            `json:"error,omitempty"`
}

// New starts a run with a fresh ID.
func New(name string, mode Mode, params map[string]any, now time.Time) (*Run, error) {
	if name == "" {
		return nil, fmt.Errorf("run name is required")
	}
	if !mode.IsValid() {
		return nil, fmt.Errorf("invalid run mode: %q", mode)
	}
	return &Run{
		ID:        uuid.NewString(),
		Name:      name,
		Mode:      mode,
		Status:    StatusRunning,
		StartedAt: now,
		Params:    params,
	}, nil
}

// Complete marks the run finished with its results.
func (r *Run) Complete(tr sample.Trace, features []feature.Feature, now time.Time) {
	r.Trace = tr
	r.Features = features
	r.Status = StatusCompleted
	r.FinishedAt = now
}

// Fail marks the run failed, keeping whatever was measured.
func (r *Run) Fail(tr sample.Trace, err error, now time.Time) {
	r.Trace = tr
	r.Status = StatusFailed
	r.FinishedAt = now
	if err != nil {
		r.Error = err.Error()
	}
}

// Summary is the listing view of a run.
type Summary struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Mode       Mode      `json:"mode"`
	Status     Status    `json:"status"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitzero"`
	Samples    int       `json:"samples"`
	Features   int       `json:"features"`
}

// Summarize returns the listing view.
func (r *Run) Summarize() Summary {
	return Summary{
		ID:         r.ID,
		Name:       r.Name,
		Mode:       r.Mode,
		Status:     r.Status,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
		Samples:    len(r.Trace),
		Features:   len(r.Features),
	}
}
