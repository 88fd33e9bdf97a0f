package edgescan

import (
	"context"
	"fmt"
	"time"
)

// RunService reads and deletes stored runs.
type RunService struct {
	store runStore
	obs   *observer
}

// List returns run summaries, newest first.
func (s *RunService) List(ctx context.Context) (_ []RunSummary, err error) {
	start := time.Now()
	defer func() { s.obs.observe("run.list", start, err) }()

	items, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	out := make([]RunSummary, len(items))
	for i, it := range items {
		out[i] = fromInternalSummary(it)
	}
	return out, nil
}

// Get returns a run with its trace and features. A missing run is reported
// as ErrRunNotFound.
func (s *RunService) Get(ctx context.Context, id string) (_ *Run, err error) {
	start := time.Now()
	defer func() { s.obs.observe("run.get", start, err) }()

	r, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return fromInternalRun(r), nil
}

// Delete removes a run.
func (s *RunService) Delete(ctx context.Context, id string) (err error) {
	start := time.Now()
	defer func() { s.obs.observe("run.delete", start, err) }()

	if err = s.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete run: %w", err)
	}
	return nil
}
