// Package run persists runs in the key-value store: the full run as one JSON
// value and a hash of summaries for listing.
package run

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/kailas-cloud/edgescan/internal/db"
	"github.com/kailas-cloud/edgescan/internal/domain"
	domrun "github.com/kailas-cloud/edgescan/internal/domain/run"
)

// store is the consumer interface for runs (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HDel(ctx context.Context, key string, fields ...string) error
}

// Repo stores runs.
type Repo struct {
	store  store
	prefix string
	ttl    time.Duration
}

// New creates a run repository. An empty prefix selects domain.KeyPrefix;
// a zero ttl keeps runs forever.
func New(s store, prefix string, ttl time.Duration) *Repo {
	if prefix == "" {
		prefix = domain.KeyPrefix
	}
	return &Repo{store: s, prefix: prefix, ttl: ttl}
}

// Save writes the run and its summary, replacing any previous version.
// When the summary cannot be written the run value is removed again.
func (r *Repo) Save(ctx context.Context, run *domrun.Run) error {
	data, err := runToJSON(run)
	if err != nil {
		return err
	}
	summary, err := summaryToJSON(run.Summarize())
	if err != nil {
		return err
	}

	key := r.runKey(run.ID)
	if r.ttl > 0 {
		err = r.store.SetWithTTL(ctx, key, data, r.ttl)
	} else {
		err = r.store.Set(ctx, key, data)
	}
	if err != nil {
		return fmt.Errorf("set run %s: %w", run.ID, err)
	}

	if err := r.store.HSet(ctx, r.indexKey(), map[string]string{run.ID: summary}); err != nil {
		cleanupErr := r.store.Del(ctx, key)
		return errors.Join(fmt.Errorf("hset run index: %w", err), cleanupErr)
	}
	return nil
}

// Get returns a stored run.
func (r *Repo) Get(ctx context.Context, id string) (*domrun.Run, error) {
	data, err := r.store.Get(ctx, r.runKey(id))
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return nil, domain.ErrRunNotFound
		}
		return nil, fmt.Errorf("get run %s: %w", id, err)
	}
	return runFromJSON(data)
}

// List returns run summaries, newest first. Summaries of expired runs are
// dropped from the index as they are found.
func (r *Repo) List(ctx context.Context) ([]domrun.Summary, error) {
	m, err := r.store.HGetAll(ctx, r.indexKey())
	if err != nil {
		return nil, fmt.Errorf("hgetall run index: %w", err)
	}

	out := make([]domrun.Summary, 0, len(m))
	var stale []string
	for id, raw := range m {
		if r.ttl > 0 {
			ok, err := r.store.Exists(ctx, r.runKey(id))
			if err != nil {
				return nil, fmt.Errorf("check run %s: %w", id, err)
			}
			if !ok {
				stale = append(stale, id)
				continue
			}
		}
		s, err := summaryFromJSON(raw)
		if err != nil {
			return nil, fmt.Errorf("run %s: %w", id, err)
		}
		out = append(out, s)
	}
	if len(stale) > 0 {
		if err := r.store.HDel(ctx, r.indexKey(), stale...); err != nil {
			return nil, fmt.Errorf("prune run index: %w", err)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	return out, nil
}

// Delete removes a run and its summary.
func (r *Repo) Delete(ctx context.Context, id string) error {
	key := r.runKey(id)
	ok, err := r.store.Exists(ctx, key)
	if err != nil {
		return fmt.Errorf("check run %s: %w", id, err)
	}
	if !ok {
		return domain.ErrRunNotFound
	}
	if err := r.store.Del(ctx, key); err != nil {
		return fmt.Errorf("del run %s: %w", id, err)
	}
	if err := r.store.HDel(ctx, r.indexKey(), id); err != nil {
		return fmt.Errorf("hdel run index: %w", err)
	}
	return nil
}

func (r *Repo) runKey(id string) string {
	return fmt.Sprintf("%srun:%s", r.prefix, id)
}

func (r *Repo) indexKey() string {
	return r.prefix + "runs"
}
