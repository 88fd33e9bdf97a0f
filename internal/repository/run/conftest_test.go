package run

import (
	"context"
	"time"

	"github.com/kailas-cloud/edgescan/internal/db"
	"github.com/kailas-cloud/edgescan/internal/db/memory"
)

// faultyStore is a memory store that fails chosen operations and records
// the TTLs it was asked to apply.
type faultyStore struct {
	*memory.Store
	fail map[string]error
	ttls []time.Duration
}

func newFaultyStore(fail map[string]error) *faultyStore {
	return &faultyStore{Store: memory.NewStore(), fail: fail}
}

func (f *faultyStore) err(op string) error {
	if e, ok := f.fail[op]; ok {
		return &db.Error{Op: op, Err: e}
	}
	return nil
}

func (f *faultyStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := f.err(db.OpGet); err != nil {
		return nil, err
	}
	return f.Store.Get(ctx, key)
}

func (f *faultyStore) Set(ctx context.Context, key string, value []byte) error {
	f.ttls = append(f.ttls, 0)
	if err := f.err(db.OpSet); err != nil {
		return err
	}
	return f.Store.Set(ctx, key, value)
}

func (f *faultyStore) SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	f.ttls = append(f.ttls, ttl)
	if err := f.err(db.OpSet); err != nil {
		return err
	}
	return f.Store.SetWithTTL(ctx, key, value, ttl)
}

func (f *faultyStore) HSet(ctx context.Context, key string, fields map[string]string) error {
	if err := f.err(db.OpHSet); err != nil {
		return err
	}
	return f.Store.HSet(ctx, key, fields)
}

func (f *faultyStore) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	if err := f.err(db.OpHGetAll); err != nil {
		return nil, err
	}
	return f.Store.HGetAll(ctx, key)
}
