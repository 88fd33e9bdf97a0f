package redis

import (
	"context"
	"time"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/edgescan/internal/db"
)

// Get returns the value at key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	msg, err := s.call(ctx, db.OpGet, s.client.B().Get().Key(key).Build())
	if err != nil {
		return nil, err
	}
	data, err := msg.AsBytes()
	return data, db.Wrap(db.OpGet, err)
}

// Set stores value at key without expiry.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	return s.put(ctx, key, value, 0)
}

// SetWithTTL stores value at key for ttl. Redis rounds ttl to seconds.
func (s *Store) SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return db.Wrap(db.OpSet, errNonPositiveTTL(ttl))
	}
	return s.put(ctx, key, value, ttl)
}

func (s *Store) put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	var cmd rueidis.Completed
	if ttl > 0 {
		cmd = s.client.B().Set().Key(key).Value(rueidis.BinaryString(value)).Ex(ttl).Build()
	} else {
		cmd = s.client.B().Set().Key(key).Value(rueidis.BinaryString(value)).Build()
	}
	_, err := s.call(ctx, db.OpSet, cmd)
	return err
}

// Del removes key. A missing key is not an error.
func (s *Store) Del(ctx context.Context, key string) error {
	_, err := s.call(ctx, db.OpDel, s.client.B().Del().Key(key).Build())
	return err
}

// Exists reports whether key is present.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	msg, err := s.call(ctx, db.OpExists, s.client.B().Exists().Key(key).Build())
	if err != nil {
		return false, err
	}
	n, err := msg.AsInt64()
	return n > 0, db.Wrap(db.OpExists, err)
}

// Scan returns every key matching the glob pattern, walking the cursor to
// the end. Keys may repeat if the keyspace changes during the walk.
func (s *Store) Scan(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	var cursor uint64
	for {
		cmd := s.client.B().Scan().Cursor(cursor).Match(pattern).Count(s.scanCount).Build()
		msg, err := s.call(ctx, db.OpScan, cmd)
		if err != nil {
			return nil, err
		}
		page, err := msg.AsScanEntry()
		if err != nil {
			return nil, db.Wrap(db.OpScan, err)
		}
		keys = append(keys, page.Elements...)
		if cursor = page.Cursor; cursor == 0 {
			return keys, nil
		}
	}
}

type errNonPositiveTTL time.Duration

func (e errNonPositiveTTL) Error() string {
	return "ttl must be positive, got " + time.Duration(e).String()
}
