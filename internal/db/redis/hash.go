package redis

import (
	"context"

	"github.com/kailas-cloud/edgescan/internal/db"
)

// HSet writes fields into the hash at key in one command.
func (s *Store) HSet(ctx context.Context, key string, fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}
	cmd := s.client.B().Hset().Key(key).FieldValue()
	for f, v := range fields {
		cmd = cmd.FieldValue(f, v)
	}
	_, err := s.call(ctx, db.OpHSet, cmd.Build())
	return err
}

// HGetAll returns the hash at key; a missing key is an empty map.
func (s *Store) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	msg, err := s.call(ctx, db.OpHGetAll, s.client.B().Hgetall().Key(key).Build())
	if err != nil {
		return nil, err
	}
	m, err := msg.AsStrMap()
	return m, db.Wrap(db.OpHGetAll, err)
}

// HDel removes fields from the hash at key.
func (s *Store) HDel(ctx context.Context, key string, fields ...string) error {
	if len(fields) == 0 {
		return nil
	}
	_, err := s.call(ctx, db.OpHDel, s.client.B().Hdel().Key(key).Field(fields...).Build())
	return err
}
