// Package redis implements db.Store over rueidis for Redis and Valkey.
package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/edgescan/internal/db"
)

var _ db.Store = (*Store)(nil)

// DefaultScanCount is the SCAN page size hint.
const DefaultScanCount = 100

// Config holds connection parameters.
type Config struct {
	Addrs    []string
	Username string
	Password string
	DB       int
	// Standalone skips cluster topology discovery.
	Standalone bool
	// ScanCount is the SCAN page size hint; zero selects DefaultScanCount.
	ScanCount int64
}

// Store keeps runs in Redis or Valkey. Client-side caching is off: a run is
// read rarely and only after it was written by another process.
type Store struct {
	client    rueidis.Client
	scanCount int64
}

// NewStore connects to the configured servers.
func NewStore(cfg Config) (*Store, error) {
	if len(cfg.Addrs) == 0 {
		return nil, errors.New("redis: at least one address is required")
	}
	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:       cfg.Addrs,
		Username:          cfg.Username,
		Password:          cfg.Password,
		SelectDB:          cfg.DB,
		ForceSingleClient: cfg.Standalone,
		DisableCache:      true,
	})
	if err != nil {
		return nil, db.Wrap(db.OpPing, err)
	}
	return newStore(client, cfg.ScanCount), nil
}

// NewStoreForTest wraps an existing client, typically a rueidis mock.
func NewStoreForTest(c rueidis.Client) *Store {
	return newStore(c, 0)
}

func newStore(c rueidis.Client, scanCount int64) *Store {
	if scanCount <= 0 {
		scanCount = DefaultScanCount
	}
	return &Store{client: c, scanCount: scanCount}
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	_, err := s.call(ctx, db.OpPing, s.client.B().Ping().Build())
	return err
}

// Close shuts down the client.
func (s *Store) Close() {
	s.client.Close()
}

// WaitForReady pings until the server answers or timeout expires.
func (s *Store) WaitForReady(ctx context.Context, timeout time.Duration) error {
	return db.WaitForReady(ctx, s, timeout, db.DefaultPollInterval)
}

// call runs one command. A nil reply is ErrKeyNotFound; any other failure
// is a db.Error tagged with op.
func (s *Store) call(ctx context.Context, op string, cmd rueidis.Completed) (rueidis.RedisMessage, error) {
	msg, err := s.client.Do(ctx, cmd).ToMessage()
	if rueidis.IsRedisNil(err) {
		return msg, db.ErrKeyNotFound
	}
	return msg, db.Wrap(op, err)
}
