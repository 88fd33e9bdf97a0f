package edgescan

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/edgescan/internal/db"
	"github.com/kailas-cloud/edgescan/internal/db/memory"
	dbRedis "github.com/kailas-cloud/edgescan/internal/db/redis"
	"github.com/kailas-cloud/edgescan/internal/db/sqlite"
	domrun "github.com/kailas-cloud/edgescan/internal/domain/run"
	runrepo "github.com/kailas-cloud/edgescan/internal/repository/run"
	healthuc "github.com/kailas-cloud/edgescan/internal/usecase/health"
)

const defaultReadinessTimeout = 10 * time.Second

// Internal interfaces replaced in tests.
type runStore interface {
	Save(ctx context.Context, r *domrun.Run) error
	Get(ctx context.Context, id string) (*domrun.Run, error)
	List(ctx context.Context) ([]domrun.Summary, error)
	Delete(ctx context.Context, id string) error
}

// Client is the edgescan SDK entry point.
type Client struct {
	store     db.Store
	runs      runStore
	healthSvc healthUseCase
	obs       *observer
	logger    *zap.Logger
}

// New creates a Client and waits for its store to be ready. Without a store
// option runs are kept in memory.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := &clientConfig{driver: "memory"}
	for _, o := range opts {
		o.apply(cfg)
	}

	store, err := createStore(cfg)
	if err != nil {
		return nil, err
	}
	if err := store.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
		store.Close()
		return nil, fmt.Errorf("edgescan: database not ready: %w", err)
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		store.Close()
		return nil, err
	}
	var hw healthuc.HardwarePinger
	if cfg.hardware != nil {
		hw = cfg.hardware
	}
	return &Client{
		store:     store,
		runs:      runrepo.New(store, cfg.keyPrefix, cfg.runTTL),
		healthSvc: healthuc.New(store, hw).WithTimeout(cfg.healthTimeout),
		obs:       obs,
		logger:    zap.NewNop(),
	}, nil
}

func createStore(cfg *clientConfig) (db.Store, error) {
	switch cfg.driver {
	case "memory":
		return memory.NewStore(), nil
	case "redis", "valkey":
		if len(cfg.addrs) == 0 || cfg.addrs[0] == "" {
			return nil, fmt.Errorf("edgescan: %s address required", cfg.driver)
		}
		s, err := dbRedis.NewStore(dbRedis.Config{Addrs: cfg.addrs, Password: cfg.password})
		if err != nil {
			return nil, fmt.Errorf("edgescan: create %s store: %w", cfg.driver, err)
		}
		return s, nil
	case "sqlite":
		s, err := sqlite.NewStore(cfg.path)
		if err != nil {
			return nil, fmt.Errorf("edgescan: create sqlite store: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("edgescan: unknown driver %q", cfg.driver)
	}
}

// Close releases the store.
func (c *Client) Close() {
	if c.store != nil {
		c.store.Close()
	}
}

// Ping checks database connectivity.
func (c *Client) Ping(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("ping", start, err) }()

	if err = c.store.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Runs returns the stored run service.
func (c *Client) Runs() *RunService {
	return &RunService{store: c.runs, obs: c.obs}
}
