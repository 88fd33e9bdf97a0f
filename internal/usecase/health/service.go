package health

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Status is the aggregated health of a scan station.
type Status string

const (
	// Healthy means every component answered.
	Healthy Status = "ok"
	// Degraded means some component failed.
	Degraded Status = "degraded"
	// Unhealthy means nothing answered.
	Unhealthy Status = "error"
)

// CheckResult is the outcome of one component probe.
type CheckResult string

const (
	CheckOK    CheckResult = "ok"
	CheckError CheckResult = "error"
)

// DefaultCheckTimeout bounds a single probe. A stalled serial link must not
// hang the health endpoint.
const DefaultCheckTimeout = 2 * time.Second

// Report aggregates the probes.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

type component struct {
	name   string
	pinger Pinger
}

// Service probes the run store and, when attached, the hardware rig.
type Service struct {
	components []component
	timeout    time.Duration
}

// New creates a Service. hardware may be nil when the server only reads runs.
func New(db DBPinger, hardware HardwarePinger) *Service {
	s := &Service{timeout: DefaultCheckTimeout}
	s.components = append(s.components, component{name: "database", pinger: db})
	if hardware != nil {
		s.components = append(s.components, component{name: "hardware", pinger: hardware})
	}
	return s
}

// WithTimeout overrides the per-probe deadline.
func (s *Service) WithTimeout(d time.Duration) *Service {
	if d > 0 {
		s.timeout = d
	}
	return s
}

// Check probes all components concurrently.
func (s *Service) Check(ctx context.Context) Report {
	var (
		mu     sync.Mutex
		checks = make(map[string]CheckResult, len(s.components))
	)
	var g errgroup.Group
	for _, c := range s.components {
		g.Go(func() error {
			pctx, cancel := context.WithTimeout(ctx, s.timeout)
			defer cancel()
			res := CheckOK
			if err := c.pinger.Ping(pctx); err != nil {
				res = CheckError
			}
			mu.Lock()
			checks[c.name] = res
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return Report{Status: aggregate(checks), Checks: checks}
}

func aggregate(checks map[string]CheckResult) Status {
	failed := 0
	for _, v := range checks {
		if v == CheckError {
			failed++
		}
	}
	switch {
	case failed == 0:
		return Healthy
	case failed == len(checks):
		return Unhealthy
	default:
		return Degraded
	}
}
