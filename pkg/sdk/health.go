package edgescan

import (
	"context"
	"time"

	healthuc "github.com/kailas-cloud/edgescan/internal/usecase/health"
)

// Pinger is a component the client can probe for health, typically the
// stage driver handed to Scan.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Health states.
const (
	HealthOK       = "ok"
	HealthDegraded = "degraded"
	HealthDown     = "error"
)

// HealthStatus is the aggregated state of the run store and, when attached
// with WithHardware, the stage.
type HealthStatus struct {
	Status    string
	Checks    map[string]string // "database", "hardware" → ok/error
	CheckedAt time.Time
}

// OK reports whether every component answered.
func (h HealthStatus) OK() bool { return h.Status == HealthOK }

// Health probes all components concurrently.
func (c *Client) Health(ctx context.Context) HealthStatus {
	report := c.healthSvc.Check(ctx)
	out := HealthStatus{
		Status:    string(report.Status),
		Checks:    make(map[string]string, len(report.Checks)),
		CheckedAt: time.Now(),
	}
	for name, res := range report.Checks {
		out.Checks[name] = string(res)
	}
	return out
}

type healthUseCase interface {
	Check(ctx context.Context) healthuc.Report
}
