package trace

import (
	"context"

	"github.com/kailas-cloud/edgescan/internal/domain/geometry"
	"github.com/kailas-cloud/edgescan/internal/domain/sample"
	"github.com/kailas-cloud/edgescan/internal/usecase/probe"
)

// Prober is the probe surface the tracers drive.
type Prober interface {
	Axes() int
	Position(ctx context.Context) (geometry.Coordinate, error)
	Move(ctx context.Context, target geometry.Coordinate, mode probe.MoveMode) error
	Measure(ctx context.Context) (float64, error)
	LinearScan(ctx context.Context, target geometry.Coordinate, mode probe.MoveMode, brk probe.BreakFunc) (sample.Trace, bool, error)
}
