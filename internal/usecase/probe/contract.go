package probe

import (
	"context"

	"github.com/kailas-cloud/edgescan/internal/domain/geometry"
)

// MoveMode selects absolute or relative targets.
type MoveMode string

const (
	Absolute MoveMode = "abs"
	Relative MoveMode = "rel"
)

// Actuator is the motion stage carrying the probe.
type Actuator interface {
	Axes() int
	Move(ctx context.Context, target geometry.Coordinate, velocity float64, mode MoveMode, wait bool) error
	Position(ctx context.Context) (geometry.Coordinate, error)
	IsBusy(ctx context.Context) (bool, error)
	Stop(ctx context.Context) error
}

// Sensor acquires one record per call, one buffer per channel. Record blocks
// until the instrument has data.
type Sensor interface {
	Record(ctx context.Context) ([][]float64, error)
}

// BreakFunc decides from the latest magnitude whether a scan stops early.
type BreakFunc func(magnitude float64) bool

// Never is a BreakFunc that lets a scan run to its target.
func Never(float64) bool { return false }
