// Package trace follows feature boundaries with short zig-zag scans across
// the edge: around the perimeter of an area feature, or along both arms of
// a crack.
package trace

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/edgescan/internal/domain"
	"github.com/kailas-cloud/edgescan/internal/domain/geometry"
	"github.com/kailas-cloud/edgescan/internal/domain/sample"
	"github.com/kailas-cloud/edgescan/internal/metrics"
	"github.com/kailas-cloud/edgescan/internal/usecase/probe"
)

// DefaultMaxSteps bounds the number of half-steps of one trace.
const DefaultMaxSteps = 10000

const (
	// referenceOffset is how far, in separations, the references are taken
	// from the detection point.
	referenceOffset = 5
	// scanLength is the cross-edge scan length in separations.
	scanLength = 3
	// closeRadius is the return distance, in separations, that closes a perimeter.
	closeRadius = 1.5
	// lineMisses ends one arm of a line trace.
	lineMisses = 4
)

// State is the tracer state.
type State string

const (
	AdvanceAlongEdge State = "advance"
	CornerTurn       State = "corner"
	Terminated       State = "terminated"
)

// Options configures a Tracer.
type Options struct {
	Separation float64
	MaxSteps   int
}

// Tracer follows edges starting from the current stage position.
type Tracer struct {
	probe    Prober
	sep      float64
	maxSteps int
	logger   *zap.Logger
}

// New creates a tracer.
func New(p Prober, opts Options, logger *zap.Logger) *Tracer {
	if logger == nil {
		logger = zap.NewNop()
	}
	maxSteps := opts.MaxSteps
	if maxSteps <= 0 {
		maxSteps = DefaultMaxSteps
	}
	return &Tracer{probe: p, sep: opts.Separation, maxSteps: maxSteps, logger: logger}
}

// Separation returns the step size.
func (t *Tracer) Separation() float64 { return t.sep }

// run carries the state of one trace.
type run struct {
	t      *Tracer
	trace  sample.Trace
	state  State
	steps  int
	kind   string
	origin geometry.Coordinate
}

func (t *Tracer) start(ctx context.Context, kind string, initDirection geometry.Coordinate) (*run, geometry.Coordinate, error) {
	if !(t.sep > 0) {
		return nil, nil, domain.NewPrecondition("trace "+kind, "separation must be positive, got %g", t.sep)
	}
	axes := t.probe.Axes()
	if axes < 2 || initDirection.Dim() > axes {
		return nil, nil, domain.NewPrecondition("trace "+kind,
			"direction has %d axes, stage has %d", initDirection.Dim(), axes)
	}
	dir := geometry.C(initDirection.X(), initDirection.Y()).Unit().Pad(axes)
	if dir.Norm() == 0 {
		return nil, nil, domain.NewPrecondition("trace "+kind, "initial direction is zero")
	}
	origin, err := t.probe.Position(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("trace %s: %w", kind, err)
	}
	return &run{t: t, state: AdvanceAlongEdge, kind: kind, origin: origin}, dir, nil
}

// references measures magnitudes at +a and +b separations along dir, then
// returns to the origin.
func (r *run) references(ctx context.Context, dir geometry.Coordinate, a, b float64) (float64, float64, error) {
	p, sep := r.t.probe, r.t.sep
	if a != 0 {
		if err := p.Move(ctx, dir.Scale(a*sep), probe.Relative); err != nil {
			return 0, 0, err
		}
	}
	va, err := p.Measure(ctx)
	if err != nil {
		return 0, 0, err
	}
	if err := p.Move(ctx, dir.Scale((b-a)*sep), probe.Relative); err != nil {
		return 0, 0, err
	}
	vb, err := p.Measure(ctx)
	if err != nil {
		return 0, 0, err
	}
	if err := p.Move(ctx, r.origin, probe.Absolute); err != nil {
		return 0, 0, err
	}
	return va, vb, nil
}

// halfStep moves one diagonal step and scans back across the edge. The
// diagonal is sep*c + sep*side, the scan runs 3*sep along -side.
func (r *run) halfStep(ctx context.Context, c, side geometry.Coordinate, brk probe.BreakFunc) (bool, error) {
	r.steps++
	if r.steps > r.t.maxSteps {
		return false, fmt.Errorf("trace %s after %d half-steps: %w", r.kind, r.t.maxSteps, domain.ErrTraceNotClosed)
	}
	sep := r.t.sep
	if err := r.t.probe.Move(ctx, c.Scale(sep).Add(side.Scale(sep)), probe.Relative); err != nil {
		return false, err
	}
	tr, broke, err := r.t.probe.LinearScan(ctx, side.Scale(-scanLength*sep), probe.Relative, brk)
	r.trace.Extend(tr)
	if err != nil {
		return false, err
	}
	if broke {
		r.state = AdvanceAlongEdge
		return true, nil
	}
	r.state = CornerTurn
	r.t.logger.Debug("Edge lost, turning",
		zap.String("kind", r.kind),
		zap.Int("step", r.steps),
		zap.String("state", string(r.state)),
	)
	return false, nil
}

func (r *run) finish(err error, started time.Time) (sample.Trace, error) {
	r.state = Terminated
	metrics.TraceDuration.WithLabelValues(r.kind).Observe(time.Since(started).Seconds())
	if err != nil {
		r.t.logger.Warn("Trace ended with error",
			zap.String("kind", r.kind),
			zap.Int("steps", r.steps),
			zap.Int("samples", r.trace.Len()),
			zap.Error(err),
		)
		return r.trace, fmt.Errorf("trace %s: %w", r.kind, err)
	}
	r.t.logger.Info("Trace closed",
		zap.String("kind", r.kind),
		zap.Int("steps", r.steps),
		zap.Int("samples", r.trace.Len()),
	)
	return r.trace, nil
}

// nearest reports whether v is closer to want than to other.
func nearest(want, other float64) probe.BreakFunc {
	return func(v float64) bool { return math.Abs(v-want) < math.Abs(v-other) }
}

// Perimeter walks around an area feature, starting on its edge. The
// initial direction is the travel direction that found the edge; the walk
// starts to its right and ends once the probe is back within 1.5
// separations of the start after having left it.
func (t *Tracer) Perimeter(ctx context.Context, initDirection geometry.Coordinate) (sample.Trace, error) {
	started := time.Now()
	r, dir, err := t.start(ctx, "perimeter", initDirection)
	if err != nil {
		return nil, err
	}
	onRef, offRef, err := r.references(ctx, dir, referenceOffset, -referenceOffset)
	if err != nil {
		return r.finish(err, started)
	}
	on, off := nearest(onRef, offRef), nearest(offRef, onRef)
	t.logger.Debug("Perimeter references",
		zap.Float64("on", onRef), zap.Float64("off", offRef))

	c := geometry.RotateCW(dir)
	departed := false
	for {
		// Step inward, scan out until off the feature.
		for {
			broke, err := r.halfStep(ctx, c, geometry.RotateCCW(c), off)
			if err != nil {
				return r.finish(err, started)
			}
			if broke {
				break
			}
			c = geometry.RotateCW(c)
		}
		// Step outward, scan in until on the feature.
		for {
			broke, err := r.halfStep(ctx, c, geometry.RotateCW(c), on)
			if err != nil {
				return r.finish(err, started)
			}
			if broke {
				break
			}
			c = geometry.RotateCCW(c)
		}

		pos, err := t.probe.Position(ctx)
		if err != nil {
			return r.finish(err, started)
		}
		if !departed {
			departed = !geometry.Within(r.origin, pos, t.sep)
			continue
		}
		if geometry.Within(r.origin, pos, closeRadius*t.sep) {
			return r.finish(nil, started)
		}
	}
}

// Line follows a crack through the current position in both directions.
// Each arm ends after four consecutive scans miss the crack; a detection
// closer than half a separation to a point already on the crack counts as
// a miss, which stops the walk from turning back along itself at the tip.
func (t *Tracer) Line(ctx context.Context, initDirection geometry.Coordinate) (sample.Trace, error) {
	started := time.Now()
	r, dir, err := t.start(ctx, "line", initDirection)
	if err != nil {
		return nil, err
	}
	onRef, offRef, err := r.references(ctx, dir, 0, -referenceOffset)
	if err != nil {
		return r.finish(err, started)
	}
	crack := nearest(onRef, offRef)
	t.logger.Debug("Line references",
		zap.Float64("on", onRef), zap.Float64("off", offRef))

	seen := []geometry.Coordinate{r.origin}
	for arm, c := range []geometry.Coordinate{geometry.RotateCW(dir), geometry.RotateCCW(dir)} {
		if arm > 0 {
			if err := t.probe.Move(ctx, r.origin, probe.Absolute); err != nil {
				return r.finish(err, started)
			}
		}
		misses := 0
		for misses < lineMisses {
			broke, err := r.halfStep(ctx, c, geometry.RotateCCW(c), crack)
			if err != nil {
				return r.finish(err, started)
			}
			if broke {
				last, _ := r.trace.Last()
				if novel(last.Position, seen, t.sep/2) {
					seen = append(seen, last.Position)
					misses = 0
					continue
				}
			}
			misses++
			c = geometry.RotateCW(c)
		}
	}
	return r.finish(nil, started)
}

func novel(p geometry.Coordinate, seen []geometry.Coordinate, r float64) bool {
	for _, s := range seen {
		if geometry.Within(s, p, r) {
			return false
		}
	}
	return true
}
