// Package fit turns traced samples into geometry: a rotated rectangle for
// area features, a segment for cracks, and a lift-off correction for the
// magnitudes themselves.
package fit

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/optimize"

	"github.com/kailas-cloud/edgescan/internal/domain"
	"github.com/kailas-cloud/edgescan/internal/domain/geometry"
	"github.com/kailas-cloud/edgescan/internal/domain/sample"
	"github.com/kailas-cloud/edgescan/internal/metrics"
)

// Defaults for Options fields left zero.
const (
	DefaultGradientFraction = 0.1
	DefaultRestarts         = 2
	DefaultMaxEvaluations   = 50000
	DefaultMaxPoints        = 500
)

// DefaultInitial is the starting pose used when the caller passes a zero
// rectangle. It suits the reference plate layout only; real fits should
// start from Seed.
var DefaultInitial = geometry.Rectangle{OriginX: 80, OriginY: 40, Width: 50, Height: 50}

// Options tunes the rectangle fit.
type Options struct {
	// GradientFraction keeps points whose gradient exceeds this share of the
	// largest gradient in the trace.
	GradientFraction float64
	// Restarts reruns the simplex search from the previous optimum. Negative
	// disables restarts.
	Restarts int
	// MaxEvaluations bounds objective evaluations per run.
	MaxEvaluations int
	// MaxPoints thins the input evenly down to at most this many points.
	MaxPoints int
}

func (o Options) withDefaults() Options {
	if o.GradientFraction <= 0 {
		o.GradientFraction = DefaultGradientFraction
	}
	if o.Restarts < 0 {
		o.Restarts = 0
	} else if o.Restarts == 0 {
		o.Restarts = DefaultRestarts
	}
	if o.MaxEvaluations <= 0 {
		o.MaxEvaluations = DefaultMaxEvaluations
	}
	if o.MaxPoints <= 0 {
		o.MaxPoints = DefaultMaxPoints
	}
	return o
}

// GradientFilter returns the positions where the magnitude changes fastest:
// |dv|/|dp| between a sample and its successor above fraction times the
// largest such value. The last sample has no successor and is never kept.
func GradientFilter(tr sample.Trace, fraction float64) []geometry.Coordinate {
	if tr.Len() < 2 {
		return nil
	}
	grad := make([]float64, tr.Len()-1)
	var peak float64
	for i := range grad {
		dp := tr[i+1].Position.Dist(tr[i].Position)
		if dp == 0 {
			continue
		}
		grad[i] = math.Abs(tr[i+1].Magnitude-tr[i].Magnitude) / dp
		peak = math.Max(peak, grad[i])
	}
	if peak == 0 {
		return nil
	}
	var out []geometry.Coordinate
	for i, g := range grad {
		if g > fraction*peak {
			out = append(out, tr[i].Position)
		}
	}
	return out
}

// Bounds returns the axis-aligned bounding rectangle of points.
func Bounds(points []geometry.Coordinate) geometry.Rectangle {
	if len(points) == 0 {
		return geometry.Rectangle{}
	}
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, p := range points {
		minX, maxX = math.Min(minX, p.X()), math.Max(maxX, p.X())
		minY, maxY = math.Min(minY, p.Y()), math.Max(maxY, p.Y())
	}
	return geometry.Rectangle{OriginX: minX, OriginY: minY, Width: maxX - minX, Height: maxY - minY}
}

// Seed returns the bounding box of the edge points of a trace, a starting
// pose for Rectangle.
func Seed(tr sample.Trace, opts Options) geometry.Rectangle {
	return Bounds(GradientFilter(tr, opts.withDefaults().GradientFraction))
}

// Rectangle fits a rectangle to the edge points of a trace.
func Rectangle(tr sample.Trace, initial geometry.Rectangle, opts Options) (geometry.Rectangle, error) {
	opts = opts.withDefaults()
	return Points(GradientFilter(tr, opts.GradientFraction), initial, opts)
}

// Points fits a rectangle so that every point lies on its boundary,
// minimizing the sum of squared edge distances with Nelder-Mead. Rotation
// is searched in units of a characteristic length so that all five
// parameters move on the same scale. The result has positive sides. A
// zero initial rectangle means DefaultInitial.
func Points(points []geometry.Coordinate, initial geometry.Rectangle, opts Options) (geometry.Rectangle, error) {
	opts = opts.withDefaults()
	if len(points) < 3 {
		metricFitFailed()
		return geometry.Rectangle{}, fmt.Errorf("fit rectangle to %d points: %w", len(points), domain.ErrFitFailed)
	}
	points = thin(points, opts.MaxPoints)
	if initial == (geometry.Rectangle{}) {
		initial = DefaultInitial
	}

	scale := math.Max(math.Max(math.Abs(initial.Width), math.Abs(initial.Height)), 1)
	toRect := func(x []float64) geometry.Rectangle {
		return geometry.Rectangle{OriginX: x[0], OriginY: x[1], Width: x[2], Height: x[3], Rotation: x[4] / scale}
	}
	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			r := toRect(x)
			var sum float64
			for _, p := range points {
				d := r.Distance(p)
				sum += d * d
			}
			return sum
		},
	}

	x := initial.Params()
	x[4] *= scale
	best := math.Inf(1)
	for range opts.Restarts + 1 {
		settings := &optimize.Settings{
			Converger:       &optimize.FunctionConverge{Absolute: 1e-14, Relative: 1e-12, Iterations: 200},
			FuncEvaluations: opts.MaxEvaluations,
		}
		res, err := optimize.Minimize(problem, x, settings, &optimize.NelderMead{SimplexSize: 0.1 * scale})
		if err != nil {
			metricFitFailed()
			return geometry.Rectangle{}, fmt.Errorf("fit rectangle: %w: %w", domain.ErrFitFailed, err)
		}
		if res.F <= best {
			best = res.F
			x = res.X
		}
	}
	for _, v := range x {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			metricFitFailed()
			return geometry.Rectangle{}, fmt.Errorf("fit rectangle: non-finite parameters: %w", domain.ErrFitFailed)
		}
	}
	metricFitOK()
	return toRect(x).Normalize(), nil
}

func thin(points []geometry.Coordinate, n int) []geometry.Coordinate {
	if len(points) <= n {
		return points
	}
	out := make([]geometry.Coordinate, n)
	for i := range out {
		out[i] = points[i*len(points)/n]
	}
	return out
}

func metricFitOK()     { metrics.FitTotal.WithLabelValues("ok").Inc() }
func metricFitFailed() { metrics.FitTotal.WithLabelValues("failed").Inc() }
