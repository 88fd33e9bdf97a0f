// Package search sweeps a rectangular area for features, traces every new
// one it crosses and fits its geometry. It also provides the plain raster
// scan that maps an area without stopping.
package search

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/edgescan/internal/domain"
	"github.com/kailas-cloud/edgescan/internal/domain/feature"
	"github.com/kailas-cloud/edgescan/internal/domain/geometry"
	"github.com/kailas-cloud/edgescan/internal/domain/sample"
	"github.com/kailas-cloud/edgescan/internal/domain/sweep"
	logpkg "github.com/kailas-cloud/edgescan/internal/logger"
	"github.com/kailas-cloud/edgescan/internal/metrics"
	"github.com/kailas-cloud/edgescan/internal/usecase/fit"
	"github.com/kailas-cloud/edgescan/internal/usecase/probe"
	"github.com/kailas-cloud/edgescan/internal/usecase/trace"
)

// volumeProbe is the classification step along the travel direction, in
// fuzzy separations.
const volumeProbe = 3

// Params describes one domain search.
type Params struct {
	Origin   geometry.Coordinate
	Width    float64
	Height   float64
	Rotation float64
	// SnakeSeparation is the row and column spacing of the sweep. It should
	// be smaller than the smallest feature dimension.
	SnakeSeparation float64
	// FuzzySeparation is the tracer step and the dedup radius.
	FuzzySeparation float64
	// DetectionThreshold is the relative deviation from the reference that
	// counts as a detection.
	DetectionThreshold float64
	// Zero velocities keep the prober's own.
	SweepVelocity float64
	TraceVelocity float64
	Epsilon       float64
}

func (p Params) validate() error {
	switch {
	case !(p.FuzzySeparation > 0):
		return domain.NewPrecondition("domain search", "fuzzy separation must be positive, got %g", p.FuzzySeparation)
	case p.DetectionThreshold < 0:
		return domain.NewPrecondition("domain search", "detection threshold must not be negative, got %g", p.DetectionThreshold)
	case p.SweepVelocity < 0 || p.TraceVelocity < 0:
		return domain.NewPrecondition("domain search", "velocities must not be negative")
	}
	return nil
}

// RasterParams describes a raster scan.
type RasterParams struct {
	Origin     geometry.Coordinate
	Width      float64
	Height     float64
	Rotation   float64
	Separation float64
	Velocity   float64
	Epsilon    float64
}

// Result holds everything a domain search recorded.
type Result struct {
	Trace    sample.Trace      `json:"trace"`
	Features []feature.Feature `json:"features"`
}

// Single returns the feature when exactly one was found.
func (r Result) Single() (feature.Feature, bool) {
	if len(r.Features) != 1 {
		return feature.Feature{}, false
	}
	return r.Features[0], true
}

// Options configures a Service.
type Options struct {
	Trace trace.Options
	Fit   fit.Options
}

// Service runs searches with one prober.
type Service struct {
	probe  *probe.Prober
	opts   Options
	logger *zap.Logger
}

// New creates a search service.
func New(p *probe.Prober, opts Options, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{probe: p, opts: opts, logger: logger}
}

func (s *Service) at(velocity float64) *probe.Prober {
	if velocity > 0 {
		return s.probe.At(velocity)
	}
	return s.probe
}

func (s *Service) checkAxes(op string, origin geometry.Coordinate) error {
	axes := s.probe.Axes()
	if axes < 2 {
		return domain.NewPrecondition(op, "stage has %d axes, need at least 2", axes)
	}
	if origin.Dim() > axes {
		return domain.NewPrecondition(op, "origin has %d axes, stage has %d", origin.Dim(), axes)
	}
	return nil
}

// DomainSearch sweeps the area in a snake and stops whenever the magnitude
// deviates from the reference taken at the first waypoint. A detection
// farther than the fuzzy separation from every known feature is classified
// by probing further along the travel direction: a magnitude back at the
// reference means a crack, anything else an area. The feature is then traced,
// fitted and recorded, and the sweep resumes toward the same waypoint.
//
// After any detection the sweep only stops again once it has seen a
// background sample, so it crosses known features without re-triggering.
func (s *Service) DomainSearch(ctx context.Context, p Params) (Result, error) {
	started := time.Now()
	if err := s.checkAxes("domain search", p.Origin); err != nil {
		return Result{}, err
	}
	if err := p.validate(); err != nil {
		return Result{}, err
	}
	waypoints, err := sweep.Generate(sweep.Params{
		Separation: p.SnakeSeparation,
		XInit:      p.Origin.X(),
		YInit:      p.Origin.Y(),
		Width:      p.Width,
		Height:     p.Height,
		Rotation:   p.Rotation,
		Epsilon:    p.Epsilon,
	})
	if err != nil {
		return Result{}, err
	}

	r := &searchRun{
		s:      s,
		p:      p,
		sweep:  s.at(p.SweepVelocity),
		tracer: s.at(p.TraceVelocity),
		armed:  true,
		log:    logpkg.FromContext(ctx, s.logger),
	}
	if err := r.sweep.Move(ctx, waypoints[0], probe.Absolute); err != nil {
		return Result{}, fmt.Errorf("domain search: move to first waypoint: %w", err)
	}
	r.ref, err = r.sweep.Measure(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("domain search: reference: %w", err)
	}
	if r.ref == 0 {
		return Result{}, domain.NewPrecondition("domain search", "reference magnitude is zero")
	}
	r.log.Info("Domain search started",
		zap.Int("waypoints", len(waypoints)),
		zap.Float64("reference", r.ref),
		zap.Float64("threshold", p.DetectionThreshold),
	)

	for i, wp := range waypoints[1:] {
		if err := r.leg(ctx, wp); err != nil {
			return r.result(), fmt.Errorf("domain search: leg %d: %w", i+1, err)
		}
	}

	r.log.Info("Domain search finished",
		zap.Int("features", r.features.Len()),
		zap.Int("samples", r.trace.Len()),
		zap.Duration("duration", time.Since(started)),
	)
	return r.result(), nil
}

// searchRun carries the state of one domain search.
type searchRun struct {
	s        *Service
	p        Params
	sweep    *probe.Prober
	tracer   *probe.Prober
	log      *zap.Logger
	ref      float64
	armed    bool
	trace    sample.Trace
	features feature.Set
}

func (r *searchRun) result() Result {
	return Result{Trace: r.trace, Features: r.features.List()}
}

func (r *searchRun) detected(v float64) bool {
	return math.Abs(v/r.ref-1) > r.p.DetectionThreshold
}

// brk fires on a detection only once a background sample has been seen
// since the last one.
func (r *searchRun) brk(v float64) bool {
	if !r.detected(v) {
		r.armed = true
		return false
	}
	if !r.armed {
		return false
	}
	r.armed = false
	return true
}

// leg scans toward wp until the stage gets there, handling every detection
// on the way.
func (r *searchRun) leg(ctx context.Context, wp geometry.Coordinate) error {
	for {
		if err := ctx.Err(); err != nil {
			return err //nolint:wrapcheck // caller sees the context error as is
		}
		from, err := r.sweep.Position(ctx)
		if err != nil {
			return err
		}
		if geometry.Within(planar(from), wp, r.p.FuzzySeparation) {
			return nil
		}
		// An early idle report ends the scan short of wp; the loop retries.
		tr, broke, err := r.sweep.LinearScan(ctx, wp, probe.Absolute, r.brk)
		r.trace.Extend(tr)
		if err != nil {
			return err
		}
		if !broke {
			continue
		}
		if err := r.detection(ctx, from, wp, tr); err != nil {
			return err
		}
	}
}

func (r *searchRun) detection(ctx context.Context, from, wp geometry.Coordinate, tr sample.Trace) error {
	last, _ := tr.Last()
	hit := last.Position
	if !r.features.IsNew(hit, r.p.FuzzySeparation) {
		r.log.Debug("Known feature crossed", zap.Float64s("position", hit))
		return nil
	}

	prev := from
	if tr.Len() >= 2 {
		prev = tr[tr.Len()-2].Position
	}
	dir := planar(hit).Sub(planar(prev)).Unit()
	if dir.Norm() == 0 {
		dir = wp.Sub(planar(from)).Unit()
	}

	line, err := r.isLine(ctx, dir, last.Magnitude)
	if err != nil {
		return err
	}
	tracer := trace.New(r.tracer, trace.Options{
		Separation: r.p.FuzzySeparation,
		MaxSteps:   r.s.opts.Trace.MaxSteps,
	}, r.log)

	var f feature.Feature
	if line {
		ftr, err := tracer.Line(ctx, dir)
		r.trace.Extend(ftr)
		if err != nil {
			return err
		}
		seg, err := fit.Segment(ftr, r.ref)
		if err != nil {
			return err
		}
		edge, err := r.bordersArea(ctx, seg)
		if err != nil {
			return err
		}
		if edge {
			// A corner graze reads as a line. Drop it and resume the sweep
			// from the hit; the next row crosses the area properly.
			r.log.Debug("Line rejected, area alongside",
				zap.Float64s("origin", hit),
				zap.Float64s("start", seg.Start),
				zap.Float64s("end", seg.End),
			)
			r.armed = false
			return r.tracer.Move(ctx, planar(hit), probe.Absolute)
		}
		f = feature.NewLine(seg, hit, ftr)
	} else {
		ftr, err := tracer.Perimeter(ctx, dir)
		r.trace.Extend(ftr)
		if err != nil {
			return err
		}
		rect, err := fit.Rectangle(ftr, fit.Seed(ftr, r.s.opts.Fit), r.s.opts.Fit)
		if err != nil {
			return err
		}
		f = feature.NewArea(rect, hit, ftr)
	}

	r.features.Add(f)
	r.armed = false
	metrics.FeaturesTotal.WithLabelValues(string(f.Kind)).Inc()
	r.log.Info("Feature found",
		zap.String("kind", string(f.Kind)),
		zap.Float64s("origin", hit),
		zap.Int("samples", f.Trace.Len()),
	)
	return nil
}

// isLine steps volumeProbe fuzzy separations along dir, measures and steps
// back. A crack is narrow, so the magnitude there is back near the reference;
// an area is still under the probe.
func (r *searchRun) isLine(ctx context.Context, dir geometry.Coordinate, edge float64) (bool, error) {
	step := dir.Scale(volumeProbe * r.p.FuzzySeparation)
	if err := r.tracer.Move(ctx, step, probe.Relative); err != nil {
		return false, err
	}
	v, err := r.tracer.Measure(ctx)
	if err != nil {
		return false, err
	}
	if err := r.tracer.Move(ctx, step.Scale(-1), probe.Relative); err != nil {
		return false, err
	}
	line := math.Abs(v-r.ref) < math.Abs(v-edge)
	r.log.Debug("Detection classified",
		zap.Bool("line", line),
		zap.Float64("volume", v),
		zap.Float64("edge", edge),
	)
	return line, nil
}

// bordersArea measures volumeProbe fuzzy separations either side of the
// segment midpoint. A crack leaves background on both sides.
func (r *searchRun) bordersArea(ctx context.Context, seg geometry.Segment) (bool, error) {
	a, b := planar(seg.Start), planar(seg.End)
	d := b.Sub(a).Unit()
	if d.Norm() == 0 {
		return false, nil
	}
	mid := a.Add(b).Scale(0.5)
	off := geometry.C(-d.Y(), d.X()).Scale(volumeProbe * r.p.FuzzySeparation)
	for _, side := range []geometry.Coordinate{mid.Add(off), mid.Sub(off)} {
		if err := r.tracer.Move(ctx, side, probe.Absolute); err != nil {
			return false, err
		}
		v, err := r.tracer.Measure(ctx)
		if err != nil {
			return false, err
		}
		if r.detected(v) {
			return true, nil
		}
	}
	return false, nil
}

// RasterScan visits every waypoint without stopping and returns the whole map.
func (s *Service) RasterScan(ctx context.Context, p RasterParams) (sample.Trace, error) {
	if err := s.checkAxes("raster scan", p.Origin); err != nil {
		return nil, err
	}
	if p.Velocity < 0 {
		return nil, domain.NewPrecondition("raster scan", "velocity must not be negative")
	}
	waypoints, err := sweep.Generate(sweep.Params{
		Separation: p.Separation,
		XInit:      p.Origin.X(),
		YInit:      p.Origin.Y(),
		Width:      p.Width,
		Height:     p.Height,
		Rotation:   p.Rotation,
		Epsilon:    p.Epsilon,
	})
	if err != nil {
		return nil, err
	}
	pr := s.at(p.Velocity)
	if err := pr.Move(ctx, waypoints[0], probe.Absolute); err != nil {
		return nil, fmt.Errorf("raster scan: move to first waypoint: %w", err)
	}
	var out sample.Trace
	for i, wp := range waypoints[1:] {
		tr, _, err := pr.LinearScan(ctx, wp, probe.Absolute, probe.Never)
		out.Extend(tr)
		if err != nil {
			return out, fmt.Errorf("raster scan: leg %d: %w", i+1, err)
		}
	}
	logpkg.FromContext(ctx, s.logger).Info("Raster scan finished",
		zap.Int("waypoints", len(waypoints)),
		zap.Int("samples", out.Len()),
	)
	return out, nil
}

func planar(c geometry.Coordinate) geometry.Coordinate {
	return geometry.C(c.X(), c.Y())
}
