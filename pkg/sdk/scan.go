package edgescan

import (
	"context"
	"fmt"
	"time"

	"github.com/kailas-cloud/edgescan/internal/domain/geometry"
	domrun "github.com/kailas-cloud/edgescan/internal/domain/run"
	"github.com/kailas-cloud/edgescan/internal/usecase/fit"
	"github.com/kailas-cloud/edgescan/internal/usecase/job"
	"github.com/kailas-cloud/edgescan/internal/usecase/probe"
	"github.com/kailas-cloud/edgescan/internal/usecase/search"
	"github.com/kailas-cloud/edgescan/internal/usecase/trace"
)

// ScanRequest describes one job on a caller-supplied stage and sensor.
type ScanRequest struct {
	Name string
	// Mode defaults to ModeSearch.
	Mode Mode

	// Origin is the first corner of the area; nil means (0, 0).
	Origin   Coordinate
	Width    float64
	Height   float64
	Rotation float64

	// SnakeSeparation is the row spacing of the sweep in both modes.
	SnakeSeparation float64
	// FuzzySeparation is the tracer step and the radius within which a
	// detection belongs to a known feature. Search only.
	FuzzySeparation float64
	// DetectionThreshold is the relative deviation from the reference that
	// stops the sweep. Search only.
	DetectionThreshold float64

	// Velocity is the default stage speed in mm/s. SweepVelocity and
	// TraceVelocity override it for the sweep and the tracers.
	Velocity      float64
	SweepVelocity float64
	TraceVelocity float64
	// PollInterval between busy checks while scanning. Zero polls without
	// waiting.
	PollInterval time.Duration

	// Channels whose values enter the magnitude. Empty means channel 0.
	Channels []int
	// Liftoff corrects a raster map for probe drift: "linear" or
	// "quadratic". Raster only.
	Liftoff string
	// MaxTraceSteps bounds each tracer. Zero selects the default.
	MaxTraceSteps int
}

// Scan runs the job on act and sensor and stores it. When the scan fails
// part way the partial run is stored and returned with the error.
func (c *Client) Scan(ctx context.Context, act Actuator, sensor Sensor, req ScanRequest) (_ *Run, err error) {
	start := time.Now()
	defer func() { c.obs.observe("scan", start, err) }()

	p := probe.New(act, sensor, probe.Options{
		Velocity:     req.Velocity,
		PollInterval: req.PollInterval,
		Channels:     req.Channels,
	}, c.logger)
	scanner := search.New(p, search.Options{Trace: trace.Options{MaxSteps: req.MaxTraceSteps}}, c.logger)

	out, err := job.New(scanner, c.runs, job.ExportOptions{}, c.logger).Run(ctx, req.spec())
	var r *Run
	if out.Run != nil {
		r = fromInternalRun(out.Run)
		c.obs.found(r.Features)
	}
	if err != nil {
		return r, fmt.Errorf("scan: %w", err)
	}
	return r, nil
}

func (req ScanRequest) spec() job.Spec {
	origin := geometry.C(0, 0)
	if req.Origin != nil {
		origin = req.Origin
	}
	mode := domrun.Mode(req.Mode)
	if mode == "" {
		mode = domrun.ModeSearch
	}
	return job.Spec{
		Name: req.Name,
		Mode: mode,
		Search: search.Params{
			Origin:             origin,
			Width:              req.Width,
			Height:             req.Height,
			Rotation:           req.Rotation,
			SnakeSeparation:    req.SnakeSeparation,
			FuzzySeparation:    req.FuzzySeparation,
			DetectionThreshold: req.DetectionThreshold,
			SweepVelocity:      req.SweepVelocity,
			TraceVelocity:      req.TraceVelocity,
			Epsilon:            1e-4,
		},
		Raster: search.RasterParams{
			Origin:     origin,
			Width:      req.Width,
			Height:     req.Height,
			Rotation:   req.Rotation,
			Separation: req.SnakeSeparation,
			Velocity:   req.SweepVelocity,
			Epsilon:    1e-4,
		},
		Liftoff: fit.LiftoffModel(req.Liftoff),
	}
}
