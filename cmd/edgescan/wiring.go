package main

import (
	"context"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/edgescan/internal/config"
	"github.com/kailas-cloud/edgescan/internal/db"
	"github.com/kailas-cloud/edgescan/internal/db/memory"
	dbRedis "github.com/kailas-cloud/edgescan/internal/db/redis"
	"github.com/kailas-cloud/edgescan/internal/db/sqlite"
	"github.com/kailas-cloud/edgescan/internal/domain/geometry"
	domrun "github.com/kailas-cloud/edgescan/internal/domain/run"
	"github.com/kailas-cloud/edgescan/internal/export"
	"github.com/kailas-cloud/edgescan/internal/hardware/sim"
	"github.com/kailas-cloud/edgescan/internal/hardware/zaber"
	runrepo "github.com/kailas-cloud/edgescan/internal/repository/run"
	"github.com/kailas-cloud/edgescan/internal/usecase/fit"
	"github.com/kailas-cloud/edgescan/internal/usecase/job"
	"github.com/kailas-cloud/edgescan/internal/usecase/probe"
	"github.com/kailas-cloud/edgescan/internal/usecase/search"
	"github.com/kailas-cloud/edgescan/internal/usecase/trace"
)

func openStore(ctx context.Context, c config.DatabaseConfig) (db.Store, error) {
	var store db.Store
	switch c.Driver {
	case "redis", "valkey":
		s, err := dbRedis.NewStore(dbRedis.Config{Addrs: c.Addrs, Password: c.Password})
		if err != nil {
			return nil, fmt.Errorf("create %s store: %w", c.Driver, err)
		}
		store = s
	case "sqlite":
		s, err := sqlite.NewStore(c.Path)
		if err != nil {
			return nil, fmt.Errorf("create sqlite store: %w", err)
		}
		store = s
	default:
		store = memory.NewStore()
	}

	timeout := time.Duration(c.ReadinessTimeout) * time.Second
	if err := store.WaitForReady(ctx, timeout); err != nil {
		store.Close()
		return nil, fmt.Errorf("database not ready: %w", err)
	}
	log.Info("Database ready", zap.String("driver", c.Driver))
	return store, nil
}

func newRunRepo(store db.Store, c config.DatabaseConfig) *runrepo.Repo {
	return runrepo.New(store, c.KeyPrefix, time.Duration(c.RunTTLHours)*time.Hour)
}

// rig is the stage and sensor pair a job drives.
type rig struct {
	act    probe.Actuator
	sensor probe.Sensor
	ping   func(ctx context.Context) error
	close  func() error
	poll   time.Duration
}

func (r *rig) Ping(ctx context.Context) error { return r.ping(ctx) }

func simConfig(c config.Config) sim.Config {
	return sim.Config{
		Axes:     c.Simulation.Axes,
		Velocity: c.Stage.Velocity,
		Channels: slices.Max(c.Probe.Channels) + 1,
		Noise:    c.Simulation.Noise,
		Seed:     c.Simulation.Seed,
	}
}

func simField(c config.SimulationConfig) sim.Field {
	f := sim.Field{Background: c.Background, EdgeWidth: c.EdgeWidth, Drift: c.Drift}
	for _, r := range c.Rectangles {
		f.Inclusions = append(f.Inclusions, sim.Inclusion{
			Rect:     geometry.Rectangle{OriginX: r.X, OriginY: r.Y, Width: r.Width, Height: r.Height, Rotation: r.Rotation},
			Contrast: r.Contrast,
		})
	}
	for _, k := range c.Cracks {
		f.Cracks = append(f.Cracks, sim.Crack{
			Segment: geometry.Segment{Start: geometry.C(k.X1, k.Y1), End: geometry.C(k.X2, k.Y2)},
			Depth:   k.Depth,
			Width:   k.Width,
		})
	}
	return f
}

// openRig connects the configured stage. The zaber driver moves real axes
// and pairs them with a simulated probe reading the configured field, which
// is how motion is dry-run before a sensor is attached.
func openRig(ctx context.Context, c config.Config) (*rig, error) {
	field := simField(c.Simulation)
	switch c.Stage.Driver {
	case "zaber":
		axes := make([]zaber.Address, len(c.Stage.Axes))
		for i, a := range c.Stage.Axes {
			axes[i] = zaber.Address{Device: a.Device, Axis: a.Axis}
		}
		stage, err := zaber.Dial(ctx, c.Stage.Address, zaber.Config{
			Axes:          axes,
			MicrostepSize: c.Stage.MicrostepSize,
			ReplyTimeout:  time.Duration(c.Stage.ReplyTimeoutMs) * time.Millisecond,
			CommandRate:   c.Stage.CommandRate,
		}, log.Named("zaber"))
		if err != nil {
			return nil, err
		}
		return &rig{
			act:    stage,
			sensor: sim.NewFieldSensor(stage, simConfig(c), field),
			ping:   stage.Ping,
			close:  stage.Close,
			poll:   time.Duration(c.Probe.PollIntervalMs) * time.Millisecond,
		}, nil
	default:
		r := sim.New(simConfig(c), field)
		return &rig{
			act:    r,
			sensor: r,
			ping:   r.Ping,
			close:  func() error { return nil },
		}, nil
	}
}

func newSearch(r *rig, c config.Config) *search.Service {
	p := probe.New(r.act, r.sensor, probe.Options{
		Velocity:     c.Stage.Velocity,
		PollInterval: r.poll,
		Channels:     c.Probe.Channels,
		Spectrum:     c.Probe.Mode == "spectrum",
	}, log.Named("probe"))
	return search.New(p, search.Options{
		Trace: trace.Options{MaxSteps: c.Trace.MaxSteps},
		Fit:   fitOptions(c.Fit),
	}, log.Named("search"))
}

func fitOptions(c config.FitConfig) fit.Options {
	return fit.Options{
		GradientFraction: c.GradientFraction,
		Restarts:         c.Restarts,
		MaxEvaluations:   c.MaxEvaluations,
		MaxPoints:        c.MaxPoints,
	}
}

func jobSpec(c config.Config) job.Spec {
	s, r := c.Search, c.Raster
	return job.Spec{
		Name: c.Job.Name,
		Mode: domrun.Mode(c.Job.Mode),
		Search: search.Params{
			Origin:             geometry.C(s.OriginX, s.OriginY),
			Width:              s.Width,
			Height:             s.Height,
			Rotation:           s.Rotation,
			SnakeSeparation:    s.SnakeSeparation,
			FuzzySeparation:    s.FuzzySeparation,
			DetectionThreshold: s.DetectionThreshold,
			SweepVelocity:      s.SweepVelocity,
			TraceVelocity:      s.TraceVelocity,
			Epsilon:            s.Epsilon,
		},
		Raster: search.RasterParams{
			Origin:     geometry.C(r.OriginX, r.OriginY),
			Width:      r.Width,
			Height:     r.Height,
			Rotation:   r.Rotation,
			Separation: r.Separation,
			Velocity:   r.Velocity,
			Epsilon:    r.Epsilon,
		},
		Liftoff: fit.LiftoffModel(r.Liftoff),
	}
}

func exportOptions(c config.ExportConfig) job.ExportOptions {
	return job.ExportOptions{
		Dir:     c.Dir,
		CSV:     c.Has("csv"),
		Parquet: c.Has("parquet"),
		Heatmap: c.Has("heatmap"),
		CSVOptions: export.CSVOptions{
			Bins:      c.SpectrumBins,
			AllowWide: c.AllowWideCSV,
		},
		HeatmapOptions: export.HeatmapOptions{
			Width:  c.HeatmapWidth,
			Height: c.HeatmapHeight,
			Smooth: c.HeatmapSmooth,
		},
	}
}
