// Package job runs one configured scan end to end: it records a run, drives
// the scan, persists the outcome and writes the requested exports.
package job

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	domrun "github.com/kailas-cloud/edgescan/internal/domain/run"
	"github.com/kailas-cloud/edgescan/internal/domain/sample"
	"github.com/kailas-cloud/edgescan/internal/export"
	logpkg "github.com/kailas-cloud/edgescan/internal/logger"
	"github.com/kailas-cloud/edgescan/internal/metrics"
	"github.com/kailas-cloud/edgescan/internal/usecase/fit"
	"github.com/kailas-cloud/edgescan/internal/usecase/search"
)

// Spec describes one job.
type Spec struct {
	Name string
	Mode domrun.Mode
	// Search is used in search mode, Raster in raster mode.
	Search search.Params
	Raster search.RasterParams
	// Liftoff, when set, corrects a raster map for probe drift before it
	// is stored and exported.
	Liftoff fit.LiftoffModel
}

// ExportOptions selects the files written after a run.
type ExportOptions struct {
	Dir     string
	CSV     bool
	Parquet bool
	Heatmap bool

	CSVOptions     export.CSVOptions
	HeatmapOptions export.HeatmapOptions
}

func (o ExportOptions) any() bool { return o.CSV || o.Parquet || o.Heatmap }

// Outcome is a finished job.
type Outcome struct {
	Run   *domrun.Run
	Files []string
}

// Service runs jobs.
type Service struct {
	scanner Scanner
	repo    Repository
	export  ExportOptions
	logger  *zap.Logger
	now     func() time.Time
}

// New creates a job service. repo can be nil to skip persistence.
func New(scanner Scanner, repo Repository, exp ExportOptions, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{scanner: scanner, repo: repo, export: exp, logger: logger, now: time.Now}
}

// Run executes the job. The run is saved once when it starts and again when
// it ends, failed or not. A scan error is returned after the partial run has
// been saved and exported.
func (s *Service) Run(ctx context.Context, spec Spec) (Outcome, error) {
	r, err := domrun.New(spec.Name, spec.Mode, params(spec), s.now())
	if err != nil {
		return Outcome{}, fmt.Errorf("new run: %w", err)
	}
	ctx, log := logpkg.WithFields(ctx, s.logger,
		zap.String("run_id", r.ID),
		zap.String("name", r.Name),
		zap.String("mode", string(r.Mode)),
	)
	if err := s.save(ctx, r); err != nil {
		return Outcome{Run: r}, err
	}
	log.Info("Run started")

	scanErr := s.scan(ctx, spec, r)
	status := string(r.Status)
	metrics.RunsTotal.WithLabelValues(string(r.Mode), status).Inc()

	// The run record outlives a cancelled scan.
	persistCtx := context.WithoutCancel(ctx)
	if err := s.save(persistCtx, r); err != nil {
		return Outcome{Run: r}, errors.Join(scanErr, err)
	}

	var files []string
	if s.export.any() && r.Trace.Len() > 0 {
		files, err = s.write(persistCtx, r)
		if err != nil {
			return Outcome{Run: r, Files: files}, errors.Join(scanErr, err)
		}
	}

	if scanErr != nil {
		log.Error("Run failed", zap.Error(scanErr), zap.Int("samples", r.Trace.Len()))
		return Outcome{Run: r, Files: files}, scanErr
	}
	log.Info("Run completed",
		zap.Int("samples", r.Trace.Len()),
		zap.Int("features", len(r.Features)),
		zap.Strings("files", files),
		zap.Duration("duration", r.FinishedAt.Sub(r.StartedAt)),
	)
	return Outcome{Run: r, Files: files}, nil
}

func (s *Service) scan(ctx context.Context, spec Spec, r *domrun.Run) error {
	switch spec.Mode {
	case domrun.ModeSearch:
		res, err := s.scanner.DomainSearch(ctx, spec.Search)
		if err != nil {
			r.Fail(res.Trace, err, s.now())
			r.Features = res.Features
			return err
		}
		r.Complete(res.Trace, res.Features, s.now())
		return nil
	default:
		tr, err := s.scanner.RasterScan(ctx, spec.Raster)
		if err != nil {
			r.Fail(tr, err, s.now())
			return err
		}
		if spec.Liftoff != "" {
			corrected, err := fit.CorrectLiftoff(tr, spec.Liftoff)
			if err != nil {
				r.Fail(tr, err, s.now())
				return err
			}
			tr = corrected
		}
		r.Complete(tr, nil, s.now())
		return nil
	}
}

func (s *Service) save(ctx context.Context, r *domrun.Run) error {
	if s.repo == nil {
		return nil
	}
	if err := s.repo.Save(ctx, r); err != nil {
		return fmt.Errorf("save run %s: %w", r.ID, err)
	}
	return nil
}

// write runs the selected exporters concurrently. Each picks its own file
// name, so they never collide.
func (s *Service) write(ctx context.Context, r *domrun.Run) ([]string, error) {
	base := filepath.Join(s.export.Dir, r.Name)
	var (
		mu    sync.Mutex
		files []string
	)
	add := func(path string) {
		mu.Lock()
		files = append(files, path)
		mu.Unlock()
	}

	g, _ := errgroup.WithContext(ctx)
	if s.export.CSV {
		g.Go(func() error {
			path, err := export.CSV(base, r.Trace, s.export.CSVOptions)
			if err != nil {
				return fmt.Errorf("csv export: %w", err)
			}
			add(path)
			return nil
		})
	}
	if s.export.Parquet {
		g.Go(func() error {
			path, err := export.Parquet(base, r.Trace)
			if err != nil {
				return fmt.Errorf("parquet export: %w", err)
			}
			add(path)
			return nil
		})
	}
	if s.export.Heatmap {
		g.Go(func() error {
			opts := s.export.HeatmapOptions
			if opts.Title == "" {
				opts.Title = r.Name
			}
			path, err := export.Heatmap(base, r.Trace, r.Features, opts)
			if err != nil {
				return fmt.Errorf("heatmap export: %w", err)
			}
			add(path)
			return nil
		})
	}
	err := g.Wait()
	return files, err //nolint:wrapcheck // exporters wrap their own errors
}

// params flattens the scan parameters of spec for the run record.
func params(spec Spec) map[string]any {
	var v any = spec.Raster
	if spec.Mode == domrun.ModeSearch {
		v = spec.Search
	}
	out := map[string]any{}
	// NaN or Inf fields fail to marshal; the run keeps what is left.
	if data, err := json.Marshal(v); err == nil {
		if err := json.Unmarshal(data, &out); err != nil || out == nil {
			out = map[string]any{}
		}
	}
	if spec.Liftoff != "" {
		out["Liftoff"] = string(spec.Liftoff)
	}
	return out
}

// MagnitudeRange returns the smallest and largest magnitude in tr.
func MagnitudeRange(tr sample.Trace) (minMag, maxMag float64) {
	for i, s := range tr {
		if i == 0 || s.Magnitude < minMag {
			minMag = s.Magnitude
		}
		if i == 0 || s.Magnitude > maxMag {
			maxMag = s.Magnitude
		}
	}
	return minMag, maxMag
}
