// Package probe drives the stage and sensor together: blocking moves, single
// measurements and the interruptible linear scan every higher-level routine
// is built from.
package probe

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/edgescan/internal/domain"
	"github.com/kailas-cloud/edgescan/internal/domain/geometry"
	"github.com/kailas-cloud/edgescan/internal/domain/sample"
	"github.com/kailas-cloud/edgescan/internal/metrics"
)

// DefaultPollInterval paces the busy loop of a linear scan.
const DefaultPollInterval = 10 * time.Millisecond

// Options configures a Prober.
type Options struct {
	Velocity     float64
	PollInterval time.Duration
	// Channels whose values enter the RMS. Empty means channel 0.
	Channels []int
	// Spectrum attaches the FFT of channel 0 to every sample.
	Spectrum bool
}

// Prober couples an actuator and a sensor.
type Prober struct {
	act      Actuator
	sensor   Sensor
	velocity float64
	poll     time.Duration
	channels []int
	spectrum bool
	logger   *zap.Logger
}

// New creates a prober. A negative poll interval selects the default.
func New(act Actuator, sensor Sensor, opts Options, logger *zap.Logger) *Prober {
	if logger == nil {
		logger = zap.NewNop()
	}
	poll := opts.PollInterval
	if poll < 0 {
		poll = DefaultPollInterval
	}
	channels := opts.Channels
	if len(channels) == 0 {
		channels = []int{0}
	}
	return &Prober{
		act:      act,
		sensor:   sensor,
		velocity: opts.Velocity,
		poll:     poll,
		channels: channels,
		spectrum: opts.Spectrum,
		logger:   logger,
	}
}

// At returns a prober sharing the same hardware that moves at velocity.
func (p *Prober) At(velocity float64) *Prober {
	cp := *p
	cp.velocity = velocity
	return &cp
}

// Velocity returns the move velocity.
func (p *Prober) Velocity() float64 { return p.velocity }

// Axes returns the actuator axis count.
func (p *Prober) Axes() int { return p.act.Axes() }

// Position returns the current stage position.
func (p *Prober) Position(ctx context.Context) (geometry.Coordinate, error) {
	pos, err := p.act.Position(ctx)
	if err != nil {
		return nil, fmt.Errorf("stage position: %w", err)
	}
	return pos, nil
}

// Move moves to target and waits until the stage is idle.
func (p *Prober) Move(ctx context.Context, target geometry.Coordinate, mode MoveMode) error {
	t, err := p.resolve(ctx, target, mode)
	if err != nil {
		return err
	}
	if err := p.act.Move(ctx, t, p.velocity, mode, true); err != nil {
		return fmt.Errorf("stage move: %w", err)
	}
	return nil
}

// Measure records once at the current position and returns the magnitude.
func (p *Prober) Measure(ctx context.Context) (float64, error) {
	rec, err := p.sensor.Record(ctx)
	if err != nil {
		return 0, fmt.Errorf("sensor record: %w", err)
	}
	metrics.SamplesTotal.Inc()
	return p.magnitude(rec), nil
}

// Sample records once and tags the reading with the current position.
func (p *Prober) Sample(ctx context.Context) (sample.Sample, error) {
	pos, err := p.Position(ctx)
	if err != nil {
		return sample.Sample{}, err
	}
	rec, err := p.sensor.Record(ctx)
	if err != nil {
		return sample.Sample{}, fmt.Errorf("sensor record: %w", err)
	}
	metrics.SamplesTotal.Inc()
	s := sample.Sample{Position: pos, Magnitude: p.magnitude(rec)}
	if p.spectrum && len(rec) > 0 {
		s.Spectrum = sample.Spectrum(rec[0])
	}
	return s, nil
}

// LinearScan starts a non-blocking move to target and samples until the
// stage goes idle. When brk accepts a magnitude the stage is stopped and
// the scan returns broke = true with that sample last in the trace.
func (p *Prober) LinearScan(
	ctx context.Context, target geometry.Coordinate, mode MoveMode, brk BreakFunc,
) (sample.Trace, bool, error) {
	if brk == nil {
		brk = Never
	}
	t, err := p.resolve(ctx, target, mode)
	if err != nil {
		return nil, false, err
	}
	if err := p.act.Move(ctx, t, p.velocity, mode, false); err != nil {
		metrics.LinearScansTotal.WithLabelValues(metrics.ScanError).Inc()
		return nil, false, fmt.Errorf("stage move: %w", err)
	}

	var tr sample.Trace
	for {
		busy, err := p.act.IsBusy(ctx)
		if err != nil {
			metrics.LinearScansTotal.WithLabelValues(metrics.ScanError).Inc()
			return tr, false, fmt.Errorf("stage status: %w", err)
		}
		if !busy {
			break
		}
		s, err := p.Sample(ctx)
		if err != nil {
			metrics.LinearScansTotal.WithLabelValues(metrics.ScanError).Inc()
			return tr, false, err
		}
		tr.Append(s)
		if brk(s.Magnitude) {
			if err := p.act.Stop(ctx); err != nil {
				return tr, true, fmt.Errorf("stage stop: %w", err)
			}
			metrics.LinearScansTotal.WithLabelValues(metrics.ScanBreak).Inc()
			p.logger.Debug("Linear scan broke early",
				zap.Float64s("position", s.Position),
				zap.Float64("magnitude", s.Magnitude),
				zap.Int("samples", tr.Len()),
			)
			return tr, true, nil
		}
		if err := p.wait(ctx); err != nil {
			if stopErr := p.act.Stop(context.WithoutCancel(ctx)); stopErr != nil {
				p.logger.Warn("Stage stop after cancel failed", zap.Error(stopErr))
			}
			return tr, false, err
		}
	}
	metrics.LinearScansTotal.WithLabelValues(metrics.ScanComplete).Inc()
	return tr, false, nil
}

func (p *Prober) wait(ctx context.Context) error {
	if p.poll <= 0 {
		return ctx.Err() //nolint:wrapcheck // caller sees the context error as is
	}
	timer := time.NewTimer(p.poll)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err() //nolint:wrapcheck // caller sees the context error as is
	case <-timer.C:
		return nil
	}
}

// resolve validates target against the axis count. Absolute targets with
// fewer axes keep the current value on the missing ones; relative targets
// leave them still.
func (p *Prober) resolve(ctx context.Context, target geometry.Coordinate, mode MoveMode) (geometry.Coordinate, error) {
	axes := p.act.Axes()
	if target.Dim() > axes {
		return nil, domain.NewPrecondition("probe move",
			"target has %d axes, stage has %d", target.Dim(), axes)
	}
	switch mode {
	case Relative:
		return target.Pad(axes), nil
	case Absolute:
		if target.Dim() == axes {
			return target.Clone(), nil
		}
		cur, err := p.Position(ctx)
		if err != nil {
			return nil, err
		}
		out := cur.Pad(axes)
		copy(out, target)
		return out, nil
	default:
		return nil, domain.NewPrecondition("probe move", "unknown move mode %q", mode)
	}
}

func (p *Prober) magnitude(rec [][]float64) float64 {
	chans := make([][]float64, 0, len(p.channels))
	for _, c := range p.channels {
		if c >= 0 && c < len(rec) {
			chans = append(chans, rec[c])
		}
	}
	return sample.RMS(chans...)
}
