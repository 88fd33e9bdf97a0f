package sim

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/kailas-cloud/edgescan/internal/domain/geometry"
	"github.com/kailas-cloud/edgescan/internal/usecase/probe"
)

// Config describes the simulated hardware.
type Config struct {
	Axes int
	// Velocity is used when a move asks for zero velocity, in mm/s.
	Velocity float64
	// RecordDuration is the virtual time one Record call takes.
	RecordDuration time.Duration
	// RecordLength is the number of values per channel.
	RecordLength int
	Channels     int
	// Periods of the excitation tone inside one record.
	Periods int
	// Noise is the standard deviation of additive gaussian noise.
	Noise float64
	Seed  uint64
}

// Defaults for Config fields left zero.
const (
	DefaultAxes           = 2
	DefaultVelocity       = 1.0
	DefaultRecordDuration = 10 * time.Millisecond
	DefaultRecordLength   = 64
	DefaultPeriods        = 4
)

func (cfg Config) withDefaults() Config {
	if cfg.Axes <= 0 {
		cfg.Axes = DefaultAxes
	}
	if cfg.Velocity <= 0 {
		cfg.Velocity = DefaultVelocity
	}
	if cfg.RecordDuration <= 0 {
		cfg.RecordDuration = DefaultRecordDuration
	}
	if cfg.RecordLength <= 0 {
		cfg.RecordLength = DefaultRecordLength
	}
	if cfg.Channels <= 0 {
		cfg.Channels = 1
	}
	if cfg.Periods <= 0 {
		cfg.Periods = DefaultPeriods
	}
	return cfg
}

type motion struct {
	from, to geometry.Coordinate
	start    time.Duration
	length   time.Duration
}

// Rig is a simulated stage and probe. It implements probe.Actuator and
// probe.Sensor. Time only passes when the probe records or a blocking move
// completes, so scans are deterministic and run at full speed.
type Rig struct {
	mu      sync.Mutex
	cfg     Config
	field   Field
	now     time.Duration
	pos     geometry.Coordinate
	mv      *motion
	rng     *rand.Rand
	stops   int
	offline error
}

var (
	_ probe.Actuator = (*Rig)(nil)
	_ probe.Sensor   = (*Rig)(nil)
)

// New creates a rig at the origin.
func New(cfg Config, field Field) *Rig {
	cfg = cfg.withDefaults()
	return &Rig{
		cfg:   cfg,
		field: field,
		pos:   make(geometry.Coordinate, cfg.Axes),
		rng:   rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)),
	}
}

// Axes returns the configured axis count.
func (r *Rig) Axes() int { return r.cfg.Axes }

// Field returns the simulated magnitude map.
func (r *Rig) Field() Field { return r.field }

// Elapsed returns the virtual time spent so far.
func (r *Rig) Elapsed() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.now
}

// Stops returns how many times Stop was called.
func (r *Rig) Stops() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stops
}

// SetOffline makes every call fail with err until cleared with nil.
func (r *Rig) SetOffline(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.offline = err
}

// Ping reports whether the rig is reachable.
func (r *Rig) Ping(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.offline
}

// Move starts a move. With wait the stage arrives immediately and the clock
// advances by the travel time.
func (r *Rig) Move(_ context.Context, target geometry.Coordinate, velocity float64, mode probe.MoveMode, wait bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.offline != nil {
		return r.offline
	}
	if target.Dim() > r.cfg.Axes {
		return fmt.Errorf("sim move: target has %d axes, stage has %d", target.Dim(), r.cfg.Axes)
	}
	from := r.positionLocked()
	var to geometry.Coordinate
	switch mode {
	case probe.Relative:
		to = from.Add(target.Pad(r.cfg.Axes))
	case probe.Absolute:
		to = from.Clone()
		copy(to, target)
	default:
		return fmt.Errorf("sim move: unknown mode %q", mode)
	}
	if velocity <= 0 {
		velocity = r.cfg.Velocity
	}
	length := time.Duration(from.Dist(to) / velocity * float64(time.Second))
	if wait {
		r.mv = nil
		r.pos = to
		r.now += length
		return nil
	}
	r.pos = from
	r.mv = &motion{from: from, to: to, start: r.now, length: length}
	return nil
}

// Position returns the interpolated position at the current virtual time.
func (r *Rig) Position(_ context.Context) (geometry.Coordinate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.offline != nil {
		return nil, r.offline
	}
	return r.positionLocked(), nil
}

// IsBusy reports whether a non-blocking move is still under way.
func (r *Rig) IsBusy(_ context.Context) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.offline != nil {
		return false, r.offline
	}
	r.settleLocked()
	return r.mv != nil, nil
}

// Stop freezes the stage where it is.
func (r *Rig) Stop(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.offline != nil {
		return r.offline
	}
	r.pos = r.positionLocked()
	r.mv = nil
	r.stops++
	return nil
}

// Record returns one record per channel: a tone whose RMS equals the field
// magnitude at the current position, plus noise. It advances the clock.
func (r *Rig) Record(_ context.Context) ([][]float64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.offline != nil {
		return nil, r.offline
	}
	out := tone(r.field.Magnitude(r.positionLocked()), r.cfg, r.rng)
	r.now += r.cfg.RecordDuration
	return out, nil
}

// tone synthesizes one record per channel whose RMS is magnitude.
func tone(magnitude float64, cfg Config, rng *rand.Rand) [][]float64 {
	amp := math.Sqrt2 * magnitude
	n := cfg.RecordLength
	out := make([][]float64, cfg.Channels)
	for c := range out {
		buf := make([]float64, n)
		for i := range buf {
			buf[i] = amp * math.Sin(2*math.Pi*float64(cfg.Periods)*float64(i)/float64(n))
			if cfg.Noise > 0 {
				buf[i] += rng.NormFloat64() * cfg.Noise
			}
		}
		out[c] = buf
	}
	return out
}

func (r *Rig) positionLocked() geometry.Coordinate {
	r.settleLocked()
	if r.mv == nil {
		return r.pos.Clone()
	}
	f := float64(r.now-r.mv.start) / float64(r.mv.length)
	return r.mv.from.Add(r.mv.to.Sub(r.mv.from).Scale(f))
}

func (r *Rig) settleLocked() {
	if r.mv != nil && r.now-r.mv.start >= r.mv.length {
		r.pos = r.mv.to
		r.mv = nil
	}
}
