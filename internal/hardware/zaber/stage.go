package zaber

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"math"
	"net"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kailas-cloud/edgescan/internal/domain"
	"github.com/kailas-cloud/edgescan/internal/domain/geometry"
	"github.com/kailas-cloud/edgescan/internal/usecase/probe"
)

var _ probe.Actuator = (*Stage)(nil)

// speedFactor converts microsteps per second to maxspeed data units.
const speedFactor = 1.6384

// Defaults for Config fields left zero.
const (
	DefaultMicrostepSize = 0.000047625 // mm, X-LSM series
	DefaultPollInterval  = 10 * time.Millisecond
	DefaultReplyTimeout  = 2 * time.Second
	DefaultCommandRate   = 200
)

// Config describes the stage.
type Config struct {
	// Axes maps stage axes, in coordinate order, to device addresses.
	Axes []Address
	// MicrostepSize is the travel of one microstep in mm.
	MicrostepSize float64
	// PollInterval paces the wait for a blocking move.
	PollInterval time.Duration
	// ReplyTimeout bounds each reply when the stream supports deadlines.
	ReplyTimeout time.Duration
	// CommandRate caps commands per second on the shared line.
	CommandRate float64
}

func (c Config) withDefaults() Config {
	if c.MicrostepSize <= 0 {
		c.MicrostepSize = DefaultMicrostepSize
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.ReplyTimeout <= 0 {
		c.ReplyTimeout = DefaultReplyTimeout
	}
	if c.CommandRate <= 0 {
		c.CommandRate = DefaultCommandRate
	}
	return c
}

type deadliner interface {
	SetReadDeadline(t time.Time) error
}

// Stage is a multi-axis Zaber stage. It implements probe.Actuator. Commands
// are serialized on the line, one reply read per command.
type Stage struct {
	mu      sync.Mutex
	conn    io.ReadWriter
	r       *bufio.Reader
	cfg     Config
	devices []int
	limiter *rate.Limiter
	// speedMu guards speed and is held across the maxspeed command. Send
	// takes mu, so speedMu is always acquired first.
	speedMu sync.Mutex
	speed   map[Address]int64
	logger  *zap.Logger
}

// New creates a stage on an open byte stream.
func New(conn io.ReadWriter, cfg Config, logger *zap.Logger) (*Stage, error) {
	if len(cfg.Axes) == 0 {
		return nil, domain.NewPrecondition("zaber stage", "no axes configured")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg = cfg.withDefaults()

	var devices []int
	for _, a := range cfg.Axes {
		if a.Device <= 0 || a.Axis <= 0 {
			return nil, domain.NewPrecondition("zaber stage", "invalid axis address %d/%d", a.Device, a.Axis)
		}
		if !slices.Contains(devices, a.Device) {
			devices = append(devices, a.Device)
		}
	}
	return &Stage{
		conn:    conn,
		r:       bufio.NewReader(conn),
		cfg:     cfg,
		devices: devices,
		limiter: rate.NewLimiter(rate.Limit(cfg.CommandRate), 1),
		speed:   make(map[Address]int64),
		logger:  logger,
	}, nil
}

// Dial connects to a serial bridge at address (host:port).
func Dial(ctx context.Context, address string, cfg Config, logger *zap.Logger) (*Stage, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("dial zaber %s: %w", address, err)
	}
	s, err := New(conn, cfg, logger)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying stream when it can be closed.
func (s *Stage) Close() error {
	if c, ok := s.conn.(io.Closer); ok {
		return c.Close() //nolint:wrapcheck // closing the caller's stream
	}
	return nil
}

// Send writes one command and returns its reply. Info and alert lines in
// between are skipped.
func (s *Stage) Send(ctx context.Context, cmd Command) (Reply, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return Reply{}, fmt.Errorf("zaber %s: %w", cmd, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := io.WriteString(s.conn, cmd.String()+"\n"); err != nil {
		return Reply{}, fmt.Errorf("zaber write %q: %w", cmd, err)
	}
	if d, ok := s.conn.(deadliner); ok {
		_ = d.SetReadDeadline(time.Now().Add(s.cfg.ReplyTimeout))
	}
	for {
		line, err := s.r.ReadString('\n')
		if err != nil {
			return Reply{}, fmt.Errorf("zaber read reply to %q: %w", cmd, err)
		}
		if len(line) == 0 || line[0] == '#' || line[0] == '!' {
			s.logger.Debug("Zaber message skipped", zap.String("line", line))
			continue
		}
		reply, err := ParseReply(line)
		if err != nil {
			return Reply{}, err
		}
		if reply.Device != cmd.Device {
			s.logger.Debug("Zaber reply from another device skipped", zap.String("line", line))
			continue
		}
		if err := reply.Err(); err != nil {
			return reply, fmt.Errorf("zaber %q: %w", cmd, err)
		}
		return reply, nil
	}
}

// Axes returns the number of configured axes.
func (s *Stage) Axes() int { return len(s.cfg.Axes) }

// Ping checks that every device answers.
func (s *Stage) Ping(ctx context.Context) error {
	for _, dev := range s.devices {
		if _, err := s.Send(ctx, Command{Address: Address{Device: dev}}); err != nil {
			return err
		}
	}
	return nil
}

// Move starts a move on every axis of target. Velocity in mm/s sets the
// axis maxspeed first; zero keeps the current one. With wait it returns once
// every device is idle.
func (s *Stage) Move(ctx context.Context, target geometry.Coordinate, velocity float64, mode probe.MoveMode, wait bool) error {
	if target.Dim() > s.Axes() {
		return domain.NewPrecondition("zaber move", "target has %d axes, stage has %d", target.Dim(), s.Axes())
	}
	verb := VerbMoveAbs
	if mode == probe.Relative {
		verb = VerbMoveRel
	}
	for i, v := range target {
		addr := s.cfg.Axes[i]
		if velocity > 0 {
			if err := s.setSpeed(ctx, addr, velocity); err != nil {
				return err
			}
		}
		if _, err := s.Send(ctx, Command{Address: addr, Verb: verb, Data: []int64{s.steps(v)}}); err != nil {
			return err
		}
	}
	if !wait {
		return nil
	}
	return s.waitIdle(ctx)
}

func (s *Stage) setSpeed(ctx context.Context, addr Address, velocity float64) error {
	data := max(int64(math.Round(velocity/s.cfg.MicrostepSize*speedFactor)), 1)
	s.speedMu.Lock()
	defer s.speedMu.Unlock()
	if s.speed[addr] == data {
		return nil
	}
	if _, err := s.Send(ctx, Command{Address: addr, Verb: VerbMaxSpeed, Data: []int64{data}}); err != nil {
		return err
	}
	s.speed[addr] = data
	return nil
}

func (s *Stage) waitIdle(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()
	for {
		busy, err := s.IsBusy(ctx)
		if err != nil || !busy {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err() //nolint:wrapcheck // caller sees the context error as is
		case <-ticker.C:
		}
	}
}

// Position reads every axis in mm.
func (s *Stage) Position(ctx context.Context) (geometry.Coordinate, error) {
	pos := make(geometry.Coordinate, s.Axes())
	for i, addr := range s.cfg.Axes {
		reply, err := s.Send(ctx, Command{Address: addr, Verb: VerbGetPos})
		if err != nil {
			return nil, err
		}
		steps, err := reply.Int()
		if err != nil {
			return nil, err
		}
		pos[i] = float64(steps) * s.cfg.MicrostepSize
	}
	return pos, nil
}

// IsBusy reports whether any device is moving.
func (s *Stage) IsBusy(ctx context.Context) (bool, error) {
	for _, dev := range s.devices {
		reply, err := s.Send(ctx, Command{Address: Address{Device: dev}})
		if err != nil {
			return false, err
		}
		if reply.Busy {
			return true, nil
		}
	}
	return false, nil
}

// Stop decelerates every device to a halt.
func (s *Stage) Stop(ctx context.Context) error {
	for _, dev := range s.devices {
		if _, err := s.Send(ctx, Command{Address: Address{Device: dev}, Verb: VerbStop}); err != nil {
			return err
		}
	}
	return nil
}

func (s *Stage) steps(mm float64) int64 {
	return int64(math.Round(mm / s.cfg.MicrostepSize))
}
