package zaber

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/kailas-cloud/edgescan/internal/domain"
	"github.com/kailas-cloud/edgescan/internal/domain/geometry"
	"github.com/kailas-cloud/edgescan/internal/usecase/probe"
)

func TestCommand_String(t *testing.T) {
	tests := []struct {
		cmd  Command
		want string
	}{
		{Command{Address: Address{Device: 1}}, "/1 0"},
		{Command{Address: Address{Device: 1, Axis: 2}, Verb: VerbMoveAbs, Data: []int64{10000}}, "/1 2 move abs 10000"},
		{Command{Address: Address{Device: 3, Axis: 1}, Verb: VerbMoveRel, Data: []int64{-5}}, "/3 1 move rel -5"},
		{Command{Address: Address{Device: 1, Axis: 1}, Verb: VerbGetPos}, "/1 1 get pos"},
		{Command{Address: Address{Device: 2}, Verb: VerbStop}, "/2 0 stop"},
	}
	for _, tt := range tests {
		if got := tt.cmd.String(); got != tt.want {
			t.Errorf("got %q, want %q", got, tt.want)
		}
	}
}

func TestParseReply(t *testing.T) {
	tests := []struct {
		name string
		line string
		want Reply
	}{
		{"idle", "@01 0 OK IDLE -- 0\r\n", Reply{Address: Address{Device: 1}, OK: true, Warning: "--", Data: "0"}},
		{"busy with data", "@02 1 OK BUSY WR 12345", Reply{Address: Address{Device: 2, Axis: 1}, OK: true, Busy: true, Warning: "WR", Data: "12345"}},
		{"rejected", "@01 1 RJ IDLE -- BADDATA", Reply{Address: Address{Device: 1, Axis: 1}, Warning: "--", Data: "BADDATA"}},
		{"message id", "@01 1 07 OK IDLE -- 42", Reply{Address: Address{Device: 1, Axis: 1}, OK: true, Warning: "--", Data: "42"}},
		{"checksum", "@01 1 OK IDLE -- 42:8D", Reply{Address: Address{Device: 1, Axis: 1}, OK: true, Warning: "--", Data: "42"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseReply(tt.line)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}

	for _, bad := range []string{"", "#01 0 info", "@01 0 OK", "@xx 0 OK IDLE -- 0", "@01 0 NO IDLE -- 0", "@01 0 OK SLEEP -- 0"} {
		if _, err := ParseReply(bad); !errors.Is(err, ErrBadReply) {
			t.Errorf("%q: want ErrBadReply, got %v", bad, err)
		}
	}
}

func TestReply_Err(t *testing.T) {
	if err := (Reply{OK: true, Warning: "--"}).Err(); err != nil {
		t.Errorf("clean reply: %v", err)
	}
	if err := (Reply{OK: true, Warning: "WR"}).Err(); err != nil {
		t.Errorf("non-fault warning: %v", err)
	}
	if err := (Reply{Data: "BADDATA"}).Err(); !errors.Is(err, ErrRejected) {
		t.Errorf("want ErrRejected, got %v", err)
	}
	if err := (Reply{OK: true, Warning: "FS"}).Err(); !errors.Is(err, ErrFault) {
		t.Errorf("want ErrFault, got %v", err)
	}
	if _, err := (Reply{}).Int(); !errors.Is(err, ErrBadReply) {
		t.Errorf("empty data: want ErrBadReply, got %v", err)
	}
}

func newStage(t *testing.T, c *controller, axes ...Address) *Stage {
	t.Helper()
	if len(axes) == 0 {
		axes = []Address{{Device: 1, Axis: 1}, {Device: 2, Axis: 1}}
	}
	s, err := New(c, Config{Axes: axes, MicrostepSize: 0.001, PollInterval: 1, CommandRate: 1e6}, nil)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(newController(0), Config{}, nil); !errors.Is(err, domain.ErrPrecondition) {
		t.Errorf("no axes: want ErrPrecondition, got %v", err)
	}
	if _, err := New(newController(0), Config{Axes: []Address{{Device: 1}}}, nil); !errors.Is(err, domain.ErrPrecondition) {
		t.Errorf("axis 0: want ErrPrecondition, got %v", err)
	}
}

func TestStage_BlockingMove(t *testing.T) {
	ctx := context.Background()
	c := newController(3)
	s := newStage(t, c)

	if err := s.Move(ctx, geometry.C(1.5, -2), 2, probe.Absolute, true); err != nil {
		t.Fatalf("move: %v", err)
	}
	pos, err := s.Position(ctx)
	if err != nil {
		t.Fatalf("position: %v", err)
	}
	if !pos.Equal(geometry.C(1.5, -2), 1e-9) {
		t.Errorf("position = %v", pos)
	}
	// 2 mm/s at 1 µm per microstep is 2000 microsteps/s.
	if got := c.speed[Address{Device: 1, Axis: 1}]; got != int64(math.Round(2000*1.6384)) {
		t.Errorf("maxspeed = %d", got)
	}

	if err := s.Move(ctx, geometry.C(0.5, 0), 0, probe.Relative, true); err != nil {
		t.Fatalf("relative move: %v", err)
	}
	pos, _ = s.Position(ctx)
	if !pos.Equal(geometry.C(2, -2), 1e-9) {
		t.Errorf("after relative move position = %v", pos)
	}
}

func TestStage_SpeedSetOnlyOnChange(t *testing.T) {
	ctx := context.Background()
	c := newController(0)
	s := newStage(t, c, Address{Device: 1, Axis: 1})

	for range 3 {
		if err := s.Move(ctx, geometry.C(1), 5, probe.Absolute, false); err != nil {
			t.Fatal(err)
		}
	}
	var n int
	for _, l := range c.log {
		if l == "/1 1 set maxspeed 8192" {
			n++
		}
	}
	if n != 1 {
		t.Errorf("maxspeed sent %d times: %v", n, c.log)
	}
}

func TestStage_ConcurrentSpeedSetSendsOnce(t *testing.T) {
	ctx := context.Background()
	c := newController(0)
	s := newStage(t, c, Address{Device: 1, Axis: 1})

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.setSpeed(ctx, Address{Device: 1, Axis: 1}, 5); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	var n int
	for _, l := range c.log {
		if l == "/1 1 set maxspeed 8192" {
			n++
		}
	}
	if n != 1 {
		t.Errorf("maxspeed sent %d times: %v", n, c.log)
	}
}

func TestStage_SkipsInfoAndAlerts(t *testing.T) {
	c := newController(0)
	c.noise = "#01 0 firmware notice\r\n!02 1 IDLE --\r\n"
	s := newStage(t, c)

	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
}

func TestStage_Rejection(t *testing.T) {
	c := newController(0)
	s := newStage(t, c)

	_, err := s.Send(context.Background(), Command{Address: Address{Device: 1, Axis: 1}, Verb: "home now"})
	if !errors.Is(err, ErrRejected) {
		t.Fatalf("want ErrRejected, got %v", err)
	}
}

func TestStage_TargetTooLong(t *testing.T) {
	s := newStage(t, newController(0))
	err := s.Move(context.Background(), geometry.C(1, 2, 3), 1, probe.Absolute, false)
	if !errors.Is(err, domain.ErrPrecondition) {
		t.Fatalf("want ErrPrecondition, got %v", err)
	}
}

type constSensor struct{}

func (constSensor) Record(context.Context) ([][]float64, error) {
	return [][]float64{{1, -1, 1, -1}}, nil
}

func TestStage_LinearScanStops(t *testing.T) {
	ctx := context.Background()
	c := newController(5)
	s := newStage(t, c)
	p := probe.New(s, constSensor{}, probe.Options{Velocity: 1}, nil)

	calls := 0
	tr, broke, err := p.LinearScan(ctx, geometry.C(10, 0), probe.Absolute, func(float64) bool {
		calls++
		return calls == 2
	})
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if !broke || tr.Len() != 2 {
		t.Fatalf("broke=%v samples=%d", broke, tr.Len())
	}
	if c.stops != 2 {
		t.Errorf("stop should reach both devices, got %d", c.stops)
	}
	if tr[0].Magnitude != 1 {
		t.Errorf("magnitude = %f", tr[0].Magnitude)
	}
}
