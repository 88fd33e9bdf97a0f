package search

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/kailas-cloud/edgescan/internal/domain"
	"github.com/kailas-cloud/edgescan/internal/domain/feature"
	"github.com/kailas-cloud/edgescan/internal/domain/geometry"
	"github.com/kailas-cloud/edgescan/internal/hardware/sim"
	"github.com/kailas-cloud/edgescan/internal/usecase/probe"
)

func newService(field sim.Field, cfg sim.Config) (*sim.Rig, *Service) {
	rig := sim.New(cfg, field)
	p := probe.New(rig, rig, probe.Options{Velocity: 1}, nil)
	return rig, New(p, Options{}, nil)
}

func areaParams() Params {
	return Params{
		Origin:             geometry.C(0, 0),
		Width:              60,
		Height:             40,
		SnakeSeparation:    4,
		FuzzySeparation:    1,
		DetectionThreshold: 0.1,
		SweepVelocity:      5,
		TraceVelocity:      2,
		Epsilon:            1e-4,
	}
}

func TestDomainSearch_BlankFieldFindsNothing(t *testing.T) {
	rig, svc := newService(sim.Field{Background: 1}, sim.Config{})

	res, err := svc.DomainSearch(context.Background(), areaParams())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Features) != 0 {
		t.Fatalf("expected no features, got %d", len(res.Features))
	}
	if res.Trace.Len() == 0 {
		t.Error("expected the sweep to be recorded")
	}
	if rig.Stops() != 0 {
		t.Errorf("sweep stopped %d times on a blank field", rig.Stops())
	}
	if _, ok := res.Single(); ok {
		t.Error("Single should report no feature")
	}
}

func TestDomainSearch_FindsRectangle(t *testing.T) {
	want := geometry.Rectangle{OriginX: 10, OriginY: 10, Width: 30, Height: 20}
	_, svc := newService(sim.Field{
		Background: 1,
		Inclusions: []sim.Inclusion{{Rect: want, Contrast: 1}},
	}, sim.Config{})

	res, err := svc.DomainSearch(context.Background(), areaParams())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f, ok := res.Single()
	if !ok {
		t.Fatalf("expected exactly one feature, got %d", len(res.Features))
	}
	if f.Kind != feature.KindArea {
		t.Fatalf("kind = %q, want area", f.Kind)
	}
	if !rectClose(f.Rect, want) {
		t.Fatalf("fitted %+v, want %+v", f.Rect, want)
	}
	if f.Trace.Len() == 0 {
		t.Error("feature should carry its trace")
	}
	if res.Trace.Len() <= f.Trace.Len() {
		t.Error("full trace should include sweep samples")
	}
}

func TestDomainSearch_FindsCrack(t *testing.T) {
	crack := geometry.Segment{Start: geometry.C(15, 5), End: geometry.C(15, 35)}
	_, svc := newService(sim.Field{
		Background: 1,
		Cracks:     []sim.Crack{{Segment: crack, Depth: 1, Width: 0.2}},
	}, sim.Config{})

	p := areaParams()
	p.FuzzySeparation = 1.5
	res, err := svc.DomainSearch(context.Background(), p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f, ok := res.Single()
	if !ok {
		t.Fatalf("expected exactly one feature, got %d", len(res.Features))
	}
	if f.Kind != feature.KindLine || f.Segment == nil {
		t.Fatalf("expected a line feature, got %+v", f.Kind)
	}
	lo := math.Min(f.Segment.Start.Y(), f.Segment.End.Y())
	hi := math.Max(f.Segment.Start.Y(), f.Segment.End.Y())
	if lo > 7 || hi < 33 {
		t.Errorf("segment spans y [%f, %f], want about [5, 35]", lo, hi)
	}
	for _, end := range []geometry.Coordinate{f.Segment.Start, f.Segment.End} {
		if math.Abs(end.X()-15) > 1.5 {
			t.Errorf("segment end %v is far from x=15", end)
		}
	}
}

func rectClose(got, want geometry.Rectangle) bool {
	tols := []float64{0.3, 0.3, 0.5, 0.5, 0.02}
	g, w := got.Params(), want.Params()
	for i := range w {
		if math.Abs(g[i]-w[i]) > tols[i] {
			return false
		}
	}
	return true
}

func TestDomainSearch_FindsRotatedRectangle(t *testing.T) {
	// The row at y=8 only grazes the corner at the origin.
	want := geometry.Rectangle{OriginX: 25, OriginY: 8, Width: 20, Height: 14, Rotation: 0.4}
	_, svc := newService(sim.Field{
		Background: 1,
		Inclusions: []sim.Inclusion{{Rect: want, Contrast: 1}},
	}, sim.Config{})

	res, err := svc.DomainSearch(context.Background(), areaParams())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f, ok := res.Single()
	if !ok {
		for _, g := range res.Features {
			t.Logf("feature %s at %v", g.Kind, g.Origin)
		}
		t.Fatalf("expected exactly one feature, got %d", len(res.Features))
	}
	if f.Kind != feature.KindArea {
		t.Fatalf("kind = %q, want area", f.Kind)
	}
	if !rectClose(f.Rect, want) {
		t.Fatalf("fitted %+v, want %+v", f.Rect, want)
	}
}

func TestDomainSearch_FindsTwoRectangles(t *testing.T) {
	wants := []geometry.Rectangle{
		{OriginX: 6, OriginY: 6, Width: 16, Height: 10},
		{OriginX: 34, OriginY: 20, Width: 18, Height: 12},
	}
	field := sim.Field{Background: 1}
	for _, w := range wants {
		field.Inclusions = append(field.Inclusions, sim.Inclusion{Rect: w, Contrast: 1})
	}
	_, svc := newService(field, sim.Config{})

	res, err := svc.DomainSearch(context.Background(), areaParams())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Features) != len(wants) {
		t.Fatalf("expected %d features, got %d", len(wants), len(res.Features))
	}
	for _, w := range wants {
		found := false
		for _, f := range res.Features {
			if f.Kind == feature.KindArea && rectClose(f.Rect, w) {
				found = true
			}
		}
		if !found {
			t.Errorf("no feature fits %+v", w)
		}
	}
}

// idleOnce reports the first non-blocking move as finished before the stage
// has gone anywhere, as a slow controller can.
type idleOnce struct {
	*sim.Rig
	fired   bool
	pending bool
	scans   []geometry.Coordinate
}

func (a *idleOnce) Move(ctx context.Context, target geometry.Coordinate, velocity float64, mode probe.MoveMode, wait bool) error {
	if !wait {
		a.scans = append(a.scans, target.Clone())
		if !a.fired {
			a.fired, a.pending = true, true
		}
	}
	return a.Rig.Move(ctx, target, velocity, mode, wait)
}

func (a *idleOnce) IsBusy(ctx context.Context) (bool, error) {
	if a.pending {
		a.pending = false
		return false, nil
	}
	return a.Rig.IsBusy(ctx)
}

func TestDomainSearch_RetriesWaypointAfterEarlyIdle(t *testing.T) {
	rig := sim.New(sim.Config{}, sim.Field{Background: 1})
	act := &idleOnce{Rig: rig}
	svc := New(probe.New(act, rig, probe.Options{Velocity: 1}, nil), Options{}, nil)

	res, err := svc.DomainSearch(context.Background(), areaParams())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(act.scans) < 3 {
		t.Fatalf("expected at least 3 scans, got %v", act.scans)
	}
	first := geometry.C(60, 0)
	if !act.scans[0].Equal(first, 1e-9) || !act.scans[1].Equal(first, 1e-9) {
		t.Fatalf("first leg not retried: scans start %v %v", act.scans[0], act.scans[1])
	}
	reached := false
	for _, s := range res.Trace {
		if s.Position.Y() < 1 && s.Position.X() > 55 {
			reached = true
		}
	}
	if !reached {
		t.Error("sweep never travelled along the first row")
	}
}

func TestDomainSearch_Preconditions(t *testing.T) {
	ctx := context.Background()

	_, oneAxis := newService(sim.Field{Background: 1}, sim.Config{Axes: 1})
	if _, err := oneAxis.DomainSearch(ctx, areaParams()); !errors.Is(err, domain.ErrPrecondition) {
		t.Errorf("one axis: want ErrPrecondition, got %v", err)
	}

	_, svc := newService(sim.Field{Background: 1}, sim.Config{})
	p := areaParams()
	p.Origin = geometry.C(0, 0, 0)
	if _, err := svc.DomainSearch(ctx, p); !errors.Is(err, domain.ErrPrecondition) {
		t.Errorf("3-axis origin: want ErrPrecondition, got %v", err)
	}

	p = areaParams()
	p.FuzzySeparation = 0
	if _, err := svc.DomainSearch(ctx, p); !errors.Is(err, domain.ErrPrecondition) {
		t.Errorf("zero fuzzy separation: want ErrPrecondition, got %v", err)
	}

	p = areaParams()
	p.SnakeSeparation = 0
	if _, err := svc.DomainSearch(ctx, p); !errors.Is(err, domain.ErrPrecondition) {
		t.Errorf("zero snake separation: want ErrPrecondition, got %v", err)
	}

	_, dark := newService(sim.Field{}, sim.Config{})
	if _, err := dark.DomainSearch(ctx, areaParams()); !errors.Is(err, domain.ErrPrecondition) {
		t.Errorf("zero reference: want ErrPrecondition, got %v", err)
	}
}

func TestDomainSearch_HardwareError(t *testing.T) {
	rig, svc := newService(sim.Field{Background: 1}, sim.Config{})
	boom := errors.New("link down")
	rig.SetOffline(boom)

	if _, err := svc.DomainSearch(context.Background(), areaParams()); !errors.Is(err, boom) {
		t.Fatalf("want %v, got %v", boom, err)
	}
}

func TestDomainSearch_ThreeAxisStage(t *testing.T) {
	_, svc := newService(sim.Field{Background: 1}, sim.Config{Axes: 3})

	res, err := svc.DomainSearch(context.Background(), areaParams())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, s := range res.Trace {
		if s.Position.Dim() != 3 {
			t.Fatalf("sample position %v should have 3 axes", s.Position)
		}
	}
}

func TestRasterScan_VisitsEveryWaypoint(t *testing.T) {
	rect := geometry.Rectangle{OriginX: 2, OriginY: 2, Width: 4, Height: 4}
	rig, svc := newService(sim.Field{
		Background: 1,
		Inclusions: []sim.Inclusion{{Rect: rect, Contrast: 1}},
	}, sim.Config{})

	tr, err := svc.RasterScan(context.Background(), RasterParams{
		Origin:     geometry.C(0, 0),
		Width:      10,
		Height:     10,
		Separation: 2,
		Velocity:   5,
		Epsilon:    1e-4,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rig.Stops() != 0 {
		t.Errorf("raster scan must not stop, stopped %d times", rig.Stops())
	}

	var inside int
	for _, s := range tr {
		if s.Magnitude > 1.9 {
			inside++
		}
	}
	if inside == 0 {
		t.Error("raster scan should cross the inclusion")
	}

	pos, err := rig.Position(context.Background())
	if err != nil {
		t.Fatalf("position: %v", err)
	}
	// The 10x10 square with separation 2 ends its column pass on the left edge.
	if !pos.Equal(geometry.C(0, 10), 1e-9) && !pos.Equal(geometry.C(0, 0), 1e-9) {
		t.Errorf("raster ended at %v", pos)
	}
}

func TestRasterScan_Preconditions(t *testing.T) {
	_, svc := newService(sim.Field{Background: 1}, sim.Config{})
	_, err := svc.RasterScan(context.Background(), RasterParams{Origin: geometry.C(0, 0), Width: 10, Height: 10})
	if !errors.Is(err, domain.ErrPrecondition) {
		t.Fatalf("zero separation: want ErrPrecondition, got %v", err)
	}
}

func TestResult_Single(t *testing.T) {
	one := Result{Features: []feature.Feature{{Kind: feature.KindArea}}}
	if f, ok := one.Single(); !ok || f.Kind != feature.KindArea {
		t.Errorf("Single() = %+v, %v", f, ok)
	}
	two := Result{Features: []feature.Feature{{}, {}}}
	if _, ok := two.Single(); ok {
		t.Error("two features should not be single")
	}
}
