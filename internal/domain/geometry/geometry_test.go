package geometry

import (
	"errors"
	"math"
	"testing"

	"github.com/kailas-cloud/edgescan/internal/domain"
)

func almost(a, b, eps float64) bool {
	return math.Abs(a-b) < eps
}

func TestPointToSegment_OnSegment(t *testing.T) {
	d, err := PointToSegment(C(5, 0), C(0, 0), C(10, 0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d != 0 {
		t.Fatalf("want 0, got %f", d)
	}
}

func TestPointToSegment_Perpendicular(t *testing.T) {
	d, err := PointToSegment(C(5, 3), C(0, 0), C(10, 0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !almost(d, 3, 1e-12) {
		t.Fatalf("want 3, got %f", d)
	}
}

func TestPointToSegment_ClampsToEndpoints(t *testing.T) {
	tests := []struct {
		name string
		p    Coordinate
		want float64
	}{
		{"before start", C(-3, 4), 5},
		{"past end", C(13, -4), 5},
		{"at end", C(10, 0), 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			d, err := PointToSegment(tc.p, C(0, 0), C(10, 0))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !almost(d, tc.want, 1e-12) {
				t.Errorf("want %f, got %f", tc.want, d)
			}
		})
	}
}

func TestPointToSegment_SymmetricUnderReversal(t *testing.T) {
	points := []Coordinate{C(1, 2), C(-4, 7), C(12, -3), C(3.3, 0.1), C(0, 0)}
	a, b := C(-1, 2), C(6, -5)
	fwd, err := PointToSegmentDistance(points, a, b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rev, err := PointToSegmentDistance(points, b, a)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := range points {
		if !almost(fwd[i], rev[i], 1e-12) {
			t.Errorf("point %d: forward %f, reversed %f", i, fwd[i], rev[i])
		}
	}
}

func TestPointToSegment_ThreeAxes(t *testing.T) {
	d, err := PointToSegment(C(0, 0, 2), C(-1, 0, 0), C(1, 0, 0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !almost(d, 2, 1e-12) {
		t.Fatalf("want 2, got %f", d)
	}
}

func TestPointToSegment_Degenerate(t *testing.T) {
	_, err := PointToSegment(C(1, 1), C(2, 2), C(2, 2))
	if !errors.Is(err, domain.ErrDegenerateSegment) {
		t.Fatalf("want ErrDegenerateSegment, got %v", err)
	}
}

func TestPointToSegment_DimensionMismatch(t *testing.T) {
	_, err := PointToSegment(C(1, 1, 1), C(0, 0), C(2, 2))
	if !errors.Is(err, domain.ErrPrecondition) {
		t.Fatalf("want ErrPrecondition, got %v", err)
	}
}

func TestRectangle_CornersAxisAligned(t *testing.T) {
	r := Rectangle{OriginX: 10, OriginY: 10, Width: 30, Height: 20}
	want := [4]Coordinate{C(10, 10), C(40, 10), C(40, 30), C(10, 30)}
	got := r.Corners()
	for i := range want {
		if !got[i].Equal(want[i], 1e-12) {
			t.Errorf("corner %d: want %v, got %v", i, want[i], got[i])
		}
	}
}

func TestRectangle_CornersRotated(t *testing.T) {
	r := Rectangle{Width: 2, Height: 1, Rotation: math.Pi / 2}
	got := r.Corners()
	want := [4]Coordinate{C(0, 0), C(0, 2), C(-1, 2), C(-1, 0)}
	for i := range want {
		if !got[i].Equal(want[i], 1e-12) {
			t.Errorf("corner %d: want %v, got %v", i, want[i], got[i])
		}
	}
}

func TestRectangleEdgeDistance_ZeroAtCorners(t *testing.T) {
	rects := []Rectangle{
		{OriginX: 10, OriginY: 10, Width: 30, Height: 20},
		{OriginX: -5, OriginY: 3, Width: 7, Height: 11, Rotation: 0.3},
		{OriginX: 1, OriginY: 1, Width: 4, Height: 4, Rotation: 7.5},
	}
	for _, r := range rects {
		c := r.Corners()
		d := RectangleEdgeDistance(c[:], r)
		for i, v := range d {
			if !almost(v, 0, 1e-9) {
				t.Errorf("rect %+v corner %d: want 0, got %g", r, i, v)
			}
		}
	}
}

func TestRectangle_DistanceInsideAndOutside(t *testing.T) {
	r := Rectangle{OriginX: 10, OriginY: 10, Width: 30, Height: 20}
	tests := []struct {
		p    Coordinate
		want float64
	}{
		{C(25, 20), 10},
		{C(11, 20), 1},
		{C(5, 20), 5},
		{C(43, 34), 5},
		{C(25, 10), 0},
	}
	for _, tc := range tests {
		if got := r.Distance(tc.p); !almost(got, tc.want, 1e-12) {
			t.Errorf("Distance(%v) = %f, want %f", tc.p, got, tc.want)
		}
	}
}

func TestRectangle_ContainsAndSignedDistance(t *testing.T) {
	r := Rectangle{OriginX: 0, OriginY: 0, Width: 4, Height: 2, Rotation: math.Pi / 4}
	inside := r.Center()
	if !r.Contains(inside) {
		t.Fatalf("center %v should be inside", inside)
	}
	if r.SignedDistance(inside) <= 0 {
		t.Errorf("signed distance at center should be positive")
	}
	outside := C(4, 0)
	if r.Contains(outside) {
		t.Fatalf("%v should be outside", outside)
	}
	if r.SignedDistance(outside) >= 0 {
		t.Errorf("signed distance outside should be negative")
	}
}

func TestRectangle_ZeroHeightIsWellDefined(t *testing.T) {
	r := Rectangle{Width: 10}
	if d := r.Distance(C(5, 2)); !almost(d, 2, 1e-12) {
		t.Fatalf("want 2, got %f", d)
	}
}

func TestRectangle_Normalize(t *testing.T) {
	r := Rectangle{OriginX: 10, OriginY: 5, Width: -4, Height: -2}
	n := r.Normalize()
	want := Rectangle{OriginX: 6, OriginY: 3, Width: 4, Height: 2}
	if !almost(n.OriginX, want.OriginX, 1e-12) || !almost(n.OriginY, want.OriginY, 1e-12) ||
		n.Width != want.Width || n.Height != want.Height {
		t.Fatalf("want %+v, got %+v", want, n)
	}
	probe := C(8, 7)
	if !almost(r.Distance(probe), n.Distance(probe), 1e-12) {
		t.Errorf("normalization changed the shape")
	}
}

func TestRotations(t *testing.T) {
	d := C(1, 0, 5)
	cw := RotateCW(d)
	if !cw.Equal(C(0, -1, 5), 0) {
		t.Fatalf("RotateCW(%v) = %v", d, cw)
	}
	for _, v := range []Coordinate{C(1, 0), C(0, 1), C(3, -2)} {
		x, y := Rotate2D(v.X(), v.Y(), -math.Pi/2)
		if !RotateCW(v).Equal(C(x, y), 1e-12) {
			t.Errorf("RotateCW(%v) = %v, Rotate2D by -pi/2 gives (%v, %v)", v, RotateCW(v), x, y)
		}
		x, y = Rotate2D(v.X(), v.Y(), math.Pi/2)
		if !RotateCCW(v).Equal(C(x, y), 1e-12) {
			t.Errorf("RotateCCW(%v) = %v, Rotate2D by pi/2 gives (%v, %v)", v, RotateCCW(v), x, y)
		}
	}
	if back := RotateCCW(cw); !back.Equal(d, 0) {
		t.Fatalf("RotateCCW(RotateCW(d)) = %v, want %v", back, d)
	}
	full := RotateCW(RotateCW(RotateCW(RotateCW(d))))
	if !full.Equal(d, 0) {
		t.Fatalf("four quarter turns = %v", full)
	}
}

func TestCoordinate_Arithmetic(t *testing.T) {
	a := C(1, 2)
	b := C(3, 4, 5)
	if got := a.Add(b); !got.Equal(C(4, 6, 5), 0) {
		t.Errorf("Add = %v", got)
	}
	if got := b.Sub(a); !got.Equal(C(2, 2, 5), 0) {
		t.Errorf("Sub = %v", got)
	}
	if got := C(3, 4).Norm(); got != 5 {
		t.Errorf("Norm = %f", got)
	}
	if got := C(0, 0).Unit(); !got.Equal(C(0, 0), 0) {
		t.Errorf("Unit of zero = %v", got)
	}
	if !Within(C(0, 0), C(0.5, 0.5), 1) || Within(C(0, 0), C(1, 0), 1) {
		t.Errorf("Within should be strict")
	}
	if a[0] != 1 || a[1] != 2 {
		t.Errorf("operands must not be mutated: %v", a)
	}
}
