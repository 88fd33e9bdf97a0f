// Package geometry holds stage-space vector math: coordinates, segment and
// rectangle distances, and the quarter-turn rotations used by the tracers.
package geometry

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Coordinate is a position or displacement in stage space, one value per axis.
type Coordinate []float64

// C builds a Coordinate from its components.
func C(v ...float64) Coordinate { return Coordinate(v) }

// Clone returns an independent copy.
func (c Coordinate) Clone() Coordinate {
	out := make(Coordinate, len(c))
	copy(out, c)
	return out
}

// Dim returns the number of axes.
func (c Coordinate) Dim() int { return len(c) }

// X returns the first component, or 0 for an empty coordinate.
func (c Coordinate) X() float64 { return c.at(0) }

// Y returns the second component, or 0.
func (c Coordinate) Y() float64 { return c.at(1) }

func (c Coordinate) at(i int) float64 {
	if i < len(c) {
		return c[i]
	}
	return 0
}

// Add returns c + o. The result has the larger dimensionality, missing
// components are read as zero.
func (c Coordinate) Add(o Coordinate) Coordinate {
	out := c.Pad(max(len(c), len(o)))
	floats.Add(out, o.Pad(len(out)))
	return out
}

// Sub returns c - o with the same padding rule as Add.
func (c Coordinate) Sub(o Coordinate) Coordinate {
	out := c.Pad(max(len(c), len(o)))
	floats.Sub(out, o.Pad(len(out)))
	return out
}

// Scale returns k*c.
func (c Coordinate) Scale(k float64) Coordinate {
	out := c.Clone()
	floats.Scale(k, out)
	return out
}

// Dot returns the inner product over the shared axes.
func (c Coordinate) Dot(o Coordinate) float64 {
	n := min(len(c), len(o))
	return floats.Dot(c[:n], o[:n])
}

// Norm returns the Euclidean length.
func (c Coordinate) Norm() float64 {
	if len(c) == 0 {
		return 0
	}
	return floats.Norm(c, 2)
}

// Dist returns the Euclidean distance between c and o.
func (c Coordinate) Dist(o Coordinate) float64 {
	return c.Sub(o).Norm()
}

// Unit returns c scaled to length 1. A zero vector is returned unchanged.
func (c Coordinate) Unit() Coordinate {
	n := c.Norm()
	if n == 0 {
		return c.Clone()
	}
	return c.Scale(1 / n)
}

// Pad returns a copy extended with zeros (or truncated) to n axes.
func (c Coordinate) Pad(n int) Coordinate {
	out := make(Coordinate, n)
	copy(out, c)
	return out
}

// Equal reports whether both coordinates have the same components within tol.
func (c Coordinate) Equal(o Coordinate, tol float64) bool {
	if len(c) != len(o) {
		return false
	}
	return floats.EqualApprox(c, o, tol)
}

// Within reports whether b lies strictly inside the ball of radius r around a.
func Within(a, b Coordinate, r float64) bool {
	return a.Dist(b) < r
}

// RotateCW turns the first two axes a quarter turn clockwise,
// (x, y) -> (y, -x), matching Rotate2D with theta = -pi/2. Remaining axes
// pass through.
func RotateCW(c Coordinate) Coordinate {
	out := c.Pad(max(len(c), 2))
	out[0], out[1] = c.Y(), -c.X()
	return out
}

// RotateCCW is the inverse of RotateCW: (x, y) -> (-y, x).
func RotateCCW(c Coordinate) Coordinate {
	out := c.Pad(max(len(c), 2))
	out[0], out[1] = -c.Y(), c.X()
	return out
}

// Rotate2D rotates the planar vector (x, y) by theta radians counter-clockwise.
func Rotate2D(x, y, theta float64) (float64, float64) {
	s, co := math.Sincos(theta)
	return x*co - y*s, x*s + y*co
}
