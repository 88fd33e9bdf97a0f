package geometry

import (
	"math"
)

// Rectangle is the pose of a rotated rectangle. Origin is the corner the
// rectangle rotates about, Rotation is in radians with counter-clockwise
// positive. Rotation is not normalized.
type Rectangle struct {
	OriginX  float64 `json:"origin_x"`
	OriginY  float64 `json:"origin_y"`
	Width    float64 `json:"width"`
	Height   float64 `json:"height"`
	Rotation float64 `json:"rotation"`
}

// Params returns the pose as (originX, originY, width, height, rotation).
func (r Rectangle) Params() []float64 {
	return []float64{r.OriginX, r.OriginY, r.Width, r.Height, r.Rotation}
}

// Corners returns the corners in edge order: origin, origin+width,
// origin+width+height, origin+height.
func (r Rectangle) Corners() [4]Coordinate {
	wx, wy := Rotate2D(r.Width, 0, r.Rotation)
	hx, hy := Rotate2D(0, r.Height, r.Rotation)
	return [4]Coordinate{
		{r.OriginX, r.OriginY},
		{r.OriginX + wx, r.OriginY + wy},
		{r.OriginX + wx + hx, r.OriginY + wy + hy},
		{r.OriginX + hx, r.OriginY + hy},
	}
}

// Distance returns the distance from p (first two axes) to the nearest edge.
func (r Rectangle) Distance(p Coordinate) float64 {
	q := Coordinate{p.X(), p.Y()}
	c := r.Corners()
	best := math.Inf(1)
	for i := range c {
		if d := edgeDistance(q, c[i], c[(i+1)%4]); d < best {
			best = d
		}
	}
	return best
}

// Contains reports whether p lies inside or on the rectangle.
func (r Rectangle) Contains(p Coordinate) bool {
	u, v := r.local(p)
	return inSpan(u, r.Width) && inSpan(v, r.Height)
}

// SignedDistance is positive inside the rectangle and negative outside.
func (r Rectangle) SignedDistance(p Coordinate) float64 {
	d := r.Distance(p)
	if r.Contains(p) {
		return d
	}
	return -d
}

// Center returns the midpoint of the rectangle.
func (r Rectangle) Center() Coordinate {
	c := r.Corners()
	return Coordinate{(c[0][0] + c[2][0]) / 2, (c[0][1] + c[2][1]) / 2}
}

// Normalize flips a negative width or height by moving the origin to the
// opposite edge, so the same area is described with positive sides.
func (r Rectangle) Normalize() Rectangle {
	if r.Width < 0 {
		wx, wy := Rotate2D(r.Width, 0, r.Rotation)
		r.OriginX += wx
		r.OriginY += wy
		r.Width = -r.Width
	}
	if r.Height < 0 {
		hx, hy := Rotate2D(0, r.Height, r.Rotation)
		r.OriginX += hx
		r.OriginY += hy
		r.Height = -r.Height
	}
	return r
}

// local maps p into the rectangle frame.
func (r Rectangle) local(p Coordinate) (float64, float64) {
	return Rotate2D(p.X()-r.OriginX, p.Y()-r.OriginY, -r.Rotation)
}

func inSpan(v, size float64) bool {
	if size < 0 {
		return v <= 0 && v >= size
	}
	return v >= 0 && v <= size
}

// RectangleEdgeDistance returns, for each point, the distance to the nearest
// edge of rect.
func RectangleEdgeDistance(points []Coordinate, rect Rectangle) []float64 {
	out := make([]float64, len(points))
	for i, p := range points {
		out[i] = rect.Distance(p)
	}
	return out
}
