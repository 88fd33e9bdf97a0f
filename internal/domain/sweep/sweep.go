// Package sweep generates boustrophedon ("snake") coverage paths over a
// rotated rectangle.
package sweep

import (
	"math"

	"github.com/kailas-cloud/edgescan/internal/domain"
	"github.com/kailas-cloud/edgescan/internal/domain/geometry"
)

// DefaultEpsilon is the tolerance used when testing whether another row or
// column still fits inside the rectangle.
const DefaultEpsilon = 1e-4

// maxLegs bounds each pass. Rotations close to a quarter turn barely advance
// the rows and would otherwise loop for a very long time.
const maxLegs = 1 << 20

// Params describes the rectangle to cover.
type Params struct {
	Separation float64
	XInit      float64
	YInit      float64
	Width      float64
	Height     float64
	Rotation   float64
	Epsilon    float64
}

// Validate checks that the rectangle and spacing are usable.
func (p Params) Validate() error {
	switch {
	case !(p.Separation > 0):
		return domain.NewPrecondition("grid sweep", "separation must be positive, got %g", p.Separation)
	case !(p.Width > 0) || !(p.Height > 0):
		return domain.NewPrecondition("grid sweep", "width and height must be positive, got %gx%g", p.Width, p.Height)
	case p.Epsilon < 0:
		return domain.NewPrecondition("grid sweep", "epsilon must not be negative, got %g", p.Epsilon)
	}
	return nil
}

// GridCoordinates is the positional form of Generate.
func GridCoordinates(separation, xInit, yInit, width, height, rotation, eps float64) ([]geometry.Coordinate, error) {
	return Generate(Params{
		Separation: separation,
		XInit:      xInit,
		YInit:      yInit,
		Width:      width,
		Height:     height,
		Rotation:   rotation,
		Epsilon:    eps,
	})
}

// Generate returns the waypoints of a row pass followed by a column pass.
//
// Every straight leg contributes both of its endpoints, so reversals show up
// as repeated coordinates. Rows advance by (sin r, cos r)*separation and run
// along (cos r, sin r)*width; columns mirror that. The parity of the last row
// and column decides which closing leg is emitted, and the exact order is
// part of the contract: callers tell inter-row moves from intra-row moves by
// position in the slice.
func Generate(p Params) ([]geometry.Coordinate, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	sin, cos := math.Sin(p.Rotation), math.Cos(p.Rotation)
	w, h, sep, eps := p.Width, p.Height, p.Separation, p.Epsilon
	x0, y0 := p.XInit, p.YInit

	var out []geometry.Coordinate
	emit := func(x, y float64) { out = append(out, geometry.Coordinate{x, y}) }

	// Rows.
	x, y := x0, y0
	row := 0
	for y-(y0+h*cos) < eps && row < maxLegs {
		emit(x, y)
		if row%2 == 0 {
			x += w * cos
			y += w * sin
		} else {
			x -= w * cos
			y -= w * sin
		}
		emit(x, y)
		x += sep * sin
		y += sep * cos
		row++
	}

	// Closing row flush with the far edge. coeff records which side it ends on.
	var coeff float64
	if row%2 == 0 {
		coeff = 1
		x = x0 + h*sin
		y = y0 + h*cos
		emit(x, y)
		x += w * cos
		y += w * sin
	} else {
		coeff = -1
		x = x0 + w*cos + h*sin
		y = y0 + w*sin + h*cos
		emit(x, y)
		x -= w * cos
		y -= w * sin
	}

	// Columns, walking back across the width.
	col := 0
	for x-(x0-h*sin) >= eps && x-(x0+h*sin+w*cos) <= eps && col < maxLegs {
		emit(x, y)
		if col%2 == 0 {
			x -= h * sin
			y -= h * cos
		} else {
			x += h * sin
			y += h * cos
		}
		emit(x, y)
		x -= coeff * sep * cos
		y -= coeff * sep * sin
		col++
	}

	// Closing column flush with the near edge.
	switch {
	case coeff < 0 && col%2 == 0:
		x = x0 + w*cos + h*sin
		y = y0 + w*sin + h*cos
		emit(x, y)
		emit(x-h*sin, y-h*cos)
	case coeff < 0:
		x = x0 + w*cos
		y = y0 + w*sin
		emit(x, y)
		emit(x+h*sin, y+h*cos)
	case col%2 == 0:
		x = x0 + h*sin
		y = y0 + h*cos
		emit(x, y)
		emit(x-h*sin, y-h*cos)
	default:
		emit(x0, y0)
		emit(x0+h*sin, y0+h*cos)
	}

	return out, nil
}
