// Package sim is a simulated stage and probe sharing a virtual clock. The
// probe reads a synthetic magnitude field made of rectangular inclusions and
// cracks over a flat background.
package sim

import (
	"math"

	"github.com/kailas-cloud/edgescan/internal/domain/geometry"
)

// DefaultEdgeWidth is the logistic scale of an inclusion edge, in mm.
const DefaultEdgeWidth = 0.1

// Inclusion is a rectangular region whose magnitude differs from background
// by Contrast.
type Inclusion struct {
	Rect     geometry.Rectangle
	Contrast float64
}

// Crack is a zero-width line with a gaussian magnitude profile across it.
type Crack struct {
	Segment geometry.Segment
	Depth   float64
	Width   float64
}

// Field is the synthetic magnitude map.
type Field struct {
	Background float64
	EdgeWidth  float64
	Inclusions []Inclusion
	Cracks     []Crack
	// Drift multiplies the magnitude by 1 + Drift[0]*x + Drift[1]*y, the
	// planar lift-off a tilted sample produces.
	Drift [2]float64
}

// Magnitude returns the noiseless magnitude at p.
func (f Field) Magnitude(p geometry.Coordinate) float64 {
	edge := f.EdgeWidth
	if edge <= 0 {
		edge = DefaultEdgeWidth
	}
	q := geometry.C(p.X(), p.Y())
	m := f.Background
	for _, in := range f.Inclusions {
		m += in.Contrast * logistic(in.Rect.SignedDistance(q)/edge)
	}
	for _, c := range f.Cracks {
		w := c.Width
		if w <= 0 {
			w = edge
		}
		d, err := c.Segment.Distance(q)
		if err != nil {
			d = q.Dist(c.Segment.Start)
		}
		m += c.Depth * math.Exp(-0.5*(d/w)*(d/w))
	}
	m *= 1 + f.Drift[0]*q.X() + f.Drift[1]*q.Y()
	return math.Max(m, 0)
}

func logistic(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}
