package fit

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/kailas-cloud/edgescan/internal/domain"
	"github.com/kailas-cloud/edgescan/internal/domain/geometry"
	"github.com/kailas-cloud/edgescan/internal/domain/sample"
)

// Segment fits a line feature: the samples that differ from the off-crack
// reference by at least half the largest deviation are projected onto their
// principal axis, and the extreme projections become the endpoints.
func Segment(tr sample.Trace, offRef float64) (geometry.Segment, error) {
	var peak float64
	for _, s := range tr {
		peak = math.Max(peak, math.Abs(s.Magnitude-offRef))
	}
	var pts []geometry.Coordinate
	for _, s := range tr {
		if peak > 0 && math.Abs(s.Magnitude-offRef) >= peak/2 {
			pts = append(pts, s.Position)
		}
	}
	return Line(pts)
}

// Line fits a segment through points in the stage plane.
func Line(points []geometry.Coordinate) (geometry.Segment, error) {
	if len(points) < 2 {
		metricFitFailed()
		return geometry.Segment{}, fmt.Errorf("fit segment to %d points: %w", len(points), domain.ErrFitFailed)
	}
	data := mat.NewDense(len(points), 2, nil)
	var cx, cy float64
	for i, p := range points {
		data.Set(i, 0, p.X())
		data.Set(i, 1, p.Y())
		cx += p.X()
		cy += p.Y()
	}
	n := float64(len(points))
	cx, cy = cx/n, cy/n

	var pc stat.PC
	if !pc.PrincipalComponents(data, nil) {
		metricFitFailed()
		return geometry.Segment{}, fmt.Errorf("fit segment: principal components: %w", domain.ErrFitFailed)
	}
	var vecs mat.Dense
	pc.VectorsTo(&vecs)
	ux, uy := vecs.At(0, 0), vecs.At(1, 0)

	lo, hi := math.Inf(1), math.Inf(-1)
	for _, p := range points {
		t := (p.X()-cx)*ux + (p.Y()-cy)*uy
		lo, hi = math.Min(lo, t), math.Max(hi, t)
	}
	metricFitOK()
	return geometry.Segment{
		Start: geometry.C(cx+lo*ux, cy+lo*uy),
		End:   geometry.C(cx+hi*ux, cy+hi*uy),
	}, nil
}
