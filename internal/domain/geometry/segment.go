package geometry

import (
	"fmt"

	"github.com/kailas-cloud/edgescan/internal/domain"
)

// Segment is a straight line between two stage positions.
type Segment struct {
	Start Coordinate `json:"start"`
	End   Coordinate `json:"end"`
}

// Length returns the Euclidean length of the segment.
func (s Segment) Length() float64 { return s.Start.Dist(s.End) }

// Distance returns the distance from p to the segment. A zero-length segment
// returns ErrDegenerateSegment.
func (s Segment) Distance(p Coordinate) (float64, error) {
	return PointToSegment(p, s.Start, s.End)
}

// PointToSegment returns the distance from p to the closed segment
// [start, end]. The projection parameter is clamped to [0, 1] so the endpoints
// bound the nearest point.
func PointToSegment(p, start, end Coordinate) (float64, error) {
	if len(start) != len(end) {
		return 0, domain.NewPrecondition("point to segment",
			"segment endpoints have %d and %d axes", len(start), len(end))
	}
	if len(p) != len(start) {
		return 0, domain.NewPrecondition("point to segment",
			"point has %d axes, segment has %d", len(p), len(start))
	}
	v := end.Sub(start)
	l2 := v.Dot(v)
	if l2 == 0 {
		return 0, fmt.Errorf("point to segment %v: %w", start, domain.ErrDegenerateSegment)
	}
	return clampedDistance(p, start, v, l2), nil
}

// PointToSegmentDistance returns, for each point, the distance to the segment
// [start, end].
func PointToSegmentDistance(points []Coordinate, start, end Coordinate) ([]float64, error) {
	out := make([]float64, len(points))
	for i, p := range points {
		d, err := PointToSegment(p, start, end)
		if err != nil {
			return nil, fmt.Errorf("point %d: %w", i, err)
		}
		out[i] = d
	}
	return out, nil
}

func clampedDistance(p, start, v Coordinate, l2 float64) float64 {
	w := p.Sub(start)
	t := w.Dot(v) / l2
	switch {
	case t < 0:
		t = 0
	case t > 1:
		t = 1
	}
	return w.Sub(v.Scale(t)).Norm()
}

// edgeDistance is the rectangle-edge variant: a collapsed edge is measured
// to its endpoint instead of failing.
func edgeDistance(p, start, end Coordinate) float64 {
	v := end.Sub(start)
	l2 := v.Dot(v)
	if l2 == 0 {
		return p.Dist(start)
	}
	return clampedDistance(p, start, v, l2)
}
