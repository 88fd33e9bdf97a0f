// Package feature describes the features a domain search finds and how new
// detections are matched against them.
package feature

import (
	"fmt"

	"github.com/kailas-cloud/edgescan/internal/domain/geometry"
	"github.com/kailas-cloud/edgescan/internal/domain/sample"
)

// Kind distinguishes area features from zero-width lines.
type Kind string

const (
	// KindArea is a feature with volume, fitted as a rectangle.
	KindArea Kind = "area"
	// KindLine is a zero-width crack, fitted as a segment.
	KindLine Kind = "line"
)

// IsValid checks if the kind is supported.
func (k Kind) IsValid() bool {
	return k == KindArea || k == KindLine
}

// Feature is one traced feature: its kind, fitted geometry and the samples
// recorded while tracing it.
type Feature struct {
	Kind    Kind                `json:"kind"`
	Rect    geometry.Rectangle  `json:"rect"`
	Segment *geometry.Segment   `json:"segment,omitempty"`
	Trace   sample.Trace        `json:"trace,omitempty"`
	Origin  geometry.Coordinate `json:"origin"`
}

// NewArea creates an area feature with a fitted rectangle.
func NewArea(rect geometry.Rectangle, origin geometry.Coordinate, tr sample.Trace) Feature {
	return Feature{Kind: KindArea, Rect: rect, Origin: origin.Clone(), Trace: tr}
}

// NewLine creates a line feature with a fitted segment.
func NewLine(seg geometry.Segment, origin geometry.Coordinate, tr sample.Trace) Feature {
	return Feature{Kind: KindLine, Segment: &seg, Origin: origin.Clone(), Trace: tr}
}

// Validate checks the kind and that the geometry matching it is present.
func (f Feature) Validate() error {
	if !f.Kind.IsValid() {
		return fmt.Errorf("invalid feature kind: %q", f.Kind)
	}
	if f.Kind == KindLine && f.Segment == nil {
		return fmt.Errorf("line feature without segment")
	}
	return nil
}

// Distance returns how far p is from the feature. Points inside an area
// feature are at distance zero, so a sweep crossing its interior does not
// rediscover it.
func (f Feature) Distance(p geometry.Coordinate) float64 {
	q := geometry.C(p.X(), p.Y())
	if f.Kind == KindLine && f.Segment != nil {
		s := geometry.Segment{
			Start: geometry.C(f.Segment.Start.X(), f.Segment.Start.Y()),
			End:   geometry.C(f.Segment.End.X(), f.Segment.End.Y()),
		}
		d, err := s.Distance(q)
		if err != nil {
			return q.Dist(s.Start)
		}
		return d
	}
	if f.Rect.Contains(q) {
		return 0
	}
	return f.Rect.Distance(q)
}

// Set is the ordered list of features found during one search.
type Set struct {
	items []Feature
}

// Add appends a feature.
func (s *Set) Add(f Feature) { s.items = append(s.items, f) }

// Len returns the number of features.
func (s *Set) Len() int { return len(s.items) }

// List returns the features in discovery order.
func (s *Set) List() []Feature {
	out := make([]Feature, len(s.items))
	copy(out, s.items)
	return out
}

// IsNew reports whether p is farther than radius from every known feature.
func (s *Set) IsNew(p geometry.Coordinate, radius float64) bool {
	for _, f := range s.items {
		if f.Distance(p) <= radius {
			return false
		}
	}
	return true
}
