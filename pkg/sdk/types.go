package edgescan

import (
	"time"

	"github.com/kailas-cloud/edgescan/internal/domain/feature"
	"github.com/kailas-cloud/edgescan/internal/domain/geometry"
	domrun "github.com/kailas-cloud/edgescan/internal/domain/run"
	"github.com/kailas-cloud/edgescan/internal/domain/sample"
	"github.com/kailas-cloud/edgescan/internal/usecase/probe"
)

// Coordinate is a stage position in mm, one value per axis.
type Coordinate = geometry.Coordinate

// MoveMode selects absolute or relative move targets.
type MoveMode = probe.MoveMode

// Move modes.
const (
	Absolute = probe.Absolute
	Relative = probe.Relative
)

// Actuator is the motion stage carrying the probe. Implementations report
// positions in mm and accept velocities in mm/s.
type Actuator = probe.Actuator

// Sensor acquires one record per call, one buffer per channel.
type Sensor = probe.Sensor

// Mode is the kind of job a run performed.
type Mode string

// Run modes.
const (
	ModeSearch Mode = "search"
	ModeRaster Mode = "raster"
)

// Status is the lifecycle state of a run.
type Status string

// Run statuses.
const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// FeatureKind distinguishes areas from cracks.
type FeatureKind string

// Feature kinds.
const (
	FeatureArea FeatureKind = "area"
	FeatureLine FeatureKind = "line"
)

// Rectangle is a fitted area pose. Rotation is in radians around the origin
// corner.
type Rectangle struct {
	OriginX  float64
	OriginY  float64
	Width    float64
	Height   float64
	Rotation float64
}

// Segment is a fitted crack.
type Segment struct {
	Start Coordinate
	End   Coordinate
}

// Feature is one traced feature.
type Feature struct {
	Kind    FeatureKind
	Rect    Rectangle
	Segment *Segment // set for FeatureLine
	Origin  Coordinate
	Samples int
}

// Sample is one probe reading.
type Sample struct {
	Position  Coordinate
	Magnitude float64
}

// Run is a stored job with everything it measured.
type Run struct {
	ID         string
	Name       string
	Mode       Mode
	Status     Status
	StartedAt  time.Time
	FinishedAt time.Time
	Params     map[string]any
	Trace      []Sample
	Features   []Feature
	Error      string
}

// RunSummary is the listing view of a run.
type RunSummary struct {
	ID         string
	Name       string
	Mode       Mode
	Status     Status
	StartedAt  time.Time
	FinishedAt time.Time
	Samples    int
	Features   int
}

func fromInternalFeature(f feature.Feature) Feature {
	out := Feature{
		Kind: FeatureKind(f.Kind),
		Rect: Rectangle{
			OriginX:  f.Rect.OriginX,
			OriginY:  f.Rect.OriginY,
			Width:    f.Rect.Width,
			Height:   f.Rect.Height,
			Rotation: f.Rect.Rotation,
		},
		Origin:  f.Origin,
		Samples: f.Trace.Len(),
	}
	if f.Segment != nil {
		out.Segment = &Segment{Start: f.Segment.Start, End: f.Segment.End}
	}
	return out
}

func fromInternalTrace(tr sample.Trace) []Sample {
	out := make([]Sample, len(tr))
	for i, s := range tr {
		out[i] = Sample{Position: s.Position, Magnitude: s.Magnitude}
	}
	return out
}

func fromInternalRun(r *domrun.Run) *Run {
	features := make([]Feature, len(r.Features))
	for i, f := range r.Features {
		features[i] = fromInternalFeature(f)
	}
	return &Run{
		ID:         r.ID,
		Name:       r.Name,
		Mode:       Mode(r.Mode),
		Status:     Status(r.Status),
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
		Params:     r.Params,
		Trace:      fromInternalTrace(r.Trace),
		Features:   features,
		Error:      r.Error,
	}
}

func fromInternalSummary(s domrun.Summary) RunSummary {
	return RunSummary{
		ID:         s.ID,
		Name:       s.Name,
		Mode:       Mode(s.Mode),
		Status:     Status(s.Status),
		StartedAt:  s.StartedAt,
		FinishedAt: s.FinishedAt,
		Samples:    s.Samples,
		Features:   s.Features,
	}
}
