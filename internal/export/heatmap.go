package export

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/anthonynsimon/bild/blur"
	"github.com/disintegration/imaging"
	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"

	"github.com/kailas-cloud/edgescan/internal/domain/feature"
	"github.com/kailas-cloud/edgescan/internal/domain/geometry"
	"github.com/kailas-cloud/edgescan/internal/domain/sample"
)

// Defaults for HeatmapOptions fields left zero.
const (
	DefaultHeatmapWidth  = 800
	DefaultHeatmapHeight = 600
	DefaultPointRadius   = 2
)

const (
	margin       = 24
	discSides    = 12
	outlineWidth = 2.0
)

var (
	rampLow  = colorful.Color{R: 0.19, G: 0.21, B: 0.58}
	rampHigh = colorful.Color{R: 0.65, G: 0.0, B: 0.15}
	outline  = color.NRGBA{A: 255}
)

// HeatmapOptions controls the PNG rendering.
type HeatmapOptions struct {
	Width       int
	Height      int
	PointRadius int
	// Smooth is the gaussian blur radius in pixels applied to the samples
	// before outlines and labels are drawn. Zero disables it.
	Smooth float64
	Title  string
}

func (o HeatmapOptions) withDefaults() HeatmapOptions {
	if o.Width <= 0 {
		o.Width = DefaultHeatmapWidth
	}
	if o.Height <= 0 {
		o.Height = DefaultHeatmapHeight
	}
	if o.PointRadius <= 0 {
		o.PointRadius = DefaultPointRadius
	}
	return o
}

// Heatmap renders the samples as coloured dots in the stage plane, outlines
// the fitted features and writes base.png. It returns the path written.
func Heatmap(base string, tr sample.Trace, features []feature.Feature, opts HeatmapOptions) (string, error) {
	if tr.Len() == 0 {
		return "", errors.New("heatmap export: empty trace")
	}
	img := Render(tr, features, opts)

	f, p, err := create(base, ".png")
	if err != nil {
		return "", err
	}
	if err := errors.Join(imaging.Encode(f, img, imaging.PNG), f.Close()); err != nil {
		return "", fmt.Errorf("heatmap export %s: %w", p, err)
	}
	return p, nil
}

// Render draws the heatmap image.
func Render(tr sample.Trace, features []feature.Feature, opts HeatmapOptions) *image.NRGBA {
	opts = opts.withDefaults()
	pts := tr.Positions()
	for _, f := range features {
		pts = append(pts, featurePoints(f)...)
	}
	proj := newProjection(pts, opts.Width, opts.Height)

	lo, hi := math.Inf(1), math.Inf(-1)
	for _, s := range tr {
		lo, hi = math.Min(lo, s.Magnitude), math.Max(hi, s.Magnitude)
	}

	img := imaging.New(opts.Width, opts.Height, color.White)
	pn := newPen(img)
	for _, s := range tr {
		t := 0.5
		if hi > lo {
			t = (s.Magnitude - lo) / (hi - lo)
		}
		px, py := proj.apply(s.Position)
		pn.disc(px, py, float64(opts.PointRadius))
		pn.fill(rampLow.BlendHcl(rampHigh, t).Clamped())
	}
	if opts.Smooth > 0 {
		img = imaging.Clone(blur.Gaussian(img, opts.Smooth))
		pn = newPen(img)
	}

	for _, f := range features {
		fp := featurePoints(f)
		closed := f.Kind == feature.KindArea
		for i := range fp {
			if i == len(fp)-1 && !closed {
				break
			}
			x0, y0 := proj.apply(fp[i])
			x1, y1 := proj.apply(fp[(i+1)%len(fp)])
			pn.stroke(x0, y0, x1, y1, outlineWidth/2)
		}
	}
	pn.fill(outline)

	label := fmt.Sprintf("%s  %s %.4g..%.4g", opts.Title, MagnitudeLabel, lo, hi)
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.Black),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(4, 14),
	}
	d.DrawString(label)
	return img
}

func featurePoints(f feature.Feature) []geometry.Coordinate {
	if f.Kind == feature.KindLine {
		if f.Segment == nil {
			return nil
		}
		return []geometry.Coordinate{f.Segment.Start, f.Segment.End}
	}
	c := f.Rect.Corners()
	return c[:]
}

// projection maps stage millimetres to pixels with equal scale on both
// axes and y growing upward.
type projection struct {
	minX, minY, scale float64
	height            int
}

func newProjection(pts []geometry.Coordinate, w, h int) projection {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, p := range pts {
		minX, maxX = math.Min(minX, p.X()), math.Max(maxX, p.X())
		minY, maxY = math.Min(minY, p.Y()), math.Max(maxY, p.Y())
	}
	spanX, spanY := math.Max(maxX-minX, 1e-9), math.Max(maxY-minY, 1e-9)
	scale := math.Min(float64(w-2*margin)/spanX, float64(h-2*margin)/spanY)
	return projection{minX: minX, minY: minY, scale: scale, height: h}
}

func (p projection) apply(c geometry.Coordinate) (float64, float64) {
	x := margin + (c.X()-p.minX)*p.scale
	y := float64(p.height-margin) - (c.Y()-p.minY)*p.scale
	return x, y
}

// pen accumulates paths in a vector.Rasterizer and fills them in one colour.
type pen struct {
	z   *vector.Rasterizer
	dst draw.Image
}

func newPen(dst draw.Image) *pen {
	b := dst.Bounds()
	return &pen{z: vector.NewRasterizer(b.Dx(), b.Dy()), dst: dst}
}

func (p *pen) fill(c color.Color) {
	b := p.dst.Bounds()
	p.z.Draw(p.dst, b, image.NewUniform(c), image.Point{})
	p.z.Reset(b.Dx(), b.Dy())
}

func (p *pen) disc(cx, cy, r float64) {
	for i := range discSides {
		a := 2 * math.Pi * float64(i) / discSides
		x, y := float32(cx+r*math.Cos(a)), float32(cy+r*math.Sin(a))
		if i == 0 {
			p.z.MoveTo(x, y)
		} else {
			p.z.LineTo(x, y)
		}
	}
	p.z.ClosePath()
}

// stroke adds the quad of half-width hw around the segment. Every quad winds
// the same way, so overlaps at corners do not cancel.
func (p *pen) stroke(x0, y0, x1, y1, hw float64) {
	dx, dy := x1-x0, y1-y0
	n := math.Hypot(dx, dy)
	if n == 0 {
		p.disc(x0, y0, hw)
		return
	}
	nx, ny := -dy/n*hw, dx/n*hw
	p.z.MoveTo(float32(x0+nx), float32(y0+ny))
	p.z.LineTo(float32(x1+nx), float32(y1+ny))
	p.z.LineTo(float32(x1-nx), float32(y1-ny))
	p.z.LineTo(float32(x0-nx), float32(y0-ny))
	p.z.ClosePath()
}
