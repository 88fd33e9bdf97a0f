// Package sample holds probe readings and the ordered trace they form.
package sample

import (
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/floats"

	"github.com/kailas-cloud/edgescan/internal/domain/geometry"
)

// Sample is one sensor reading taken at a stage position.
type Sample struct {
	Position  geometry.Coordinate `json:"position"`
	Magnitude float64             `json:"magnitude"`
	Spectrum  []complex128        `json:"-"`
}

// Trace is an append-only, ordered list of samples.
type Trace []Sample

// Append adds samples to the end of the trace.
func (t *Trace) Append(s ...Sample) { *t = append(*t, s...) }

// Extend appends every sample of o.
func (t *Trace) Extend(o Trace) { *t = append(*t, o...) }

// Len returns the number of samples.
func (t Trace) Len() int { return len(t) }

// Last returns the most recent sample.
func (t Trace) Last() (Sample, bool) {
	if len(t) == 0 {
		return Sample{}, false
	}
	return t[len(t)-1], true
}

// Positions returns the sample positions in trace order.
func (t Trace) Positions() []geometry.Coordinate {
	out := make([]geometry.Coordinate, len(t))
	for i, s := range t {
		out[i] = s.Position
	}
	return out
}

// Magnitudes returns the sample magnitudes in trace order.
func (t Trace) Magnitudes() []float64 {
	out := make([]float64, len(t))
	for i, s := range t {
		out[i] = s.Magnitude
	}
	return out
}

// Axes returns the largest position dimensionality in the trace.
func (t Trace) Axes() int {
	n := 0
	for _, s := range t {
		n = max(n, s.Position.Dim())
	}
	return n
}

// RMS returns the root mean square over every value of the given channels.
// Empty input yields 0.
func RMS(channels ...[]float64) float64 {
	var sum float64
	n := 0
	for _, ch := range channels {
		sum += floats.Dot(ch, ch)
		n += len(ch)
	}
	if n == 0 {
		return 0
	}
	return math.Sqrt(sum / float64(n))
}

// Spectrum returns the one-sided discrete Fourier coefficients of buf.
func Spectrum(buf []float64) []complex128 {
	if len(buf) == 0 {
		return nil
	}
	return fourier.NewFFT(len(buf)).Coefficients(nil, buf)
}

// SpectrumMagnitudes returns |c| for each coefficient.
func SpectrumMagnitudes(spec []complex128) []float64 {
	out := make([]float64, len(spec))
	for i, c := range spec {
		out[i] = math.Hypot(real(c), imag(c))
	}
	return out
}
