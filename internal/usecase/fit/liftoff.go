package fit

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/kailas-cloud/edgescan/internal/domain"
	"github.com/kailas-cloud/edgescan/internal/domain/sample"
)

// LiftoffModel is the surface fitted to the strongest magnitudes.
type LiftoffModel string

const (
	// Linear fits v = a*x + b*y + c.
	Linear LiftoffModel = "linear"
	// Quadratic fits v = a*x² + b*xy + c*y² + d*x + e*y + f.
	Quadratic LiftoffModel = "quadratic"
)

// IsValid checks if the model is supported.
func (m LiftoffModel) IsValid() bool {
	return m == Linear || m == Quadratic
}

func (m LiftoffModel) row(x, y float64) []float64 {
	if m == Quadratic {
		return []float64{x * x, x * y, y * y, x, y, 1}
	}
	return []float64{x, y, 1}
}

// CorrectLiftoff removes a smooth drift from the magnitudes. The model is
// fitted by least squares to the upper third of the magnitude range, where
// the probe sits on bulk material, and every magnitude is rescaled by
// max/model at its position. The input trace is not modified.
func CorrectLiftoff(tr sample.Trace, model LiftoffModel) (sample.Trace, error) {
	if !model.IsValid() {
		return nil, domain.NewPrecondition("correct liftoff", "unknown model %q", model)
	}
	out := make(sample.Trace, tr.Len())
	copy(out, tr)
	if tr.Len() == 0 {
		return out, nil
	}

	mags := tr.Magnitudes()
	lo, hi := floats.Min(mags), floats.Max(mags)
	if hi == lo {
		return out, nil
	}
	cut := lo + (hi-lo)/1.5

	var rows [][]float64
	var rhs []float64
	for _, s := range tr {
		if s.Magnitude > cut {
			rows = append(rows, model.row(s.Position.X(), s.Position.Y()))
			rhs = append(rhs, s.Magnitude)
		}
	}
	cols := len(model.row(0, 0))
	if len(rows) < cols {
		return nil, fmt.Errorf("correct liftoff: %d points for %d coefficients: %w", len(rows), cols, domain.ErrFitFailed)
	}

	a := mat.NewDense(len(rows), cols, nil)
	for i, r := range rows {
		a.SetRow(i, r)
	}
	var qr mat.QR
	qr.Factorize(a)
	var coef mat.VecDense
	if err := qr.SolveVecTo(&coef, false, mat.NewVecDense(len(rhs), rhs)); err != nil {
		return nil, fmt.Errorf("correct liftoff: %w: %w", domain.ErrFitFailed, err)
	}

	for i := range out {
		m := floats.Dot(coef.RawVector().Data, model.row(out[i].Position.X(), out[i].Position.Y()))
		if m > 0 {
			out[i].Magnitude = hi * out[i].Magnitude / m
		}
	}
	return out, nil
}
