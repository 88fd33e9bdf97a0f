package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"math/cmplx"
	"strconv"

	"github.com/kailas-cloud/edgescan/internal/domain/sample"
)

// MagnitudeLabel is the header of the magnitude column.
const MagnitudeLabel = "RMS Voltage (V)"

// maxBins keeps spectrum exports readable unless AllowWide is set.
const maxBins = 10

// CSVOptions selects extra columns.
type CSVOptions struct {
	// Bins adds one column per spectrum bin with its magnitude.
	Bins      []int
	AllowWide bool
}

// CSV writes the trace to base.csv and returns the path actually written.
// The z column is present when the samples have three axes.
func CSV(base string, tr sample.Trace, opts CSVOptions) (string, error) {
	if len(opts.Bins) > maxBins && !opts.AllowWide {
		return "", fmt.Errorf("csv export: %d spectrum bins, more than %d needs AllowWide", len(opts.Bins), maxBins)
	}
	f, p, err := create(base, ".csv")
	if err != nil {
		return "", err
	}

	axes := 2
	if first, ok := firstSample(tr); ok && first.Position.Dim() >= 3 {
		axes = 3
	}

	w := csv.NewWriter(f)
	header := []string{"x (mm)", "y (mm)"}
	if axes == 3 {
		header = append(header, "z (mm)")
	}
	header = append(header, MagnitudeLabel)
	for _, b := range opts.Bins {
		header = append(header, "Spectrum bin "+strconv.Itoa(b))
	}
	werr := w.Write(header)

	row := make([]string, 0, len(header))
	for _, s := range tr {
		if werr != nil {
			break
		}
		row = row[:0]
		for i := range axes {
			v := 0.0
			if i < s.Position.Dim() {
				v = s.Position[i]
			}
			row = append(row, formatFloat(v))
		}
		row = append(row, formatFloat(s.Magnitude))
		for _, b := range opts.Bins {
			v := ""
			if b >= 0 && b < len(s.Spectrum) {
				v = formatFloat(cmplx.Abs(s.Spectrum[b]))
			}
			row = append(row, v)
		}
		werr = w.Write(row)
	}
	w.Flush()
	if werr == nil {
		werr = w.Error()
	}
	if err := errors.Join(werr, f.Close()); err != nil {
		return "", fmt.Errorf("csv export %s: %w", p, err)
	}
	return p, nil
}

func firstSample(tr sample.Trace) (sample.Sample, bool) {
	if tr.Len() == 0 {
		return sample.Sample{}, false
	}
	return tr[0], true
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
