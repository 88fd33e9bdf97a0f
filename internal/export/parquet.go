package export

import (
	"fmt"

	"github.com/parquet-go/parquet-go"

	"github.com/kailas-cloud/edgescan/internal/domain/sample"
)

// Row is one sample in the Parquet export.
type Row struct {
	X         float64  `parquet:"x"`
	Y         float64  `parquet:"y"`
	Z         *float64 `parquet:"z,optional"`
	Magnitude float64  `parquet:"magnitude"`
}

func toRows(tr sample.Trace) []Row {
	rows := make([]Row, len(tr))
	for i, s := range tr {
		rows[i] = Row{X: s.Position.X(), Y: s.Position.Y(), Magnitude: s.Magnitude}
		if s.Position.Dim() >= 3 {
			z := s.Position[2]
			rows[i].Z = &z
		}
	}
	return rows
}

// Parquet writes the trace to base.parquet and returns the path written.
func Parquet(base string, tr sample.Trace) (string, error) {
	f, p, err := create(base, ".parquet")
	if err != nil {
		return "", err
	}
	w := parquet.NewGenericWriter[Row](f)
	if _, err := w.Write(toRows(tr)); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("parquet export %s: %w", p, err)
	}
	if err := w.Close(); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("parquet export %s: %w", p, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("parquet export %s: %w", p, err)
	}
	return p, nil
}

// ReadParquet loads rows written by Parquet.
func ReadParquet(path string) ([]Row, error) {
	rows, err := parquet.ReadFile[Row](path)
	if err != nil {
		return nil, fmt.Errorf("read parquet %s: %w", path, err)
	}
	return rows, nil
}
