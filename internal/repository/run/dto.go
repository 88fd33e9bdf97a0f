package run

import (
	"encoding/json"
	"fmt"

	"github.com/kailas-cloud/edgescan/internal/domain/feature"
	domrun "github.com/kailas-cloud/edgescan/internal/domain/run"
)

// runToJSON serializes a run for SET. Feature traces are a subset of the run
// trace and are not stored twice.
func runToJSON(r *domrun.Run) ([]byte, error) {
	cp := *r
	cp.Features = make([]feature.Feature, len(r.Features))
	for i, f := range r.Features {
		f.Trace = nil
		cp.Features[i] = f
	}
	data, err := json.Marshal(&cp)
	if err != nil {
		return nil, fmt.Errorf("marshal run %s: %w", r.ID, err)
	}
	return data, nil
}

// runFromJSON hydrates a run from a GET result.
func runFromJSON(data []byte) (*domrun.Run, error) {
	var r domrun.Run
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("unmarshal run: %w", err)
	}
	return &r, nil
}

func summaryToJSON(s domrun.Summary) (string, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("marshal summary %s: %w", s.ID, err)
	}
	return string(data), nil
}

func summaryFromJSON(raw string) (domrun.Summary, error) {
	var s domrun.Summary
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return domrun.Summary{}, fmt.Errorf("unmarshal summary: %w", err)
	}
	return s, nil
}
