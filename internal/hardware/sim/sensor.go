package sim

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/kailas-cloud/edgescan/internal/domain/geometry"
	"github.com/kailas-cloud/edgescan/internal/usecase/probe"
)

var _ probe.Sensor = (*FieldSensor)(nil)

// Positioner reports where the probe is.
type Positioner interface {
	Position(ctx context.Context) (geometry.Coordinate, error)
}

// FieldSensor reads the synthetic field at the position of another stage.
// It pairs a real stage with a simulated probe for dry runs of motion.
type FieldSensor struct {
	mu    sync.Mutex
	stage Positioner
	field Field
	cfg   Config
	rng   *rand.Rand
}

// NewFieldSensor creates a sensor over stage. Only the record fields and
// noise of cfg are used.
func NewFieldSensor(stage Positioner, cfg Config, field Field) *FieldSensor {
	cfg = cfg.withDefaults()
	return &FieldSensor{
		stage: stage,
		field: field,
		cfg:   cfg,
		rng:   rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)),
	}
}

// Record synthesizes one record at the stage position.
func (s *FieldSensor) Record(ctx context.Context) ([][]float64, error) {
	pos, err := s.stage.Position(ctx)
	if err != nil {
		return nil, fmt.Errorf("sim sensor position: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return tone(s.field.Magnitude(pos), s.cfg, s.rng), nil
}
