package health

import "context"

// Pinger is anything the health report can probe: the run store, the stage
// controller.
type Pinger interface {
	Ping(ctx context.Context) error
}

// DBPinger checks run store availability.
type DBPinger = Pinger

// HardwarePinger checks that the stage and probe answer.
type HardwarePinger = Pinger
