package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrPrecondition signals caller misuse: wrong dimensionality, bad sizes, missing axes.
	ErrPrecondition = errors.New("precondition violated")
	// ErrDegenerateSegment signals a segment whose endpoints coincide.
	ErrDegenerateSegment = errors.New("degenerate segment")
	// ErrFitFailed signals that the geometry fit did not produce a usable pose.
	ErrFitFailed = errors.New("geometry fit failed")
	// ErrTraceNotClosed signals that a tracer hit its step budget before terminating.
	ErrTraceNotClosed = errors.New("trace did not close")
	// ErrRunNotFound signals a missing stored run.
	ErrRunNotFound = errors.New("run not found")
	// ErrInvalidConfig signals a configuration that cannot drive a job.
	ErrInvalidConfig = errors.New("invalid config")
)

// PreconditionError wraps ErrPrecondition with the failing operation and reason.
type PreconditionError struct {
	Op     string
	Reason string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Op, ErrPrecondition.Error(), e.Reason)
}

func (e *PreconditionError) Unwrap() error { return ErrPrecondition }

// NewPrecondition creates a precondition error for op.
func NewPrecondition(op, format string, args ...any) error {
	return &PreconditionError{Op: op, Reason: fmt.Sprintf(format, args...)}
}
