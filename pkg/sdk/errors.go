package edgescan

import "github.com/kailas-cloud/edgescan/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrPrecondition      = domain.ErrPrecondition
	ErrDegenerateSegment = domain.ErrDegenerateSegment
	ErrFitFailed         = domain.ErrFitFailed
	ErrTraceNotClosed    = domain.ErrTraceNotClosed
	ErrRunNotFound       = domain.ErrRunNotFound
)
