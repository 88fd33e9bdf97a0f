package job

import (
	"context"

	domrun "github.com/kailas-cloud/edgescan/internal/domain/run"
	"github.com/kailas-cloud/edgescan/internal/domain/sample"
	"github.com/kailas-cloud/edgescan/internal/usecase/search"
)

// Scanner runs the scans a job is made of.
type Scanner interface {
	DomainSearch(ctx context.Context, p search.Params) (search.Result, error)
	RasterScan(ctx context.Context, p search.RasterParams) (sample.Trace, error)
}

// Repository persists runs.
type Repository interface {
	Save(ctx context.Context, r *domrun.Run) error
}
