package jobs

import (
	"context"
	"fmt"

	"github.com/dvloznov/altcredit/internal/loader"
)

// Loader runs one warehouse load.
type Loader interface {
	Load(ctx context.Context, source loader.Source, mode loader.Mode) (*loader.Result, error)
}

// NewLoadJob validates source and mode and returns a job ready to publish.
func NewLoadJob(source, mode string) (*LoadJob, error) {
	src, err := loader.ParseSource(source)
	if err != nil {
		return nil, err
	}
	m, err := loader.ParseMode(mode)
	if err != nil {
		return nil, err
	}
	return &LoadJob{Source: src.String(), Mode: string(m)}, nil
}

// LoadHandler returns a JobHandler that runs jobs through l and stores the
// row counts on the job.
func LoadHandler(l Loader) JobHandler {
	return func(ctx context.Context, job *LoadJob) error {
		src, err := loader.ParseSource(job.Source)
		if err != nil {
			return err
		}
		mode, err := loader.ParseMode(job.Mode)
		if err != nil {
			return err
		}

		res, err := l.Load(ctx, src, mode)
		if err != nil {
			return fmt.Errorf("load job %s: %w", job.JobID, err)
		}
		job.Result = &LoadCounts{
			Transactions:    res.Transactions,
			Products:        res.Products,
			Records:         res.Records,
			Archived:        len(res.Archived),
			FailedMerchants: res.FailedMerchants,
		}
		return nil
	}
}
