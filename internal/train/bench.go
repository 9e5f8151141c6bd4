package train

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Job is one unit of work for RunAll.
type Job struct {
	Name string
	Run  func(ctx context.Context) (Result, error)
}

// SetupJob returns a Job that builds a Run for s and fits it on data.
// data is only read, so one Dataset can be shared by concurrent jobs.
func SetupJob(s Setup, data *Dataset) Job {
	name := s.Name
	if name == "" {
		name = s.Optimizer
	}
	return Job{
		Name: name,
		Run: func(ctx context.Context) (Result, error) {
			run, err := NewRun(s, data.Features())
			if err != nil {
				return Result{}, err
			}
			return run.Fit(ctx, data)
		},
	}
}

// RunAll runs jobs with at most limit running at once (limit <= 0 means no
// limit). Results are in job order. The first error cancels the remaining
// jobs and is returned.
func RunAll(ctx context.Context, jobs []Job, limit int) ([]Result, error) {
	g, ctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}

	results := make([]Result, len(jobs))
	for i, job := range jobs {
		g.Go(func() error {
			res, err := job.Run(ctx)
			if err != nil {
				return fmt.Errorf("%s: %w", job.Name, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
