package train

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/bornopt/internal/optim"
)

func TestRunAll_OrderedResults(t *testing.T) {
	data := regression(t)
	names := []string{"sgd", "adam", "padam", "madgrad", "lomo"}

	jobs := make([]Job, 0, len(names))
	for _, name := range names {
		jobs = append(jobs, SetupJob(Setup{
			Optimizer:   name,
			Hyperparams: optim.Hyperparams{LR: 0.01},
			Seed:        1,
			Epochs:      3,
			BatchSize:   16,
		}, data))
	}

	results, err := RunAll(context.Background(), jobs, 2)
	require.NoError(t, err)
	require.Len(t, results, len(names))
	for i, res := range results {
		assert.Equal(t, names[i], res.Name)
		assert.Equal(t, 12, res.Step)
	}
}

func TestRunAll_FirstErrorCancels(t *testing.T) {
	boom := errors.New("boom")
	jobs := []Job{
		{Name: "fails", Run: func(context.Context) (Result, error) { return Result{}, boom }},
		{Name: "waits", Run: func(ctx context.Context) (Result, error) {
			select {
			case <-ctx.Done():
				return Result{}, ctx.Err()
			case <-time.After(10 * time.Second):
				return Result{}, errors.New("not canceled")
			}
		}},
	}

	_, err := RunAll(context.Background(), jobs, 0)
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "fails")
}
