package train

import (
	"context"
	"fmt"
	"math/rand"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/born-ml/bornopt/internal/autodiff"
	"github.com/born-ml/bornopt/internal/backend/cpu"
	"github.com/born-ml/bornopt/internal/lrscheduler"
	"github.com/born-ml/bornopt/internal/metrics"
	"github.com/born-ml/bornopt/internal/nn"
	"github.com/born-ml/bornopt/internal/optim"
	"github.com/born-ml/bornopt/internal/serialization"
)

// Backend is the backend every Run trains on.
type Backend = *autodiff.AutodiffBackend[*cpu.CPUBackend]

// Generator identifies checkpoints written by runs.
var Generator = "bornopt"

// Setup describes a complete training run.
type Setup struct {
	Name         string
	Optimizer    string
	Hyperparams  optim.Hyperparams
	Scheduler    lrscheduler.Config
	Hidden       []int // hidden layer widths; empty trains a linear model
	Seed         int64 // model initialization seed
	Epochs       int
	BatchSize    int
	ClipGradNorm float32

	Logger  zerolog.Logger
	Metrics *metrics.Training
}

// Run owns the backend, model, optimizer and trainer of one Setup.
// A Run is not safe for concurrent use; concurrent runs use separate Runs.
type Run struct {
	setup     Setup
	runID     string
	backend   Backend
	model     *nn.Sequential[Backend]
	optimizer optim.Tunable
	stateful  optim.Stateful
	trainer   *Trainer[Backend]
}

// NewRun builds the model and optimizer for s on a fresh CPU backend.
func NewRun(s Setup, features int) (*Run, error) {
	if features <= 0 {
		return nil, fmt.Errorf("run: features must be > 0, got %d", features)
	}
	name := strings.ToLower(s.Optimizer)
	if s.Name == "" {
		s.Name = name
	}

	backend := autodiff.New(cpu.New())
	model := NewMLP(features, s.Hidden, rand.New(rand.NewSource(s.Seed)), backend)

	r := &Run{
		setup:   s,
		runID:   uuid.NewString(),
		backend: backend,
		model:   model,
	}

	opts := Options[Backend]{
		Name:         s.Name,
		ClipGradNorm: s.ClipGradNorm,
		Metrics:      s.Metrics,
	}
	if optim.IsFused(name) {
		lomo, err := optim.NewFused(name, model.Parameters(), s.Hyperparams, backend)
		if err != nil {
			return nil, err
		}
		opts.Fused, r.optimizer, r.stateful = lomo, lomo, lomo
	} else {
		opt, err := optim.New(name, model.Parameters(), s.Hyperparams, backend)
		if err != nil {
			return nil, err
		}
		stateful, ok := opt.(optim.Stateful)
		if !ok {
			return nil, fmt.Errorf("run: optimizer %q does not export state", name)
		}
		opts.Optimizer, r.optimizer, r.stateful = opt, opt, stateful
	}

	sched, err := lrscheduler.New(s.Scheduler, r.optimizer)
	if err != nil {
		return nil, err
	}
	opts.Scheduler = sched
	opts.Logger = s.Logger.With().Str("run_id", r.runID).Logger()

	r.trainer, err = NewTrainer(nn.Module[Backend](model), backend, opts)
	if err != nil {
		return nil, err
	}
	return r, nil
}

// NewMLP builds Linear/ReLU layers of the given hidden widths ending in a
// single output.
func NewMLP(features int, hidden []int, rng *rand.Rand, backend Backend) *nn.Sequential[Backend] {
	var layers []nn.Module[Backend]
	in := features
	for _, h := range hidden {
		layers = append(layers, nn.NewLinear(in, h, rng, backend), nn.NewReLU[Backend]())
		in = h
	}
	layers = append(layers, nn.NewLinear(in, 1, rng, backend))
	return nn.NewSequential(layers...)
}

// ID returns the run identifier recorded in checkpoints.
func (r *Run) ID() string { return r.runID }

// Model returns the trained model.
func (r *Run) Model() *nn.Sequential[Backend] { return r.model }

// Optimizer returns the run's optimizer: an optim.Optimizer, or an
// *optim.LOMO for fused runs.
func (r *Run) Optimizer() optim.Tunable { return r.optimizer }

// Trainer returns the run's trainer.
func (r *Run) Trainer() *Trainer[Backend] { return r.trainer }

// Fit trains for the configured number of epochs.
func (r *Run) Fit(ctx context.Context, data *Dataset) (Result, error) {
	return r.trainer.Fit(ctx, data, r.setup.Epochs, r.setup.BatchSize)
}

// Checkpoint captures the model, optimizer state and progress.
func (r *Run) Checkpoint(res Result) (*serialization.Checkpoint, error) {
	config, err := hyperparamsMap(r.setup.Hyperparams)
	if err != nil {
		return nil, err
	}
	epoch, step := r.trainer.Progress()
	return &serialization.Checkpoint{
		Header: serialization.Header{
			Generator:       Generator,
			RunID:           r.runID,
			Optimizer:       r.optimizer.Name(),
			OptimizerConfig: config,
			Epoch:           epoch,
			Step:            int64(step),
			Loss:            float64(res.FinalLoss),
			Metadata: map[string]string{
				"run": r.setup.Name,
			},
		},
		Model:     r.model.StateDict(),
		Optimizer: r.stateful.StateDict(),
	}, nil
}

// Restore loads a checkpoint written by Checkpoint and advances the
// scheduler to the saved step.
func (r *Run) Restore(ck *serialization.Checkpoint) error {
	if got, want := ck.Header.Optimizer, r.optimizer.Name(); got != want {
		return fmt.Errorf("restore: checkpoint optimizer %q, run optimizer %q", got, want)
	}
	if err := r.model.LoadStateDict(ck.Model); err != nil {
		return fmt.Errorf("restore: %w", err)
	}
	if err := r.stateful.LoadStateDict(ck.Optimizer); err != nil {
		return fmt.Errorf("restore: %w", err)
	}

	step := int(ck.Header.Step)
	for range step {
		r.trainer.opts.Scheduler.Step()
	}
	r.trainer.SetProgress(ck.Header.Epoch, step)
	if ck.Header.RunID != "" {
		r.runID = ck.Header.RunID
		r.trainer.opts.Logger = r.setup.Logger.With().Str("run_id", r.runID).Logger()
	}
	return nil
}

// hyperparamsMap renders hp with its YAML keys for checkpoint headers.
func hyperparamsMap(hp optim.Hyperparams) (map[string]any, error) {
	data, err := yaml.Marshal(hp)
	if err != nil {
		return nil, fmt.Errorf("encode hyperparameters: %w", err)
	}
	var out map[string]any
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("encode hyperparameters: %w", err)
	}
	return out, nil
}
