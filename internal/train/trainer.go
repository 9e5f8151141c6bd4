package train

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/born-ml/bornopt/internal/autodiff"
	"github.com/born-ml/bornopt/internal/lrscheduler"
	"github.com/born-ml/bornopt/internal/metrics"
	"github.com/born-ml/bornopt/internal/nn"
	"github.com/born-ml/bornopt/internal/optim"
	"github.com/born-ml/bornopt/internal/tensor"
)

// Trainer errors.
var (
	ErrOptimizerChoice = errors.New("train: exactly one of Optimizer or Fused must be set")
	ErrDiverged        = errors.New("train: loss is not finite")
)

// Options configures a Trainer.
type Options[B autodiff.BackwardCapable] struct {
	Name string // run label for logs and metrics (default: optimizer name)

	// Exactly one of Optimizer (step-based) and Fused must be set.
	Optimizer optim.Optimizer
	Fused     *optim.LOMO[B]

	Scheduler lrscheduler.Scheduler // optional, stepped after every optimizer step

	// ClipGradNorm clips the gradients of a step-based optimizer; 0 disables.
	// The fused optimizer clips through its own configuration.
	ClipGradNorm float32

	Logger  zerolog.Logger // zero value discards
	Metrics *metrics.Training
}

// Result summarizes a call to Fit.
type Result struct {
	Name        string
	Optimizer   string
	Epoch       int // epochs completed, including resumed ones
	Step        int // optimizer steps taken, including resumed ones
	Skipped     int // steps skipped after an overflow during this Fit
	InitialLoss float32
	FinalLoss   float32
	EpochLosses []float32
	Duration    time.Duration
}

// Trainer fits a model with mean squared error.
type Trainer[B autodiff.BackwardCapable] struct {
	opts    Options[B]
	model   nn.Module[B]
	backend B
	params  []*nn.Parameter[B]

	epoch int
	step  int
}

// NewTrainer creates a trainer for model on backend.
func NewTrainer[B autodiff.BackwardCapable](model nn.Module[B], backend B, opts Options[B]) (*Trainer[B], error) {
	if (opts.Optimizer == nil) == (opts.Fused == nil) {
		return nil, ErrOptimizerChoice
	}
	if opts.ClipGradNorm < 0 {
		return nil, fmt.Errorf("train: clip_grad_norm must be >= 0, got %g", opts.ClipGradNorm)
	}
	if opts.Name == "" {
		opts.Name = optimizerOf(opts).Name()
	}
	return &Trainer[B]{
		opts:    opts,
		model:   model,
		backend: backend,
		params:  model.Parameters(),
	}, nil
}

func optimizerOf[B autodiff.BackwardCapable](opts Options[B]) optim.Tunable {
	if opts.Fused != nil {
		return opts.Fused
	}
	return opts.Optimizer
}

// Progress returns the epochs and steps completed so far.
func (t *Trainer[B]) Progress() (epoch, step int) {
	return t.epoch, t.step
}

// SetProgress restores counters after loading a checkpoint.
func (t *Trainer[B]) SetProgress(epoch, step int) {
	t.epoch, t.step = epoch, step
}

// Evaluate returns the mean squared error over the whole dataset without
// recording on the tape.
func (t *Trainer[B]) Evaluate(data *Dataset) float32 {
	tape := t.backend.GetTape()
	if tape.IsRecording() {
		tape.StopRecording()
		defer tape.StartRecording()
	}
	x := tensor.New(data.X, t.backend)
	y := tensor.New(data.Y, t.backend)
	return nn.MSE(t.model.Forward(x), y).Item()
}

// Fit trains for the given number of epochs.
//
// ctx is checked between steps; on cancellation Fit returns the context
// error together with the progress made so far.
func (t *Trainer[B]) Fit(ctx context.Context, data *Dataset, epochs, batchSize int) (Result, error) {
	opt := optimizerOf(t.opts)
	res := Result{Name: t.opts.Name, Optimizer: opt.Name()}
	if epochs <= 0 || batchSize <= 0 {
		return res, fmt.Errorf("train: epochs and batch size must be > 0, got %d and %d", epochs, batchSize)
	}

	logger := t.opts.Logger.With().Str("run", t.opts.Name).Str("optimizer", opt.Name()).Logger()
	start := time.Now()
	res.InitialLoss = t.Evaluate(data)
	batches := data.Batches(batchSize)

	for range epochs {
		var sum float64
		for _, batch := range batches {
			if err := ctx.Err(); err != nil {
				t.fill(&res, data, start)
				return res, err
			}
			loss, skipped, err := t.trainStep(batch)
			if err != nil {
				t.fill(&res, data, start)
				return res, err
			}
			if skipped {
				res.Skipped++
			}
			sum += float64(loss)
		}
		t.epoch++
		epochLoss := float32(sum / float64(len(batches)))
		res.EpochLosses = append(res.EpochLosses, epochLoss)
		logger.Info().
			Int("epoch", t.epoch).
			Int("step", t.step).
			Float32("loss", epochLoss).
			Float32("lr", opt.GetLR()).
			Msg("epoch done")
	}

	t.fill(&res, data, start)
	return res, nil
}

func (t *Trainer[B]) fill(res *Result, data *Dataset, start time.Time) {
	res.Epoch, res.Step = t.epoch, t.step
	res.FinalLoss = t.Evaluate(data)
	res.Duration = time.Since(start)
}

// trainStep runs forward, backward and update for one batch.
func (t *Trainer[B]) trainStep(batch Batch) (loss float32, skipped bool, err error) {
	opt := optimizerOf(t.opts)
	start := time.Now()
	lr := opt.GetLR()

	tape := t.backend.GetTape()
	tape.Clear()
	tape.StartRecording()
	defer func() {
		tape.StopRecording()
		tape.Clear()
	}()

	x := tensor.New(batch.X, t.backend)
	y := tensor.New(batch.Y, t.backend)
	lossT := nn.MSE(t.model.Forward(x), y)
	loss = lossT.Item()
	if math.IsNaN(float64(loss)) || math.IsInf(float64(loss), 0) {
		return loss, false, fmt.Errorf("%w at step %d", ErrDiverged, t.step+1)
	}

	if fused := t.opts.Fused; fused != nil {
		if fused.ClipsByNorm() {
			if err := fused.GradNorm(lossT); err != nil {
				return loss, false, err
			}
		}
		if err := fused.FusedBackward(lossT, lr); err != nil {
			return loss, false, err
		}
		skipped = fused.Skipped()
		t.opts.Metrics.SetLossScale(t.opts.Name, fused.LossScale())
	} else {
		grads := autodiff.Backward(lossT, t.backend)
		if t.opts.ClipGradNorm > 0 {
			optim.ClipGradNorm(grads, t.params, t.opts.ClipGradNorm)
		}
		if err := t.opts.Optimizer.Step(grads); err != nil {
			return loss, false, fmt.Errorf("step %d: %w", t.step+1, err)
		}
	}

	t.step++
	if skipped {
		t.opts.Metrics.RecordSkipped(t.opts.Name)
		t.opts.Logger.Debug().Int("step", t.step).Float32("loss_scale", t.opts.Fused.LossScale()).Msg("gradient overflow, step skipped")
	} else {
		t.opts.Metrics.RecordStep(t.opts.Name, loss, lr, time.Since(start))
	}
	if t.opts.Scheduler != nil {
		t.opts.Scheduler.Step()
	}
	t.opts.Logger.Debug().Int("step", t.step).Float32("loss", loss).Float32("lr", lr).Msg("step")
	return loss, skipped, nil
}
