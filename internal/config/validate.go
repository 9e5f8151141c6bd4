package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/rs/zerolog"

	"github.com/born-ml/bornopt/internal/lrscheduler"
	"github.com/born-ml/bornopt/internal/optim"
)

// FieldError reports an invalid configuration value.
type FieldError struct {
	Field  string
	Value  any
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("config: %s=%v: %s", e.Field, e.Value, e.Reason)
}

// Validate checks every field and joins all problems found.
// Optimizer hyperparameter ranges are checked by the optimizer constructors.
func (c *Config) Validate() error {
	var errs []error
	add := func(field string, value any, reason string) {
		errs = append(errs, &FieldError{Field: field, Value: value, Reason: reason})
	}

	if _, err := zerolog.ParseLevel(strings.ToLower(c.Log.Level)); err != nil {
		add("log.level", c.Log.Level, "unknown level")
	}
	if c.Log.Format != "" && c.Log.Format != "console" && c.Log.Format != "json" {
		add("log.format", c.Log.Format, `must be "console" or "json"`)
	}

	if c.Data.Samples <= 0 {
		add("data.samples", c.Data.Samples, "must be > 0")
	}
	if c.Data.Features <= 0 {
		add("data.features", c.Data.Features, "must be > 0")
	}
	if c.Data.Noise < 0 {
		add("data.noise", c.Data.Noise, "must be >= 0")
	}
	for i, h := range c.Model.Hidden {
		if h <= 0 {
			add(fmt.Sprintf("model.hidden[%d]", i), h, "must be > 0")
		}
	}

	if c.Train.Epochs <= 0 {
		add("train.epochs", c.Train.Epochs, "must be > 0")
	}
	if c.Train.BatchSize <= 0 {
		add("train.batch_size", c.Train.BatchSize, "must be > 0")
	}
	if c.Train.ClipGradNorm < 0 {
		add("train.clip_grad_norm", c.Train.ClipGradNorm, "must be >= 0")
	}

	if !knownOptimizer(c.Optimizer.Name) {
		add("optimizer.name", c.Optimizer.Name, "unknown optimizer (available: "+strings.Join(optim.Names(), ", ")+")")
	}
	if c.Scheduler.Name != "" && !slices.Contains(lrscheduler.Names(), strings.ToLower(c.Scheduler.Name)) {
		add("scheduler.name", c.Scheduler.Name, "unknown scheduler (available: "+strings.Join(lrscheduler.Names(), ", ")+")")
	}

	for i, name := range c.Bench.Optimizers {
		if !knownOptimizer(name) {
			add(fmt.Sprintf("bench.optimizers[%d]", i), name, "unknown optimizer")
		}
	}
	for name := range c.Bench.Hyperparams {
		if !knownOptimizer(name) {
			add("bench.hyperparams."+name, name, "unknown optimizer")
		}
	}
	if c.Bench.Concurrency < 0 {
		add("bench.concurrency", c.Bench.Concurrency, "must be >= 0")
	}

	return errors.Join(errs...)
}

func knownOptimizer(name string) bool {
	return slices.Contains(optim.Names(), strings.ToLower(name))
}
