// Package config loads bornopt run configuration from YAML.
//
// Files are decoded strictly: unknown keys are errors. Keys absent from the
// file keep the values from Default. Environment overrides are applied by
// ApplyEnv, and Validate checks the merged result.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/born-ml/bornopt/internal/lrscheduler"
	"github.com/born-ml/bornopt/internal/optim"
)

// Config is the root of a run configuration file.
type Config struct {
	Seed      int64              `yaml:"seed"`
	Log       LogConfig          `yaml:"log"`
	Data      DataConfig         `yaml:"data"`
	Model     ModelConfig        `yaml:"model"`
	Train     TrainConfig        `yaml:"train"`
	Optimizer OptimizerConfig    `yaml:"optimizer"`
	Scheduler lrscheduler.Config `yaml:"scheduler"`
	Bench     BenchConfig        `yaml:"bench"`
}

// LogConfig selects log verbosity and output format.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DataConfig describes the synthetic regression problem.
type DataConfig struct {
	Samples  int     `yaml:"samples"`
	Features int     `yaml:"features"`
	Noise    float32 `yaml:"noise"`
}

// ModelConfig lists the hidden layer widths of the MLP.
// An empty list trains a single linear layer.
type ModelConfig struct {
	Hidden []int `yaml:"hidden"`
}

// TrainConfig holds loop settings.
type TrainConfig struct {
	Epochs    int `yaml:"epochs"`
	BatchSize int `yaml:"batch_size"`
	// ClipGradNorm clips gradients of step-based optimizers (0 disables).
	ClipGradNorm float32 `yaml:"clip_grad_norm"`
}

// OptimizerConfig names the optimizer and carries its hyperparameters
// inline.
type OptimizerConfig struct {
	Name              string `yaml:"name"`
	optim.Hyperparams `yaml:",inline"`
}

// BenchConfig configures the bench command.
type BenchConfig struct {
	Optimizers  []string `yaml:"optimizers"`
	Concurrency int      `yaml:"concurrency"` // 0 runs every optimizer at once

	// Hyperparams overrides settings per optimizer name. Optimizers without
	// an entry use their defaults.
	Hyperparams map[string]optim.Hyperparams `yaml:"hyperparams"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Seed: 42,
		Log:  LogConfig{Level: "info", Format: "console"},
		Data: DataConfig{Samples: 256, Features: 8, Noise: 0.01},
		Model: ModelConfig{
			Hidden: []int{16},
		},
		Train: TrainConfig{Epochs: 20, BatchSize: 32},
		Optimizer: OptimizerConfig{
			Name: "padam",
		},
		Bench: BenchConfig{
			Optimizers:  []string{"sgd", "adam", "padam", "madgrad", "lomo"},
			Concurrency: 4,
		},
	}
}

// Load reads the YAML file at path over Default.
func Load(path string) (*Config, error) {
	// #nosec G304 -- configuration file paths are provided by the operator via CLI
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML over Default. Unknown keys are rejected.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return cfg, nil
		}
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}
