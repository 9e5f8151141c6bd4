package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestParse_OverridesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
seed: 7
train:
  epochs: 5
optimizer:
  name: madgrad
  lr: 0.01
  momentum: 0
  betas: [0.8, 0.99]
scheduler:
  name: cosine
  t_max: 50
bench:
  optimizers: [sgd, lomo]
  hyperparams:
    lomo:
      lr: 0.05
      clip_grad_norm: 1
`))
	require.NoError(t, err)

	assert.Equal(t, int64(7), cfg.Seed)
	assert.Equal(t, 5, cfg.Train.Epochs)
	assert.Equal(t, 32, cfg.Train.BatchSize, "unset keys keep defaults")
	assert.Equal(t, "madgrad", cfg.Optimizer.Name)
	assert.Equal(t, float32(0.01), cfg.Optimizer.LR)
	require.NotNil(t, cfg.Optimizer.Momentum)
	assert.Equal(t, float32(0), *cfg.Optimizer.Momentum)
	assert.Nil(t, cfg.Optimizer.Eps)
	assert.Equal(t, [2]float32{0.8, 0.99}, cfg.Optimizer.Betas)
	assert.Equal(t, "cosine", cfg.Scheduler.Name)
	assert.Equal(t, 50, cfg.Scheduler.TMax)
	assert.Equal(t, []string{"sgd", "lomo"}, cfg.Bench.Optimizers)
	assert.Equal(t, float32(0.05), cfg.Bench.Hyperparams["lomo"].LR)
	assert.Equal(t, float32(1), cfg.Bench.Hyperparams["lomo"].ClipGradNorm)
	require.NoError(t, cfg.Validate())
}

func TestParse_Empty(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestParse_UnknownField(t *testing.T) {
	_, err := Parse([]byte("train:\n  epoch: 3\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "epoch")
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte("optimizer:\n  name: lomo\n  clip_grad_norm: 1\n  loss_scale: true\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "lomo", cfg.Optimizer.Name)
	assert.True(t, cfg.Optimizer.LOMOConfig().LossScale)
	assert.Equal(t, float32(1), cfg.Optimizer.LOMOConfig().ClipGradNorm)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestValidate_CollectsFieldErrors(t *testing.T) {
	cfg := Default()
	cfg.Train.Epochs = 0
	cfg.Optimizer.Name = "rmsprop"
	cfg.Model.Hidden = []int{4, -1}
	cfg.Log.Format = "xml"
	cfg.Bench.Optimizers = []string{"adam", "nope"}

	err := cfg.Validate()
	require.Error(t, err)

	var fields []string
	for _, e := range err.(interface{ Unwrap() []error }).Unwrap() {
		var fe *FieldError
		require.True(t, errors.As(e, &fe))
		fields = append(fields, fe.Field)
	}
	assert.ElementsMatch(t, []string{
		"train.epochs", "optimizer.name", "model.hidden[1]", "log.format", "bench.optimizers[1]",
	}, fields)
}

func TestValidate_SchedulerName(t *testing.T) {
	cfg := Default()
	cfg.Scheduler.Name = "Cosine_Warmup_Restarts"
	require.NoError(t, cfg.Validate())

	cfg.Scheduler.Name = "onecycle"
	require.Error(t, cfg.Validate())
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		EnvLogLevel: "debug",
		EnvSeed:     "99",
		EnvEpochs:   "",
	}
	lookup := func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}

	cfg := Default()
	require.NoError(t, cfg.ApplyEnv(zerolog.Nop(), lookup))
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, int64(99), cfg.Seed)
	assert.Equal(t, 20, cfg.Train.Epochs, "empty variable is ignored")

	env[EnvEpochs] = "many"
	err := cfg.ApplyEnv(zerolog.Nop(), lookup)
	var fe *FieldError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, EnvEpochs, fe.Field)
}
