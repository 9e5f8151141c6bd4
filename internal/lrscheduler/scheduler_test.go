package lrscheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeOptimizer struct {
	lr float32
}

func (f *fakeOptimizer) GetLR() float32   { return f.lr }
func (f *fakeOptimizer) SetLR(lr float32) { f.lr = lr }

func TestConstantLR(t *testing.T) {
	opt := &fakeOptimizer{lr: 0.1}
	s := NewConstantLR(opt)
	for range 5 {
		assert.Equal(t, float32(0.1), s.Step())
	}
	assert.Equal(t, float32(0.1), opt.lr)
}

func TestLinearWarmup(t *testing.T) {
	opt := &fakeOptimizer{lr: 1}
	s, err := NewLinearWarmup(opt, 4)
	require.NoError(t, err)

	assert.InDelta(t, 0.25, opt.lr, 1e-7)
	want := []float32{0.5, 0.75, 1, 1, 1}
	for i, w := range want {
		assert.InDelta(t, w, s.Step(), 1e-7, "step %d", i+1)
		assert.Equal(t, s.LR(), opt.lr)
	}

	_, err = NewLinearWarmup(opt, 0)
	require.ErrorIs(t, err, ErrInvalidSchedule)
}

func TestCosineAnnealingLR(t *testing.T) {
	opt := &fakeOptimizer{lr: 1}
	s, err := NewCosineAnnealingLR(opt, 4, 0)
	require.NoError(t, err)

	assert.InDelta(t, 1, s.LR(), 1e-7)
	s.Step()
	s.Step()
	assert.InDelta(t, 0.5, s.LR(), 1e-6)
	s.Step()
	s.Step()
	assert.InDelta(t, 0, s.LR(), 1e-6)
	s.Step()
	assert.InDelta(t, 0, s.LR(), 1e-6, "holds at eta_min after t_max")

	_, err = NewCosineAnnealingLR(opt, 0, 0)
	require.ErrorIs(t, err, ErrInvalidSchedule)
}

func TestCosineAnnealingWarmupRestarts(t *testing.T) {
	opt := &fakeOptimizer{lr: 123}
	s, err := NewCosineAnnealingWarmupRestarts(opt, CosineWarmupRestartsConfig{
		FirstCycleSteps: 10,
		CycleMult:       1,
		MaxLR:           1,
		MinLR:           0.1,
		WarmupSteps:     2,
		Gamma:           0.5,
	})
	require.NoError(t, err)

	lrs := []float32{s.LR()}
	for range 12 {
		lrs = append(lrs, s.Step())
	}

	assert.InDelta(t, 0.1, lrs[0], 1e-7, "starts at min_lr")
	assert.InDelta(t, 0.55, lrs[1], 1e-6, "warmup is linear")
	assert.InDelta(t, 1.0, lrs[2], 1e-6, "warmup ends at max_lr")
	assert.InDelta(t, 0.55, lrs[6], 1e-6, "cosine midpoint")
	assert.InDelta(t, 0.1, lrs[10], 1e-6, "restart at min_lr")
	assert.InDelta(t, 0.5, lrs[12], 1e-6, "peak decays by gamma")
	assert.Equal(t, 1, s.Cycle())
	assert.Equal(t, lrs[12], opt.lr)

	for i := 2; i < 10; i++ {
		assert.GreaterOrEqual(t, lrs[i], lrs[i+1], "annealing is monotone at step %d", i)
	}
}

func TestCosineAnnealingWarmupRestarts_CycleMult(t *testing.T) {
	opt := &fakeOptimizer{}
	s, err := NewCosineAnnealingWarmupRestarts(opt, CosineWarmupRestartsConfig{
		FirstCycleSteps: 10, CycleMult: 2, MaxLR: 1, MinLR: 0, WarmupSteps: 2, Gamma: 1,
	})
	require.NoError(t, err)

	for range 10 {
		s.Step()
	}
	require.Equal(t, 1, s.Cycle())

	// Second cycle is 2 + 16 steps long.
	for range 17 {
		s.Step()
	}
	assert.Equal(t, 1, s.Cycle())
	s.Step()
	assert.Equal(t, 2, s.Cycle())
	assert.InDelta(t, 0, s.LR(), 1e-7)
}

func TestCosineAnnealingWarmupRestarts_Validation(t *testing.T) {
	valid := CosineWarmupRestartsConfig{FirstCycleSteps: 10, CycleMult: 1, MaxLR: 1, MinLR: 0.1, WarmupSteps: 2, Gamma: 0.9}

	tests := []struct {
		name   string
		mutate func(*CosineWarmupRestartsConfig)
	}{
		{"warmup equals cycle", func(c *CosineWarmupRestartsConfig) { c.WarmupSteps = 10 }},
		{"warmup exceeds cycle", func(c *CosineWarmupRestartsConfig) { c.WarmupSteps = 11 }},
		{"zero cycle", func(c *CosineWarmupRestartsConfig) { c.FirstCycleSteps = 0 }},
		{"zero cycle mult", func(c *CosineWarmupRestartsConfig) { c.CycleMult = 0 }},
		{"zero gamma", func(c *CosineWarmupRestartsConfig) { c.Gamma = 0 }},
		{"min above max", func(c *CosineWarmupRestartsConfig) { c.MinLR = 2 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			_, err := NewCosineAnnealingWarmupRestarts(&fakeOptimizer{}, cfg)
			require.ErrorIs(t, err, ErrInvalidSchedule)
		})
	}
}

func TestNew(t *testing.T) {
	s, err := New(Config{}, &fakeOptimizer{lr: 0.3})
	require.NoError(t, err)
	assert.IsType(t, &ConstantLR{}, s)

	s, err = New(Config{Name: "Cosine", TMax: 5}, &fakeOptimizer{lr: 0.3})
	require.NoError(t, err)
	assert.IsType(t, &CosineAnnealingLR{}, s)

	s, err = New(Config{Name: NameCosineWarmupRestarts, FirstCycleSteps: 4, MaxLR: 1}, &fakeOptimizer{})
	require.NoError(t, err)
	assert.IsType(t, &CosineAnnealingWarmupRestarts{}, s)

	_, err = New(Config{Name: "step"}, &fakeOptimizer{})
	require.ErrorIs(t, err, ErrUnknownScheduler)

	assert.Equal(t, []string{"constant", "cosine", "cosine_warmup_restarts", "linear_warmup"}, Names())
}
