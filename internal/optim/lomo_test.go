package optim_test

import (
	"testing"

	"github.com/born-ml/bornopt/internal/autodiff"
	"github.com/born-ml/bornopt/internal/backend/cpu"
	"github.com/born-ml/bornopt/internal/nn"
	"github.com/born-ml/bornopt/internal/optim"
	"github.com/born-ml/bornopt/internal/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// linearLoss records loss = sum(w * x) for constant x = [3, 4], so the
// gradient of w is [3, 4] and its norm is 5.
func linearLoss(t *testing.T, backend Backend, w *nn.Parameter[Backend]) *tensor.Tensor[Backend] {
	t.Helper()
	backend.Tape().Clear()
	backend.Tape().StartRecording()
	x, err := tensor.FromSlice([]float32{3, 4}, tensor.Shape{2}, backend)
	require.NoError(t, err)
	return w.Tensor().Mul(x).Sum()
}

func newLOMO(t *testing.T, w *nn.Parameter[Backend], config optim.LOMOConfig, backend Backend) *optim.LOMO[Backend] {
	t.Helper()
	lomo, err := optim.NewLOMO([]*nn.Parameter[Backend]{w}, config, backend)
	require.NoError(t, err)
	return lomo
}

func TestLOMO_PlainUpdate(t *testing.T) {
	backend := autodiff.New(cpu.New())
	w := newParam(t, "w", []float32{1, 2}, backend)
	lomo := newLOMO(t, w, optim.LOMOConfig{}, backend)

	require.NoError(t, lomo.FusedBackward(linearLoss(t, backend, w), 0.1))

	assert.InDeltaSlice(t, []float32{0.7, 1.6}, w.Raw().Data(), 1e-6)
	assert.InDelta(t, 0.1, lomo.GetLR(), 1e-7)
	assert.False(t, lomo.Skipped())
	assert.Equal(t, float32(1), lomo.LossScale())
	assert.Equal(t, "lomo", lomo.Name())
}

func TestLOMO_ClipGradValue(t *testing.T) {
	backend := autodiff.New(cpu.New())
	w := newParam(t, "w", []float32{1, 2}, backend)
	lomo := newLOMO(t, w, optim.LOMOConfig{ClipGradValue: 1}, backend)

	require.NoError(t, lomo.FusedBackward(linearLoss(t, backend, w), 0.1))

	// Gradient [3, 4] is clamped to [1, 1].
	assert.InDeltaSlice(t, []float32{0.9, 1.9}, w.Raw().Data(), 1e-6)
}

func TestLOMO_ClipGradNorm(t *testing.T) {
	backend := autodiff.New(cpu.New())
	w := newParam(t, "w", []float32{1, 2}, backend)
	lomo := newLOMO(t, w, optim.LOMOConfig{ClipGradNorm: 1}, backend)
	assert.True(t, lomo.ClipsByNorm())

	loss := linearLoss(t, backend, w)
	require.ErrorIs(t, lomo.FusedBackward(loss, 0.1), optim.ErrClipCoefMissing)
	assert.Equal(t, []float32{1, 2}, w.Raw().Data())

	require.NoError(t, lomo.GradNorm(loss))
	assert.Equal(t, []float32{1, 2}, w.Raw().Data(), "GradNorm does not update")
	assert.InDelta(t, 5.0, lomo.GradNormValue(), 1e-5)

	coef, ok := lomo.ClipCoef()
	require.True(t, ok)
	assert.InDelta(t, 0.2, coef, 1e-6)

	require.NoError(t, lomo.FusedBackward(loss, 0.1))

	// Clipped gradient [0.6, 0.8].
	assert.InDeltaSlice(t, []float32{0.94, 1.92}, w.Raw().Data(), 1e-5)
}

func TestLOMO_ClipCoefCapsAtOne(t *testing.T) {
	backend := autodiff.New(cpu.New())
	w := newParam(t, "w", []float32{1, 2}, backend)
	lomo := newLOMO(t, w, optim.LOMOConfig{ClipGradNorm: 100}, backend)

	loss := linearLoss(t, backend, w)
	require.NoError(t, lomo.GradNorm(loss))

	coef, _ := lomo.ClipCoef()
	assert.Equal(t, float32(1), coef)
}

func TestLOMO_LossScaling(t *testing.T) {
	backend := autodiff.New(cpu.New())
	w := newParam(t, "w", []float32{1, 2}, backend)
	lomo := newLOMO(t, w, optim.LOMOConfig{ClipGradNorm: 100, LossScale: true}, backend)
	assert.Equal(t, float32(1<<16), lomo.LossScale())

	loss := linearLoss(t, backend, w)
	require.NoError(t, lomo.GradNorm(loss))
	assert.InDelta(t, 5.0, lomo.GradNormValue(), 1e-5, "norm is measured on unscaled gradients")

	require.NoError(t, lomo.FusedBackward(loss, 0.1))
	assert.False(t, lomo.Skipped())
	assert.InDeltaSlice(t, []float32{0.7, 1.6}, w.Raw().Data(), 1e-6)
	assert.Equal(t, float32(1<<16), lomo.LossScale())
}

func TestLOMO_OverflowSkipsStep(t *testing.T) {
	backend := autodiff.New(cpu.New())
	w := newParam(t, "w", []float32{1, 2}, backend)

	initScale := float32(3e38) // gradients of 3 * scale overflow float32
	lomo := newLOMO(t, w, optim.LOMOConfig{ClipGradNorm: 1, LossScale: true, InitScale: initScale}, backend)

	loss := linearLoss(t, backend, w)
	require.NoError(t, lomo.GradNorm(loss))
	_, ok := lomo.ClipCoef()
	assert.False(t, ok, "overflow leaves the clip coefficient unset")
	assert.Equal(t, float32(float64(initScale)/2), lomo.LossScale())

	require.NoError(t, lomo.FusedBackward(loss, 0.1))
	assert.True(t, lomo.Skipped())
	assert.Equal(t, []float32{1, 2}, w.Raw().Data())
}

func TestLOMO_LossScaleRequiresClip(t *testing.T) {
	backend := autodiff.New(cpu.New())
	w := newParam(t, "w", []float32{1}, backend)

	_, err := optim.NewLOMO([]*nn.Parameter[Backend]{w}, optim.LOMOConfig{LossScale: true}, backend)
	require.ErrorIs(t, err, optim.ErrLossScaleWithoutClip)
}

func TestLOMO_MatchesSGD(t *testing.T) {
	backend := autodiff.New(cpu.New())

	w1 := newParam(t, "w1", []float32{0.5, -0.25, 0.75, 1}, backend)
	w2 := newParam(t, "w2", []float32{1, -1}, backend)
	s1 := newParam(t, "w1", w1.Raw().Data(), backend)
	s2 := newParam(t, "w2", w2.Raw().Data(), backend)

	// loss = sum(relu(x @ w1^T) @ w2) with w1 [2, 2] and w2 [2, 1].
	forward := func(a, b *nn.Parameter[Backend]) *tensor.Tensor[Backend] {
		backend.Tape().Clear()
		backend.Tape().StartRecording()
		x, err := tensor.FromSlice([]float32{1, 2, -1, 3}, tensor.Shape{2, 2}, backend)
		require.NoError(t, err)
		h := x.MatMul(a.Tensor().Reshape(2, 2).Transpose()).ReLU()
		return h.MatMul(b.Tensor().Reshape(2, 1)).Sum()
	}

	lomo, err := optim.NewLOMO([]*nn.Parameter[Backend]{w1, w2}, optim.LOMOConfig{}, backend)
	require.NoError(t, err)
	sgd, err := optim.NewSGD([]*nn.Parameter[Backend]{s1, s2}, optim.SGDConfig{LR: 0.05}, backend)
	require.NoError(t, err)

	for range 3 {
		require.NoError(t, lomo.FusedBackward(forward(w1, w2), 0.05))

		grads := autodiff.Backward(forward(s1, s2), backend)
		require.NoError(t, sgd.Step(grads))
	}

	assert.InDeltaSlice(t, s1.Raw().Data(), w1.Raw().Data(), 1e-6)
	assert.InDeltaSlice(t, s2.Raw().Data(), w2.Raw().Data(), 1e-6)
}

func TestLOMO_StateDict(t *testing.T) {
	backend := autodiff.New(cpu.New())
	w := newParam(t, "w", []float32{1, 2}, backend)
	lomo := newLOMO(t, w, optim.LOMOConfig{ClipGradNorm: 1, LossScale: true}, backend)

	require.NoError(t, lomo.GradNorm(linearLoss(t, backend, w)))
	state := lomo.StateDict()
	require.Contains(t, state, "loss_scale")
	require.Contains(t, state, "clip_coef")

	other := newLOMO(t, w, optim.LOMOConfig{ClipGradNorm: 1, LossScale: true, InitScale: 8}, backend)
	require.NoError(t, other.LoadStateDict(state))
	assert.Equal(t, lomo.LossScale(), other.LossScale())

	coef, ok := other.ClipCoef()
	require.True(t, ok)
	want, _ := lomo.ClipCoef()
	assert.Equal(t, want, coef)
}
