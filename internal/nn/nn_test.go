package nn_test

import (
	"math"
	"math/rand"
	"testing"

	"github.com/born-ml/bornopt/internal/autodiff"
	"github.com/born-ml/bornopt/internal/backend/cpu"
	"github.com/born-ml/bornopt/internal/nn"
	"github.com/born-ml/bornopt/internal/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type Backend = *autodiff.AutodiffBackend[*cpu.CPUBackend]

func TestParameter(t *testing.T) {
	backend := cpu.New()
	x := tensor.Ones(tensor.Shape{2}, backend)
	p := nn.NewParameter("x", x)

	assert.Equal(t, "x", p.Name())
	assert.Same(t, x.Raw(), p.Raw())
	assert.Nil(t, p.Grad())

	p.SetGrad(tensor.Zeros(tensor.Shape{2}, backend))
	assert.NotNil(t, p.Grad())

	p.ZeroGrad()
	assert.Nil(t, p.Grad())
}

func TestXavier_Bounds(t *testing.T) {
	backend := cpu.New()
	w := nn.Xavier(8, 4, tensor.Shape{4, 8}, rand.New(rand.NewSource(1)), backend)

	bound := float32(math.Sqrt(6.0 / 12.0))
	for _, v := range w.Data() {
		assert.LessOrEqual(t, v, bound)
		assert.GreaterOrEqual(t, v, -bound)
	}
}

func TestXavier_Deterministic(t *testing.T) {
	backend := cpu.New()
	a := nn.Xavier(3, 3, tensor.Shape{3, 3}, rand.New(rand.NewSource(7)), backend)
	b := nn.Xavier(3, 3, tensor.Shape{3, 3}, rand.New(rand.NewSource(7)), backend)
	assert.Equal(t, a.Data(), b.Data())
}

func TestLinear_Forward(t *testing.T) {
	backend := cpu.New()
	layer := nn.NewLinear(2, 1, rand.New(rand.NewSource(1)), backend)

	copy(layer.Weight().Tensor().Data(), []float32{2, -1})
	layer.Bias().Tensor().Data()[0] = 0.5

	x, err := tensor.FromSlice([]float32{1, 1, 3, 2}, tensor.Shape{2, 2}, backend)
	require.NoError(t, err)

	out := layer.Forward(x)
	assert.Equal(t, tensor.Shape{2, 1}, out.Shape())
	assert.Equal(t, []float32{1.5, 4.5}, out.Data())

	assert.Len(t, layer.Parameters(), 2)
	assert.Equal(t, 2, layer.InFeatures())
	assert.Equal(t, 1, layer.OutFeatures())
}

func TestLinear_ForwardPanicsOnBadInput(t *testing.T) {
	backend := cpu.New()
	layer := nn.NewLinear(3, 1, rand.New(rand.NewSource(1)), backend)

	assert.Panics(t, func() { layer.Forward(tensor.Zeros(tensor.Shape{3}, backend)) })
	assert.Panics(t, func() { layer.Forward(tensor.Zeros(tensor.Shape{1, 2}, backend)) })
}

func TestMSE(t *testing.T) {
	backend := cpu.New()
	pred, _ := tensor.FromSlice([]float32{1, 2, 3, 4}, tensor.Shape{4, 1}, backend)
	target, _ := tensor.FromSlice([]float32{1, 0, 3, 2}, tensor.Shape{4, 1}, backend)

	// (0 + 4 + 0 + 4) / 4
	assert.InDelta(t, 2.0, nn.MSE(pred, target).Item(), 1e-6)

	other := tensor.Zeros(tensor.Shape{4}, backend)
	assert.Panics(t, func() { nn.MSE(pred, other) })
}

func TestMSE_Gradient(t *testing.T) {
	backend := autodiff.New(cpu.New())
	backend.Tape().StartRecording()

	pred, _ := tensor.FromSlice([]float32{1, 3}, tensor.Shape{2}, backend)
	target, _ := tensor.FromSlice([]float32{0, 0}, tensor.Shape{2}, backend)

	grads := autodiff.Backward(nn.MSE(pred, target), backend)

	// d/dp mean((p-t)^2) = 2(p-t)/n
	assert.InDeltaSlice(t, []float32{1, 3}, grads[pred.Raw()].Data(), 1e-6)
}

func TestSequential(t *testing.T) {
	backend := autodiff.New(cpu.New())
	rng := rand.New(rand.NewSource(3))

	model := nn.NewSequential[Backend](
		nn.NewLinear(3, 4, rng, backend),
		nn.NewReLU[Backend](),
		nn.NewLinear(4, 1, rng, backend),
	)
	assert.Equal(t, 3, model.Len())
	assert.Len(t, model.Parameters(), 4)

	var names []string
	for _, np := range model.NamedParameters() {
		names = append(names, np.Name)
	}
	assert.Equal(t, []string{"0.weight", "0.bias", "2.weight", "2.bias"}, names)

	out := model.Forward(tensor.Ones(tensor.Shape{5, 3}, backend))
	assert.Equal(t, tensor.Shape{5, 1}, out.Shape())
}

func TestSequential_StateDictRoundTrip(t *testing.T) {
	backend := cpu.New()

	src := nn.NewSequential[*cpu.CPUBackend](nn.NewLinear(2, 2, rand.New(rand.NewSource(1)), backend))
	dst := nn.NewSequential[*cpu.CPUBackend](nn.NewLinear(2, 2, rand.New(rand.NewSource(2)), backend))

	state := src.StateDict()
	require.Len(t, state, 2)

	// StateDict holds copies.
	state["0.bias"].Data()[0] = 9
	assert.NotEqual(t, float32(9), src.Parameters()[1].Raw().Data()[0])

	require.NoError(t, dst.LoadStateDict(state))
	assert.Equal(t, state["0.weight"].Data(), dst.Parameters()[0].Raw().Data())
	assert.Equal(t, float32(9), dst.Parameters()[1].Raw().Data()[0])
}

func TestSequential_LoadStateDictErrors(t *testing.T) {
	backend := cpu.New()
	model := nn.NewSequential[*cpu.CPUBackend](nn.NewLinear(2, 2, rand.New(rand.NewSource(1)), backend))

	state := model.StateDict()
	delete(state, "0.bias")
	require.ErrorContains(t, model.LoadStateDict(state), "missing parameter")

	state = model.StateDict()
	state["0.bias"] = tensor.MustRaw(tensor.Shape{3}, tensor.CPU)
	require.ErrorContains(t, model.LoadStateDict(state), "shape mismatch")
}
