package autodiff_test

import (
	"testing"

	"github.com/born-ml/bornopt/internal/autodiff"
	"github.com/born-ml/bornopt/internal/backend/cpu"
	"github.com/born-ml/bornopt/internal/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type Backend = *autodiff.AutodiffBackend[*cpu.CPUBackend]

func fromSlice(t *testing.T, data []float32, shape tensor.Shape, b Backend) *tensor.Tensor[Backend] {
	t.Helper()
	x, err := tensor.FromSlice(data, shape, b)
	require.NoError(t, err)
	return x
}

func TestAutodiffBackend_Metadata(t *testing.T) {
	backend := autodiff.New(cpu.New())
	assert.Equal(t, "Autodiff(CPU)", backend.Name())
	assert.Equal(t, tensor.CPU, backend.Device())
}

func TestTape_Recording(t *testing.T) {
	backend := autodiff.New(cpu.New())
	tape := backend.Tape()

	assert.False(t, tape.IsRecording())

	a := fromSlice(t, []float32{1, 2}, tensor.Shape{2}, backend)
	_ = a.Add(a)
	assert.Equal(t, 0, tape.NumOps(), "operations are not recorded before StartRecording")

	tape.StartRecording()
	_ = a.Add(a)
	_ = a.Mul(a)
	assert.Equal(t, 2, tape.NumOps())

	tape.StopRecording()
	_ = a.Add(a)
	assert.Equal(t, 2, tape.NumOps())

	tape.Clear()
	assert.Equal(t, 0, tape.NumOps())
}

func TestBackward_Square(t *testing.T) {
	backend := autodiff.New(cpu.New())
	backend.Tape().StartRecording()

	x := fromSlice(t, []float32{2, -3}, tensor.Shape{2}, backend)
	y := x.Mul(x).Sum()

	grads := autodiff.Backward(y, backend)
	assert.Equal(t, []float32{4, -6}, grads[x.Raw()].Data())
}

func TestBackward_NoOpsPanics(t *testing.T) {
	backend := autodiff.New(cpu.New())
	x := fromSlice(t, []float32{1}, tensor.Shape{1}, backend)
	assert.Panics(t, func() { autodiff.Backward(x, backend) })
}

func TestBackward_LinearMSE(t *testing.T) {
	backend := autodiff.New(cpu.New())
	backend.Tape().StartRecording()

	// loss = sum((x @ w^T + b - y)^2)
	x := fromSlice(t, []float32{1, 2, 3, 4}, tensor.Shape{2, 2}, backend)
	w := fromSlice(t, []float32{0.5, -1}, tensor.Shape{1, 2}, backend)
	b := fromSlice(t, []float32{0.25}, tensor.Shape{1}, backend)
	y := fromSlice(t, []float32{1, 0}, tensor.Shape{2, 1}, backend)

	pred := x.MatMul(w.Transpose()).Add(b.Reshape(1, 1))
	diff := pred.Sub(y)
	loss := diff.Mul(diff).Sum()

	grads := autodiff.Backward(loss, backend)

	// pred = [1*0.5 - 2 + .25, 3*0.5 - 4 + .25] = [-1.25, -2.25]
	// diff = [-2.25, -2.25]; dL/dpred = 2*diff = [-4.5, -4.5]
	// dL/dw = sum_i dpred_i * x_i = [-4.5*1 - 4.5*3, -4.5*2 - 4.5*4] = [-18, -27]
	// dL/db = -9
	assert.InDeltaSlice(t, []float32{-18, -27}, grads[w.Raw()].Data(), 1e-5)
	assert.InDeltaSlice(t, []float32{-9}, grads[b.Raw()].Data(), 1e-5)
}

func TestBackward_DivSqrtReLU(t *testing.T) {
	backend := autodiff.New(cpu.New())
	backend.Tape().StartRecording()

	a := fromSlice(t, []float32{4, 9}, tensor.Shape{2}, backend)
	b := fromSlice(t, []float32{2, -1}, tensor.Shape{2}, backend)

	// loss = sum(relu(sqrt(a) / b))
	loss := a.Sqrt().Div(b).ReLU().Sum()
	grads := autodiff.Backward(loss, backend)

	// Element 0: sqrt(4)/2 = 1 > 0. d/da = 1/(2*sqrt(4)*2) = 0.125, d/db = -2/4 = -0.5
	// Element 1: sqrt(9)/-1 = -3 < 0, no gradient.
	assert.InDeltaSlice(t, []float32{0.125, 0}, grads[a.Raw()].Data(), 1e-6)
	assert.InDeltaSlice(t, []float32{-0.5, 0}, grads[b.Raw()].Data(), 1e-6)
}

func TestBackward_ScalarAndSumDim(t *testing.T) {
	backend := autodiff.New(cpu.New())
	backend.Tape().StartRecording()

	x := fromSlice(t, []float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3}, backend)
	loss := x.MulScalar(3).AddScalar(1).SumDim(1, false).Sum()

	grads := autodiff.Backward(loss, backend)
	assert.Equal(t, []float32{3, 3, 3, 3, 3, 3}, grads[x.Raw()].Data())
}

func TestBackwardHooked_MatchesBackward(t *testing.T) {
	backend := autodiff.New(cpu.New())
	tape := backend.Tape()
	tape.StartRecording()

	x := fromSlice(t, []float32{1, -2, 3, 0.5, 2, -1}, tensor.Shape{3, 2}, backend)
	w1 := fromSlice(t, []float32{0.1, 0.2, -0.3, 0.4}, tensor.Shape{2, 2}, backend)
	w2 := fromSlice(t, []float32{0.5, -0.5}, tensor.Shape{1, 2}, backend)
	unused := fromSlice(t, []float32{7}, tensor.Shape{1}, backend)

	h := x.MatMul(w1.Transpose()).ReLU()
	out := h.MatMul(w2.Transpose())
	loss := out.Mul(out).Sum()

	want := autodiff.Backward(loss, backend)

	got := make(map[*tensor.RawTensor][]float32)
	var order []*tensor.RawTensor
	leaves := []*tensor.RawTensor{w1.Raw(), w2.Raw(), unused.Raw()}
	autodiff.BackwardHooked(loss, backend, 1, leaves, func(leaf, grad *tensor.RawTensor) {
		_, seen := got[leaf]
		require.False(t, seen, "hook called twice for the same leaf")
		got[leaf] = append([]float32(nil), grad.Data()...)
		order = append(order, leaf)
	})

	require.Len(t, got, 2, "unused leaf must not be reported")
	assert.InDeltaSlice(t, want[w1.Raw()].Data(), got[w1.Raw()], 1e-6)
	assert.InDeltaSlice(t, want[w2.Raw()].Data(), got[w2.Raw()], 1e-6)

	// The output layer's gradient is final first.
	assert.Equal(t, w2.Raw(), order[0])
	assert.Equal(t, w1.Raw(), order[1])
}

func TestBackwardHooked_Scale(t *testing.T) {
	backend := autodiff.New(cpu.New())
	backend.Tape().StartRecording()

	x := fromSlice(t, []float32{1, 2}, tensor.Shape{2}, backend)
	loss := x.Mul(x).Sum()

	var got []float32
	autodiff.BackwardHooked(loss, backend, 8, []*tensor.RawTensor{x.Raw()}, func(_, grad *tensor.RawTensor) {
		got = append([]float32(nil), grad.Data()...)
	})

	assert.Equal(t, []float32{16, 32}, got)
}

func TestBackward_RecordingRestored(t *testing.T) {
	backend := autodiff.New(cpu.New())
	tape := backend.Tape()
	tape.StartRecording()

	x := fromSlice(t, []float32{1}, tensor.Shape{1}, backend)
	loss := x.Mul(x).Sum()
	n := tape.NumOps()

	_ = autodiff.Backward(loss, backend)

	assert.True(t, tape.IsRecording())
	assert.Equal(t, n, tape.NumOps(), "backward must not record gradient ops")
}
