package autodiff

import (
	"github.com/born-ml/bornopt/internal/tensor"
)

// BackwardCapable is an interface for backends that support backward pass.
// AutodiffBackend implements this interface.
type BackwardCapable interface {
	tensor.Backend
	// GetTape returns the gradient tape for backward computation.
	GetTape() *GradientTape
}

// GetTape returns the gradient tape (implements BackwardCapable interface).
func (b *AutodiffBackend[B]) GetTape() *GradientTape {
	return b.tape
}

// Backward computes gradients for a tensor using the backend's tape.
//
// The output gradient is seeded with ones. Returns a map from RawTensor to
// its gradient.
//
// Example:
//
//	backend := autodiff.New(cpu.New())
//	backend.Tape().StartRecording()
//	x := tensor.Ones(tensor.Shape{2}, backend)
//	y := x.Mul(x) // y = x²
//	gradients := autodiff.Backward(y, backend)
//	grad := gradients[x.Raw()] // Get gradient for x
func Backward[B BackwardCapable](t *tensor.Tensor[B], backend B) map[*tensor.RawTensor]*tensor.RawTensor {
	tape := backend.GetTape()
	if tape.NumOps() == 0 {
		panic("backward: no operations recorded (did you forget to call Tape().StartRecording()?)")
	}
	return tape.BackwardFrom(t.Raw(), seed(t, 1), backend)
}

// BackwardHooked runs the fused backward pass for t.
//
// The output gradient is seeded with scale (1 for a plain backward pass; the
// current loss scale when dynamic loss scaling is active). hook is called
// once per watched leaf as soon as its gradient is final.
func BackwardHooked[B BackwardCapable](
	t *tensor.Tensor[B],
	backend B,
	scale float32,
	leaves []*tensor.RawTensor,
	hook GradHook,
) {
	tape := backend.GetTape()
	if tape.NumOps() == 0 {
		panic("backward: no operations recorded (did you forget to call Tape().StartRecording()?)")
	}
	tape.BackwardHooked(t.Raw(), seed(t, scale), backend, leaves, hook)
}

// seed creates the output gradient filled with v.
func seed[B tensor.Backend](t *tensor.Tensor[B], v float32) *tensor.RawTensor {
	outputGrad := tensor.MustRaw(t.Shape(), t.Raw().Device())
	outputGrad.Fill(v)
	return outputGrad
}
