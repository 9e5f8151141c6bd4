package nn

import (
	"fmt"

	"github.com/born-ml/bornopt/internal/tensor"
)

// MSE computes the mean squared error mean((predictions - targets)²).
//
// The computation is expressed with backend operations, so on an autodiff
// backend gradients flow back to predictions. Returns a scalar tensor.
func MSE[B tensor.Backend](predictions, targets *tensor.Tensor[B]) *tensor.Tensor[B] {
	if !predictions.Shape().Equal(targets.Shape()) {
		panic(fmt.Sprintf("MSE: predictions %v and targets %v must have the same shape",
			predictions.Shape(), targets.Shape()))
	}

	diff := predictions.Sub(targets)
	return diff.Mul(diff).Sum().MulScalar(1 / float32(predictions.NumElements()))
}
