package optim

import (
	"math"

	"github.com/born-ml/bornopt/internal/nn"
	"github.com/born-ml/bornopt/internal/tensor"
)

// ClipGradNorm rescales the gradients of params so that their global L2 norm
// is at most maxNorm, and returns the norm measured before clipping.
//
// Clipped gradients replace the map entries; the original gradient tensors
// are not modified. A maxNorm <= 0 only measures.
func ClipGradNorm[B tensor.Backend](grads map[*tensor.RawTensor]*tensor.RawTensor, params []*nn.Parameter[B], maxNorm float32) float32 {
	var sumSq float64
	for _, param := range params {
		grad := getGradient(param, grads)
		if grad == nil {
			continue
		}
		for _, g := range grad.Values() {
			sumSq += float64(g) * float64(g)
		}
	}
	total := math.Sqrt(sumSq)

	if maxNorm <= 0 {
		return float32(total)
	}

	coef := float64(maxNorm) / (total + 1e-6)
	if coef >= 1 {
		return float32(total)
	}

	for _, param := range params {
		grad := getGradient(param, grads)
		if grad == nil {
			continue
		}
		clipped := grad.Clone()
		values := clipped.Values()
		for i := range values {
			values[i] = float32(float64(values[i]) * coef)
		}
		grads[param.Raw()] = clipped
	}
	return float32(total)
}
