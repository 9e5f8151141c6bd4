package optim

// applyWeightDecay applies weight decay for one parameter and returns the
// gradient values the update rule should use.
//
// Decoupled decay shrinks the parameter directly: p *= 1 - wd*lr, or
// p *= 1 - wd when fixed is set. Otherwise decay is added to the gradient
// (L2 penalty) on a private copy; grad itself is never modified.
func applyWeightDecay(param, grad []float32, lr, wd float32, decouple, fixed bool) []float32 {
	if wd == 0 {
		return grad
	}

	if decouple {
		factor := 1 - wd*lr
		if fixed {
			factor = 1 - wd
		}
		for i := range param {
			param[i] *= factor
		}
		return grad
	}

	out := make([]float32, len(grad))
	for i := range grad {
		out[i] = grad[i] + wd*param[i]
	}
	return out
}
