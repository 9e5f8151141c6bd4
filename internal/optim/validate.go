package optim

func validateLearningRate(lr float32) error {
	if lr < 0 {
		return &HyperparameterError{Name: "lr", Value: float64(lr), Constraint: ">= 0"}
	}
	return nil
}

func validateBetas(betas [2]float32) error {
	names := [2]string{"beta1", "beta2"}
	for i, beta := range betas {
		if beta < 0 || beta >= 1 {
			return &HyperparameterError{Name: names[i], Value: float64(beta), Constraint: "in [0, 1)"}
		}
	}
	return nil
}

func validateWeightDecay(wd float32) error {
	if wd < 0 {
		return &HyperparameterError{Name: "weight_decay", Value: float64(wd), Constraint: ">= 0"}
	}
	return nil
}

func validateMomentum(momentum float32) error {
	if momentum < 0 || momentum >= 1 {
		return &HyperparameterError{Name: "momentum", Value: float64(momentum), Constraint: "in [0, 1)"}
	}
	return nil
}

func validateEpsilon(eps float32) error {
	if eps < 0 {
		return &HyperparameterError{Name: "eps", Value: float64(eps), Constraint: ">= 0"}
	}
	return nil
}

func validateNonNegative(name string, v float32) error {
	if v < 0 {
		return &HyperparameterError{Name: name, Value: float64(v), Constraint: ">= 0"}
	}
	return nil
}

// firstError returns the first non-nil error.
func firstError(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
