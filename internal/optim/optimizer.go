// Package optim implements optimization algorithms for training neural networks.
//
// This package provides:
//   - Optimizer interface: Base interface for step-based optimizers
//   - SGD: Stochastic Gradient Descent with momentum
//   - Adam / AdamW: Adaptive Moment Estimation (optionally AMSGrad, decoupled decay)
//   - PAdam: Partially adaptive momentum estimation
//   - MADGRAD: Momentumized, adaptive, dual averaged gradient (dense and sparse)
//   - LOMO: Low-memory optimization fusing gradient computation and update
//
// Design inspired by PyTorch's torch.optim but adapted for Go with type safety.
//
// Example usage:
//
//	optimizer, err := optim.NewPAdam(model.Parameters(), optim.PAdamConfig{
//	    LR:      0.1,
//	    Partial: 0.25,
//	}, backend)
//
//	for epoch := range epochs {
//	    backend.Tape().Clear()
//	    backend.Tape().StartRecording()
//	    loss := nn.MSE(model.Forward(input), targets)
//	    grads := autodiff.Backward(loss, backend)
//
//	    if err := optimizer.Step(grads); err != nil {
//	        return err
//	    }
//	    optimizer.ZeroGrad()
//	}
package optim

import (
	"fmt"

	"github.com/born-ml/bornopt/internal/nn"
	"github.com/born-ml/bornopt/internal/tensor"
)

// Optimizer is the base interface for step-based optimization algorithms.
//
// Optimizers update model parameters based on computed gradients to
// minimize the loss function during training.
//
// All optimizers must implement:
//   - Step: Apply gradient updates to parameters
//   - ZeroGrad: Clear gradients before next iteration
//   - GetLR / SetLR: Learning rate access (for monitoring/scheduling)
//   - Name: Registry name of the algorithm
type Optimizer interface {
	// Step applies gradient updates to all parameters.
	//
	// Takes a gradient map from Backward() and updates parameters in-place.
	// Gradient tensors are treated as read-only. Parameters without an entry
	// in grads are skipped.
	Step(grads map[*tensor.RawTensor]*tensor.RawTensor) error

	// ZeroGrad clears all parameter gradients.
	ZeroGrad()

	// GetLR returns the current learning rate.
	GetLR() float32

	// SetLR updates the learning rate.
	SetLR(lr float32)

	// Name returns the optimizer's registry name (e.g. "padam").
	Name() string
}

// Tunable is the part of the optimizer contract shared by step-based
// optimizers and LOMO: learning rate access and the registry name.
type Tunable interface {
	GetLR() float32
	SetLR(lr float32)
	Name() string
}

// Stateful is implemented by optimizers whose internal buffers can be
// exported and restored.
//
// State keys have the form "<buffer>.<param index>" (e.g. "exp_avg.0").
// Scalar counters are stored as single-element tensors ("step", "k").
type Stateful interface {
	StateDict() map[string]*tensor.RawTensor
	LoadStateDict(state map[string]*tensor.RawTensor) error
}

// base holds the bookkeeping shared by every optimizer.
type base[B tensor.Backend] struct {
	name   string
	params []*nn.Parameter[B]
	lr     float32
}

// ZeroGrad clears gradients for all parameters.
func (o *base[B]) ZeroGrad() {
	for _, param := range o.params {
		param.ZeroGrad()
	}
}

// GetLR returns the current learning rate.
func (o *base[B]) GetLR() float32 {
	return o.lr
}

// SetLR updates the learning rate.
//
// Useful for learning rate scheduling during training.
func (o *base[B]) SetLR(lr float32) {
	o.lr = lr
}

// Name returns the optimizer name.
func (o *base[B]) Name() string {
	return o.name
}

// getGradient safely retrieves gradient for a parameter.
//
// Returns nil if no gradient is found (parameter wasn't part of computation graph).
func getGradient[B tensor.Backend](param *nn.Parameter[B], grads map[*tensor.RawTensor]*tensor.RawTensor) *tensor.RawTensor {
	if param == nil {
		return nil
	}
	return grads[param.Raw()]
}

// denseGradient returns the parameter's dense gradient values, or nil when
// the parameter has no gradient.
//
// Sparse gradients are rejected with a *SparseGradientError.
func denseGradient[B tensor.Backend](optimizer string, param *nn.Parameter[B], grads map[*tensor.RawTensor]*tensor.RawTensor) ([]float32, error) {
	grad := getGradient(param, grads)
	if grad == nil {
		return nil, nil
	}
	if grad.IsSparse() {
		return nil, &SparseGradientError{Optimizer: optimizer}
	}
	if err := checkGradShape(param, grad); err != nil {
		return nil, err
	}
	return grad.Data(), nil
}

// checkDenseGradients rejects the step before any state changes when a
// gradient is sparse or has the wrong shape.
func checkDenseGradients[B tensor.Backend](optimizer string, params []*nn.Parameter[B], grads map[*tensor.RawTensor]*tensor.RawTensor) error {
	for _, param := range params {
		if _, err := denseGradient(optimizer, param, grads); err != nil {
			return err
		}
	}
	return nil
}

func checkGradShape[B tensor.Backend](param *nn.Parameter[B], grad *tensor.RawTensor) error {
	if !grad.Shape().Equal(param.Tensor().Shape()) {
		return fmt.Errorf("parameter %q: gradient shape %v does not match parameter shape %v",
			param.Name(), grad.Shape(), param.Tensor().Shape())
	}
	return nil
}

func checkParams[B tensor.Backend](params []*nn.Parameter[B]) error {
	if len(params) == 0 {
		return ErrNoParameters
	}
	return nil
}

// stateKey formats a per-parameter state key.
func stateKey(buffer string, index int) string {
	return fmt.Sprintf("%s.%d", buffer, index)
}
