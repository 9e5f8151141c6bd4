// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package optim provides gradient-descent optimizers.
//
// Step-based optimizers (SGD, Adam, AdamW, PAdam, MADGRAD) consume a
// gradient map produced by autodiff.Backward:
//
//	opt, err := optim.NewPAdam(model.Parameters(), optim.PAdamConfig{LR: 0.1}, backend)
//	...
//	grads := autodiff.Backward(loss, backend)
//	err = opt.Step(grads)
//
// LOMO is fused: it updates parameters during the backward pass and is
// driven with GradNorm and FusedBackward instead of Step.
package optim

import (
	"github.com/born-ml/bornopt/internal/autodiff"
	"github.com/born-ml/bornopt/internal/nn"
	"github.com/born-ml/bornopt/internal/optim"
	"github.com/born-ml/bornopt/internal/tensor"
)

// Optimizer is implemented by every optimizer.
type Optimizer = optim.Optimizer

// Tunable is the learning rate and name part shared by every optimizer,
// fused or not.
type Tunable = optim.Tunable

// Stateful optimizers export and restore their buffers.
type Stateful = optim.Stateful

// Hyperparams is the union of every optimizer's settings, used by New.
type Hyperparams = optim.Hyperparams

// Errors.
var (
	ErrInvalidHyperparameter = optim.ErrInvalidHyperparameter
	ErrNoSparseGradient      = optim.ErrNoSparseGradient
	ErrNoParameters          = optim.ErrNoParameters
	ErrUnknownOptimizer      = optim.ErrUnknownOptimizer
	ErrFusedOptimizer        = optim.ErrFusedOptimizer
	ErrClipCoefMissing       = optim.ErrClipCoefMissing
	ErrLossScaleWithoutClip  = optim.ErrLossScaleWithoutClip
	ErrStateMismatch         = optim.ErrStateMismatch
)

// HyperparameterError reports an out-of-range setting.
type HyperparameterError = optim.HyperparameterError

// SparseGradientError reports a sparse gradient given to an optimizer that
// cannot use it.
type SparseGradientError = optim.SparseGradientError

// SGD is stochastic gradient descent with optional momentum.
type SGD[B tensor.Backend] = optim.SGD[B]

// SGDConfig configures SGD.
type SGDConfig = optim.SGDConfig

// NewSGD creates an SGD optimizer.
func NewSGD[B tensor.Backend](params []*nn.Parameter[B], config SGDConfig, backend B) (*SGD[B], error) {
	return optim.NewSGD(params, config, backend)
}

// Adam is Adam, AdamW when WeightDecouple is set.
type Adam[B tensor.Backend] = optim.Adam[B]

// AdamConfig configures Adam.
type AdamConfig = optim.AdamConfig

// NewAdam creates an Adam optimizer.
func NewAdam[B tensor.Backend](params []*nn.Parameter[B], config AdamConfig, backend B) (*Adam[B], error) {
	return optim.NewAdam(params, config, backend)
}

// PAdam is the partially adaptive momentum estimation optimizer.
type PAdam[B tensor.Backend] = optim.PAdam[B]

// PAdamConfig configures PAdam.
type PAdamConfig = optim.PAdamConfig

// NewPAdam creates a PAdam optimizer.
//
// Example:
//
//	opt, err := optim.NewPAdam(model.Parameters(), optim.PAdamConfig{
//	    LR:      0.1,
//	    Partial: 0.125,
//	}, backend)
func NewPAdam[B tensor.Backend](params []*nn.Parameter[B], config PAdamConfig, backend B) (*PAdam[B], error) {
	return optim.NewPAdam(params, config, backend)
}

// MADGRAD is the momentumized, adaptive, dual averaged gradient method.
type MADGRAD[B tensor.Backend] = optim.MADGRAD[B]

// MADGRADConfig configures MADGRAD.
type MADGRADConfig = optim.MADGRADConfig

// DefaultMADGRADConfig returns the MADGRAD defaults.
func DefaultMADGRADConfig() MADGRADConfig {
	return optim.DefaultMADGRADConfig()
}

// NewMADGRAD creates a MADGRAD optimizer.
func NewMADGRAD[B tensor.Backend](params []*nn.Parameter[B], config MADGRADConfig, backend B) (*MADGRAD[B], error) {
	return optim.NewMADGRAD(params, config, backend)
}

// LOMO is the fused low-memory optimizer.
type LOMO[B autodiff.BackwardCapable] = optim.LOMO[B]

// LOMOConfig configures LOMO.
type LOMOConfig = optim.LOMOConfig

// NewLOMO creates a LOMO optimizer.
//
// Example:
//
//	lomo, err := optim.NewLOMO(model.Parameters(), optim.LOMOConfig{LR: 1e-3, ClipGradNorm: 1}, backend)
//	...
//	if err := lomo.GradNorm(loss); err != nil { ... }
//	if err := lomo.FusedBackward(loss, lomo.GetLR()); err != nil { ... }
func NewLOMO[B autodiff.BackwardCapable](params []*nn.Parameter[B], config LOMOConfig, backend B) (*LOMO[B], error) {
	return optim.NewLOMO(params, config, backend)
}

// DynamicLossScaler adjusts a loss scale to keep scaled gradients finite.
type DynamicLossScaler = optim.DynamicLossScaler

// LossScalerConfig configures a DynamicLossScaler.
type LossScalerConfig = optim.LossScalerConfig

// NewDynamicLossScaler creates a loss scaler.
func NewDynamicLossScaler(config LossScalerConfig) *DynamicLossScaler {
	return optim.NewDynamicLossScaler(config)
}

// HasInfOrNaN reports whether values contain inf or NaN.
func HasInfOrNaN(values []float32) bool {
	return optim.HasInfOrNaN(values)
}

// ClipGradNorm scales grads so their global L2 norm is at most maxNorm and
// returns the norm before clipping.
func ClipGradNorm[B tensor.Backend](grads map[*tensor.RawTensor]*tensor.RawTensor, params []*nn.Parameter[B], maxNorm float32) float32 {
	return optim.ClipGradNorm(grads, params, maxNorm)
}

// Names returns every optimizer name, sorted.
func Names() []string {
	return optim.Names()
}

// IsFused reports whether name is built with NewFused.
func IsFused(name string) bool {
	return optim.IsFused(name)
}

// New creates a step-based optimizer by name.
func New[B tensor.Backend](name string, params []*nn.Parameter[B], hp Hyperparams, backend B) (Optimizer, error) {
	return optim.New(name, params, hp, backend)
}

// NewFused creates a fused optimizer by name.
func NewFused[B autodiff.BackwardCapable](name string, params []*nn.Parameter[B], hp Hyperparams, backend B) (*LOMO[B], error) {
	return optim.NewFused(name, params, hp, backend)
}
