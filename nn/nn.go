// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package nn provides the neural network building blocks used to exercise
// the optimizers: parameters, linear layers, ReLU, Sequential and MSE loss.
//
// Example:
//
//	rng := rand.New(rand.NewSource(1))
//	model := nn.NewSequential[B](
//	    nn.NewLinear(4, 16, rng, backend),
//	    nn.NewReLU[B](),
//	    nn.NewLinear(16, 1, rng, backend),
//	)
//	loss := nn.MSE(model.Forward(x), y)
package nn

import (
	"math/rand"

	"github.com/born-ml/bornopt/internal/nn"
	"github.com/born-ml/bornopt/internal/tensor"
)

// Module is a layer with a forward pass and trainable parameters.
type Module[B tensor.Backend] = nn.Module[B]

// Parameter is a named trainable tensor.
type Parameter[B tensor.Backend] = nn.Parameter[B]

// Linear is a fully connected layer y = x @ Wᵀ + b.
type Linear[B tensor.Backend] = nn.Linear[B]

// ReLU is the rectified linear activation.
type ReLU[B tensor.Backend] = nn.ReLU[B]

// Sequential chains modules.
type Sequential[B tensor.Backend] = nn.Sequential[B]

// NamedParameter pairs a parameter with its state dict key.
type NamedParameter[B tensor.Backend] = nn.NamedParameter[B]

// NewParameter creates a parameter.
func NewParameter[B tensor.Backend](name string, t *tensor.Tensor[B]) *Parameter[B] {
	return nn.NewParameter(name, t)
}

// NewLinear creates a Linear layer with Xavier-initialized weights.
func NewLinear[B tensor.Backend](inFeatures, outFeatures int, rng *rand.Rand, backend B) *Linear[B] {
	return nn.NewLinear(inFeatures, outFeatures, rng, backend)
}

// NewReLU creates a ReLU activation.
func NewReLU[B tensor.Backend]() *ReLU[B] {
	return nn.NewReLU[B]()
}

// NewSequential chains modules in order.
func NewSequential[B tensor.Backend](modules ...Module[B]) *Sequential[B] {
	return nn.NewSequential(modules...)
}

// MSE returns the mean squared error between predictions and targets.
func MSE[B tensor.Backend](predictions, targets *tensor.Tensor[B]) *tensor.Tensor[B] {
	return nn.MSE(predictions, targets)
}

// Xavier returns a tensor drawn from the Glorot uniform distribution.
func Xavier[B tensor.Backend](fanIn, fanOut int, shape tensor.Shape, rng *rand.Rand, backend B) *tensor.Tensor[B] {
	return nn.Xavier(fanIn, fanOut, shape, rng, backend)
}
