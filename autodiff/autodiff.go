// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package autodiff provides reverse-mode automatic differentiation.
//
// Backend wraps any backend and records operations on a gradient tape while
// recording is enabled:
//
//	backend := autodiff.New(cpu.New())
//	backend.Tape().StartRecording()
//	x := tensor.Ones(tensor.Shape{2}, backend)
//	y := x.Mul(x).Sum()
//	grads := autodiff.Backward(y, backend)
//	dx := grads[x.Raw()]
//
// BackwardHooked is the fused variant used by LOMO: it hands every watched
// leaf's gradient to a hook as soon as it is final and keeps no gradient map.
package autodiff

import (
	"github.com/born-ml/bornopt/internal/autodiff"
	"github.com/born-ml/bornopt/internal/tensor"
)

// Backend is the autodiff-enabled backend.
type Backend[B tensor.Backend] = autodiff.AutodiffBackend[B]

// BackwardCapable is implemented by backends that own a gradient tape.
type BackwardCapable = autodiff.BackwardCapable

// GradientTape records operations for automatic differentiation.
type GradientTape = autodiff.GradientTape

// GradHook receives a leaf and its final gradient during BackwardHooked.
// The gradient must not be modified or retained.
type GradHook = autodiff.GradHook

// New creates a new autodiff backend wrapping the given backend.
func New[B tensor.Backend](backend B) *Backend[B] {
	return autodiff.New(backend)
}

// Backward computes the gradients of t, seeding the output with ones.
func Backward[B BackwardCapable](t *tensor.Tensor[B], backend B) map[*tensor.RawTensor]*tensor.RawTensor {
	return autodiff.Backward(t, backend)
}

// BackwardHooked runs the fused backward pass of t seeded with scale,
// calling hook once per leaf in leaves.
func BackwardHooked[B BackwardCapable](t *tensor.Tensor[B], backend B, scale float32, leaves []*tensor.RawTensor, hook GradHook) {
	autodiff.BackwardHooked(t, backend, scale, leaves, hook)
}
