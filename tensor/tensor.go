// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides float32 tensors bound to a compute backend.
//
// A Tensor pairs its storage with the backend that executes its operations.
// Wrapping a backend with autodiff records those operations for gradient
// computation:
//
//	import (
//	    "github.com/born-ml/bornopt/autodiff"
//	    "github.com/born-ml/bornopt/backend/cpu"
//	    "github.com/born-ml/bornopt/tensor"
//	)
//
//	backend := autodiff.New(cpu.New())
//	x := tensor.Ones(tensor.Shape{2, 3}, backend)
//	y := x.Add(x)
//
// Gradients may be sparse. A sparse RawTensor stores coalesced flat
// row-major indices and their values; see NewSparse.
package tensor

import (
	"math/rand"

	"github.com/born-ml/bornopt/internal/tensor"
)

// Shape represents the dimensions of a tensor.
// Example: Shape{2, 3, 4} represents a 3D tensor with dimensions 2×3×4.
type Shape = tensor.Shape

// Device represents the device where tensor data resides.
type Device = tensor.Device

// CPU is the host device.
const CPU Device = tensor.CPU

// Backend is the interface every compute backend implements.
type Backend = tensor.Backend

// RawTensor is the untyped storage of a tensor, dense or sparse.
type RawTensor = tensor.RawTensor

// Tensor is a float32 tensor whose operations run on backend B.
type Tensor[B Backend] = tensor.Tensor[B]

// New wraps raw storage in a Tensor.
func New[B Backend](raw *RawTensor, b B) *Tensor[B] {
	return tensor.New(raw, b)
}

// FromSlice creates a tensor holding a copy of data.
func FromSlice[B Backend](data []float32, shape Shape, b B) (*Tensor[B], error) {
	return tensor.FromSlice(data, shape, b)
}

// Zeros creates a tensor filled with zeros.
func Zeros[B Backend](shape Shape, b B) *Tensor[B] {
	return tensor.Zeros(shape, b)
}

// Ones creates a tensor filled with ones.
func Ones[B Backend](shape Shape, b B) *Tensor[B] {
	return tensor.Ones(shape, b)
}

// Full creates a tensor filled with value.
func Full[B Backend](shape Shape, value float32, b B) *Tensor[B] {
	return tensor.Full(shape, value, b)
}

// Randn creates a tensor of standard normal samples drawn from rng.
func Randn[B Backend](shape Shape, rng *rand.Rand, b B) *Tensor[B] {
	return tensor.Randn(shape, rng, b)
}

// NewRaw creates zero-filled dense storage.
func NewRaw(shape Shape, device Device) (*RawTensor, error) {
	return tensor.NewRaw(shape, device)
}

// RawFromSlice creates dense storage holding a copy of data.
func RawFromSlice(data []float32, shape Shape, device Device) (*RawTensor, error) {
	return tensor.RawFromSlice(data, shape, device)
}

// NewSparse creates sparse storage from flat row-major indices and values.
// Duplicate indices are summed.
func NewSparse(shape Shape, indices []int, values []float32, device Device) (*RawTensor, error) {
	return tensor.NewSparse(shape, indices, values, device)
}

// BroadcastShapes returns the NumPy broadcast of a and b and whether
// broadcasting was needed.
func BroadcastShapes(a, b Shape) (Shape, bool, error) {
	return tensor.BroadcastShapes(a, b)
}
