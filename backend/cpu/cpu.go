// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package cpu provides the pure Go float32 backend.
package cpu

import (
	internalcpu "github.com/born-ml/bornopt/internal/backend/cpu"
	"github.com/born-ml/bornopt/tensor"
)

// Backend represents the CPU backend implementation.
//
// Element-wise kernels split large tensors across goroutines.
type Backend = internalcpu.CPUBackend

// Compile-time check that Backend implements tensor.Backend.
var _ tensor.Backend = (*Backend)(nil)

// New creates a new CPU backend.
//
// Example:
//
//	backend := cpu.New()
//	x := tensor.Zeros(tensor.Shape{2, 3}, backend)
func New() *Backend {
	return internalcpu.New()
}
