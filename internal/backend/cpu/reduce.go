package cpu

import (
	"fmt"

	"github.com/born-ml/bornopt/internal/tensor"
)

// Sum reduces all elements to a scalar (shape []).
// Accumulates in float64 to limit rounding error on long vectors.
func (cpu *CPUBackend) Sum(x *tensor.RawTensor) *tensor.RawTensor {
	var sum float64
	for _, v := range x.Data() {
		sum += float64(v)
	}
	result := tensor.MustRaw(tensor.Shape{}, cpu.device)
	result.Data()[0] = float32(sum)
	return result
}

// SumDim sums tensor elements along the specified dimension.
//
// Parameters:
//   - dim: dimension to reduce (supports negative indexing: -1 = last dim)
//   - keepDim: if true, keep the reduced dimension with size 1; if false, remove it
func (cpu *CPUBackend) SumDim(x *tensor.RawTensor, dim int, keepDim bool) *tensor.RawTensor {
	shape := x.Shape()
	ndim := len(shape)
	if dim < 0 {
		dim = ndim + dim
	}
	if dim < 0 || dim >= ndim {
		panic(fmt.Sprintf("sumdim: dimension %d out of range for %dD tensor", dim, ndim))
	}

	keptShape := shape.Clone()
	keptShape[dim] = 1

	result := tensor.MustRaw(keptShape, cpu.device)
	dst, src := result.Data(), x.Data()

	// outer × dim × inner decomposition of the row-major layout.
	inner := 1
	for _, d := range shape[dim+1:] {
		inner *= d
	}
	outer := shape.NumElements() / (shape[dim] * inner)
	for o := range outer {
		for d := range shape[dim] {
			base := (o*shape[dim] + d) * inner
			for i := range inner {
				dst[o*inner+i] += src[base+i]
			}
		}
	}

	if keepDim {
		return result
	}

	outShape := make(tensor.Shape, 0, ndim-1)
	outShape = append(outShape, shape[:dim]...)
	outShape = append(outShape, shape[dim+1:]...)
	out, err := result.Reshaped(outShape)
	if err != nil {
		panic(fmt.Sprintf("sumdim: %v", err))
	}
	return out
}
