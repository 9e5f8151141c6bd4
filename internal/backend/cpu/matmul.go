package cpu

import (
	"fmt"

	"github.com/born-ml/bornopt/internal/parallel"
	"github.com/born-ml/bornopt/internal/tensor"
)

// MatMul performs matrix multiplication.
// For 2D tensors: (M, K) @ (K, N) -> (M, N)
// Rows of the result are computed in parallel for large M*N.
func (cpu *CPUBackend) MatMul(a, b *tensor.RawTensor) *tensor.RawTensor {
	aShape, bShape := a.Shape(), b.Shape()
	if len(aShape) != 2 || len(bShape) != 2 {
		panic(fmt.Sprintf("matmul: only 2D tensors supported, got %dD and %dD", len(aShape), len(bShape)))
	}

	m, k := aShape[0], aShape[1]
	kAlt, n := bShape[0], bShape[1]
	if k != kAlt {
		panic(fmt.Sprintf("matmul: shape mismatch [%d,%d] @ [%d,%d]", m, k, kAlt, n))
	}

	result := tensor.MustRaw(tensor.Shape{m, n}, cpu.device)
	c, aData, bData := result.Data(), a.Data(), b.Data()

	rows := parallel.Config{Enabled: cpu.parallel.Enabled, NumWorkers: cpu.parallel.NumWorkers, MinChunkSize: 1}
	if m*n < 2*cpu.parallel.MinChunkSize {
		rows = parallel.Sequential()
	}

	// i-k-j loop order keeps the inner loop contiguous in both b and c.
	parallel.For(m, func(i int) {
		row := c[i*n : (i+1)*n]
		for kk := range k {
			av := aData[i*k+kk]
			if av == 0 {
				continue
			}
			bRow := bData[kk*n : (kk+1)*n]
			for j := range row {
				row[j] += av * bRow[j]
			}
		}
	}, rows)

	return result
}

// Transpose swaps the two axes of a 2D tensor.
func (cpu *CPUBackend) Transpose(t *tensor.RawTensor) *tensor.RawTensor {
	shape := t.Shape()
	if len(shape) != 2 {
		panic(fmt.Sprintf("transpose: only 2D tensors supported, got %dD", len(shape)))
	}

	rows, cols := shape[0], shape[1]
	result := tensor.MustRaw(tensor.Shape{cols, rows}, cpu.device)
	src, dst := t.Data(), result.Data()

	for i := range rows {
		for j := range cols {
			dst[j*rows+i] = src[i*cols+j]
		}
	}
	return result
}
