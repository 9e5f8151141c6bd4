// Package train runs optimizers on small regression problems.
//
// It provides a synthetic dataset, a Trainer that drives either a
// step-based optimizer or the fused LOMO optimizer, checkpointing of whole
// runs and a concurrent runner for benchmarks.
package train

import (
	"fmt"
	"math/rand"

	"github.com/born-ml/bornopt/internal/tensor"
)

// Dataset is an in-memory regression dataset.
// X has shape [n, features] and Y has shape [n, 1].
type Dataset struct {
	X *tensor.RawTensor
	Y *tensor.RawTensor

	// Weights holds the generating coefficients; the bias is last.
	Weights []float32
}

// Batch is a contiguous slice of a Dataset.
type Batch struct {
	X *tensor.RawTensor
	Y *tensor.RawTensor
}

// SyntheticRegression samples n points of y = x·w + b + noise·ε with x, w, b
// and ε drawn from N(0, 1).
func SyntheticRegression(n, features int, noise float32, rng *rand.Rand) (*Dataset, error) {
	if n <= 0 || features <= 0 {
		return nil, fmt.Errorf("synthetic regression: need n > 0 and features > 0, got n=%d features=%d", n, features)
	}
	if noise < 0 {
		return nil, fmt.Errorf("synthetic regression: noise must be >= 0, got %g", noise)
	}

	weights := make([]float32, features+1)
	for i := range weights {
		weights[i] = float32(rng.NormFloat64())
	}
	bias := weights[features]

	x := tensor.MustRaw(tensor.Shape{n, features}, tensor.CPU)
	y := tensor.MustRaw(tensor.Shape{n, 1}, tensor.CPU)
	xd, yd := x.Data(), y.Data()
	for i := range n {
		row := xd[i*features : (i+1)*features]
		target := bias
		for j := range row {
			row[j] = float32(rng.NormFloat64())
			target += row[j] * weights[j]
		}
		yd[i] = target + noise*float32(rng.NormFloat64())
	}

	return &Dataset{X: x, Y: y, Weights: weights}, nil
}

// Len returns the number of samples.
func (d *Dataset) Len() int {
	return d.X.Shape()[0]
}

// Features returns the number of input features.
func (d *Dataset) Features() int {
	return d.X.Shape()[1]
}

// Batches splits the dataset into batches of size rows in order.
// The last batch holds the remainder.
func (d *Dataset) Batches(size int) []Batch {
	if size <= 0 {
		size = d.Len()
	}
	features := d.Features()
	xd, yd := d.X.Data(), d.Y.Data()

	batches := make([]Batch, 0, (d.Len()+size-1)/size)
	for start := 0; start < d.Len(); start += size {
		end := min(start+size, d.Len())
		rows := end - start
		x, _ := tensor.RawFromSlice(xd[start*features:end*features], tensor.Shape{rows, features}, tensor.CPU)
		y, _ := tensor.RawFromSlice(yd[start:end], tensor.Shape{rows, 1}, tensor.CPU)
		batches = append(batches, Batch{X: x, Y: y})
	}
	return batches
}
