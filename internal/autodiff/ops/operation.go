// Package ops defines operation interfaces and implementations for automatic differentiation.
//
// Each operation records its inputs and output during the forward pass and
// computes input gradients during the backward pass:
//   - AddOp, SubOp, MulOp, DivOp: element-wise with broadcast reduction
//   - MatMulOp: d(A@B)/dA = grad@B^T, d(A@B)/dB = A^T@grad
//   - TransposeOp, ReshapeOp: shape bookkeeping
//   - AddScalarOp, MulScalarOp, SqrtOp, ReLUOp: element-wise unary
//   - SumOp, SumDimOp: reductions
package ops

import "github.com/born-ml/bornopt/internal/tensor"

// Operation represents a differentiable operation in the computation graph.
type Operation interface {
	// Backward computes gradients for inputs given the output gradient.
	// Returns a slice of gradients corresponding to each input tensor.
	Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor

	// Inputs returns the input tensors for this operation.
	Inputs() []*tensor.RawTensor

	// Output returns the output tensor produced by this operation.
	Output() *tensor.RawTensor
}

// binaryOp holds the bookkeeping shared by two-input operations.
type binaryOp struct {
	inputs []*tensor.RawTensor // [a, b]
	output *tensor.RawTensor
}

func newBinaryOp(a, b, output *tensor.RawTensor) binaryOp {
	return binaryOp{inputs: []*tensor.RawTensor{a, b}, output: output}
}

// Inputs returns the input tensors [a, b].
func (op *binaryOp) Inputs() []*tensor.RawTensor { return op.inputs }

// Output returns the output tensor.
func (op *binaryOp) Output() *tensor.RawTensor { return op.output }

// unaryOp holds the bookkeeping shared by single-input operations.
type unaryOp struct {
	inputs []*tensor.RawTensor // [x]
	output *tensor.RawTensor
}

func newUnaryOp(x, output *tensor.RawTensor) unaryOp {
	return unaryOp{inputs: []*tensor.RawTensor{x}, output: output}
}

// Inputs returns the input tensor [x].
func (op *unaryOp) Inputs() []*tensor.RawTensor { return op.inputs }

// Output returns the output tensor.
func (op *unaryOp) Output() *tensor.RawTensor { return op.output }
