package autodiff

import (
	"github.com/born-ml/bornopt/internal/autodiff/ops"
	"github.com/born-ml/bornopt/internal/tensor"
)

// GradientTape records operations during the forward pass and computes
// gradients during the backward pass using reverse-mode automatic differentiation.
//
// Usage:
//
//	tape := NewGradientTape()
//	tape.StartRecording()
//	// ... perform operations ...
//	gradients := tape.Backward(outputGrad, backend)
type GradientTape struct {
	operations []ops.Operation // Recorded operations (in execution order)
	recording  bool            // Whether tape is currently recording
}

// GradHook receives the final gradient of a watched leaf tensor.
//
// grad is owned by the tape and must be treated as read-only; it is released
// as soon as the hook returns.
type GradHook func(leaf, grad *tensor.RawTensor)

// NewGradientTape creates a new gradient tape.
func NewGradientTape() *GradientTape {
	return &GradientTape{
		operations: make([]ops.Operation, 0, 64), // Pre-allocate for common case
		recording:  false,
	}
}

// StartRecording enables operation recording.
func (t *GradientTape) StartRecording() {
	t.recording = true
}

// StopRecording disables operation recording.
func (t *GradientTape) StopRecording() {
	t.recording = false
}

// IsRecording returns true if the tape is currently recording operations.
func (t *GradientTape) IsRecording() bool {
	return t.recording
}

// Record adds an operation to the tape.
// Only records if the tape is currently recording.
func (t *GradientTape) Record(op ops.Operation) {
	if t.recording {
		t.operations = append(t.operations, op)
	}
}

// NumOps returns the number of recorded operations.
func (t *GradientTape) NumOps() int {
	return len(t.operations)
}

// Clear resets the tape, removing all recorded operations.
// Recording state is preserved.
func (t *GradientTape) Clear() {
	clear(t.operations)
	t.operations = t.operations[:0]
}

// Backward computes gradients for all inputs by walking the tape in reverse.
//
// Algorithm:
//  1. Start with the output gradient (typically ones for scalar loss)
//  2. Walk operations in reverse order
//  3. For each operation, compute input gradients using chain rule
//  4. Accumulate gradients when the same tensor is used multiple times
//
// The output gradient is attached to the output of the last recorded
// operation. Returns a map from RawTensor to its accumulated gradient.
// The tape is left intact, so Backward may be called again.
func (t *GradientTape) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) map[*tensor.RawTensor]*tensor.RawTensor {
	if len(t.operations) == 0 {
		return make(map[*tensor.RawTensor]*tensor.RawTensor)
	}
	return t.BackwardFrom(t.operations[len(t.operations)-1].Output(), outputGrad, backend)
}

// BackwardFrom is like Backward but seeds outputGrad at root, which need not
// be the output of the last recorded operation.
func (t *GradientTape) BackwardFrom(root, outputGrad *tensor.RawTensor, backend tensor.Backend) map[*tensor.RawTensor]*tensor.RawTensor {
	grads := make(map[*tensor.RawTensor]*tensor.RawTensor)
	if len(t.operations) == 0 {
		return grads
	}

	defer t.pauseRecording()()

	grads[root] = outputGrad

	for i := len(t.operations) - 1; i >= 0; i-- {
		op := t.operations[i]
		grad, ok := grads[op.Output()]
		if !ok {
			continue
		}
		accumulate(op.Inputs(), op.Backward(grad, backend), grads, backend)
	}

	return grads
}

// BackwardHooked walks the tape from root like BackwardFrom but never
// materializes the full gradient map.
//
// A gradient is dropped as soon as the operation producing its tensor has been
// differentiated. For every tensor in leaves, hook is called exactly once, at
// the point where no remaining operation can contribute to its gradient.
// Leaves that did not take part in the recorded computation are not reported.
//
// This is the fused backward pass used by LOMO: the hook applies the update
// for one parameter and its gradient is freed before the next layer's
// gradients are computed.
func (t *GradientTape) BackwardHooked(
	root, outputGrad *tensor.RawTensor,
	backend tensor.Backend,
	leaves []*tensor.RawTensor,
	hook GradHook,
) {
	if len(t.operations) == 0 {
		return
	}

	defer t.pauseRecording()()

	watched := make(map[*tensor.RawTensor]bool, len(leaves))
	for _, leaf := range leaves {
		watched[leaf] = true
	}

	// pending counts the not-yet-differentiated consumers of each tensor.
	pending := make(map[*tensor.RawTensor]int)
	for _, op := range t.operations {
		for _, in := range op.Inputs() {
			pending[in]++
		}
	}

	grads := make(map[*tensor.RawTensor]*tensor.RawTensor)
	grads[root] = outputGrad

	for i := len(t.operations) - 1; i >= 0; i-- {
		op := t.operations[i]
		out := op.Output()
		grad, ok := grads[out]
		delete(grads, out)

		inputs := op.Inputs()
		if ok {
			accumulate(inputs, op.Backward(grad, backend), grads, backend)
		}

		for _, in := range inputs {
			pending[in]--
			if pending[in] > 0 {
				continue
			}
			if !watched[in] {
				continue
			}
			if g, has := grads[in]; has {
				hook(in, g)
				delete(grads, in)
			}
		}
	}
}

// pauseRecording stops recording during backward so gradient computations do
// not land on the tape. The returned func restores the previous state.
func (t *GradientTape) pauseRecording() func() {
	wasRecording := t.recording
	t.recording = false
	return func() {
		t.recording = wasRecording
	}
}

// accumulate adds each input gradient into grads.
func accumulate(
	inputs []*tensor.RawTensor,
	inputGrads []*tensor.RawTensor,
	grads map[*tensor.RawTensor]*tensor.RawTensor,
	backend tensor.Backend,
) {
	for j, input := range inputs {
		if j >= len(inputGrads) || inputGrads[j] == nil {
			continue
		}
		if existing, ok := grads[input]; ok {
			grads[input] = backend.Add(existing, inputGrads[j])
		} else {
			grads[input] = inputGrads[j]
		}
	}
}
