package tensor

import (
	"fmt"
	"slices"
)

// Device represents the compute device for tensor operations.
type Device int

// Supported compute devices.
const (
	CPU Device = iota
)

// String returns a human-readable device name.
func (d Device) String() string {
	switch d {
	case CPU:
		return "CPU"
	default:
		return "Unknown"
	}
}

// RawTensor is the low-level float32 tensor representation.
//
// A RawTensor is either dense (data holds NumElements values in row-major
// order) or sparse. Sparse tensors use a coalesced COO layout over flat
// row-major indices: indices is strictly increasing and data[i] is the value
// at indices[i]. Sparse tensors only appear as gradients.
type RawTensor struct {
	data    []float32
	shape   Shape
	device  Device
	indices []int // nil for dense tensors
	sparse  bool
}

// NewRaw creates a new zero-filled dense RawTensor with the given shape.
func NewRaw(shape Shape, device Device) (*RawTensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shape: %w", err)
	}

	return &RawTensor{
		data:   make([]float32, shape.NumElements()),
		shape:  shape.Clone(),
		device: device,
	}, nil
}

// MustRaw is like NewRaw but panics on an invalid shape.
// Kernels use it for result tensors whose shape they already validated.
func MustRaw(shape Shape, device Device) *RawTensor {
	r, err := NewRaw(shape, device)
	if err != nil {
		panic(err)
	}
	return r
}

// RawFromSlice creates a dense RawTensor holding a copy of data.
func RawFromSlice(data []float32, shape Shape, device Device) (*RawTensor, error) {
	if shape.NumElements() != len(data) {
		return nil, fmt.Errorf("shape %v requires %d elements, but got %d", shape, shape.NumElements(), len(data))
	}
	r, err := NewRaw(shape, device)
	if err != nil {
		return nil, err
	}
	copy(r.data, data)
	return r, nil
}

// NewSparse creates a sparse RawTensor from flat row-major indices and values.
//
// Indices may be unsorted and may repeat; duplicates are summed, matching
// torch's coalesce(). Indices outside [0, shape.NumElements()) are rejected.
func NewSparse(shape Shape, indices []int, values []float32, device Device) (*RawTensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shape: %w", err)
	}
	if len(indices) != len(values) {
		return nil, fmt.Errorf("sparse tensor: %d indices but %d values", len(indices), len(values))
	}

	n := shape.NumElements()
	order := make([]int, len(indices))
	for i, idx := range indices {
		if idx < 0 || idx >= n {
			return nil, fmt.Errorf("sparse tensor: index %d out of range for shape %v", idx, shape)
		}
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int { return indices[a] - indices[b] })

	outIdx := make([]int, 0, len(indices))
	outVal := make([]float32, 0, len(values))
	for _, o := range order {
		if k := len(outIdx); k > 0 && outIdx[k-1] == indices[o] {
			outVal[k-1] += values[o]
			continue
		}
		outIdx = append(outIdx, indices[o])
		outVal = append(outVal, values[o])
	}

	return &RawTensor{
		data:    outVal,
		shape:   shape.Clone(),
		device:  device,
		indices: outIdx,
		sparse:  true,
	}, nil
}

// Shape returns the tensor's shape.
func (r *RawTensor) Shape() Shape {
	return r.shape
}

// Device returns the tensor's compute device.
func (r *RawTensor) Device() Device {
	return r.device
}

// NumElements returns the number of elements of the dense view.
func (r *RawTensor) NumElements() int {
	return r.shape.NumElements()
}

// IsSparse reports whether the tensor uses the sparse COO layout.
func (r *RawTensor) IsSparse() bool {
	return r.sparse
}

// Data returns the dense float32 storage.
// WARNING: Direct access to underlying memory. Panics for sparse tensors.
func (r *RawTensor) Data() []float32 {
	if r.sparse {
		panic("tensor: Data called on sparse tensor (use Values or ToDense)")
	}
	return r.data
}

// Indices returns the coalesced flat indices of a sparse tensor.
// Returns nil for dense tensors.
func (r *RawTensor) Indices() []int {
	return r.indices
}

// Values returns the stored values: the non-zero values of a sparse tensor,
// or the full storage of a dense one.
func (r *RawTensor) Values() []float32 {
	return r.data
}

// ToDense returns a dense copy. Dense tensors are deep-copied.
func (r *RawTensor) ToDense() *RawTensor {
	if !r.sparse {
		return r.Clone()
	}
	out := MustRaw(r.shape, r.device)
	for i, idx := range r.indices {
		out.data[idx] = r.data[i]
	}
	return out
}

// Clone returns a deep copy of the tensor.
func (r *RawTensor) Clone() *RawTensor {
	return &RawTensor{
		data:    slices.Clone(r.data),
		shape:   r.shape.Clone(),
		device:  r.device,
		indices: slices.Clone(r.indices),
		sparse:  r.sparse,
	}
}

// Fill sets every element of a dense tensor to v.
func (r *RawTensor) Fill(v float32) {
	data := r.Data()
	for i := range data {
		data[i] = v
	}
}

// CopyFrom overwrites the dense storage with src's values.
// Both tensors must be dense with equal shapes.
func (r *RawTensor) CopyFrom(src *RawTensor) error {
	if r.sparse || src.sparse {
		return fmt.Errorf("CopyFrom: sparse tensors are not supported")
	}
	if !r.shape.Equal(src.shape) {
		return fmt.Errorf("CopyFrom: shape mismatch %v vs %v", r.shape, src.shape)
	}
	copy(r.data, src.data)
	return nil
}

// withShape returns a dense tensor sharing r's storage under a new shape.
func (r *RawTensor) withShape(shape Shape) *RawTensor {
	return &RawTensor{data: r.data, shape: shape.Clone(), device: r.device}
}

// Reshaped returns a deep copy of a dense tensor with a new shape of equal size.
func (r *RawTensor) Reshaped(shape Shape) (*RawTensor, error) {
	if r.sparse {
		return nil, fmt.Errorf("cannot reshape sparse tensor")
	}
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shape: %w", err)
	}
	if shape.NumElements() != r.NumElements() {
		return nil, fmt.Errorf("cannot reshape %v (%d elements) to %v (%d elements)",
			r.shape, r.NumElements(), shape, shape.NumElements())
	}
	return r.Clone().withShape(shape), nil
}
