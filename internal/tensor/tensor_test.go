package tensor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShape_NumElements(t *testing.T) {
	assert.Equal(t, 1, Shape{}.NumElements())
	assert.Equal(t, 6, Shape{2, 3}.NumElements())
	assert.Equal(t, 24, Shape{2, 3, 4}.NumElements())
}

func TestShape_Validate(t *testing.T) {
	require.NoError(t, Shape{1, 2}.Validate())
	require.NoError(t, Shape{}.Validate())
	require.Error(t, Shape{2, 0}.Validate())
	require.Error(t, Shape{-1}.Validate())
}

func TestShape_ComputeStrides(t *testing.T) {
	assert.Equal(t, []int{12, 4, 1}, Shape{2, 3, 4}.ComputeStrides())
	assert.Empty(t, Shape{}.ComputeStrides())
}

func TestBroadcastShapes(t *testing.T) {
	tests := []struct {
		name      string
		a, b      Shape
		want      Shape
		broadcast bool
		wantErr   bool
	}{
		{"equal", Shape{3, 5}, Shape{3, 5}, Shape{3, 5}, false, false},
		{"column", Shape{3, 1}, Shape{3, 5}, Shape{3, 5}, true, false},
		{"row", Shape{1, 5}, Shape{3, 5}, Shape{3, 5}, true, false},
		{"rank", Shape{5}, Shape{3, 5}, Shape{3, 5}, true, false},
		{"scalar", Shape{}, Shape{2, 2}, Shape{2, 2}, true, false},
		{"incompatible", Shape{3, 4}, Shape{3, 5}, nil, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, broadcast, err := BroadcastShapes(tt.a, tt.b)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.broadcast, broadcast)
		})
	}
}

func TestRawFromSlice_SizeMismatch(t *testing.T) {
	_, err := RawFromSlice([]float32{1, 2, 3}, Shape{2, 2}, CPU)
	require.Error(t, err)
}

func TestRawTensor_CloneIsDeep(t *testing.T) {
	r, err := RawFromSlice([]float32{1, 2}, Shape{2}, CPU)
	require.NoError(t, err)

	c := r.Clone()
	c.Data()[0] = 42

	assert.Equal(t, float32(1), r.Data()[0])
}

func TestNewSparse_Coalesces(t *testing.T) {
	s, err := NewSparse(Shape{2, 3}, []int{4, 1, 4, 0}, []float32{1, 2, 3, 4}, CPU)
	require.NoError(t, err)

	assert.True(t, s.IsSparse())
	assert.Equal(t, []int{0, 1, 4}, s.Indices())
	assert.Equal(t, []float32{4, 2, 4}, s.Values())

	dense := s.ToDense()
	assert.False(t, dense.IsSparse())
	assert.Equal(t, []float32{4, 2, 0, 0, 4, 0}, dense.Data())
}

func TestNewSparse_Errors(t *testing.T) {
	_, err := NewSparse(Shape{2}, []int{2}, []float32{1}, CPU)
	require.Error(t, err)

	_, err = NewSparse(Shape{2}, []int{0, 1}, []float32{1}, CPU)
	require.Error(t, err)
}

func TestRawTensor_DataPanicsOnSparse(t *testing.T) {
	s, err := NewSparse(Shape{2}, []int{0}, []float32{1}, CPU)
	require.NoError(t, err)
	assert.Panics(t, func() { _ = s.Data() })
}

func TestRawTensor_CopyFrom(t *testing.T) {
	dst := MustRaw(Shape{2}, CPU)
	src, _ := RawFromSlice([]float32{3, 4}, Shape{2}, CPU)

	require.NoError(t, dst.CopyFrom(src))
	assert.Equal(t, []float32{3, 4}, dst.Data())

	other := MustRaw(Shape{3}, CPU)
	require.Error(t, dst.CopyFrom(other))
}

func TestRawTensor_Reshaped(t *testing.T) {
	r, _ := RawFromSlice([]float32{1, 2, 3, 4, 5, 6}, Shape{2, 3}, CPU)

	out, err := r.Reshaped(Shape{3, 2})
	require.NoError(t, err)
	assert.Equal(t, Shape{3, 2}, out.Shape())
	assert.Equal(t, r.Data(), out.Data())

	_, err = r.Reshaped(Shape{4})
	require.Error(t, err)
}
