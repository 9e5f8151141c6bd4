package serialization

import (
	"errors"
	"testing"
)

// TestValidateTensorOffsets verifies overlap and bounds detection.
func TestValidateTensorOffsets(t *testing.T) {
	tests := []struct {
		name     string
		tensors  []TensorMeta
		dataSize int64
		wantErr  error
	}{
		{
			name: "valid",
			tensors: []TensorMeta{
				{Name: "a", Offset: 0, Size: 100},
				{Name: "b", Offset: 100, Size: 200},
			},
			dataSize: 300,
		},
		{
			name: "overlap",
			tensors: []TensorMeta{
				{Name: "a", Offset: 0, Size: 100},
				{Name: "b", Offset: 50, Size: 100},
			},
			dataSize: 200,
			wantErr:  ErrOffsetOverlap,
		},
		{
			name:     "out of bounds",
			tensors:  []TensorMeta{{Name: "a", Offset: 100, Size: 100}},
			dataSize: 150,
			wantErr:  ErrOutOfBounds,
		},
		{
			name:     "negative offset",
			tensors:  []TensorMeta{{Name: "a", Offset: -1, Size: 4}},
			dataSize: 100,
			wantErr:  ErrNegativeOffset,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTensorOffsets(tt.tensors, tt.dataSize)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

// TestValidateTensorName rejects malicious names.
func TestValidateTensorName(t *testing.T) {
	for _, name := range []string{"0.weight", "exp_avg.12", "step"} {
		if err := ValidateTensorName(name); err != nil {
			t.Errorf("%q: unexpected error %v", name, err)
		}
	}
	for _, name := range []string{"", "../etc/passwd", "a/b", "a\\b", "a\x00b"} {
		if err := ValidateTensorName(name); !errors.Is(err, ErrInvalidTensorName) {
			t.Errorf("%q: expected ErrInvalidTensorName, got %v", name, err)
		}
	}
}

// TestValidateHeader checks groups, duplicates and sizes.
func TestValidateHeader(t *testing.T) {
	valid := TensorMeta{Name: "w", Group: GroupModel, Shape: []int{2}, Offset: 0, Size: 8}

	if err := ValidateHeader(&Header{Tensors: []TensorMeta{valid}}, 8); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sameNameOtherGroup := valid
	sameNameOtherGroup.Group = GroupOptimizer
	sameNameOtherGroup.Offset = 8
	if err := ValidateHeader(&Header{Tensors: []TensorMeta{valid, sameNameOtherGroup}}, 16); err != nil {
		t.Errorf("same name in different groups should be allowed: %v", err)
	}

	duplicate := valid
	duplicate.Offset = 8
	err := ValidateHeader(&Header{Tensors: []TensorMeta{valid, duplicate}}, 16)
	var vErr *ValidationError
	if !errors.As(err, &vErr) || vErr.Type != "duplicate_name" {
		t.Errorf("expected duplicate_name, got %v", err)
	}

	badGroup := valid
	badGroup.Group = "other"
	if err := ValidateHeader(&Header{Tensors: []TensorMeta{badGroup}}, 8); err == nil {
		t.Error("expected error for unknown group")
	}

	badSize := valid
	badSize.Size = 12
	if err := ValidateHeader(&Header{Tensors: []TensorMeta{badSize}}, 12); !errors.Is(err, ErrOutOfBounds) {
		t.Errorf("expected size mismatch, got %v", err)
	}

	// 2^32 * 2^32 elements wraps to zero in int arithmetic.
	huge := valid
	huge.Shape = []int{1 << 32, 1 << 32}
	huge.Size = 0
	err = ValidateHeader(&Header{Tensors: []TensorMeta{huge}}, 8)
	if !errors.As(err, &vErr) || vErr.Type != "size_mismatch" {
		t.Errorf("expected size_mismatch for overflowing shape, got %v", err)
	}

	tooLarge := valid
	tooLarge.Shape = []int{4, 4}
	tooLarge.Size = 64
	err = ValidateHeader(&Header{Tensors: []TensorMeta{tooLarge}}, 8)
	if !errors.As(err, &vErr) || vErr.Type != "size_mismatch" {
		t.Errorf("expected size_mismatch for shape larger than data, got %v", err)
	}
}
