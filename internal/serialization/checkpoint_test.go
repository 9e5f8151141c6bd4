package serialization

import (
	"bytes"
	"encoding/binary"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/born-ml/bornopt/internal/tensor"
)

func mustRaw(t *testing.T, data []float32, shape tensor.Shape) *tensor.RawTensor {
	t.Helper()
	raw, err := tensor.RawFromSlice(data, shape, tensor.CPU)
	if err != nil {
		t.Fatalf("RawFromSlice: %v", err)
	}
	return raw
}

func sampleCheckpoint(t *testing.T) *Checkpoint {
	t.Helper()
	return &Checkpoint{
		Header: Header{
			Generator: "bornopt test",
			Optimizer: "padam",
			Epoch:     3,
			Step:      120,
			Loss:      0.25,
			Metadata:  map[string]string{"dataset": "synthetic"},
		},
		Model: map[string]*tensor.RawTensor{
			"0.weight": mustRaw(t, []float32{1, -2, 3.5, 4}, tensor.Shape{2, 2}),
			"0.bias":   mustRaw(t, []float32{0.5, -0.5}, tensor.Shape{2}),
		},
		Optimizer: map[string]*tensor.RawTensor{
			"exp_avg.0": mustRaw(t, []float32{0.1, 0.2, 0.3, 0.4}, tensor.Shape{2, 2}),
			"step":      mustRaw(t, []float32{120}, tensor.Shape{1}),
		},
	}
}

// TestCheckpoint_RoundTrip verifies that a written checkpoint reads back unchanged.
func TestCheckpoint_RoundTrip(t *testing.T) {
	ck := sampleCheckpoint(t)

	var buf bytes.Buffer
	if err := Write(&buf, ck); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	if ck.Header.RunID == "" {
		t.Error("Write should assign a run ID")
	}
	if ck.Header.CreatedAt.IsZero() {
		t.Error("Write should set CreatedAt")
	}

	got, err := Read(&buf)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}

	if got.Header.RunID != ck.Header.RunID || got.Header.Optimizer != "padam" ||
		got.Header.Epoch != 3 || got.Header.Step != 120 || got.Header.Loss != 0.25 {
		t.Errorf("header mismatch: got %+v", got.Header)
	}
	if got.Header.Metadata["dataset"] != "synthetic" {
		t.Errorf("metadata lost: %v", got.Header.Metadata)
	}

	for name, want := range ck.Model {
		compareRaw(t, name, got.Model[name], want)
	}
	for name, want := range ck.Optimizer {
		compareRaw(t, name, got.Optimizer[name], want)
	}
}

func compareRaw(t *testing.T, name string, got, want *tensor.RawTensor) {
	t.Helper()
	if got == nil {
		t.Errorf("tensor %q missing", name)
		return
	}
	if !got.Shape().Equal(want.Shape()) {
		t.Errorf("tensor %q shape: got %v, want %v", name, got.Shape(), want.Shape())
		return
	}
	for i, v := range want.Data() {
		if got.Data()[i] != v {
			t.Errorf("tensor %q[%d]: got %v, want %v", name, i, got.Data()[i], v)
		}
	}
}

// TestCheckpoint_Deterministic verifies equal checkpoints encode to equal bytes.
func TestCheckpoint_Deterministic(t *testing.T) {
	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	var a, b bytes.Buffer
	for _, buf := range []*bytes.Buffer{&a, &b} {
		ck := sampleCheckpoint(t)
		ck.Header.CreatedAt = created
		ck.Header.RunID = "fixed"
		if err := Write(buf, ck); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
	}

	if !bytes.Equal(a.Bytes(), b.Bytes()) {
		t.Error("encodings differ")
	}
}

// TestCheckpoint_DataIsAligned verifies tensor data starts on a 64-byte boundary.
func TestCheckpoint_DataIsAligned(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, sampleCheckpoint(t)); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	headerSize := binary.LittleEndian.Uint64(buf.Bytes()[12:20])
	dataStart := fixedHeaderSize + int(headerSize)
	dataStart += paddingFor(dataStart)

	if dataStart%HeaderAlignment != 0 {
		t.Errorf("data starts at %d, not aligned to %d", dataStart, HeaderAlignment)
	}
	// 4 + 2 + 4 + 1 float32 values.
	if got := buf.Len() - dataStart; got != 11*4 {
		t.Errorf("data section: got %d bytes, want %d", got, 11*4)
	}
}

// TestCheckpoint_ChecksumMismatch verifies corruption of the data section is detected.
func TestCheckpoint_ChecksumMismatch(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, sampleCheckpoint(t)); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	corrupted := buf.Bytes()
	corrupted[len(corrupted)-1] ^= 0xFF

	_, err := Read(bytes.NewReader(corrupted))
	if !errors.Is(err, ErrChecksumMismatch) {
		t.Errorf("expected ErrChecksumMismatch, got %v", err)
	}
}

// TestRead_InvalidMagic verifies non-checkpoint input is rejected.
func TestRead_InvalidMagic(t *testing.T) {
	input := bytes.Repeat([]byte{0}, fixedHeaderSize)
	copy(input, "BORN")

	_, err := Read(bytes.NewReader(input))
	if !errors.Is(err, ErrInvalidMagic) {
		t.Errorf("expected ErrInvalidMagic, got %v", err)
	}
}

// TestRead_UnsupportedVersion verifies unknown versions are rejected.
func TestRead_UnsupportedVersion(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, sampleCheckpoint(t)); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	data := buf.Bytes()
	binary.LittleEndian.PutUint32(data[4:8], 99)

	_, err := Read(bytes.NewReader(data))
	if !errors.Is(err, ErrUnsupportedVersion) {
		t.Errorf("expected ErrUnsupportedVersion, got %v", err)
	}
}

// TestRead_HeaderTooLarge verifies the header size limit.
func TestRead_HeaderTooLarge(t *testing.T) {
	input := make([]byte, fixedHeaderSize)
	copy(input, MagicBytes)
	binary.LittleEndian.PutUint32(input[4:8], FormatVersion)
	binary.LittleEndian.PutUint64(input[12:20], MaxHeaderSize+1)

	_, err := Read(bytes.NewReader(input))
	if !errors.Is(err, ErrHeaderTooLarge) {
		t.Errorf("expected ErrHeaderTooLarge, got %v", err)
	}
}

// TestRead_Truncated verifies truncated input fails cleanly.
func TestRead_Truncated(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, sampleCheckpoint(t)); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	if _, err := Read(bytes.NewReader(buf.Bytes()[:30])); err == nil {
		t.Error("expected error for truncated input")
	}
}

// TestWrite_RejectsSparse verifies sparse tensors cannot be stored.
func TestWrite_RejectsSparse(t *testing.T) {
	sparse, err := tensor.NewSparse(tensor.Shape{3}, []int{1}, []float32{1}, tensor.CPU)
	if err != nil {
		t.Fatal(err)
	}
	ck := &Checkpoint{Model: map[string]*tensor.RawTensor{"w": sparse}}

	if err := Write(&bytes.Buffer{}, ck); !errors.Is(err, ErrSparseTensor) {
		t.Errorf("expected ErrSparseTensor, got %v", err)
	}
}

// TestFile_RoundTrip verifies WriteFile and ReadFile.
func TestFile_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.bopt")

	ck := sampleCheckpoint(t)
	if err := WriteFile(path, ck); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	got, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if len(got.Model) != 2 || len(got.Optimizer) != 2 {
		t.Errorf("got %d model and %d optimizer tensors", len(got.Model), len(got.Optimizer))
	}

	if _, err := ReadFile(filepath.Join(t.TempDir(), "missing.bopt")); err == nil {
		t.Error("expected error for missing file")
	}
}

// TestComputeChecksum verifies SHA-256 checksum computation.
func TestComputeChecksum(t *testing.T) {
	checksum1 := ComputeChecksum([]byte("test data"))
	checksum2 := ComputeChecksum([]byte("test data"))
	if checksum1 != checksum2 {
		t.Error("Checksums should match for identical data")
	}
	if checksum1 == ComputeChecksum([]byte("different data")) {
		t.Error("Checksums should differ for different data")
	}
	if err := ValidateChecksum(checksum1, checksum2); err != nil {
		t.Errorf("Expected no error for matching checksums, got: %v", err)
	}
}
