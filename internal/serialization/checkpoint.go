package serialization

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/born-ml/bornopt/internal/tensor"
)

// Checkpoint is the in-memory form of a .bopt file.
type Checkpoint struct {
	Header    Header
	Model     map[string]*tensor.RawTensor
	Optimizer map[string]*tensor.RawTensor
}

// Write encodes ck to w.
//
// Header.Tensors, FormatVersion and, when unset, CreatedAt and RunID are
// filled in; the caller's Header is updated accordingly. Tensors are written
// in sorted name order, so equal checkpoints encode to equal bytes.
func Write(w io.Writer, ck *Checkpoint) error {
	header := &ck.Header
	header.FormatVersion = FormatVersion
	if header.CreatedAt.IsZero() {
		header.CreatedAt = time.Now().UTC()
	}
	if header.RunID == "" {
		header.RunID = uuid.NewString()
	}

	var data bytes.Buffer
	header.Tensors = header.Tensors[:0]
	for _, group := range []struct {
		name    string
		tensors map[string]*tensor.RawTensor
	}{
		{GroupModel, ck.Model},
		{GroupOptimizer, ck.Optimizer},
	} {
		names := make([]string, 0, len(group.tensors))
		for name := range group.tensors {
			names = append(names, name)
		}
		slices.Sort(names)

		for _, name := range names {
			raw := group.tensors[name]
			if raw.IsSparse() {
				return fmt.Errorf("%s tensor %q: %w", group.name, name, ErrSparseTensor)
			}
			offset := int64(data.Len())
			writeFloat32s(&data, raw.Data())
			header.Tensors = append(header.Tensors, TensorMeta{
				Name:   name,
				Group:  group.name,
				Shape:  slices.Clone([]int(raw.Shape())),
				Offset: offset,
				Size:   int64(data.Len()) - offset,
			})
		}
	}

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("failed to marshal header: %w", err)
	}
	if len(headerJSON) > MaxHeaderSize {
		return ErrHeaderTooLarge
	}

	flags := uint32(0)
	if len(ck.Optimizer) > 0 {
		flags |= FlagHasOptimizer
	}
	if len(header.Metadata) > 0 {
		flags |= FlagHasMetadata
	}

	var fixed [fixedHeaderSize]byte
	copy(fixed[0:4], MagicBytes)
	binary.LittleEndian.PutUint32(fixed[4:8], FormatVersion)
	binary.LittleEndian.PutUint32(fixed[8:12], flags)
	binary.LittleEndian.PutUint64(fixed[12:20], uint64(len(headerJSON)))
	checksum := ComputeChecksum(data.Bytes())
	copy(fixed[20:], checksum[:])

	padding := paddingFor(fixedHeaderSize + len(headerJSON))

	for _, chunk := range [][]byte{fixed[:], headerJSON, make([]byte, padding), data.Bytes()} {
		if _, err := w.Write(chunk); err != nil {
			return fmt.Errorf("failed to write checkpoint: %w", err)
		}
	}
	return nil
}

// Read decodes a checkpoint from r, verifying the checksum and header.
func Read(r io.Reader) (*Checkpoint, error) {
	var fixed [fixedHeaderSize]byte
	if _, err := io.ReadFull(r, fixed[:]); err != nil {
		return nil, fmt.Errorf("failed to read fixed header: %w", err)
	}
	if string(fixed[0:4]) != MagicBytes {
		return nil, fmt.Errorf("%w: got %q", ErrInvalidMagic, fixed[0:4])
	}
	if version := binary.LittleEndian.Uint32(fixed[4:8]); version != FormatVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, version)
	}
	headerSize := binary.LittleEndian.Uint64(fixed[12:20])
	if headerSize > MaxHeaderSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrHeaderTooLarge, headerSize)
	}
	var stored [ChecksumSize]byte
	copy(stored[:], fixed[20:])

	headerJSON := make([]byte, headerSize)
	if _, err := io.ReadFull(r, headerJSON); err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	var header Header
	if err := json.Unmarshal(headerJSON, &header); err != nil {
		return nil, fmt.Errorf("failed to parse header: %w", err)
	}

	//nolint:gosec // G115: headerSize is bounded by MaxHeaderSize
	padding := paddingFor(fixedHeaderSize + int(headerSize))
	if _, err := io.CopyN(io.Discard, r, int64(padding)); err != nil {
		return nil, fmt.Errorf("failed to read padding: %w", err)
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read tensor data: %w", err)
	}
	if err := ValidateChecksum(ComputeChecksum(data), stored); err != nil {
		return nil, err
	}
	if err := ValidateHeader(&header, int64(len(data))); err != nil {
		return nil, err
	}

	ck := &Checkpoint{
		Header:    header,
		Model:     make(map[string]*tensor.RawTensor),
		Optimizer: make(map[string]*tensor.RawTensor),
	}
	for _, meta := range header.Tensors {
		raw, err := tensor.RawFromSlice(readFloat32s(data[meta.Offset:meta.Offset+meta.Size]), tensor.Shape(meta.Shape), tensor.CPU)
		if err != nil {
			return nil, fmt.Errorf("tensor %q: %w", meta.Name, err)
		}
		if meta.Group == GroupModel {
			ck.Model[meta.Name] = raw
		} else {
			ck.Optimizer[meta.Name] = raw
		}
	}
	return ck, nil
}

// WriteFile writes ck to path.
func WriteFile(path string, ck *Checkpoint) error {
	//nolint:gosec // G304: File path comes from user input, which is expected for checkpoint saving
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	if err := Write(file, ck); err != nil {
		_ = file.Close()
		return err
	}
	return file.Close()
}

// ReadFile reads a checkpoint from path.
func ReadFile(path string) (*Checkpoint, error) {
	//nolint:gosec // G304: File path comes from user input, which is expected for checkpoint loading
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer func() { _ = file.Close() }()
	return Read(file)
}

func paddingFor(pos int) int {
	return (HeaderAlignment - pos%HeaderAlignment) % HeaderAlignment
}

func writeFloat32s(buf *bytes.Buffer, values []float32) {
	var b [float32Size]byte
	for _, v := range values {
		binary.LittleEndian.PutUint32(b[:], math.Float32bits(v))
		buf.Write(b[:])
	}
}

func readFloat32s(data []byte) []float32 {
	out := make([]float32, len(data)/float32Size)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*float32Size:]))
	}
	return out
}
