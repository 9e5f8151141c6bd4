package serialization

import (
	"time"
)

// Format constants.
const (
	MagicBytes      = "BOPT"
	FormatVersion   = 1
	HeaderAlignment = 64 // Tensor data starts on a 64-byte boundary
	ChecksumSize    = 32 // SHA-256 checksum size (32 bytes)
	fixedHeaderSize = 4 + 4 + 4 + 8 + ChecksumSize
	float32Size     = 4
)

// Flags for the .bopt format.
const (
	FlagHasOptimizer uint32 = 1 << 0 // optimizer state included
	FlagHasMetadata  uint32 = 1 << 1 // custom metadata included
)

// Tensor groups.
const (
	GroupModel     = "model"
	GroupOptimizer = "optimizer"
)

// Header represents the JSON header in a .bopt file.
type Header struct {
	FormatVersion   int               `json:"format_version"`
	Generator       string            `json:"generator"`  // Program that wrote the file (e.g. "bornopt 0.2.0")
	CreatedAt       time.Time         `json:"created_at"` // When the file was created
	RunID           string            `json:"run_id"`     // Training run identifier (UUID)
	Optimizer       string            `json:"optimizer"`  // Optimizer registry name
	OptimizerConfig map[string]any    `json:"optimizer_config,omitempty"`
	Epoch           int               `json:"epoch"`
	Step            int64             `json:"step"`
	Loss            float64           `json:"loss"`
	Tensors         []TensorMeta      `json:"tensors"`
	Metadata        map[string]string `json:"metadata,omitempty"`
}

// TensorMeta describes a tensor in the .bopt file.
type TensorMeta struct {
	Name   string `json:"name"`   // Tensor name (e.g., "0.weight", "exp_avg.0")
	Group  string `json:"group"`  // GroupModel or GroupOptimizer
	Shape  []int  `json:"shape"`  // Tensor shape
	Offset int64  `json:"offset"` // Offset in the data section
	Size   int64  `json:"size"`   // Size in bytes
}
