package optim

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidHyperparameter indicates a hyperparameter outside its valid range.
	ErrInvalidHyperparameter = errors.New("invalid hyperparameter")

	// ErrNoSparseGradient indicates an optimizer received a sparse gradient it
	// cannot handle.
	ErrNoSparseGradient = errors.New("sparse gradient is not supported")

	// ErrNoParameters indicates an optimizer was built with no parameters.
	ErrNoParameters = errors.New("optimizer got an empty parameter list")

	// ErrUnknownOptimizer indicates a registry lookup for an unknown name.
	ErrUnknownOptimizer = errors.New("unknown optimizer")

	// ErrFusedOptimizer indicates a fused optimizer was requested through the
	// step-based constructor.
	ErrFusedOptimizer = errors.New("optimizer is fused and has no Step; use NewLOMO")

	// ErrClipCoefMissing indicates FusedBackward was called with gradient norm
	// clipping enabled before GradNorm computed a clip coefficient.
	ErrClipCoefMissing = errors.New("clip_grad_norm is set but no clip coefficient was computed; call GradNorm first")

	// ErrLossScaleWithoutClip indicates dynamic loss scaling was requested
	// without gradient norm clipping.
	ErrLossScaleWithoutClip = errors.New("loss scaling requires clip_grad_norm > 0")

	// ErrStateMismatch indicates a state dict that does not fit the optimizer.
	ErrStateMismatch = errors.New("optimizer state mismatch")
)

// HyperparameterError describes a rejected hyperparameter value.
type HyperparameterError struct {
	Name       string
	Value      float64
	Constraint string
}

// Error returns the error message.
func (e *HyperparameterError) Error() string {
	return fmt.Sprintf("%s: %s=%g, must be %s", ErrInvalidHyperparameter, e.Name, e.Value, e.Constraint)
}

// Unwrap returns ErrInvalidHyperparameter.
func (e *HyperparameterError) Unwrap() error {
	return ErrInvalidHyperparameter
}

// SparseGradientError reports which optimizer rejected a sparse gradient.
type SparseGradientError struct {
	Optimizer string
	Note      string // optional reason, e.g. "momentum > 0.0"
}

// Error returns the error message.
func (e *SparseGradientError) Error() string {
	if e.Note != "" {
		return fmt.Sprintf("[%s] does not support sparse gradient (%s)", e.Optimizer, e.Note)
	}
	return fmt.Sprintf("[%s] does not support sparse gradient", e.Optimizer)
}

// Unwrap returns ErrNoSparseGradient.
func (e *SparseGradientError) Unwrap() error {
	return ErrNoSparseGradient
}
