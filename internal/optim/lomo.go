package optim

import (
	"math"

	"github.com/born-ml/bornopt/internal/autodiff"
	"github.com/born-ml/bornopt/internal/nn"
	"github.com/born-ml/bornopt/internal/tensor"
)

// LOMO implements LOw-Memory Optimization.
//
// LOMO fuses gradient computation and parameter update: during the backward
// pass each parameter is updated with plain SGD (param -= lr * grad) as soon
// as its gradient is final, and the gradient is released immediately. The
// full gradient map is never materialized.
//
// Gradient norm clipping needs the global norm before any update, so it takes
// two backward passes over the same tape: GradNorm measures, FusedBackward
// updates.
//
//	lomo, err := optim.NewLOMO(model.Parameters(), optim.LOMOConfig{ClipGradNorm: 1}, backend)
//	...
//	if err := lomo.GradNorm(loss); err != nil { ... }
//	if err := lomo.FusedBackward(loss, lr); err != nil { ... }
//
// Reference: "Full Parameter Fine-tuning for Large Language Models with
// Limited Resources" (Lv et al., 2023), arXiv:2306.09782.
type LOMO[B autodiff.BackwardCapable] struct {
	base[B]
	backend       B
	leaves        []*tensor.RawTensor
	byRaw         map[*tensor.RawTensor]*nn.Parameter[B]
	clipGradNorm  float32
	clipGradValue float32
	scaler        *DynamicLossScaler

	clipCoef    float32
	hasClipCoef bool
	lastNorm    float32
	skipped     bool

	// per-pass state
	gatherNorm bool
	sumSq      float64
}

// LOMOConfig holds configuration for the LOMO optimizer.
type LOMOConfig struct {
	LR            float32 // Initial learning rate (default: 1e-3)
	ClipGradNorm  float32 // Global gradient norm bound; 0 disables
	ClipGradValue float32 // Per-element gradient bound; 0 disables
	LossScale     bool    // Enable dynamic loss scaling (requires ClipGradNorm > 0)
	InitScale     float32 // Initial loss scale (default: 2^16)
}

// NewLOMO creates a new LOMO optimizer.
func NewLOMO[B autodiff.BackwardCapable](params []*nn.Parameter[B], config LOMOConfig, backend B) (*LOMO[B], error) {
	if config.LR == 0 {
		config.LR = 1e-3
	}

	if err := firstError(
		checkParams(params),
		validateLearningRate(config.LR),
		validateNonNegative("clip_grad_norm", config.ClipGradNorm),
		validateNonNegative("clip_grad_value", config.ClipGradValue),
		validateNonNegative("init_scale", config.InitScale),
	); err != nil {
		return nil, err
	}
	if config.LossScale && config.ClipGradNorm <= 0 {
		return nil, ErrLossScaleWithoutClip
	}

	l := &LOMO[B]{
		base:          base[B]{name: "lomo", params: params, lr: config.LR},
		backend:       backend,
		leaves:        make([]*tensor.RawTensor, len(params)),
		byRaw:         make(map[*tensor.RawTensor]*nn.Parameter[B], len(params)),
		clipGradNorm:  config.ClipGradNorm,
		clipGradValue: config.ClipGradValue,
	}
	for i, param := range params {
		l.leaves[i] = param.Raw()
		l.byRaw[param.Raw()] = param
	}
	if config.LossScale {
		l.scaler = NewDynamicLossScaler(LossScalerConfig{InitScale: config.InitScale})
	}
	return l, nil
}

// GradNorm runs a backward pass that only measures gradients.
//
// It records the global L2 norm of the (unscaled) parameter gradients and,
// when gradient norm clipping is enabled, sets the clip coefficient
// min(clip_grad_norm / (norm + 1e-6), 1) used by the next FusedBackward.
// No parameter is modified. On overflow the loss scale is reduced, the
// coefficient is left unchanged and the next FusedBackward is skipped.
func (l *LOMO[B]) GradNorm(loss *tensor.Tensor[B]) error {
	l.gatherNorm = true
	l.sumSq = 0
	defer func() { l.gatherNorm = false }()

	if l.scaler != nil {
		l.scaler.overflow = false
	}

	autodiff.BackwardHooked(loss, l.backend, l.lossScale(), l.leaves, l.fuse)

	if l.scaler != nil && l.scaler.overflow {
		l.scaler.UpdateScale(true)
		return nil
	}

	total := math.Sqrt(l.sumSq)
	l.lastNorm = float32(total)
	if l.clipGradNorm > 0 {
		l.clipCoef = float32(math.Min(float64(l.clipGradNorm)/(total+1e-6), 1))
		l.hasClipCoef = true
	}
	return nil
}

// FusedBackward sets the learning rate, then runs the backward pass for loss
// updating every parameter as soon as its gradient is final.
//
// Each gradient is unscaled (loss scaling), clamped to ±clip_grad_value and
// multiplied by the clip coefficient before the update. If GradNorm or this
// pass detects an overflow, remaining updates are skipped and Skipped reports
// true.
func (l *LOMO[B]) FusedBackward(loss *tensor.Tensor[B], lr float32) error {
	if err := validateLearningRate(lr); err != nil {
		return err
	}
	l.lr = lr
	l.skipped = false

	if l.scaler != nil && l.scaler.overflow {
		// GradNorm overflowed and already lowered the scale.
		l.scaler.overflow = false
		l.skipped = true
		return nil
	}
	if l.clipGradNorm > 0 && !l.hasClipCoef {
		return ErrClipCoefMissing
	}

	autodiff.BackwardHooked(loss, l.backend, l.lossScale(), l.leaves, l.fuse)

	if l.scaler != nil {
		l.skipped = l.scaler.overflow
		l.scaler.overflow = false
		l.scaler.UpdateScale(l.skipped)
	}
	return nil
}

// fuse is the gradient hook for both passes.
func (l *LOMO[B]) fuse(leaf, grad *tensor.RawTensor) {
	param, ok := l.byRaw[leaf]
	if !ok {
		return
	}

	values := grad.Values()
	if l.scaler != nil {
		if l.scaler.overflow {
			return
		}
		if HasInfOrNaN(values) {
			l.scaler.overflow = true
			return
		}
	}

	inv := float32(1) / l.lossScale()

	if l.gatherNorm {
		var sumSq float64
		for _, g := range values {
			v := float64(g * inv)
			sumSq += v * v
		}
		l.sumSq += sumSq
		return
	}

	p := param.Raw().Data()
	if grad.IsSparse() {
		for j, idx := range grad.Indices() {
			p[idx] -= l.lr * l.adjust(values[j]*inv)
		}
		return
	}
	for i := range p {
		p[i] -= l.lr * l.adjust(values[i]*inv)
	}
}

// adjust applies value clipping and the clip coefficient to one element.
func (l *LOMO[B]) adjust(g float32) float32 {
	if l.clipGradValue > 0 {
		g = min(max(g, -l.clipGradValue), l.clipGradValue)
	}
	if l.clipGradNorm > 0 && l.hasClipCoef {
		g *= l.clipCoef
	}
	return g
}

func (l *LOMO[B]) lossScale() float32 {
	if l.scaler == nil {
		return 1
	}
	return l.scaler.Scale()
}

// LossScale returns the current loss scale (1 without loss scaling).
func (l *LOMO[B]) LossScale() float32 {
	return l.lossScale()
}

// ClipCoef returns the clip coefficient computed by the last successful
// GradNorm, and whether one has been computed.
func (l *LOMO[B]) ClipCoef() (float32, bool) {
	return l.clipCoef, l.hasClipCoef
}

// GradNormValue returns the global gradient norm measured by the last
// successful GradNorm.
func (l *LOMO[B]) GradNormValue() float32 {
	return l.lastNorm
}

// Skipped reports whether the last FusedBackward skipped its update because
// of a gradient overflow.
func (l *LOMO[B]) Skipped() bool {
	return l.skipped
}

// ClipsByNorm reports whether gradient norm clipping is enabled, in which
// case GradNorm must precede every FusedBackward.
func (l *LOMO[B]) ClipsByNorm() bool {
	return l.clipGradNorm > 0
}

// StateDict exports the loss scale and clip coefficient.
func (l *LOMO[B]) StateDict() map[string]*tensor.RawTensor {
	state := make(map[string]*tensor.RawTensor)
	if l.scaler != nil {
		state["loss_scale"] = scalarState(l.scaler.Scale())
	}
	if l.hasClipCoef {
		state["clip_coef"] = scalarState(l.clipCoef)
	}
	return state
}

// LoadStateDict restores state produced by StateDict.
func (l *LOMO[B]) LoadStateDict(state map[string]*tensor.RawTensor) error {
	if raw, ok := state["loss_scale"]; ok && l.scaler != nil {
		v, err := loadScalar(raw, "loss_scale")
		if err != nil {
			return err
		}
		l.scaler.scale = float64(v)
	}
	if raw, ok := state["clip_coef"]; ok {
		v, err := loadScalar(raw, "clip_coef")
		if err != nil {
			return err
		}
		l.clipCoef = v
		l.hasClipCoef = true
	}
	return nil
}
