package optim

import (
	"fmt"
	"slices"
	"strings"

	"github.com/born-ml/bornopt/internal/autodiff"
	"github.com/born-ml/bornopt/internal/nn"
	"github.com/born-ml/bornopt/internal/tensor"
)

// Hyperparams is the union of every optimizer's settings, as read from a
// configuration file. Zero values select each optimizer's defaults; Momentum
// and Eps are pointers because zero is a meaningful setting for them.
type Hyperparams struct {
	LR             float32    `yaml:"lr"`
	Betas          [2]float32 `yaml:"betas"`
	Momentum       *float32   `yaml:"momentum"`
	WeightDecay    float32    `yaml:"weight_decay"`
	WeightDecouple bool       `yaml:"weight_decouple"`
	FixedDecay     bool       `yaml:"fixed_decay"`
	Eps            *float32   `yaml:"eps"`
	AMSGrad        bool       `yaml:"amsgrad"`
	Partial        float32    `yaml:"partial"`

	// LOMO
	ClipGradNorm  float32 `yaml:"clip_grad_norm"`
	ClipGradValue float32 `yaml:"clip_grad_value"`
	LossScale     bool    `yaml:"loss_scale"`
	InitScale     float32 `yaml:"init_scale"`
}

func (h Hyperparams) momentum(def float32) float32 {
	if h.Momentum == nil {
		return def
	}
	return *h.Momentum
}

func (h Hyperparams) eps(def float32) float32 {
	if h.Eps == nil {
		return def
	}
	return *h.Eps
}

// LOMOConfig returns the LOMO settings contained in h.
func (h Hyperparams) LOMOConfig() LOMOConfig {
	return LOMOConfig{
		LR:            h.LR,
		ClipGradNorm:  h.ClipGradNorm,
		ClipGradValue: h.ClipGradValue,
		LossScale:     h.LossScale,
		InitScale:     h.InitScale,
	}
}

var stepOptimizers = []string{"adam", "adamw", "madgrad", "padam", "sgd"}

var fusedOptimizers = []string{"lomo"}

// Names returns every supported optimizer name, sorted.
func Names() []string {
	names := slices.Concat(stepOptimizers, fusedOptimizers)
	slices.Sort(names)
	return names
}

// IsFused reports whether name is a fused optimizer built with NewLOMO
// rather than New.
func IsFused(name string) bool {
	return slices.Contains(fusedOptimizers, strings.ToLower(name))
}

// New creates a step-based optimizer by case-insensitive name.
//
// Fused optimizers return ErrFusedOptimizer; unknown names ErrUnknownOptimizer.
func New[B tensor.Backend](name string, params []*nn.Parameter[B], hp Hyperparams, backend B) (Optimizer, error) {
	switch strings.ToLower(name) {
	case "sgd":
		return build(NewSGD(params, SGDConfig{
			LR:          hp.LR,
			Momentum:    hp.momentum(0),
			WeightDecay: hp.WeightDecay,
		}, backend))
	case "adam", "adamw":
		return build(NewAdam(params, AdamConfig{
			LR:             hp.LR,
			Betas:          hp.Betas,
			Eps:            hp.eps(0),
			WeightDecay:    hp.WeightDecay,
			WeightDecouple: hp.WeightDecouple || strings.EqualFold(name, "adamw"),
			AMSGrad:        hp.AMSGrad,
		}, backend))
	case "padam":
		return build(NewPAdam(params, PAdamConfig{
			LR:             hp.LR,
			Betas:          hp.Betas,
			Partial:        hp.Partial,
			WeightDecay:    hp.WeightDecay,
			WeightDecouple: hp.WeightDecouple,
			FixedDecay:     hp.FixedDecay,
			Eps:            hp.eps(0),
		}, backend))
	case "madgrad":
		def := DefaultMADGRADConfig()
		return build(NewMADGRAD(params, MADGRADConfig{
			LR:            hp.LR,
			Momentum:      hp.momentum(def.Momentum),
			WeightDecay:   hp.WeightDecay,
			DecoupleDecay: hp.WeightDecouple,
			Eps:           hp.eps(def.Eps),
		}, backend))
	case "lomo":
		return nil, fmt.Errorf("%s: %w", name, ErrFusedOptimizer)
	default:
		return nil, fmt.Errorf("%w: %q (known: %s)", ErrUnknownOptimizer, name, strings.Join(Names(), ", "))
	}
}

// build drops the typed nil a failed constructor returns.
func build(o Optimizer, err error) (Optimizer, error) {
	if err != nil {
		return nil, err
	}
	return o, nil
}

// NewFused creates a fused optimizer by case-insensitive name.
func NewFused[B autodiff.BackwardCapable](name string, params []*nn.Parameter[B], hp Hyperparams, backend B) (*LOMO[B], error) {
	if !IsFused(name) {
		return nil, fmt.Errorf("%w: %q is not a fused optimizer", ErrUnknownOptimizer, name)
	}
	return NewLOMO(params, hp.LOMOConfig(), backend)
}
