package optim

import (
	"fmt"
	"math"

	"github.com/born-ml/bornopt/internal/nn"
	"github.com/born-ml/bornopt/internal/tensor"
)

// MADGRAD implements the Momentumized, Adaptive, Dual averaged GRADient method.
//
// With lr' = lr + eps and lambda_k = lr' * sqrt(k + 1):
//
//	s_k    = s_{k-1} + lambda_k * g
//	v_k    = v_{k-1} + lambda_k * g²
//	z      = x0 - s_k / (cbrt(v_k) + eps)
//	param  = momentum * param + (1 - momentum) * z
//
// x0 is the parameter value at the first step when momentum > 0, and is
// recomputed from the current parameter otherwise. Sparse gradients are
// supported when momentum is 0 and weight decay is 0 or decoupled.
//
// Reference: "Adaptivity without Compromise: A Momentumized, Adaptive, Dual
// Averaged Gradient Method for Stochastic Optimization" (Defazio & Jelassi, 2021).
type MADGRAD[B tensor.Backend] struct {
	base[B]
	momentum    float32
	weightDecay float32
	decouple    bool
	eps         float32
	k           int // Step counter shared by all parameters
	gradSumSq   buffers[B]
	s           buffers[B]
	x0          buffers[B]
	backend     B
}

// MADGRADConfig holds configuration for the MADGRAD optimizer.
//
// Momentum and Eps are used as given; start from DefaultMADGRADConfig for
// the reference values.
type MADGRADConfig struct {
	LR            float32 // Learning rate (default: 1e-3)
	Momentum      float32 // Momentum value in [0, 1)
	WeightDecay   float32 // Weight decay (L2 penalty unless DecoupleDecay)
	DecoupleDecay bool    // AdamW-style decoupled weight decay
	Eps           float32 // Term added to the denominator
}

// DefaultMADGRADConfig returns lr 1e-3, momentum 0.9, eps 1e-6.
func DefaultMADGRADConfig() MADGRADConfig {
	return MADGRADConfig{LR: 1e-3, Momentum: 0.9, Eps: 1e-6}
}

// NewMADGRAD creates a new MADGRAD optimizer.
func NewMADGRAD[B tensor.Backend](params []*nn.Parameter[B], config MADGRADConfig, backend B) (*MADGRAD[B], error) {
	if config.LR == 0 {
		config.LR = 1e-3
	}

	if err := firstError(
		checkParams(params),
		validateLearningRate(config.LR),
		validateWeightDecay(config.WeightDecay),
		validateMomentum(config.Momentum),
		validateEpsilon(config.Eps),
	); err != nil {
		return nil, err
	}

	return &MADGRAD[B]{
		base:        base[B]{name: "madgrad", params: params, lr: config.LR},
		momentum:    config.Momentum,
		weightDecay: config.WeightDecay,
		decouple:    config.DecoupleDecay,
		eps:         config.Eps,
		gradSumSq:   make(buffers[B]),
		s:           make(buffers[B]),
		x0:          make(buffers[B]),
		backend:     backend,
	}, nil
}

// Step performs a single MADGRAD update.
func (m *MADGRAD[B]) Step(grads map[*tensor.RawTensor]*tensor.RawTensor) error {
	for _, param := range m.params {
		grad := getGradient(param, grads)
		if grad == nil {
			continue
		}
		if err := checkGradShape(param, grad); err != nil {
			return err
		}
		if !grad.IsSparse() {
			continue
		}
		if m.momentum > 0 {
			return &SparseGradientError{Optimizer: m.name, Note: "momentum > 0.0"}
		}
		if m.weightDecay > 0 && !m.decouple {
			return &SparseGradientError{Optimizer: m.name, Note: "weight_decay"}
		}
	}

	lr := float64(m.lr) + float64(m.eps)
	lambda := lr * math.Sqrt(float64(m.k+1))

	for _, param := range m.params {
		grad := getGradient(param, grads)
		if grad == nil {
			continue
		}

		if _, ok := m.gradSumSq[param]; !ok && m.momentum > 0 {
			m.x0[param] = param.Raw().Clone()
		}
		gss := m.gradSumSq.get(param, m.backend).Data()
		s := m.s.get(param, m.backend).Data()

		if grad.IsSparse() {
			m.sparseUpdate(param.Raw().Data(), grad, gss, s, lambda)
		} else {
			m.denseUpdate(param, grad.Data(), gss, s, lr, lambda)
		}
	}

	m.k++
	return nil
}

func (m *MADGRAD[B]) denseUpdate(param *nn.Parameter[B], grad, gss, s []float32, lr, lambda float64) {
	p := param.Raw().Data()
	eps := float64(m.eps)
	mom := float64(m.momentum)

	if m.weightDecay > 0 && !m.decouple {
		grad = applyWeightDecay(p, grad, 0, m.weightDecay, false, false)
	}

	var x0 []float32
	if m.momentum > 0 {
		x0 = m.x0[param].Data()
	}

	decay := 0.0
	if m.weightDecay > 0 && m.decouple {
		decay = lr * float64(m.weightDecay)
	}

	for i := range p {
		pOld := float64(p[i])

		var origin float64
		if x0 != nil {
			origin = float64(x0[i])
		} else {
			origin = pOld + float64(s[i])/rms(float64(gss[i]), eps)
		}

		g := float64(grad[i])
		gss[i] = float32(float64(gss[i]) + lambda*g*g)
		s[i] = float32(float64(s[i]) + lambda*g)

		z := origin - float64(s[i])/rms(float64(gss[i]), eps)

		next := z
		if x0 != nil {
			next = pOld*mom + (1-mom)*z
		}
		next -= decay * pOld
		p[i] = float32(next)
	}
}

func (m *MADGRAD[B]) sparseUpdate(p []float32, grad *tensor.RawTensor, gss, s []float32, lambda float64) {
	eps := float64(m.eps)
	values := grad.Values()

	for j, idx := range grad.Indices() {
		x0 := float64(p[idx]) + float64(s[idx])/rms(float64(gss[idx]), eps)

		g := float64(values[j])
		gss[idx] = float32(float64(gss[idx]) + lambda*g*g)
		s[idx] = float32(float64(s[idx]) + lambda*g)

		p[idx] = float32(x0 - float64(s[idx])/rms(float64(gss[idx]), eps))
	}
}

// rms returns cbrt(v) + eps, with a zero denominator mapped to +Inf so that
// untouched coordinates contribute nothing.
func rms(v, eps float64) float64 {
	r := math.Cbrt(v) + eps
	if r == 0 {
		return math.Inf(1)
	}
	return r
}

// StateDict returns the optimizer state for serialization.
//
// State keys: "grad_sum_sq.{i}", "s.{i}", "x0.{i}" (momentum > 0) and "k".
func (m *MADGRAD[B]) StateDict() map[string]*tensor.RawTensor {
	state := make(map[string]*tensor.RawTensor)
	m.gradSumSq.export(state, "grad_sum_sq", m.params)
	m.s.export(state, "s", m.params)
	m.x0.export(state, "x0", m.params)
	exportCounter(state, "k", m.k)
	return state
}

// LoadStateDict restores state produced by StateDict.
func (m *MADGRAD[B]) LoadStateDict(state map[string]*tensor.RawTensor) error {
	k, err := loadCounter(state, "k")
	if err != nil {
		return err
	}
	if err := firstError(
		m.gradSumSq.load(state, "grad_sum_sq", m.params),
		m.s.load(state, "s", m.params),
		m.x0.load(state, "x0", m.params),
	); err != nil {
		return err
	}
	if m.momentum > 0 {
		for _, param := range m.params {
			_, hasSum := m.gradSumSq[param]
			_, hasX0 := m.x0[param]
			if hasSum && !hasX0 {
				return fmt.Errorf("%w: missing x0 for parameter %q", ErrStateMismatch, param.Name())
			}
		}
	}
	m.k = k
	return nil
}
