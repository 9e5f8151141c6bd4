package optim

import (
	"math"

	"github.com/born-ml/bornopt/internal/nn"
	"github.com/born-ml/bornopt/internal/tensor"
)

// PAdam implements Partially Adaptive Momentum Estimation.
//
// PAdam interpolates between SGD with momentum and AMSGrad by raising the
// adaptive denominator to a partial power p in (0, 1/2]:
//
//	m_t = beta1 * m_{t-1} + (1-beta1) * gradient
//	v_t = beta2 * v_{t-1} + (1-beta2) * gradient²
//	v_max = max(v_max, v_t)
//	denom = (sqrt(v_max) / sqrt(1 - beta2^t) + eps)^(2p)
//	param = param - lr / (1 - beta1^t) * m_t / denom
//
// p = 1/2 recovers AMSGrad; p -> 0 approaches SGD with momentum.
//
// Reference: "Closing the Generalization Gap of Adaptive Gradient Methods in
// Training Deep Neural Networks" (Chen et al., 2018), arXiv:1806.06763.
type PAdam[B tensor.Backend] struct {
	base[B]
	beta1       float32
	beta2       float32
	partial     float32
	eps         float32
	weightDecay float32
	decouple    bool
	fixed       bool
	t           int
	expAvg      buffers[B]
	expAvgSq    buffers[B]
	maxExpAvgSq buffers[B]
	backend     B
}

// PAdamConfig holds configuration for the PAdam optimizer.
type PAdamConfig struct {
	LR             float32    // Learning rate (default: 0.1)
	Betas          [2]float32 // Moment coefficients (default: [0.9, 0.999])
	Partial        float32    // Partially adaptive exponent (default: 0.25, range: (0, 0.5])
	WeightDecay    float32    // Weight decay (default: 0.0)
	WeightDecouple bool       // Decoupled weight decay, scaled by lr
	FixedDecay     bool       // With WeightDecouple, decay without the lr factor
	Eps            float32    // Term for numerical stability (default: 1e-8)
}

// NewPAdam creates a new PAdam optimizer.
func NewPAdam[B tensor.Backend](params []*nn.Parameter[B], config PAdamConfig, backend B) (*PAdam[B], error) {
	// Set defaults
	if config.LR == 0 {
		config.LR = 1e-1
	}
	if config.Betas == [2]float32{} {
		config.Betas = [2]float32{0.9, 0.999}
	}
	if config.Partial == 0 {
		config.Partial = 0.25
	}
	if config.Eps == 0 {
		config.Eps = 1e-8
	}

	if err := firstError(
		checkParams(params),
		validateLearningRate(config.LR),
		validateBetas(config.Betas),
		validatePartial(config.Partial),
		validateWeightDecay(config.WeightDecay),
		validateEpsilon(config.Eps),
	); err != nil {
		return nil, err
	}

	return &PAdam[B]{
		base:        base[B]{name: "padam", params: params, lr: config.LR},
		beta1:       config.Betas[0],
		beta2:       config.Betas[1],
		partial:     config.Partial,
		eps:         config.Eps,
		weightDecay: config.WeightDecay,
		decouple:    config.WeightDecouple,
		fixed:       config.FixedDecay,
		expAvg:      make(buffers[B]),
		expAvgSq:    make(buffers[B]),
		maxExpAvgSq: make(buffers[B]),
		backend:     backend,
	}, nil
}

func validatePartial(partial float32) error {
	if partial <= 0 || partial > 0.5 {
		return &HyperparameterError{Name: "partial", Value: float64(partial), Constraint: "in (0, 0.5]"}
	}
	return nil
}

// Step performs a single PAdam update. Sparse gradients are rejected.
func (p *PAdam[B]) Step(grads map[*tensor.RawTensor]*tensor.RawTensor) error {
	if err := checkDenseGradients(p.name, p.params, grads); err != nil {
		return err
	}

	p.t++

	biasCorrection1 := 1.0 - math.Pow(float64(p.beta1), float64(p.t))
	biasCorrection2Sq := math.Sqrt(1.0 - math.Pow(float64(p.beta2), float64(p.t)))
	stepSize := float32(float64(p.lr) / biasCorrection1)
	exponent := float64(2 * p.partial)

	for _, param := range p.params {
		grad, err := denseGradient(p.name, param, grads)
		if err != nil {
			return err
		}
		if grad == nil {
			continue
		}

		paramData := param.Raw().Data()
		grad = applyWeightDecay(paramData, grad, p.lr, p.weightDecay, p.decouple, p.fixed)

		m := p.expAvg.get(param, p.backend).Data()
		v := p.expAvgSq.get(param, p.backend).Data()
		vMax := p.maxExpAvgSq.get(param, p.backend).Data()

		for i := range paramData {
			g := grad[i]
			m[i] = p.beta1*m[i] + (1-p.beta1)*g
			v[i] = p.beta2*v[i] + (1-p.beta2)*g*g
			vMax[i] = max(vMax[i], v[i])

			denom := math.Sqrt(float64(vMax[i]))/biasCorrection2Sq + float64(p.eps)
			paramData[i] -= stepSize * m[i] / float32(math.Pow(denom, exponent))
		}
	}
	return nil
}

// StateDict returns the optimizer state for serialization.
//
// State keys: "exp_avg.{i}", "exp_avg_sq.{i}", "max_exp_avg_sq.{i}", "step".
func (p *PAdam[B]) StateDict() map[string]*tensor.RawTensor {
	state := make(map[string]*tensor.RawTensor)
	p.expAvg.export(state, "exp_avg", p.params)
	p.expAvgSq.export(state, "exp_avg_sq", p.params)
	p.maxExpAvgSq.export(state, "max_exp_avg_sq", p.params)
	exportCounter(state, "step", p.t)
	return state
}

// LoadStateDict restores state produced by StateDict.
func (p *PAdam[B]) LoadStateDict(state map[string]*tensor.RawTensor) error {
	t, err := loadCounter(state, "step")
	if err != nil {
		return err
	}
	if err := firstError(
		p.expAvg.load(state, "exp_avg", p.params),
		p.expAvgSq.load(state, "exp_avg_sq", p.params),
		p.maxExpAvgSq.load(state, "max_exp_avg_sq", p.params),
	); err != nil {
		return err
	}
	p.t = t
	return nil
}
