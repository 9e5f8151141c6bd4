package optim

import (
	"math"

	"github.com/born-ml/bornopt/internal/nn"
	"github.com/born-ml/bornopt/internal/tensor"
)

// Adam implements the Adam (Adaptive Moment Estimation) optimizer.
//
// Update rule:
//
//	m_t = beta1 * m_{t-1} + (1-beta1) * gradient       // First moment
//	v_t = beta2 * v_{t-1} + (1-beta2) * gradient²      // Second moment
//	m_hat = m_t / (1 - beta1^t)                        // Bias correction
//	v_hat = v_t / (1 - beta2^t)                        // Bias correction
//	param = param - lr * m_hat / (sqrt(v_hat) + eps)  // Parameter update
//
// With AMSGrad the running maximum of v_t replaces v_t in the denominator.
// With WeightDecouple the optimizer is AdamW: weight decay shrinks the
// parameter directly instead of being added to the gradient.
//
// Reference: "Adam: A Method for Stochastic Optimization" (Kingma & Ba, 2014)
type Adam[B tensor.Backend] struct {
	base[B]
	beta1       float32
	beta2       float32
	eps         float32
	weightDecay float32
	decouple    bool
	amsgrad     bool
	t           int        // Timestep for bias correction
	m           buffers[B] // First moment estimates
	v           buffers[B] // Second moment estimates
	vMax        buffers[B] // AMSGrad running maximum
	backend     B
}

// AdamConfig holds configuration for Adam optimizer.
type AdamConfig struct {
	LR             float32    // Learning rate (default: 0.001)
	Betas          [2]float32 // Coefficients for computing running averages (default: [0.9, 0.999])
	Eps            float32    // Term for numerical stability (default: 1e-8)
	WeightDecay    float32    // Weight decay (default: 0.0)
	WeightDecouple bool       // Decoupled (AdamW-style) weight decay
	AMSGrad        bool       // Use the running maximum of the second moment
}

// NewAdam creates a new Adam optimizer.
//
// Default hyperparameters:
//   - LR: 0.001
//   - Beta1: 0.9
//   - Beta2: 0.999
//   - Eps: 1e-8
func NewAdam[B tensor.Backend](params []*nn.Parameter[B], config AdamConfig, backend B) (*Adam[B], error) {
	// Set defaults
	if config.LR == 0 {
		config.LR = 0.001
	}
	if config.Betas[0] == 0 {
		config.Betas[0] = 0.9
	}
	if config.Betas[1] == 0 {
		config.Betas[1] = 0.999
	}
	if config.Eps == 0 {
		config.Eps = 1e-8
	}

	if err := firstError(
		checkParams(params),
		validateLearningRate(config.LR),
		validateBetas(config.Betas),
		validateEpsilon(config.Eps),
		validateWeightDecay(config.WeightDecay),
	); err != nil {
		return nil, err
	}

	name := "adam"
	if config.WeightDecouple {
		name = "adamw"
	}

	return &Adam[B]{
		base:        base[B]{name: name, params: params, lr: config.LR},
		beta1:       config.Betas[0],
		beta2:       config.Betas[1],
		eps:         config.Eps,
		weightDecay: config.WeightDecay,
		decouple:    config.WeightDecouple,
		amsgrad:     config.AMSGrad,
		m:           make(buffers[B]),
		v:           make(buffers[B]),
		vMax:        make(buffers[B]),
		backend:     backend,
	}, nil
}

// Step performs a single optimization step using Adam algorithm.
//
// Parameters with no gradient are skipped.
func (a *Adam[B]) Step(grads map[*tensor.RawTensor]*tensor.RawTensor) error {
	if err := checkDenseGradients(a.name, a.params, grads); err != nil {
		return err
	}

	// Increment timestep
	a.t++

	biasCorrection1 := float32(1.0 - math.Pow(float64(a.beta1), float64(a.t)))
	biasCorrection2 := float32(1.0 - math.Pow(float64(a.beta2), float64(a.t)))

	for _, param := range a.params {
		grad, err := denseGradient(a.name, param, grads)
		if err != nil {
			return err
		}
		if grad == nil {
			continue
		}

		paramData := param.Raw().Data()
		grad = applyWeightDecay(paramData, grad, a.lr, a.weightDecay, a.decouple, false)

		mData := a.m.get(param, a.backend).Data()
		vData := a.v.get(param, a.backend).Data()
		var vMaxData []float32
		if a.amsgrad {
			vMaxData = a.vMax.get(param, a.backend).Data()
		}

		for i := range paramData {
			g := grad[i]
			mData[i] = a.beta1*mData[i] + (1.0-a.beta1)*g
			vData[i] = a.beta2*vData[i] + (1.0-a.beta2)*g*g

			v := vData[i]
			if a.amsgrad {
				vMaxData[i] = max(vMaxData[i], v)
				v = vMaxData[i]
			}

			mHat := mData[i] / biasCorrection1
			vHat := v / biasCorrection2
			paramData[i] -= a.lr * mHat / (float32(math.Sqrt(float64(vHat))) + a.eps)
		}
	}
	return nil
}

// GetTimestep returns the current timestep (number of steps taken).
func (a *Adam[B]) GetTimestep() int {
	return a.t
}

// StateDict returns the optimizer state for serialization.
//
// State keys: "exp_avg.{i}", "exp_avg_sq.{i}", "max_exp_avg_sq.{i}" (AMSGrad)
// and "step".
func (a *Adam[B]) StateDict() map[string]*tensor.RawTensor {
	state := make(map[string]*tensor.RawTensor)
	a.m.export(state, "exp_avg", a.params)
	a.v.export(state, "exp_avg_sq", a.params)
	if a.amsgrad {
		a.vMax.export(state, "max_exp_avg_sq", a.params)
	}
	exportCounter(state, "step", a.t)
	return state
}

// LoadStateDict restores state produced by StateDict.
func (a *Adam[B]) LoadStateDict(state map[string]*tensor.RawTensor) error {
	t, err := loadCounter(state, "step")
	if err != nil {
		return err
	}
	if err := firstError(
		a.m.load(state, "exp_avg", a.params),
		a.v.load(state, "exp_avg_sq", a.params),
		a.vMax.load(state, "max_exp_avg_sq", a.params),
	); err != nil {
		return err
	}
	a.t = t
	return nil
}
