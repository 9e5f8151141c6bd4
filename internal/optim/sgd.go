package optim

import (
	"github.com/born-ml/bornopt/internal/nn"
	"github.com/born-ml/bornopt/internal/tensor"
)

// SGD implements Stochastic Gradient Descent optimizer with optional momentum.
//
// Update rule without momentum:
//
//	param = param - lr * gradient
//
// Update rule with momentum:
//
//	velocity = momentum * velocity + gradient
//	param = param - lr * velocity
//
// Weight decay, when set, is added to the gradient (L2 penalty).
//
// Example:
//
//	optimizer, err := optim.NewSGD(model.Parameters(), optim.SGDConfig{
//	    LR:       0.01,
//	    Momentum: 0.9,
//	}, backend)
type SGD[B tensor.Backend] struct {
	base[B]
	momentum    float32
	weightDecay float32
	velocities  buffers[B]
	backend     B
}

// SGDConfig holds configuration for SGD optimizer.
type SGDConfig struct {
	LR          float32 // Learning rate (default: 0.01)
	Momentum    float32 // Momentum factor (default: 0.0, range: [0, 1))
	WeightDecay float32 // L2 penalty (default: 0.0)
}

// NewSGD creates a new SGD optimizer.
//
// Returns an error if params is empty or a hyperparameter is out of range.
func NewSGD[B tensor.Backend](params []*nn.Parameter[B], config SGDConfig, backend B) (*SGD[B], error) {
	// Set defaults
	if config.LR == 0 {
		config.LR = 0.01
	}

	if err := firstError(
		checkParams(params),
		validateLearningRate(config.LR),
		validateMomentum(config.Momentum),
		validateWeightDecay(config.WeightDecay),
	); err != nil {
		return nil, err
	}

	return &SGD[B]{
		base:        base[B]{name: "sgd", params: params, lr: config.LR},
		momentum:    config.Momentum,
		weightDecay: config.WeightDecay,
		velocities:  make(buffers[B]),
		backend:     backend,
	}, nil
}

// Step performs a single optimization step.
//
// Parameters with no gradient (not in computational graph) are skipped.
func (s *SGD[B]) Step(grads map[*tensor.RawTensor]*tensor.RawTensor) error {
	if err := checkDenseGradients(s.name, s.params, grads); err != nil {
		return err
	}

	for _, param := range s.params {
		grad, err := denseGradient(s.name, param, grads)
		if err != nil {
			return err
		}
		if grad == nil {
			// Parameter didn't participate in forward pass, skip
			continue
		}

		paramData := param.Raw().Data()
		grad = applyWeightDecay(paramData, grad, s.lr, s.weightDecay, false, false)

		if s.momentum == 0 {
			// Simple SGD: param -= lr * grad
			for i := range paramData {
				paramData[i] -= s.lr * grad[i]
			}
			continue
		}

		// velocity = momentum * velocity + grad; param -= lr * velocity
		velocity := s.velocities.get(param, s.backend).Data()
		for i := range paramData {
			velocity[i] = s.momentum*velocity[i] + grad[i]
			paramData[i] -= s.lr * velocity[i]
		}
	}
	return nil
}

// StateDict returns the optimizer state for serialization.
//
// For SGD with momentum, this exports velocity buffers for each parameter.
// Without momentum, returns an empty map.
//
// State keys: "velocity.{param_index}" -> velocity tensor.
func (s *SGD[B]) StateDict() map[string]*tensor.RawTensor {
	state := make(map[string]*tensor.RawTensor)
	if s.momentum != 0 {
		s.velocities.export(state, "velocity", s.params)
	}
	return state
}

// LoadStateDict loads optimizer state from serialization.
//
// If momentum is 0, the provided state is ignored.
func (s *SGD[B]) LoadStateDict(state map[string]*tensor.RawTensor) error {
	if s.momentum == 0 {
		return nil
	}
	return s.velocities.load(state, "velocity", s.params)
}
