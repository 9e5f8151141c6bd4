package nn

import (
	"fmt"

	"github.com/born-ml/bornopt/internal/tensor"
)

// Sequential is a container module that chains multiple modules together.
//
// Each module's output becomes the next module's input.
//
//	model := nn.NewSequential(
//	    nn.NewLinear(4, 16, rng, backend),
//	    nn.NewReLU[Backend](),
//	    nn.NewLinear(16, 1, rng, backend),
//	)
type Sequential[B tensor.Backend] struct {
	modules []Module[B]
}

// NewSequential creates a new Sequential container.
func NewSequential[B tensor.Backend](modules ...Module[B]) *Sequential[B] {
	return &Sequential[B]{
		modules: modules,
	}
}

// Forward applies all modules in sequence.
func (s *Sequential[B]) Forward(input *tensor.Tensor[B]) *tensor.Tensor[B] {
	output := input
	for _, module := range s.modules {
		output = module.Forward(output)
	}
	return output
}

// Parameters returns all trainable parameters from all modules, in order.
func (s *Sequential[B]) Parameters() []*Parameter[B] {
	var params []*Parameter[B]
	for _, module := range s.modules {
		params = append(params, module.Parameters()...)
	}
	return params
}

// NamedParameter pairs a parameter with its qualified name ("0.weight").
type NamedParameter[B tensor.Backend] struct {
	Name      string
	Parameter *Parameter[B]
}

// NamedParameters returns parameters with names prefixed by module index.
func (s *Sequential[B]) NamedParameters() []NamedParameter[B] {
	var out []NamedParameter[B]
	for i, module := range s.modules {
		for _, p := range module.Parameters() {
			out = append(out, NamedParameter[B]{Name: fmt.Sprintf("%d.%s", i, p.Name()), Parameter: p})
		}
	}
	return out
}

// StateDict returns a map of qualified parameter names to deep copies of
// their raw tensors.
func (s *Sequential[B]) StateDict() map[string]*tensor.RawTensor {
	state := make(map[string]*tensor.RawTensor)
	for _, np := range s.NamedParameters() {
		state[np.Name] = np.Parameter.Raw().Clone()
	}
	return state
}

// LoadStateDict copies values from state into the parameters in place.
//
// Every parameter must be present with a matching shape.
func (s *Sequential[B]) LoadStateDict(state map[string]*tensor.RawTensor) error {
	for _, np := range s.NamedParameters() {
		src, ok := state[np.Name]
		if !ok {
			return fmt.Errorf("load state dict: missing parameter %q", np.Name)
		}
		if err := np.Parameter.Raw().CopyFrom(src); err != nil {
			return fmt.Errorf("load state dict: parameter %q: %w", np.Name, err)
		}
	}
	return nil
}

// Len returns the number of modules.
func (s *Sequential[B]) Len() int {
	return len(s.modules)
}
