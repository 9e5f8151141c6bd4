package optim

import (
	"fmt"

	"github.com/born-ml/bornopt/internal/nn"
	"github.com/born-ml/bornopt/internal/tensor"
)

// buffers maps each parameter to one of its optimizer state tensors.
type buffers[B tensor.Backend] map[*nn.Parameter[B]]*tensor.RawTensor

// get returns the buffer for param, creating it zero-filled on first use.
func (b buffers[B]) get(param *nn.Parameter[B], backend B) *tensor.RawTensor {
	buf, ok := b[param]
	if !ok {
		buf = tensor.Zeros(param.Tensor().Shape(), backend).Raw()
		b[param] = buf
	}
	return buf
}

// export copies every buffer into state under "<name>.<index>".
func (b buffers[B]) export(state map[string]*tensor.RawTensor, name string, params []*nn.Parameter[B]) {
	for i, param := range params {
		if buf, ok := b[param]; ok {
			state[stateKey(name, i)] = buf.Clone()
		}
	}
}

// load replaces the buffers with copies from state. Parameters without an
// entry start fresh on their next step.
func (b buffers[B]) load(state map[string]*tensor.RawTensor, name string, params []*nn.Parameter[B]) error {
	clear(b)
	for i, param := range params {
		key := stateKey(name, i)
		raw, ok := state[key]
		if !ok {
			continue
		}
		if raw.IsSparse() || !raw.Shape().Equal(param.Tensor().Shape()) {
			return fmt.Errorf("%w: %s: expected dense shape %v, got %v",
				ErrStateMismatch, key, param.Tensor().Shape(), raw.Shape())
		}
		b[param] = raw.Clone()
	}
	return nil
}

// exportCounter stores an integer counter as a single-element tensor.
func exportCounter(state map[string]*tensor.RawTensor, name string, v int) {
	state[name] = scalarState(float32(v))
}

// loadCounter reads a counter written by exportCounter. A missing counter
// reads as zero.
func loadCounter(state map[string]*tensor.RawTensor, name string) (int, error) {
	raw, ok := state[name]
	if !ok {
		return 0, nil
	}
	v, err := loadScalar(raw, name)
	if err != nil {
		return 0, err
	}
	if v < 0 || v != float32(int(v)) {
		return 0, fmt.Errorf("%w: %s: invalid counter value %g", ErrStateMismatch, name, v)
	}
	return int(v), nil
}

func scalarState(v float32) *tensor.RawTensor {
	raw := tensor.MustRaw(tensor.Shape{1}, tensor.CPU)
	raw.Data()[0] = v
	return raw
}

func loadScalar(raw *tensor.RawTensor, name string) (float32, error) {
	if raw.IsSparse() || raw.NumElements() != 1 {
		return 0, fmt.Errorf("%w: %s: expected a single-element tensor, got shape %v",
			ErrStateMismatch, name, raw.Shape())
	}
	return raw.Data()[0], nil
}
