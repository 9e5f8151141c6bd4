package optim

import "math"

// DynamicLossScaler adjusts a loss scale to keep scaled gradients finite.
//
// The scale shrinks by Factor when an overflow is reported (once the share of
// overflowing iterations since the last rescale reaches Tolerance) and grows
// by Factor after every Window consecutive clean iterations.
type DynamicLossScaler struct {
	scale     float64
	factor    float64
	window    int
	tolerance float64
	threshold float64 // minimum scale; 0 disables the floor

	iter                  int
	lastOverflowIter      int
	lastRescaleIter       int
	overflowsSinceRescale int

	// overflow is set when a gradient of the current backward pass contained
	// inf or NaN.
	overflow bool
}

// LossScalerConfig configures a DynamicLossScaler.
type LossScalerConfig struct {
	InitScale float32 // Initial scale (default: 2^16)
	Factor    float32 // Growth/shrink factor (default: 2)
	Window    int     // Clean iterations between increases (default: 1000)
	Tolerance float32 // Overflow ratio that triggers a decrease (default: 0)
	Threshold float32 // Lower bound for the scale (default: none)
}

// NewDynamicLossScaler creates a loss scaler.
func NewDynamicLossScaler(config LossScalerConfig) *DynamicLossScaler {
	if config.InitScale == 0 {
		config.InitScale = 1 << 16
	}
	if config.Factor == 0 {
		config.Factor = 2
	}
	if config.Window == 0 {
		config.Window = 1000
	}

	return &DynamicLossScaler{
		scale:            float64(config.InitScale),
		factor:           float64(config.Factor),
		window:           config.Window,
		tolerance:        float64(config.Tolerance),
		threshold:        float64(config.Threshold),
		lastOverflowIter: -1,
		lastRescaleIter:  -1,
	}
}

// Scale returns the current loss scale.
func (s *DynamicLossScaler) Scale() float32 {
	return float32(s.scale)
}

// UpdateScale records the outcome of one iteration.
func (s *DynamicLossScaler) UpdateScale(overflow bool) {
	itersSinceRescale := s.iter - s.lastRescaleIter

	if overflow {
		s.lastOverflowIter = s.iter
		s.overflowsSinceRescale++

		pctOverflow := float64(s.overflowsSinceRescale) / float64(itersSinceRescale)
		if pctOverflow >= s.tolerance {
			s.decreaseScale()
			s.lastRescaleIter = s.iter
			s.overflowsSinceRescale = 0
		}
	} else if (s.iter-s.lastOverflowIter)%s.window == 0 {
		s.scale *= s.factor
		s.lastRescaleIter = s.iter
	}

	s.iter++
}

func (s *DynamicLossScaler) decreaseScale() {
	s.scale /= s.factor
	if s.threshold > 0 {
		s.scale = math.Max(s.scale, s.threshold)
	}
}

// HasInfOrNaN reports whether any value is infinite or NaN.
func HasInfOrNaN(values []float32) bool {
	for _, v := range values {
		f := float64(v)
		if math.IsInf(f, 0) || math.IsNaN(f) {
			return true
		}
	}
	return false
}
