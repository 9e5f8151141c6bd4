package optim_test

import (
	"math"
	"testing"

	"github.com/born-ml/bornopt/internal/optim"
	"github.com/stretchr/testify/assert"
)

func TestDynamicLossScaler_UpdateScale(t *testing.T) {
	tests := []struct {
		name      string
		config    optim.LossScalerConfig
		overflows []bool
		want      []float32 // scale after each update
	}{
		{
			name:      "defaults",
			config:    optim.LossScalerConfig{},
			overflows: []bool{false},
			want:      []float32{1 << 16},
		},
		{
			name:      "grows after window clean iterations",
			config:    optim.LossScalerConfig{InitScale: 8, Window: 3},
			overflows: []bool{false, false, false, false, false, false},
			want:      []float32{8, 8, 16, 16, 16, 32},
		},
		{
			name:      "single overflow shrinks with zero tolerance",
			config:    optim.LossScalerConfig{InitScale: 8, Window: 1000},
			overflows: []bool{true, true},
			want:      []float32{4, 2},
		},
		{
			name:      "tolerance delays shrink",
			config:    optim.LossScalerConfig{InitScale: 8, Window: 1000, Tolerance: 0.6},
			overflows: []bool{false, true, true},
			want:      []float32{8, 8, 4},
		},
		{
			name:      "overflow restarts growth window",
			config:    optim.LossScalerConfig{InitScale: 8, Window: 2},
			overflows: []bool{false, true, false, false},
			want:      []float32{8, 4, 4, 8},
		},
		{
			name:      "threshold floor",
			config:    optim.LossScalerConfig{InitScale: 4, Window: 1000, Threshold: 3},
			overflows: []bool{true, true},
			want:      []float32{3, 3},
		},
		{
			name:      "custom factor",
			config:    optim.LossScalerConfig{InitScale: 9, Factor: 3, Window: 1000},
			overflows: []bool{true},
			want:      []float32{3},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scaler := optim.NewDynamicLossScaler(tt.config)
			got := make([]float32, 0, len(tt.overflows))
			for _, overflow := range tt.overflows {
				scaler.UpdateScale(overflow)
				got = append(got, scaler.Scale())
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestHasInfOrNaN(t *testing.T) {
	tests := []struct {
		name   string
		values []float32
		want   bool
	}{
		{"finite", []float32{0, -1, 3.5, math.MaxFloat32}, false},
		{"empty", nil, false},
		{"positive inf", []float32{1, float32(math.Inf(1))}, true},
		{"negative inf", []float32{float32(math.Inf(-1)), 1}, true},
		{"nan", []float32{float32(math.NaN())}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, optim.HasInfOrNaN(tt.values))
		})
	}
}
