// Package metrics exposes Prometheus collectors for training runs.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Training holds the collectors updated by the trainer.
// A nil *Training is valid and records nothing.
type Training struct {
	Steps        *prometheus.CounterVec
	SkippedSteps *prometheus.CounterVec
	Loss         *prometheus.GaugeVec
	LearningRate *prometheus.GaugeVec
	StepSeconds  *prometheus.HistogramVec
	LossScale    *prometheus.GaugeVec
	Overflows    *prometheus.CounterVec
}

// New registers the training collectors with reg.
// Passing a fresh prometheus.NewRegistry() keeps runs isolated.
func New(reg prometheus.Registerer) *Training {
	f := promauto.With(reg)
	return &Training{
		Steps: f.NewCounterVec(prometheus.CounterOpts{
			Name: "bornopt_train_steps_total",
			Help: "Total number of optimizer steps applied",
		}, []string{"optimizer"}),
		SkippedSteps: f.NewCounterVec(prometheus.CounterOpts{
			Name: "bornopt_train_skipped_steps_total",
			Help: "Total number of steps skipped after a gradient overflow",
		}, []string{"optimizer"}),
		Loss: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "bornopt_train_loss",
			Help: "Loss of the most recent step",
		}, []string{"optimizer"}),
		LearningRate: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "bornopt_train_learning_rate",
			Help: "Learning rate used by the most recent step",
		}, []string{"optimizer"}),
		StepSeconds: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "bornopt_train_step_seconds",
			Help:    "Wall time of a single training step",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
		}, []string{"optimizer"}),
		LossScale: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "bornopt_lomo_loss_scale",
			Help: "Current dynamic loss scale of the fused optimizer",
		}, []string{"optimizer"}),
		Overflows: f.NewCounterVec(prometheus.CounterOpts{
			Name: "bornopt_lomo_overflow_total",
			Help: "Total number of inf/NaN gradients seen by the fused optimizer",
		}, []string{"optimizer"}),
	}
}

// RecordStep records a completed optimizer step.
func (m *Training) RecordStep(optimizer string, loss, lr float32, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.Steps.WithLabelValues(optimizer).Inc()
	m.Loss.WithLabelValues(optimizer).Set(float64(loss))
	m.LearningRate.WithLabelValues(optimizer).Set(float64(lr))
	m.StepSeconds.WithLabelValues(optimizer).Observe(elapsed.Seconds())
}

// RecordSkipped records a step skipped because of a gradient overflow.
func (m *Training) RecordSkipped(optimizer string) {
	if m == nil {
		return
	}
	m.SkippedSteps.WithLabelValues(optimizer).Inc()
	m.Overflows.WithLabelValues(optimizer).Inc()
}

// SetLossScale publishes the current loss scale of a fused run.
func (m *Training) SetLossScale(optimizer string, scale float32) {
	if m == nil {
		return
	}
	m.LossScale.WithLabelValues(optimizer).Set(float64(scale))
}
