// Package lrscheduler adjusts an optimizer's learning rate between steps.
//
// A Scheduler owns the step counter. Construction applies the initial rate
// to the optimizer and every Step advances one iteration and applies the
// new rate.
package lrscheduler

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
)

// ErrInvalidSchedule is returned for out-of-range scheduler settings.
var ErrInvalidSchedule = errors.New("invalid learning rate schedule")

// ErrUnknownScheduler is returned by New for unregistered names.
var ErrUnknownScheduler = errors.New("unknown scheduler")

// LRSetter is the part of an optimizer a scheduler drives.
type LRSetter interface {
	GetLR() float32
	SetLR(lr float32)
}

// Scheduler advances a learning rate schedule.
type Scheduler interface {
	// Step advances one iteration and returns the rate now applied.
	Step() float32
	// LR returns the rate currently applied.
	LR() float32
}

// Registered scheduler names.
const (
	NameConstant             = "constant"
	NameLinearWarmup         = "linear_warmup"
	NameCosine               = "cosine"
	NameCosineWarmupRestarts = "cosine_warmup_restarts"
)

// Config selects and parameterizes a scheduler. Unused fields are ignored.
type Config struct {
	Name string `yaml:"name"`

	// linear_warmup, cosine_warmup_restarts
	WarmupSteps int `yaml:"warmup_steps"`

	// cosine
	TMax   int     `yaml:"t_max"`
	EtaMin float32 `yaml:"eta_min"`

	// cosine_warmup_restarts
	FirstCycleSteps int     `yaml:"first_cycle_steps"`
	CycleMult       float32 `yaml:"cycle_mult"`
	MaxLR           float32 `yaml:"max_lr"`
	MinLR           float32 `yaml:"min_lr"`
	Gamma           float32 `yaml:"gamma"`
}

// Names returns the registered scheduler names, sorted.
func Names() []string {
	names := []string{NameConstant, NameLinearWarmup, NameCosine, NameCosineWarmupRestarts}
	sort.Strings(names)
	return names
}

// New builds the scheduler named by cfg.Name (empty means constant).
// Rates that depend on a base rate take it from opt.GetLR().
func New(cfg Config, opt LRSetter) (Scheduler, error) {
	switch strings.ToLower(cfg.Name) {
	case "", NameConstant:
		return NewConstantLR(opt), nil
	case NameLinearWarmup:
		return NewLinearWarmup(opt, cfg.WarmupSteps)
	case NameCosine:
		return NewCosineAnnealingLR(opt, cfg.TMax, cfg.EtaMin)
	case NameCosineWarmupRestarts:
		cycleMult, gamma := cfg.CycleMult, cfg.Gamma
		if cycleMult == 0 {
			cycleMult = 1
		}
		if gamma == 0 {
			gamma = 1
		}
		return NewCosineAnnealingWarmupRestarts(opt, CosineWarmupRestartsConfig{
			FirstCycleSteps: cfg.FirstCycleSteps,
			CycleMult:       cycleMult,
			MaxLR:           cfg.MaxLR,
			MinLR:           cfg.MinLR,
			WarmupSteps:     cfg.WarmupSteps,
			Gamma:           gamma,
		})
	default:
		return nil, fmt.Errorf("%w: %q (available: %s)", ErrUnknownScheduler, cfg.Name, strings.Join(Names(), ", "))
	}
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidSchedule, fmt.Sprintf(format, args...))
}

// ConstantLR keeps the optimizer's rate unchanged.
type ConstantLR struct {
	opt LRSetter
}

// NewConstantLR creates a ConstantLR.
func NewConstantLR(opt LRSetter) *ConstantLR {
	return &ConstantLR{opt: opt}
}

// Step implements Scheduler.
func (s *ConstantLR) Step() float32 { return s.opt.GetLR() }

// LR implements Scheduler.
func (s *ConstantLR) LR() float32 { return s.opt.GetLR() }

// LinearWarmup ramps the rate from base/warmup to base over warmup steps,
// then holds it at base.
type LinearWarmup struct {
	opt    LRSetter
	base   float32
	warmup int
	step   int
	lr     float32
}

// NewLinearWarmup creates a LinearWarmup using opt's current rate as base.
func NewLinearWarmup(opt LRSetter, warmupSteps int) (*LinearWarmup, error) {
	if warmupSteps <= 0 {
		return nil, invalid("warmup_steps must be > 0, got %d", warmupSteps)
	}
	s := &LinearWarmup{opt: opt, base: opt.GetLR(), warmup: warmupSteps}
	s.apply()
	return s, nil
}

func (s *LinearWarmup) apply() {
	if s.step >= s.warmup {
		s.lr = s.base
	} else {
		s.lr = s.base * float32(s.step+1) / float32(s.warmup)
	}
	s.opt.SetLR(s.lr)
}

// Step implements Scheduler.
func (s *LinearWarmup) Step() float32 {
	s.step++
	s.apply()
	return s.lr
}

// LR implements Scheduler.
func (s *LinearWarmup) LR() float32 { return s.lr }

// CosineAnnealingLR follows half a cosine from the base rate to etaMin over
// tMax steps and stays at etaMin afterwards.
type CosineAnnealingLR struct {
	opt    LRSetter
	base   float32
	etaMin float32
	tMax   int
	step   int
	lr     float32
}

// NewCosineAnnealingLR creates a CosineAnnealingLR using opt's current rate as base.
func NewCosineAnnealingLR(opt LRSetter, tMax int, etaMin float32) (*CosineAnnealingLR, error) {
	if tMax <= 0 {
		return nil, invalid("t_max must be > 0, got %d", tMax)
	}
	if etaMin < 0 {
		return nil, invalid("eta_min must be >= 0, got %g", etaMin)
	}
	s := &CosineAnnealingLR{opt: opt, base: opt.GetLR(), etaMin: etaMin, tMax: tMax}
	s.apply()
	return s, nil
}

func (s *CosineAnnealingLR) apply() {
	t := min(s.step, s.tMax)
	s.lr = cosineBetween(s.etaMin, s.base, float64(t)/float64(s.tMax))
	s.opt.SetLR(s.lr)
}

// Step implements Scheduler.
func (s *CosineAnnealingLR) Step() float32 {
	s.step++
	s.apply()
	return s.lr
}

// LR implements Scheduler.
func (s *CosineAnnealingLR) LR() float32 { return s.lr }

// cosineBetween returns lo + (hi-lo)(1+cos(pi*frac))/2.
func cosineBetween(lo, hi float32, frac float64) float32 {
	return lo + (hi-lo)*float32((1+math.Cos(math.Pi*frac))/2)
}
