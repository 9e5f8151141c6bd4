package lrscheduler

// CosineWarmupRestartsConfig configures CosineAnnealingWarmupRestarts.
type CosineWarmupRestartsConfig struct {
	FirstCycleSteps int     // length of the first cycle (> WarmupSteps)
	CycleMult       float32 // cycle length multiplier (> 0)
	MaxLR           float32 // peak rate of the first cycle
	MinLR           float32 // floor rate, also the starting rate
	WarmupSteps     int     // linear warmup at the start of each cycle
	Gamma           float32 // peak decay per cycle (> 0)
}

// CosineAnnealingWarmupRestarts runs cycles of linear warmup from MinLR to
// the cycle peak followed by cosine annealing back to MinLR.
//
// After each cycle the annealing part grows by CycleMult and the peak is
// multiplied by Gamma.
type CosineAnnealingWarmupRestarts struct {
	opt LRSetter
	cfg CosineWarmupRestartsConfig

	cycle       int
	stepInCycle int
	cycleSteps  int
	maxLR       float32
	lr          float32
}

// NewCosineAnnealingWarmupRestarts creates the scheduler and sets opt to MinLR.
func NewCosineAnnealingWarmupRestarts(opt LRSetter, cfg CosineWarmupRestartsConfig) (*CosineAnnealingWarmupRestarts, error) {
	switch {
	case cfg.FirstCycleSteps <= 0:
		return nil, invalid("first_cycle_steps must be > 0, got %d", cfg.FirstCycleSteps)
	case cfg.WarmupSteps < 0:
		return nil, invalid("warmup_steps must be >= 0, got %d", cfg.WarmupSteps)
	case cfg.WarmupSteps >= cfg.FirstCycleSteps:
		return nil, invalid("warmup_steps %d must be < first_cycle_steps %d", cfg.WarmupSteps, cfg.FirstCycleSteps)
	case cfg.CycleMult <= 0:
		return nil, invalid("cycle_mult must be > 0, got %g", cfg.CycleMult)
	case cfg.Gamma <= 0:
		return nil, invalid("gamma must be > 0, got %g", cfg.Gamma)
	case cfg.MinLR < 0 || cfg.MaxLR < cfg.MinLR:
		return nil, invalid("need 0 <= min_lr <= max_lr, got min_lr %g max_lr %g", cfg.MinLR, cfg.MaxLR)
	}

	s := &CosineAnnealingWarmupRestarts{
		opt:        opt,
		cfg:        cfg,
		cycleSteps: cfg.FirstCycleSteps,
		maxLR:      cfg.MaxLR,
	}
	s.apply()
	return s, nil
}

func (s *CosineAnnealingWarmupRestarts) apply() {
	base, peak := s.cfg.MinLR, s.maxLR
	if s.stepInCycle < s.cfg.WarmupSteps {
		s.lr = base + (peak-base)*float32(s.stepInCycle)/float32(s.cfg.WarmupSteps)
	} else {
		frac := float64(s.stepInCycle-s.cfg.WarmupSteps) / float64(s.cycleSteps-s.cfg.WarmupSteps)
		s.lr = cosineBetween(base, peak, frac)
	}
	s.opt.SetLR(s.lr)
}

// Step implements Scheduler.
func (s *CosineAnnealingWarmupRestarts) Step() float32 {
	s.stepInCycle++
	if s.stepInCycle >= s.cycleSteps {
		s.cycle++
		s.stepInCycle -= s.cycleSteps
		annealing := int(float32(s.cycleSteps-s.cfg.WarmupSteps) * s.cfg.CycleMult)
		s.cycleSteps = max(annealing, 1) + s.cfg.WarmupSteps
	}
	s.maxLR = s.cfg.MaxLR * pow32(s.cfg.Gamma, s.cycle)
	s.apply()
	return s.lr
}

// LR implements Scheduler.
func (s *CosineAnnealingWarmupRestarts) LR() float32 { return s.lr }

// Cycle returns the zero-based index of the current cycle.
func (s *CosineAnnealingWarmupRestarts) Cycle() int { return s.cycle }

func pow32(x float32, n int) float32 {
	out := float32(1)
	for range n {
		out *= x
	}
	return out
}
