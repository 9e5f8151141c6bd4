// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package lrscheduler adjusts an optimizer's learning rate between steps.
package lrscheduler

import (
	"github.com/born-ml/bornopt/internal/lrscheduler"
)

// Scheduler advances a learning rate schedule.
type Scheduler = lrscheduler.Scheduler

// LRSetter is the part of an optimizer a scheduler drives.
type LRSetter = lrscheduler.LRSetter

// Config selects and parameterizes a scheduler for New.
type Config = lrscheduler.Config

// Schedulers.
type (
	ConstantLR                    = lrscheduler.ConstantLR
	LinearWarmup                  = lrscheduler.LinearWarmup
	CosineAnnealingLR             = lrscheduler.CosineAnnealingLR
	CosineAnnealingWarmupRestarts = lrscheduler.CosineAnnealingWarmupRestarts
	CosineWarmupRestartsConfig    = lrscheduler.CosineWarmupRestartsConfig
)

// Errors.
var (
	ErrInvalidSchedule  = lrscheduler.ErrInvalidSchedule
	ErrUnknownScheduler = lrscheduler.ErrUnknownScheduler
)

// New builds the scheduler named by cfg.Name.
func New(cfg Config, opt LRSetter) (Scheduler, error) {
	return lrscheduler.New(cfg, opt)
}

// Names returns the registered scheduler names.
func Names() []string {
	return lrscheduler.Names()
}

// NewConstantLR keeps the rate unchanged.
func NewConstantLR(opt LRSetter) *ConstantLR {
	return lrscheduler.NewConstantLR(opt)
}

// NewLinearWarmup ramps the rate up over warmupSteps.
func NewLinearWarmup(opt LRSetter, warmupSteps int) (*LinearWarmup, error) {
	return lrscheduler.NewLinearWarmup(opt, warmupSteps)
}

// NewCosineAnnealingLR anneals the rate to etaMin over tMax steps.
func NewCosineAnnealingLR(opt LRSetter, tMax int, etaMin float32) (*CosineAnnealingLR, error) {
	return lrscheduler.NewCosineAnnealingLR(opt, tMax, etaMin)
}

// NewCosineAnnealingWarmupRestarts creates a warmup and cosine restart schedule.
func NewCosineAnnealingWarmupRestarts(opt LRSetter, cfg CosineWarmupRestartsConfig) (*CosineAnnealingWarmupRestarts, error) {
	return lrscheduler.NewCosineAnnealingWarmupRestarts(opt, cfg)
}
