package model

import (
	"sync"

	"github.com/thyrook/lrsched/internal/schedule"
)

// LRScheduler defines the interface for learning rate scheduling
type LRScheduler interface {
	GetLR(step int) float64
	Step()
	GetCurrentLR() float64
}

// LambdaScheduler scales a base learning rate by a schedule multiplier.
// The multiplier function is pure; only the step counter changes.
type LambdaScheduler struct {
	mu          sync.Mutex
	fn          schedule.Func
	baseLR      float64
	currentStep int
	currentLR   float64
}

// NewLambdaScheduler creates a scheduler positioned at step 0
func NewLambdaScheduler(fn schedule.Func, baseLR float64) *LambdaScheduler {
	s := &LambdaScheduler{
		fn:     fn,
		baseLR: baseLR,
	}
	s.currentLR = s.GetLR(0)
	return s
}

// NewScheduler builds the schedule described by cfg and wraps it around baseLR
func NewScheduler(cfg schedule.Config, baseLR float64) (*LambdaScheduler, error) {
	fn, err := schedule.Build(cfg, baseLR)
	if err != nil {
		return nil, err
	}
	return NewLambdaScheduler(fn, baseLR), nil
}

// GetLR returns the learning rate for a given step
func (s *LambdaScheduler) GetLR(step int) float64 {
	return s.baseLR * s.fn(step)
}

// Multiplier returns the raw schedule multiplier for a given step
func (s *LambdaScheduler) Multiplier(step int) float64 {
	return s.fn(step)
}

// Step advances the scheduler by one step
func (s *LambdaScheduler) Step() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentStep++
	s.currentLR = s.GetLR(s.currentStep)
}

// GetCurrentLR returns the current learning rate
func (s *LambdaScheduler) GetCurrentLR() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentLR
}

// CurrentStep returns the number of Step calls since creation or the last Reset
func (s *LambdaScheduler) CurrentStep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentStep
}

// BaseLR returns the rate the multiplier is applied to
func (s *LambdaScheduler) BaseLR() float64 {
	return s.baseLR
}

// Reset moves the scheduler back to step 0
func (s *LambdaScheduler) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentStep = 0
	s.currentLR = s.GetLR(0)
}
