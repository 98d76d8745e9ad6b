package model

import (
	"math"
	"testing"

	"github.com/thyrook/lrsched/internal/schedule"
)

func TestLambdaSchedulerSteps(t *testing.T) {
	cfg := schedule.NewCosineDecay(schedule.CosineDecayParams{WarmUpEnd: 10, Alpha: 0.1, MaxSteps: 110})
	s, err := NewScheduler(cfg, 0.5)
	if err != nil {
		t.Fatalf("Failed to create scheduler: %v", err)
	}

	if s.GetCurrentLR() != 0 {
		t.Errorf("Expected LR 0 at step 0, got %v", s.GetCurrentLR())
	}

	for i := 0; i < 5; i++ {
		s.Step()
	}
	if s.CurrentStep() != 5 {
		t.Errorf("Expected step 5, got %d", s.CurrentStep())
	}
	if got := s.GetCurrentLR(); math.Abs(got-0.25) > 1e-12 {
		t.Errorf("Expected LR 0.25 halfway through warmup, got %v", got)
	}

	for i := 0; i < 5; i++ {
		s.Step()
	}
	if got := s.GetCurrentLR(); math.Abs(got-0.5) > 1e-12 {
		t.Errorf("Expected base LR at end of warmup, got %v", got)
	}
	if got := s.Multiplier(110); math.Abs(got-0.1) > 1e-12 {
		t.Errorf("Expected alpha at max steps, got %v", got)
	}

	s.Reset()
	if s.CurrentStep() != 0 || s.GetCurrentLR() != 0 {
		t.Errorf("Reset did not return to step 0: step=%d lr=%v", s.CurrentStep(), s.GetCurrentLR())
	}
}

func TestLambdaSchedulerGetLRIsStateless(t *testing.T) {
	s := NewLambdaScheduler(func(step int) float64 { return 1.0 / float64(step+1) }, 2.0)

	if s.GetLR(3) != 0.5 {
		t.Errorf("GetLR(3) = %v; want 0.5", s.GetLR(3))
	}
	s.Step()
	if s.GetLR(3) != 0.5 {
		t.Errorf("GetLR(3) changed after Step: %v", s.GetLR(3))
	}
	if s.BaseLR() != 2.0 {
		t.Errorf("BaseLR() = %v; want 2.0", s.BaseLR())
	}
}

func TestNewSchedulerUnknownKind(t *testing.T) {
	if _, err := NewScheduler(schedule.Config{}, 0.1); err == nil {
		t.Error("Expected error for empty schedule config")
	}
}

var _ LRScheduler = (*LambdaScheduler)(nil)
