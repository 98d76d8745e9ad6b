package schedule

import (
	"errors"
	"testing"
)

func TestValidateDefaults(t *testing.T) {
	for _, kind := range []Kind{KindMultiStep, KindExponentialDecay, KindCosineDecay, KindMultiStepWarmup, KindExponential} {
		cfg, err := DefaultConfig(kind)
		if err != nil {
			t.Fatalf("DefaultConfig(%s) failed: %v", kind, err)
		}
		if err := Validate(cfg); err != nil {
			t.Errorf("Default %s config failed validation: %v", kind, err)
		}
	}
}

func TestValidateRejects(t *testing.T) {
	zero := 0.0

	tests := []struct {
		name string
		cfg  Config
	}{
		{"unsorted milestones", NewMultiStep(MultiStepParams{Gamma: 0.5, Milestones: []int{10, 5}})},
		{"duplicate milestones", NewMultiStepWarmup(MultiStepWarmupParams{Gamma: 0.5, Milestones: []int{10, 10}})},
		{"negative milestone", NewMultiStep(MultiStepParams{Gamma: 0.5, Milestones: []int{-1}})},
		{"zero gamma", NewMultiStep(MultiStepParams{Gamma: 0})},
		{"warmup equals max", NewExponentialDecay(ExponentialDecayParams{WarmupSteps: 10, MaxSteps: 10, Ramp: RampLinear})},
		{"zero final", NewExponentialDecay(ExponentialDecayParams{MaxSteps: 10, LRFinal: &zero, Ramp: RampLinear})},
		{"bad ramp", NewExponentialDecay(ExponentialDecayParams{MaxSteps: 10, Ramp: "step"})},
		{"cosine warmup equals max", NewCosineDecay(CosineDecayParams{WarmUpEnd: 5, MaxSteps: 5})},
		{"alpha above one", NewCosineDecay(CosineDecayParams{MaxSteps: 5, Alpha: 1.5})},
		{"zero decay rate", NewExponential(ExponentialParams{DecayRate: 0, MaxSteps: 10})},
		{"zero max steps", NewExponential(ExponentialParams{DecayRate: 0.1, MaxSteps: 0})},
		{"missing params", Config{Kind: KindCosineDecay}},
	}

	for _, tt := range tests {
		if err := Validate(tt.cfg); err == nil {
			t.Errorf("%s: expected validation error", tt.name)
		}
	}

	if err := Validate(Config{}); !errors.Is(err, ErrUnknownKind) {
		t.Errorf("Expected ErrUnknownKind, got %v", err)
	}
}
