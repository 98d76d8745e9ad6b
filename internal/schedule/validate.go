package schedule

import (
	"fmt"
	"math"
)

// Validate reports parameter combinations that make a schedule degenerate.
// Build does not call it; callers that want eager checks do.
func Validate(cfg Config) error {
	switch cfg.Kind {
	case KindMultiStep:
		if cfg.MultiStep == nil {
			return missingParams(cfg.Kind)
		}
		p := cfg.MultiStep
		if p.MaxSteps < 0 {
			return fmt.Errorf("multi_step: max_steps must be non-negative, got %d", p.MaxSteps)
		}
		if err := validateGamma(p.Gamma); err != nil {
			return fmt.Errorf("multi_step: %w", err)
		}
		return validateMilestones(p.Milestones)

	case KindExponentialDecay:
		if cfg.ExponentialDecay == nil {
			return missingParams(cfg.Kind)
		}
		p := cfg.ExponentialDecay
		if p.WarmupSteps < 0 {
			return fmt.Errorf("exponential_decay: warmup_steps must be non-negative, got %d", p.WarmupSteps)
		}
		if p.MaxSteps <= p.WarmupSteps {
			return fmt.Errorf("exponential_decay: max_steps (%d) must exceed warmup_steps (%d)", p.MaxSteps, p.WarmupSteps)
		}
		if p.LRPreWarmup < 0 {
			return fmt.Errorf("exponential_decay: lr_pre_warmup must be non-negative, got %g", p.LRPreWarmup)
		}
		if p.LRFinal != nil && !(*p.LRFinal > 0) {
			return fmt.Errorf("exponential_decay: lr_final must be positive, got %g", *p.LRFinal)
		}
		if p.Ramp != RampLinear && p.Ramp != RampCosine {
			return fmt.Errorf("exponential_decay: unknown ramp %q", p.Ramp)
		}
		return nil

	case KindCosineDecay:
		if cfg.CosineDecay == nil {
			return missingParams(cfg.Kind)
		}
		p := cfg.CosineDecay
		if p.WarmUpEnd < 0 {
			return fmt.Errorf("cosine_decay: warm_up_end must be non-negative, got %d", p.WarmUpEnd)
		}
		if p.MaxSteps <= p.WarmUpEnd {
			return fmt.Errorf("cosine_decay: max_steps (%d) must exceed warm_up_end (%d)", p.MaxSteps, p.WarmUpEnd)
		}
		if p.Alpha < 0 || p.Alpha > 1 || math.IsNaN(p.Alpha) {
			return fmt.Errorf("cosine_decay: learning_rate_alpha must be in [0, 1], got %g", p.Alpha)
		}
		return nil

	case KindMultiStepWarmup:
		if cfg.MultiStepWarmup == nil {
			return missingParams(cfg.Kind)
		}
		p := cfg.MultiStepWarmup
		if p.WarmUpEnd < 0 {
			return fmt.Errorf("multi_step_warmup: warm_up_end must be non-negative, got %d", p.WarmUpEnd)
		}
		if err := validateGamma(p.Gamma); err != nil {
			return fmt.Errorf("multi_step_warmup: %w", err)
		}
		return validateMilestones(p.Milestones)

	case KindExponential:
		if cfg.Exponential == nil {
			return missingParams(cfg.Kind)
		}
		p := cfg.Exponential
		if !(p.DecayRate > 0) {
			return fmt.Errorf("exponential: decay_rate must be positive, got %g", p.DecayRate)
		}
		if p.MaxSteps <= 0 {
			return fmt.Errorf("exponential: max_steps must be positive, got %d", p.MaxSteps)
		}
		return nil

	default:
		return fmt.Errorf("%w: %v", ErrUnknownKind, cfg.Kind)
	}
}

func validateGamma(gamma float64) error {
	if !(gamma > 0) {
		return fmt.Errorf("gamma must be positive, got %g", gamma)
	}
	return nil
}

func validateMilestones(milestones []int) error {
	for i, m := range milestones {
		if m < 0 {
			return fmt.Errorf("milestone %d is negative: %d", i, m)
		}
		if i > 0 && m <= milestones[i-1] {
			return fmt.Errorf("milestones must be strictly increasing: %d follows %d", m, milestones[i-1])
		}
	}
	return nil
}
