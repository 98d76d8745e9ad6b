package schedule

import (
	"fmt"
	"math"
	"strings"
)

// Ramp is the warmup interpolation shape
type Ramp string

const (
	RampLinear Ramp = "linear"
	RampCosine Ramp = "cosine"
)

// ParseRamp resolves a ramp name
func ParseRamp(name string) (Ramp, error) {
	switch Ramp(strings.ToLower(strings.TrimSpace(name))) {
	case RampLinear:
		return RampLinear, nil
	case RampCosine:
		return RampCosine, nil
	default:
		return "", fmt.Errorf("unknown ramp %q (want linear or cosine)", name)
	}
}

// ExponentialDecayParams configures a warmup to the initial rate followed by
// log-linear decay to LRFinal over MaxSteps.
type ExponentialDecayParams struct {
	LRPreWarmup float64
	// LRFinal defaults to the initial learning rate when nil
	LRFinal     *float64
	WarmupSteps int
	MaxSteps    int
	Ramp        Ramp
}

// DefaultExponentialDecayParams returns the default exponential decay parameters
func DefaultExponentialDecayParams() ExponentialDecayParams {
	return ExponentialDecayParams{
		LRPreWarmup: 1e-8,
		WarmupSteps: 0,
		MaxSteps:    100000,
		Ramp:        RampCosine,
	}
}

// NewExponentialDecay returns an exponential decay config holding a copy of p
func NewExponentialDecay(p ExponentialDecayParams) Config {
	if p.LRFinal != nil {
		final := *p.LRFinal
		p.LRFinal = &final
	}
	return Config{Kind: KindExponentialDecay, ExponentialDecay: &p}
}

func exponentialDecay(p ExponentialDecayParams, lrInit float64) Func {
	lrFinal := lrInit
	if p.LRFinal != nil {
		lrFinal = *p.LRFinal
	}
	pre := p.LRPreWarmup
	warmup := p.WarmupSteps
	maxSteps := p.MaxSteps
	ramp := p.Ramp

	return func(step int) float64 {
		var lr float64
		if step < warmup {
			t := float64(step) / float64(warmup)
			if ramp == RampCosine {
				lr = pre + (lrInit-pre)*math.Sin(0.5*math.Pi*clamp01(t))
			} else {
				lr = pre + (lrInit-pre)*t
			}
		} else {
			t := clamp01(float64(step-warmup) / float64(maxSteps-warmup))
			lr = math.Exp(math.Log(lrInit)*(1-t) + math.Log(lrFinal)*t)
		}
		// the optimizer multiplies by lrInit again
		return lr / lrInit
	}
}

// ExponentialParams configures a bare geometric decay reaching DecayRate after MaxSteps
type ExponentialParams struct {
	DecayRate float64
	MaxSteps  int
}

// DefaultExponentialParams returns the default exponential parameters
func DefaultExponentialParams() ExponentialParams {
	return ExponentialParams{
		DecayRate: 0.1,
		MaxSteps:  1000000,
	}
}

// NewExponential returns an exponential config holding a copy of p
func NewExponential(p ExponentialParams) Config {
	return Config{Kind: KindExponential, Exponential: &p}
}

func exponential(p ExponentialParams) Func {
	ratio := math.Pow(p.DecayRate, 1.0/float64(p.MaxSteps))
	return func(step int) float64 {
		return math.Pow(ratio, float64(step))
	}
}
