package schedule

import (
	"math"
	"sort"
)

// MultiStepParams configures a schedule that decays by Gamma at every milestone
type MultiStepParams struct {
	MaxSteps   int
	Gamma      float64
	Milestones []int
}

// DefaultMultiStepParams returns the default multi-step parameters
func DefaultMultiStepParams() MultiStepParams {
	return MultiStepParams{
		MaxSteps:   1000000,
		Gamma:      0.33,
		Milestones: []int{500000, 750000, 900000},
	}
}

// NewMultiStep returns a multi-step config holding a copy of p
func NewMultiStep(p MultiStepParams) Config {
	p.Milestones = append([]int(nil), p.Milestones...)
	return Config{Kind: KindMultiStep, MultiStep: &p}
}

// multiStep counts a milestone as reached once step is equal to it.
func multiStep(p MultiStepParams) Func {
	milestones := append([]int(nil), p.Milestones...)
	gamma := p.Gamma
	return func(step int) float64 {
		passed := sort.SearchInts(milestones, step+1)
		return math.Pow(gamma, float64(passed))
	}
}

// MultiStepWarmupParams configures a linear warmup followed by milestone decay
type MultiStepWarmupParams struct {
	WarmUpEnd  int
	Milestones []int
	Gamma      float64
}

// DefaultMultiStepWarmupParams returns the default multi-step warmup parameters
func DefaultMultiStepWarmupParams() MultiStepWarmupParams {
	return MultiStepWarmupParams{
		WarmUpEnd:  5000,
		Milestones: []int{300000, 400000, 500000},
		Gamma:      0.33,
	}
}

// NewMultiStepWarmup returns a multi-step warmup config holding a copy of p
func NewMultiStepWarmup(p MultiStepWarmupParams) Config {
	p.Milestones = append([]int(nil), p.Milestones...)
	return Config{Kind: KindMultiStepWarmup, MultiStepWarmup: &p}
}

// multiStepWarmup uses the left insertion index: a step equal to a milestone
// has not passed it yet. This differs from multiStep on purpose.
func multiStepWarmup(p MultiStepWarmupParams) Func {
	milestones := append([]int(nil), p.Milestones...)
	warmUpEnd := p.WarmUpEnd
	gamma := p.Gamma
	return func(step int) float64 {
		if step < warmUpEnd {
			return float64(step) / float64(warmUpEnd)
		}
		index := sort.SearchInts(milestones, step)
		return math.Pow(gamma, float64(index))
	}
}
