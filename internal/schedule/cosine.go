package schedule

import "math"

// CosineDecayParams configures a linear warmup followed by cosine decay to Alpha
type CosineDecayParams struct {
	WarmUpEnd int
	// Alpha is the floor the multiplier reaches at MaxSteps
	Alpha    float64
	MaxSteps int
}

// DefaultCosineDecayParams returns the default cosine decay parameters
func DefaultCosineDecayParams() CosineDecayParams {
	return CosineDecayParams{
		WarmUpEnd: 5000,
		Alpha:     0.05,
		MaxSteps:  300000,
	}
}

// NewCosineDecay returns a cosine decay config holding a copy of p
func NewCosineDecay(p CosineDecayParams) Config {
	return Config{Kind: KindCosineDecay, CosineDecay: &p}
}

// cosineDecay does not clamp progress; steps past MaxSteps follow the cosine back up.
func cosineDecay(p CosineDecayParams) Func {
	warmUpEnd := p.WarmUpEnd
	alpha := p.Alpha
	maxSteps := p.MaxSteps
	return func(step int) float64 {
		if step < warmUpEnd {
			return float64(step) / float64(warmUpEnd)
		}
		progress := float64(step-warmUpEnd) / float64(maxSteps-warmUpEnd)
		return (math.Cos(math.Pi*progress)+1.0)*0.5*(1-alpha) + alpha
	}
}
