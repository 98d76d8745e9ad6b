package schedule

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Func maps a training step to a learning-rate multiplier.
// The returned value is applied to the optimizer's base learning rate.
type Func func(step int) float64

// Kind identifies a schedule variant
type Kind int

const (
	KindUnknown Kind = iota
	KindMultiStep
	KindExponentialDecay
	KindCosineDecay
	KindMultiStepWarmup
	KindExponential
)

// ErrUnknownKind is returned when a schedule name or kind cannot be resolved
var ErrUnknownKind = errors.New("unknown schedule kind")

var kindNames = map[Kind]string{
	KindMultiStep:        "multi_step",
	KindExponentialDecay: "exponential_decay",
	KindCosineDecay:      "cosine_decay",
	KindMultiStepWarmup:  "multi_step_warmup",
	KindExponential:      "exponential",
}

// aliases resolve to an existing kind at parse time
var kindAliases = map[string]Kind{
	"neus": KindCosineDecay,
}

// String returns the configuration name of the kind
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ParseKind resolves a configuration name to a Kind
func ParseKind(name string) (Kind, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for k, n := range kindNames {
		if n == name {
			return k, nil
		}
	}
	if k, ok := kindAliases[name]; ok {
		return k, nil
	}
	return KindUnknown, fmt.Errorf("%w: %q", ErrUnknownKind, name)
}

// Kinds returns the configuration names of all variants, sorted
func Kinds() []string {
	names := make([]string, 0, len(kindNames)+len(kindAliases))
	for _, n := range kindNames {
		names = append(names, n)
	}
	for n := range kindAliases {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Config selects exactly one schedule variant and carries its parameters.
// Only the params field matching Kind is read.
type Config struct {
	Kind Kind

	MultiStep        *MultiStepParams
	ExponentialDecay *ExponentialDecayParams
	CosineDecay      *CosineDecayParams
	MultiStepWarmup  *MultiStepWarmupParams
	Exponential      *ExponentialParams
}

// DefaultConfig returns a config for kind populated with the variant's defaults
func DefaultConfig(kind Kind) (Config, error) {
	switch kind {
	case KindMultiStep:
		return NewMultiStep(DefaultMultiStepParams()), nil
	case KindExponentialDecay:
		return NewExponentialDecay(DefaultExponentialDecayParams()), nil
	case KindCosineDecay:
		return NewCosineDecay(DefaultCosineDecayParams()), nil
	case KindMultiStepWarmup:
		return NewMultiStepWarmup(DefaultMultiStepWarmupParams()), nil
	case KindExponential:
		return NewExponential(DefaultExponentialParams()), nil
	default:
		return Config{}, fmt.Errorf("%w: %v", ErrUnknownKind, kind)
	}
}

type builder func(cfg Config, initialLR float64) (Func, error)

var builders = map[Kind]builder{
	KindMultiStep: func(cfg Config, _ float64) (Func, error) {
		if cfg.MultiStep == nil {
			return nil, missingParams(cfg.Kind)
		}
		return multiStep(*cfg.MultiStep), nil
	},
	KindExponentialDecay: func(cfg Config, initialLR float64) (Func, error) {
		if cfg.ExponentialDecay == nil {
			return nil, missingParams(cfg.Kind)
		}
		return exponentialDecay(*cfg.ExponentialDecay, initialLR), nil
	},
	KindCosineDecay: func(cfg Config, _ float64) (Func, error) {
		if cfg.CosineDecay == nil {
			return nil, missingParams(cfg.Kind)
		}
		return cosineDecay(*cfg.CosineDecay), nil
	},
	KindMultiStepWarmup: func(cfg Config, _ float64) (Func, error) {
		if cfg.MultiStepWarmup == nil {
			return nil, missingParams(cfg.Kind)
		}
		return multiStepWarmup(*cfg.MultiStepWarmup), nil
	},
	KindExponential: func(cfg Config, _ float64) (Func, error) {
		if cfg.Exponential == nil {
			return nil, missingParams(cfg.Kind)
		}
		return exponential(*cfg.Exponential), nil
	},
}

// Build returns the multiplier function for cfg.
//
// initialLR is only read by variants that compute an absolute rate and normalize it
// (exponential decay with warmup). Degenerate parameters such as a warmup length equal
// to MaxSteps are not rejected here; they show up as NaN or Inf when the function is
// evaluated. Use config.Validate to catch them up front.
func Build(cfg Config, initialLR float64) (Func, error) {
	b, ok := builders[cfg.Kind]
	if !ok {
		return nil, fmt.Errorf("%w: %v", ErrUnknownKind, cfg.Kind)
	}
	return b(cfg, initialLR)
}

func missingParams(kind Kind) error {
	return fmt.Errorf("schedule %s: missing parameters", kind)
}

// clamp01 bounds t to [0, 1]. NaN passes through unchanged.
func clamp01(t float64) float64 {
	if t < 0 {
		return 0
	}
	if t > 1 {
		return 1
	}
	return t
}
