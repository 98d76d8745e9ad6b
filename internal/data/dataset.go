package data

import (
	"fmt"
	"math/rand"

	"gorgonia.org/tensor"
)

// Sample is one regression example
type Sample struct {
	Features []float64
	Target   float64
}

// Dataset holds an in-memory regression dataset
type Dataset struct {
	samples  []Sample
	features int
}

// SyntheticConfig describes a generated linear regression problem
type SyntheticConfig struct {
	Samples  int
	Features int
	Noise    float64
	Seed     int64
}

// DefaultSyntheticConfig returns a small problem suitable for demos and tests
func DefaultSyntheticConfig() SyntheticConfig {
	return SyntheticConfig{
		Samples:  512,
		Features: 4,
		Noise:    0.01,
		Seed:     42,
	}
}

// NewSynthetic generates y = x.w + b + noise with weights drawn from the seed.
// The same config always yields the same dataset.
func NewSynthetic(cfg SyntheticConfig) (*Dataset, error) {
	if cfg.Samples <= 0 {
		return nil, fmt.Errorf("invalid sample count: %d", cfg.Samples)
	}
	if cfg.Features <= 0 {
		return nil, fmt.Errorf("invalid feature count: %d", cfg.Features)
	}

	rng := rand.New(rand.NewSource(cfg.Seed))

	weights := make([]float64, cfg.Features)
	for i := range weights {
		weights[i] = rng.Float64()*2 - 1
	}
	bias := rng.Float64() - 0.5

	samples := make([]Sample, cfg.Samples)
	for i := range samples {
		x := make([]float64, cfg.Features)
		y := bias
		for j := range x {
			x[j] = rng.Float64()*2 - 1
			y += x[j] * weights[j]
		}
		y += rng.NormFloat64() * cfg.Noise
		samples[i] = Sample{Features: x, Target: y}
	}

	return &Dataset{samples: samples, features: cfg.Features}, nil
}

// NewDataset wraps existing samples; all samples must share a feature count
func NewDataset(samples []Sample) (*Dataset, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("dataset is empty")
	}
	features := len(samples[0].Features)
	for i, s := range samples {
		if len(s.Features) != features {
			return nil, fmt.Errorf("sample %d has %d features, expected %d", i, len(s.Features), features)
		}
	}
	return &Dataset{samples: samples, features: features}, nil
}

// Len returns the number of samples
func (d *Dataset) Len() int {
	return len(d.samples)
}

// Features returns the number of input features per sample
func (d *Dataset) Features() int {
	return d.features
}

// Batch returns batch number idx as input [size, features] and target [size, 1] tensors.
// Batches wrap around the end of the dataset so every batch is full.
func (d *Dataset) Batch(idx, size int) (*tensor.Dense, *tensor.Dense, error) {
	if size <= 0 {
		return nil, nil, fmt.Errorf("invalid batch size: %d", size)
	}
	if idx < 0 {
		return nil, nil, fmt.Errorf("invalid batch index: %d", idx)
	}

	inputData := make([]float64, size*d.features)
	targetData := make([]float64, size)

	start := (idx * size) % len(d.samples)
	for i := 0; i < size; i++ {
		s := d.samples[(start+i)%len(d.samples)]
		copy(inputData[i*d.features:(i+1)*d.features], s.Features)
		targetData[i] = s.Target
	}

	x := tensor.New(tensor.WithShape(size, d.features), tensor.WithBacking(inputData))
	y := tensor.New(tensor.WithShape(size, 1), tensor.WithBacking(targetData))
	return x, y, nil
}

// BatchesPerEpoch returns how many full batches cover the dataset once
func (d *Dataset) BatchesPerEpoch(size int) int {
	if size <= 0 {
		return 0
	}
	return (len(d.samples) + size - 1) / size
}
