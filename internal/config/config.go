package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	yaml "go.yaml.in/yaml/v3"

	"github.com/thyrook/lrsched/internal/schedule"
)

// Config represents the application configuration
type Config struct {
	Schedule  ScheduleConfig  `json:"schedule"`
	Training  TrainingConfig  `json:"training"`
	Storage   StorageConfig   `json:"storage"`
	Interface InterfaceConfig `json:"interface"`
}

// ScheduleConfig selects a schedule by type and holds the parameters of every variant.
// Only the section named by Type is used.
type ScheduleConfig struct {
	Type      string  `json:"type"`
	InitialLR float64 `json:"initial_lr"`

	MultiStep        MultiStepSection        `json:"multi_step"`
	ExponentialDecay ExponentialDecaySection `json:"exponential_decay"`
	CosineDecay      CosineDecaySection      `json:"cosine_decay"`
	MultiStepWarmup  MultiStepWarmupSection  `json:"multi_step_warmup"`
	Exponential      ExponentialSection      `json:"exponential"`
}

// MultiStepSection configures the multi_step schedule
type MultiStepSection struct {
	MaxSteps   int     `json:"max_steps"`
	Gamma      float64 `json:"gamma"`
	Milestones []int   `json:"milestones"`
}

// ExponentialDecaySection configures the exponential_decay schedule
type ExponentialDecaySection struct {
	LRPreWarmup float64  `json:"lr_pre_warmup"`
	LRFinal     *float64 `json:"lr_final,omitempty"`
	WarmupSteps int      `json:"warmup_steps"`
	MaxSteps    int      `json:"max_steps"`
	Ramp        string   `json:"ramp"`
}

// CosineDecaySection configures the cosine_decay (and neus) schedule
type CosineDecaySection struct {
	WarmUpEnd         int     `json:"warm_up_end"`
	LearningRateAlpha float64 `json:"learning_rate_alpha"`
	MaxSteps          int     `json:"max_steps"`
}

// MultiStepWarmupSection configures the multi_step_warmup schedule
type MultiStepWarmupSection struct {
	WarmUpEnd  int     `json:"warm_up_end"`
	Milestones []int   `json:"milestones"`
	Gamma      float64 `json:"gamma"`
}

// ExponentialSection configures the exponential schedule
type ExponentialSection struct {
	DecayRate float64 `json:"decay_rate"`
	MaxSteps  int     `json:"max_steps"`
}

// TrainingConfig contains the demo training loop settings
type TrainingConfig struct {
	Steps       int     `json:"steps"`
	BatchSize   int     `json:"batch_size"`
	HiddenSize  int     `json:"hidden_size"`
	Samples     int     `json:"samples"`
	Features    int     `json:"features"`
	Noise       float64 `json:"noise"`
	Seed        int64   `json:"seed"`
	LogEvery    int     `json:"log_every"`
	RecordEvery int     `json:"record_every"`
	ModelPath   string  `json:"model_path"`
}

// StorageConfig contains run history settings
type StorageConfig struct {
	DBPath string `json:"db_path"`
}

// InterfaceConfig contains logging settings
type InterfaceConfig struct {
	LogLevel string `json:"log_level"`
	LogPath  string `json:"log_path"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	ms := schedule.DefaultMultiStepParams()
	ed := schedule.DefaultExponentialDecayParams()
	cd := schedule.DefaultCosineDecayParams()
	mw := schedule.DefaultMultiStepWarmupParams()
	ex := schedule.DefaultExponentialParams()

	return &Config{
		Schedule: ScheduleConfig{
			Type:      schedule.KindCosineDecay.String(),
			InitialLR: 0.01,
			MultiStep: MultiStepSection{
				MaxSteps:   ms.MaxSteps,
				Gamma:      ms.Gamma,
				Milestones: ms.Milestones,
			},
			ExponentialDecay: ExponentialDecaySection{
				LRPreWarmup: ed.LRPreWarmup,
				WarmupSteps: ed.WarmupSteps,
				MaxSteps:    ed.MaxSteps,
				Ramp:        string(ed.Ramp),
			},
			CosineDecay: CosineDecaySection{
				WarmUpEnd:         cd.WarmUpEnd,
				LearningRateAlpha: cd.Alpha,
				MaxSteps:          cd.MaxSteps,
			},
			MultiStepWarmup: MultiStepWarmupSection{
				WarmUpEnd:  mw.WarmUpEnd,
				Milestones: mw.Milestones,
				Gamma:      mw.Gamma,
			},
			Exponential: ExponentialSection{
				DecayRate: ex.DecayRate,
				MaxSteps:  ex.MaxSteps,
			},
		},
		Training: TrainingConfig{
			Steps:       2000,
			BatchSize:   32,
			HiddenSize:  16,
			Samples:     512,
			Features:    4,
			Noise:       0.01,
			Seed:        42,
			LogEvery:    100,
			RecordEvery: 10,
			ModelPath:   "models/regression.gob",
		},
		Storage: StorageConfig{
			DBPath: "data/runs.db",
		},
		Interface: InterfaceConfig{
			LogLevel: "info",
			LogPath:  "",
		},
	}
}

// Load reads and parses the configuration file. Fields missing from the file keep
// their defaults. Files ending in .yaml or .yml are parsed as YAML.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	data, format, err := coerceToJSONBytes(path, data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	cfg := DefaultConfig()
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("decode %s config %s: %w", format, path, err)
	}

	return cfg, nil
}

// LoadOrDefault loads the config at path, falling back to defaults if it cannot be read
func LoadOrDefault(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		return DefaultConfig()
	}
	return cfg
}

// Save writes the configuration to a file, as YAML for .yaml/.yml paths and JSON otherwise
func (c *Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".yaml" || ext == ".yml" {
		var v any
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		if data, err = yaml.Marshal(v); err != nil {
			return fmt.Errorf("yaml marshal: %w", err)
		}
	}

	return os.WriteFile(path, data, 0644)
}

// ScheduleConfig resolves the configured type and converts its section to a schedule config
func (c *Config) ScheduleConfig() (schedule.Config, error) {
	kind, err := schedule.ParseKind(c.Schedule.Type)
	if err != nil {
		return schedule.Config{}, err
	}

	s := c.Schedule
	switch kind {
	case schedule.KindMultiStep:
		return schedule.NewMultiStep(schedule.MultiStepParams{
			MaxSteps:   s.MultiStep.MaxSteps,
			Gamma:      s.MultiStep.Gamma,
			Milestones: s.MultiStep.Milestones,
		}), nil
	case schedule.KindExponentialDecay:
		ramp, err := schedule.ParseRamp(s.ExponentialDecay.Ramp)
		if err != nil {
			return schedule.Config{}, err
		}
		return schedule.NewExponentialDecay(schedule.ExponentialDecayParams{
			LRPreWarmup: s.ExponentialDecay.LRPreWarmup,
			LRFinal:     s.ExponentialDecay.LRFinal,
			WarmupSteps: s.ExponentialDecay.WarmupSteps,
			MaxSteps:    s.ExponentialDecay.MaxSteps,
			Ramp:        ramp,
		}), nil
	case schedule.KindCosineDecay:
		return schedule.NewCosineDecay(schedule.CosineDecayParams{
			WarmUpEnd: s.CosineDecay.WarmUpEnd,
			Alpha:     s.CosineDecay.LearningRateAlpha,
			MaxSteps:  s.CosineDecay.MaxSteps,
		}), nil
	case schedule.KindMultiStepWarmup:
		return schedule.NewMultiStepWarmup(schedule.MultiStepWarmupParams{
			WarmUpEnd:  s.MultiStepWarmup.WarmUpEnd,
			Milestones: s.MultiStepWarmup.Milestones,
			Gamma:      s.MultiStepWarmup.Gamma,
		}), nil
	case schedule.KindExponential:
		return schedule.NewExponential(schedule.ExponentialParams{
			DecayRate: s.Exponential.DecayRate,
			MaxSteps:  s.Exponential.MaxSteps,
		}), nil
	default:
		return schedule.Config{}, fmt.Errorf("%w: %v", schedule.ErrUnknownKind, kind)
	}
}

// Validate checks the configuration, including the selected schedule's parameters
func (c *Config) Validate() error {
	if !(c.Schedule.InitialLR > 0) {
		return fmt.Errorf("initial_lr must be positive, got %g", c.Schedule.InitialLR)
	}

	sc, err := c.ScheduleConfig()
	if err != nil {
		return err
	}
	if err := schedule.Validate(sc); err != nil {
		return err
	}

	t := c.Training
	if t.Steps <= 0 {
		return fmt.Errorf("training steps must be positive, got %d", t.Steps)
	}
	if t.BatchSize <= 0 {
		return fmt.Errorf("batch_size must be positive, got %d", t.BatchSize)
	}
	if t.HiddenSize < 2 {
		return fmt.Errorf("hidden_size must be at least 2, got %d", t.HiddenSize)
	}
	if t.Samples <= 0 || t.Features <= 0 {
		return fmt.Errorf("samples and features must be positive, got %d and %d", t.Samples, t.Features)
	}
	if t.Noise < 0 {
		return fmt.Errorf("noise must be non-negative, got %g", t.Noise)
	}
	if t.LogEvery < 0 || t.RecordEvery < 0 {
		return fmt.Errorf("log_every and record_every must be non-negative")
	}

	return nil
}

// EnsureDirectories creates the parent directories of every configured path
func (c *Config) EnsureDirectories() error {
	paths := []string{c.Training.ModelPath, c.Storage.DBPath, c.Interface.LogPath}
	for _, p := range paths {
		if p == "" {
			continue
		}
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			return fmt.Errorf("failed to create directory for %s: %w", p, err)
		}
	}
	return nil
}
