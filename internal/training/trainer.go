package training

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"
	"gorgonia.org/gorgonia"

	"github.com/thyrook/lrsched/internal/data"
	"github.com/thyrook/lrsched/internal/iface"
	"github.com/thyrook/lrsched/internal/model"
	"github.com/thyrook/lrsched/internal/storage"
)

// flushSize is the number of pending step records written per store transaction
const flushSize = 64

// Config holds training loop settings
type Config struct {
	Steps        int
	BatchSize    int
	HiddenSize   int
	GradientClip float64
	LogEvery     int // Log every N steps, 0 disables
	RecordEvery  int // Record every N steps, 0 records only the last step
	SavePath     string
}

// DefaultConfig returns default training configuration
func DefaultConfig() *Config {
	return &Config{
		Steps:        2000,
		BatchSize:    32,
		HiddenSize:   16,
		GradientClip: 5.0,
		LogEvery:     100,
		RecordEvery:  10,
	}
}

// StepMetrics is what one optimizer step observed
type StepMetrics struct {
	Step         int
	Loss         float64
	LearningRate float64
	Multiplier   float64
	Duration     time.Duration
}

// Result summarizes a finished training run
type Result struct {
	Steps     int
	LastLoss  float64
	EvalLoss  float64
	Duration  time.Duration
	SavedPath string
}

// Recorder persists step records for a run
type Recorder interface {
	AppendSteps(runID string, records ...storage.StepRecord) error
}

// Trainer runs SGD on a regression network with the learning rate driven by a schedule
type Trainer struct {
	net       *model.RegressionNet
	scheduler *model.LambdaScheduler
	config    *Config
	logger    *iface.Logger

	solver   gorgonia.Solver
	solverLR float64

	recorder Recorder
	runID    string
	pending  []storage.StepRecord

	metrics []StepMetrics
}

// NewTrainer creates a trainer and a fresh network for inputs with the given feature count
func NewTrainer(config *Config, features int, scheduler *model.LambdaScheduler, logger *iface.Logger) (*Trainer, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if scheduler == nil {
		return nil, fmt.Errorf("scheduler is nil")
	}
	if config.Steps <= 0 {
		return nil, fmt.Errorf("invalid step count: %d", config.Steps)
	}
	if logger == nil {
		logger = iface.NewNopLogger()
	}

	net, err := model.NewRegressionNet(config.BatchSize, features, config.HiddenSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create model: %w", err)
	}
	if err := net.PrepareTraining(); err != nil {
		net.Close()
		return nil, fmt.Errorf("failed to prepare model: %w", err)
	}

	return &Trainer{
		net:       net,
		scheduler: scheduler,
		config:    config,
		logger:    logger,
		solverLR:  math.NaN(),
		metrics:   make([]StepMetrics, 0),
	}, nil
}

// SetRecorder sends step records for runID to r during Train
func (t *Trainer) SetRecorder(r Recorder, runID string) {
	t.recorder = r
	t.runID = runID
}

// Train runs config.Steps optimizer steps, calling callback for every recorded step.
// The schedule is advanced after each optimizer step.
func (t *Trainer) Train(ctx context.Context, dataset *data.Dataset, callback func(StepMetrics)) (*Result, error) {
	if dataset == nil {
		return nil, fmt.Errorf("dataset is nil")
	}
	if dataset.Features() != t.net.InputSize() {
		return nil, fmt.Errorf("dataset has %d features, model expects %d", dataset.Features(), t.net.InputSize())
	}

	t.logger.Info("Starting training",
		zap.Int("steps", t.config.Steps),
		zap.Int("batch_size", t.config.BatchSize),
		zap.Float64("base_lr", t.scheduler.BaseLR()),
		zap.Int("samples", dataset.Len()),
	)

	start := time.Now()
	var lastLoss float64
	stepsDone := 0

	for i := 0; i < t.config.Steps; i++ {
		if err := ctx.Err(); err != nil {
			t.flush()
			return nil, fmt.Errorf("training stopped at step %d: %w", i, err)
		}

		m, err := t.trainStep(dataset, i)
		if err != nil {
			t.flush()
			return nil, fmt.Errorf("step %d failed: %w", i, err)
		}
		lastLoss = m.Loss
		stepsDone++

		if t.config.LogEvery > 0 && i%t.config.LogEvery == 0 {
			t.logger.Info("Training step",
				zap.Int("step", m.Step),
				zap.Float64("lr", m.LearningRate),
				zap.Float64("multiplier", m.Multiplier),
				zap.Float64("loss", m.Loss),
				zap.Duration("step_time", m.Duration),
			)
		}

		last := i == t.config.Steps-1
		if last || (t.config.RecordEvery > 0 && i%t.config.RecordEvery == 0) {
			t.record(m)
			if callback != nil {
				callback(m)
			}
		}
	}

	if err := t.flush(); err != nil {
		return nil, err
	}

	evalLoss, err := t.EvaluateDataset(dataset)
	if err != nil {
		return nil, fmt.Errorf("evaluation failed: %w", err)
	}

	result := &Result{
		Steps:    stepsDone,
		LastLoss: lastLoss,
		EvalLoss: evalLoss,
		Duration: time.Since(start),
	}

	if t.config.SavePath != "" {
		if err := os.MkdirAll(filepath.Dir(t.config.SavePath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create model directory: %w", err)
		}
		if err := t.net.Save(t.config.SavePath); err != nil {
			return nil, fmt.Errorf("failed to save final model: %w", err)
		}
		result.SavedPath = t.config.SavePath
	}

	t.logger.Info("Training completed",
		zap.Int("steps", result.Steps),
		zap.Float64("last_loss", result.LastLoss),
		zap.Float64("eval_loss", result.EvalLoss),
		zap.Float64("final_lr", t.scheduler.GetCurrentLR()),
		zap.Duration("elapsed", result.Duration),
	)

	return result, nil
}

func (t *Trainer) trainStep(dataset *data.Dataset, batchIdx int) (StepMetrics, error) {
	stepStart := time.Now()
	step := t.scheduler.CurrentStep()

	lr := t.scheduler.GetCurrentLR()
	if math.IsNaN(lr) || math.IsInf(lr, 0) {
		return StepMetrics{}, fmt.Errorf("learning rate at step %d is not finite: %v", step, lr)
	}
	t.applyLR(lr)

	x, y, err := dataset.Batch(batchIdx, t.config.BatchSize)
	if err != nil {
		return StepMetrics{}, err
	}

	loss, err := t.net.TrainBatch(x, y, t.solver)
	if err != nil {
		return StepMetrics{}, err
	}

	t.scheduler.Step()

	return StepMetrics{
		Step:         step,
		Loss:         loss,
		LearningRate: lr,
		Multiplier:   t.scheduler.Multiplier(step),
		Duration:     time.Since(stepStart),
	}, nil
}

// applyLR rebuilds the solver when the scheduled rate changes.
// VanillaSolver keeps no per-parameter state, so rebuilding loses nothing.
func (t *Trainer) applyLR(lr float64) {
	if t.solver != nil && lr == t.solverLR {
		return
	}

	opts := []gorgonia.SolverOpt{gorgonia.WithLearnRate(lr)}
	if t.config.GradientClip > 0 {
		opts = append(opts, gorgonia.WithClip(t.config.GradientClip))
	}
	t.solver = gorgonia.NewVanillaSolver(opts...)
	t.solverLR = lr
}

func (t *Trainer) record(m StepMetrics) {
	t.metrics = append(t.metrics, m)
	if t.recorder == nil {
		return
	}

	t.pending = append(t.pending, storage.StepRecord{
		Step:         m.Step,
		Multiplier:   m.Multiplier,
		LearningRate: m.LearningRate,
		Loss:         m.Loss,
	})
	if len(t.pending) >= flushSize {
		if err := t.flush(); err != nil {
			t.logger.Warn("Failed to record steps", zap.Error(err))
		}
	}
}

func (t *Trainer) flush() error {
	if t.recorder == nil || len(t.pending) == 0 {
		return nil
	}
	if err := t.recorder.AppendSteps(t.runID, t.pending...); err != nil {
		return fmt.Errorf("failed to record steps: %w", err)
	}
	t.pending = t.pending[:0]
	return nil
}

// EvaluateDataset returns the mean batch loss over one pass of the dataset
func (t *Trainer) EvaluateDataset(dataset *data.Dataset) (float64, error) {
	batches := dataset.BatchesPerEpoch(t.config.BatchSize)
	losses := make([]float64, 0, batches)

	for i := 0; i < batches; i++ {
		x, y, err := dataset.Batch(i, t.config.BatchSize)
		if err != nil {
			return 0, err
		}
		loss, err := t.net.Evaluate(x, y)
		if err != nil {
			return 0, err
		}
		losses = append(losses, loss)
	}

	return stat.Mean(losses, nil), nil
}

// Metrics returns the recorded step metrics
func (t *Trainer) Metrics() []StepMetrics {
	return t.metrics
}

// Model returns the network being trained
func (t *Trainer) Model() *model.RegressionNet {
	return t.net
}

// Close releases the network
func (t *Trainer) Close() error {
	return t.net.Close()
}
