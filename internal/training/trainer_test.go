package training

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"testing"

	"github.com/thyrook/lrsched/internal/data"
	"github.com/thyrook/lrsched/internal/model"
	"github.com/thyrook/lrsched/internal/schedule"
	"github.com/thyrook/lrsched/internal/storage"
)

type memRecorder struct {
	runID   string
	records []storage.StepRecord
	calls   int
}

func (m *memRecorder) AppendSteps(runID string, records ...storage.StepRecord) error {
	m.runID = runID
	m.records = append(m.records, records...)
	m.calls++
	return nil
}

type failingRecorder struct{}

func (failingRecorder) AppendSteps(string, ...storage.StepRecord) error {
	return errors.New("disk full")
}

func testDataset(t *testing.T) *data.Dataset {
	t.Helper()
	cfg := data.DefaultSyntheticConfig()
	cfg.Samples = 64
	ds, err := data.NewSynthetic(cfg)
	if err != nil {
		t.Fatalf("Failed to create dataset: %v", err)
	}
	return ds
}

func testConfig(steps int) *Config {
	cfg := DefaultConfig()
	cfg.Steps = steps
	cfg.BatchSize = 16
	cfg.HiddenSize = 8
	cfg.LogEvery = 0
	cfg.RecordEvery = 5
	return cfg
}

func cosineScheduler(t *testing.T, warmup, maxSteps int, baseLR float64) *model.LambdaScheduler {
	t.Helper()
	sched, err := model.NewScheduler(schedule.Config{
		Kind:        schedule.KindCosineDecay,
		CosineDecay: &schedule.CosineDecayParams{WarmUpEnd: warmup, Alpha: 0.1, MaxSteps: maxSteps},
	}, baseLR)
	if err != nil {
		t.Fatalf("Failed to create scheduler: %v", err)
	}
	return sched
}

func TestNewTrainerValidation(t *testing.T) {
	sched := cosineScheduler(t, 10, 100, 0.05)

	if _, err := NewTrainer(testConfig(10), 4, nil, nil); err == nil {
		t.Error("Expected error for nil scheduler")
	}
	if _, err := NewTrainer(testConfig(0), 4, sched, nil); err == nil {
		t.Error("Expected error for zero steps")
	}

	cfg := testConfig(10)
	cfg.HiddenSize = 1
	if _, err := NewTrainer(cfg, 4, sched, nil); err == nil {
		t.Error("Expected error for hidden size 1")
	}
}

func TestTrainFollowsSchedule(t *testing.T) {
	const baseLR = 0.05
	sched := cosineScheduler(t, 10, 60, baseLR)

	trainer, err := NewTrainer(testConfig(60), 4, sched, nil)
	if err != nil {
		t.Fatalf("Failed to create trainer: %v", err)
	}
	defer trainer.Close()

	var seen []StepMetrics
	result, err := trainer.Train(context.Background(), testDataset(t), func(m StepMetrics) {
		seen = append(seen, m)
	})
	if err != nil {
		t.Fatalf("Train failed: %v", err)
	}

	if result.Steps != 60 {
		t.Errorf("Expected 60 steps, got %d", result.Steps)
	}
	if sched.CurrentStep() != 60 {
		t.Errorf("Expected scheduler at step 60, got %d", sched.CurrentStep())
	}

	// steps 0,5,...,55 plus the last step 59
	if len(seen) != 13 {
		t.Fatalf("Expected 13 recorded steps, got %d", len(seen))
	}
	if len(trainer.Metrics()) != len(seen) {
		t.Errorf("Metrics() has %d entries, callback saw %d", len(trainer.Metrics()), len(seen))
	}

	for _, m := range seen {
		want := baseLR * sched.Multiplier(m.Step)
		if math.Abs(m.LearningRate-want) > 1e-12 {
			t.Errorf("Step %d: lr %v, want %v", m.Step, m.LearningRate, want)
		}
		if math.Abs(m.LearningRate-baseLR*m.Multiplier) > 1e-12 {
			t.Errorf("Step %d: lr %v does not match multiplier %v", m.Step, m.LearningRate, m.Multiplier)
		}
	}

	if seen[0].Step != 0 || seen[0].LearningRate != 0 {
		t.Errorf("Expected zero lr at step 0, got %+v", seen[0])
	}
	if seen[len(seen)-1].Step != 59 {
		t.Errorf("Expected last recorded step 59, got %d", seen[len(seen)-1].Step)
	}

	if math.IsNaN(result.EvalLoss) || result.EvalLoss < 0 {
		t.Errorf("Invalid eval loss: %v", result.EvalLoss)
	}
}

func TestTrainReducesLoss(t *testing.T) {
	sched := cosineScheduler(t, 20, 400, 0.05)

	trainer, err := NewTrainer(testConfig(400), 4, sched, nil)
	if err != nil {
		t.Fatalf("Failed to create trainer: %v", err)
	}
	defer trainer.Close()

	ds := testDataset(t)
	before, err := trainer.EvaluateDataset(ds)
	if err != nil {
		t.Fatalf("EvaluateDataset failed: %v", err)
	}

	result, err := trainer.Train(context.Background(), ds, nil)
	if err != nil {
		t.Fatalf("Train failed: %v", err)
	}

	if result.EvalLoss >= before {
		t.Errorf("Expected loss to decrease, before=%v after=%v", before, result.EvalLoss)
	}
}

func TestTrainRecordsSteps(t *testing.T) {
	sched := cosineScheduler(t, 10, 100, 0.01)
	cfg := testConfig(200)
	cfg.RecordEvery = 1

	trainer, err := NewTrainer(cfg, 4, sched, nil)
	if err != nil {
		t.Fatalf("Failed to create trainer: %v", err)
	}
	defer trainer.Close()

	rec := &memRecorder{}
	trainer.SetRecorder(rec, "run-1")

	if _, err := trainer.Train(context.Background(), testDataset(t), nil); err != nil {
		t.Fatalf("Train failed: %v", err)
	}

	if rec.runID != "run-1" {
		t.Errorf("Expected run id run-1, got %q", rec.runID)
	}
	if len(rec.records) != 200 {
		t.Fatalf("Expected 200 records, got %d", len(rec.records))
	}
	// 200 records flushed in batches of flushSize plus a final partial batch
	if rec.calls != 4 {
		t.Errorf("Expected 4 flushes, got %d", rec.calls)
	}
	for i, r := range rec.records {
		if r.Step != i {
			t.Fatalf("Record %d has step %d", i, r.Step)
		}
	}
}

func TestTrainRecorderFailure(t *testing.T) {
	sched := cosineScheduler(t, 0, 100, 0.01)

	trainer, err := NewTrainer(testConfig(3), 4, sched, nil)
	if err != nil {
		t.Fatalf("Failed to create trainer: %v", err)
	}
	defer trainer.Close()

	trainer.SetRecorder(failingRecorder{}, "run-1")
	if _, err := trainer.Train(context.Background(), testDataset(t), nil); err == nil {
		t.Error("Expected error when final flush fails")
	}
}

func TestTrainCancelled(t *testing.T) {
	sched := cosineScheduler(t, 10, 100, 0.01)

	trainer, err := NewTrainer(testConfig(50), 4, sched, nil)
	if err != nil {
		t.Fatalf("Failed to create trainer: %v", err)
	}
	defer trainer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	_, err = trainer.Train(ctx, testDataset(t), func(m StepMetrics) {
		if m.Step >= 10 {
			cancel()
		}
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
	if sched.CurrentStep() != 11 {
		t.Errorf("Expected training to stop after step 10, scheduler at %d", sched.CurrentStep())
	}
}

func TestTrainRejectsNonFiniteRate(t *testing.T) {
	// warmup equal to max steps makes the decay phase divide by zero
	sched := cosineScheduler(t, 5, 5, 0.01)

	trainer, err := NewTrainer(testConfig(20), 4, sched, nil)
	if err != nil {
		t.Fatalf("Failed to create trainer: %v", err)
	}
	defer trainer.Close()

	if _, err := trainer.Train(context.Background(), testDataset(t), nil); err == nil {
		t.Error("Expected error for non-finite learning rate")
	}
	if sched.CurrentStep() != 5 {
		t.Errorf("Expected training to stop at step 5, scheduler at %d", sched.CurrentStep())
	}
}

func TestTrainFeatureMismatch(t *testing.T) {
	sched := cosineScheduler(t, 10, 100, 0.01)

	trainer, err := NewTrainer(testConfig(10), 3, sched, nil)
	if err != nil {
		t.Fatalf("Failed to create trainer: %v", err)
	}
	defer trainer.Close()

	if _, err := trainer.Train(context.Background(), testDataset(t), nil); err == nil {
		t.Error("Expected error for feature mismatch")
	}
}

func TestTrainSavesModel(t *testing.T) {
	sched := cosineScheduler(t, 2, 20, 0.01)
	cfg := testConfig(10)
	cfg.SavePath = filepath.Join(t.TempDir(), "models", "net.gob")

	trainer, err := NewTrainer(cfg, 4, sched, nil)
	if err != nil {
		t.Fatalf("Failed to create trainer: %v", err)
	}
	defer trainer.Close()

	result, err := trainer.Train(context.Background(), testDataset(t), nil)
	if err != nil {
		t.Fatalf("Train failed: %v", err)
	}
	if result.SavedPath != cfg.SavePath {
		t.Errorf("Expected saved path %s, got %s", cfg.SavePath, result.SavedPath)
	}
	if !model.ModelExists(cfg.SavePath) {
		t.Error("Model file not found after training")
	}
}
