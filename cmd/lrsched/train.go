package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/thyrook/lrsched/internal/data"
	"github.com/thyrook/lrsched/internal/model"
	"github.com/thyrook/lrsched/internal/storage"
	"github.com/thyrook/lrsched/internal/training"
)

var (
	trainType     string
	trainLR       float64
	trainSteps    int
	trainSeed     int64
	trainNoRecord bool
	trainNoSave   bool
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train a small regression network with the configured schedule",
	Long: `Generates a synthetic regression dataset, trains a two-layer network with SGD
whose learning rate follows the configured schedule, and records the
per-step learning rate and loss in the run store.`,
	RunE: runTrain,
}

func init() {
	trainCmd.Flags().StringVarP(&trainType, "type", "t", "", "Schedule type, overrides the config")
	trainCmd.Flags().Float64Var(&trainLR, "lr", 0, "Initial learning rate, overrides the config")
	trainCmd.Flags().IntVar(&trainSteps, "steps", 0, "Training steps, overrides the config")
	trainCmd.Flags().Int64Var(&trainSeed, "seed", 0, "Dataset seed, overrides the config")
	trainCmd.Flags().BoolVar(&trainNoRecord, "no-record", false, "Do not record the run in the store")
	trainCmd.Flags().BoolVar(&trainNoSave, "no-save", false, "Do not save the trained model")
	rootCmd.AddCommand(trainCmd)
}

func runTrain(cmd *cobra.Command, args []string) error {
	if trainType != "" {
		cfg.Schedule.Type = trainType
	}
	if cmd.Flags().Changed("lr") {
		cfg.Schedule.InitialLR = trainLR
	}
	if trainSteps > 0 {
		cfg.Training.Steps = trainSteps
	}
	if cmd.Flags().Changed("seed") {
		cfg.Training.Seed = trainSeed
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	sc, err := cfg.ScheduleConfig()
	if err != nil {
		return err
	}
	sched, err := model.NewScheduler(sc, cfg.Schedule.InitialLR)
	if err != nil {
		return fmt.Errorf("failed to build schedule: %w", err)
	}

	ds, err := data.NewSynthetic(data.SyntheticConfig{
		Samples:  cfg.Training.Samples,
		Features: cfg.Training.Features,
		Noise:    cfg.Training.Noise,
		Seed:     cfg.Training.Seed,
	})
	if err != nil {
		return fmt.Errorf("failed to create dataset: %w", err)
	}

	tc := &training.Config{
		Steps:        cfg.Training.Steps,
		BatchSize:    cfg.Training.BatchSize,
		HiddenSize:   cfg.Training.HiddenSize,
		GradientClip: training.DefaultConfig().GradientClip,
		LogEvery:     cfg.Training.LogEvery,
		RecordEvery:  cfg.Training.RecordEvery,
	}
	if !trainNoSave {
		tc.SavePath = cfg.Training.ModelPath
	}

	trainer, err := training.NewTrainer(tc, ds.Features(), sched, logger)
	if err != nil {
		return err
	}
	defer trainer.Close()

	var store *storage.RunStore
	var runID string
	if !trainNoRecord {
		store, err = storage.NewRunStore(cfg.Storage.DBPath)
		if err != nil {
			return fmt.Errorf("failed to open run store: %w", err)
		}
		defer store.Close()

		runID, err = store.CreateRun(storage.RunMeta{
			Schedule:     sc.Kind.String(),
			BaseLR:       cfg.Schedule.InitialLR,
			PlannedSteps: cfg.Training.Steps,
		})
		if err != nil {
			return fmt.Errorf("failed to create run: %w", err)
		}
		trainer.SetRecorder(store, runID)
		logger.Info("Recording run", zap.String("run_id", runID), zap.String("db", cfg.Storage.DBPath))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := trainer.Train(ctx, ds, nil)
	if err != nil {
		return fmt.Errorf("training failed: %w", err)
	}

	if store != nil {
		if err := store.FinishRun(runID, result.Steps, result.EvalLoss); err != nil {
			return fmt.Errorf("failed to finish run: %w", err)
		}
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Training completed")
	if runID != "" {
		fmt.Fprintf(out, "  Run:        %s\n", runID)
	}
	fmt.Fprintf(out, "  Schedule:   %s (base lr %g)\n", sc.Kind, cfg.Schedule.InitialLR)
	fmt.Fprintf(out, "  Steps:      %d\n", result.Steps)
	fmt.Fprintf(out, "  Last loss:  %.6f\n", result.LastLoss)
	fmt.Fprintf(out, "  Eval loss:  %.6f\n", result.EvalLoss)
	fmt.Fprintf(out, "  Final lr:   %g\n", sched.GetCurrentLR())
	fmt.Fprintf(out, "  Time:       %v\n", result.Duration)
	if result.SavedPath != "" {
		fmt.Fprintf(out, "  Model:      %s\n", result.SavedPath)
	}
	return nil
}
