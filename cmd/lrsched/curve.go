package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/thyrook/lrsched/internal/iface"
	"github.com/thyrook/lrsched/internal/schedule"
)

var (
	curveType         string
	curveLR           float64
	curveStart        int
	curveEnd          int
	curveStride       int
	curvePoints       int
	curveCSV          string
	curveSkipValidate bool
)

var curveCmd = &cobra.Command{
	Use:   "curve",
	Short: "Sample a schedule and print its multiplier curve",
	Long: `Evaluates the configured schedule over a step range and prints the multiplier
and learning rate at each sampled step, followed by a summary.

Types: ` + strings.Join(schedule.Kinds(), ", "),
	RunE: runCurve,
}

func init() {
	curveCmd.Flags().StringVarP(&curveType, "type", "t", "", "Schedule type, overrides the config")
	curveCmd.Flags().Float64Var(&curveLR, "lr", 0, "Initial learning rate, overrides the config")
	curveCmd.Flags().IntVar(&curveStart, "start", 0, "First step")
	curveCmd.Flags().IntVar(&curveEnd, "end", -1, "Last step (default: the schedule's horizon)")
	curveCmd.Flags().IntVar(&curveStride, "stride", 0, "Steps between samples (default: derived from --points)")
	curveCmd.Flags().IntVar(&curvePoints, "points", 20, "Approximate number of samples when --stride is not set")
	curveCmd.Flags().StringVar(&curveCSV, "csv", "", "Write the curve as CSV to this file ('-' for stdout)")
	curveCmd.Flags().BoolVar(&curveSkipValidate, "skip-validate", false, "Evaluate the schedule without parameter validation")
	rootCmd.AddCommand(curveCmd)
}

func runCurve(cmd *cobra.Command, args []string) error {
	if curveType != "" {
		cfg.Schedule.Type = curveType
	}
	if cmd.Flags().Changed("lr") {
		cfg.Schedule.InitialLR = curveLR
	}

	sc, err := cfg.ScheduleConfig()
	if err != nil {
		return err
	}
	if !curveSkipValidate {
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}
	}

	fn, err := schedule.Build(sc, cfg.Schedule.InitialLR)
	if err != nil {
		return err
	}

	end := curveEnd
	if end < 0 {
		end = horizon(sc)
	}
	stride := curveStride
	if stride <= 0 {
		stride = defaultStride(curveStart, end, curvePoints)
	}

	points, err := schedule.Sample(fn, curveStart, end, stride)
	if err != nil {
		return err
	}

	logger.Debug("Sampled schedule",
		zap.String("type", sc.Kind.String()),
		zap.Int("start", curveStart),
		zap.Int("end", end),
		zap.Int("stride", stride),
		zap.Int("points", len(points)),
	)

	out := cmd.OutOrStdout()
	if curveCSV != "" {
		if curveCSV == "-" {
			return iface.WriteCurveCSV(out, points, cfg.Schedule.InitialLR)
		}
		f, err := os.Create(curveCSV)
		if err != nil {
			return fmt.Errorf("failed to create csv file: %w", err)
		}
		defer f.Close()
		if err := iface.WriteCurveCSV(f, points, cfg.Schedule.InitialLR); err != nil {
			return fmt.Errorf("failed to write csv: %w", err)
		}
		logger.Info("Curve written", zap.String("path", curveCSV), zap.Int("points", len(points)))
	}

	cli := iface.NewCLI(out, false)
	cli.PrintCurve(points, cfg.Schedule.InitialLR)
	cli.PrintSummary(sc.Kind.String(), schedule.Summarize(points))
	return nil
}

// horizon is the step range worth plotting for a schedule
func horizon(sc schedule.Config) int {
	switch sc.Kind {
	case schedule.KindMultiStep:
		return sc.MultiStep.MaxSteps
	case schedule.KindExponentialDecay:
		return sc.ExponentialDecay.MaxSteps
	case schedule.KindCosineDecay:
		return sc.CosineDecay.MaxSteps
	case schedule.KindExponential:
		return sc.Exponential.MaxSteps
	case schedule.KindMultiStepWarmup:
		ms := sc.MultiStepWarmup.Milestones
		if len(ms) == 0 {
			return 2 * sc.MultiStepWarmup.WarmUpEnd
		}
		last := ms[len(ms)-1]
		return last + last/5
	}
	return 0
}

func defaultStride(start, end, points int) int {
	if points <= 1 || end <= start {
		return 1
	}
	stride := (end - start) / points
	if stride < 1 {
		return 1
	}
	return stride
}
