package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/thyrook/lrsched/internal/config"
	"github.com/thyrook/lrsched/internal/iface"
)

var (
	configPath string
	logLevel   string

	cfg    *config.Config
	logger *iface.Logger
)

var rootCmd = &cobra.Command{
	Use:   "lrsched",
	Short: "Learning-rate schedules for gradient-descent training",
	Long: `lrsched builds step-indexed learning-rate multipliers (multi-step, exponential,
cosine with warmup and more), plots their curves, and drives a small training
run with the schedule attached to the optimizer.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadConfig(configPath)
		if err != nil {
			return err
		}
		cfg = c

		level := cfg.Interface.LogLevel
		if cmd.Flags().Changed("log-level") {
			level = logLevel
		}

		l, err := iface.NewLogger(cfg.Interface.LogPath, level)
		if err != nil {
			return fmt.Errorf("failed to create logger: %w", err)
		}
		logger = l
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			logger.Sync()
			logger.Close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (JSON or YAML), defaults are used when empty")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
}

// loadConfig returns the defaults when path is empty
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.DefaultConfig(), nil
	}
	c, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return c, nil
}
