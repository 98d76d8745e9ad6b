package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/thyrook/lrsched/internal/iface"
	"github.com/thyrook/lrsched/internal/storage"
)

var runsDelete bool

var runsCmd = &cobra.Command{
	Use:   "runs [run-id]",
	Short: "List recorded training runs or show one run's steps",
	Long: `Without arguments, lists every run in the store.
With a run ID, prints that run's recorded steps.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRuns,
}

func init() {
	runsCmd.Flags().BoolVar(&runsDelete, "delete", false, "Delete the given run")
	rootCmd.AddCommand(runsCmd)
}

func runRuns(cmd *cobra.Command, args []string) error {
	store, err := storage.NewRunStore(cfg.Storage.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open run store: %w", err)
	}
	defer store.Close()

	out := cmd.OutOrStdout()
	cli := iface.NewCLI(out, false)

	if len(args) == 0 {
		if runsDelete {
			return errors.New("--delete needs a run ID")
		}
		runs, err := store.ListRuns()
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Fprintln(out, "No runs found")
			return nil
		}
		cli.PrintRuns(runs)
		return nil
	}

	runID := args[0]
	if runsDelete {
		if err := store.DeleteRun(runID); err != nil {
			return err
		}
		fmt.Fprintf(out, "Deleted run %s\n", runID)
		return nil
	}

	meta, err := store.GetRun(runID)
	if err != nil {
		return err
	}
	steps, err := store.Steps(runID)
	if err != nil {
		return err
	}

	cli.PrintRuns([]storage.RunMeta{meta})
	fmt.Fprintln(out)
	cli.PrintSteps(steps)
	return nil
}
