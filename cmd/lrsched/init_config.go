package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/thyrook/lrsched/internal/config"
	"github.com/thyrook/lrsched/internal/schedule"
)

var (
	initType  string
	initForce bool
)

var initConfigCmd = &cobra.Command{
	Use:   "init-config <path>",
	Short: "Write a default config file",
	Long:  "Writes the default configuration to path, as YAML for .yaml/.yml files and JSON otherwise.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		if _, err := os.Stat(path); err == nil && !initForce {
			return fmt.Errorf("%s already exists, use --force to overwrite", path)
		}

		c := config.DefaultConfig()
		if initType != "" {
			kind, err := schedule.ParseKind(initType)
			if err != nil {
				return err
			}
			c.Schedule.Type = kind.String()
		}

		if err := c.Save(path); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
		return nil
	},
}

func init() {
	initConfigCmd.Flags().StringVarP(&initType, "type", "t", "", "Schedule type to select in the written config")
	initConfigCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing file")
	rootCmd.AddCommand(initConfigCmd)
}
