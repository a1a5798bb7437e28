package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/atlasdata/econpipe/internal/transform"
)

var mappingCmd = &cobra.Command{
	Use:   "mapping",
	Short: "Manage the country reconciliation table",
}

var mappingBuildCmd = &cobra.Command{
	Use:   "build",
	Short: "Rebuild the country mapping from processed GDP data plus overrides",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		store, err := initStorage(ctx, cfg)
		if err != nil {
			return err
		}

		overridePath := cfg.Mapping.OverridePath
		if cmd.Flags().Changed("overrides") {
			overridePath, _ = cmd.Flags().GetString("overrides")
		}

		stage := &transform.Mapping{Store: store, OverridePath: overridePath}
		n, err := stage.Run(ctx)
		if err != nil {
			return eris.Wrap(err, "mapping build")
		}
		fmt.Fprintf(os.Stdout, "country mapping rebuilt: %d entries\n", n)
		return nil
	},
}

func init() {
	mappingBuildCmd.Flags().String("overrides", "", "path to the override CSV (overrides config)")

	mappingCmd.AddCommand(mappingBuildCmd)
	rootCmd.AddCommand(mappingCmd)
}
