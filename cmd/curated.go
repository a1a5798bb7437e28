package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/atlasdata/econpipe/internal/transform"
)

var curatedCmd = &cobra.Command{
	Use:   "curated",
	Short: "Build the curated country-year table",
}

var curatedBuildCmd = &cobra.Command{
	Use:   "build",
	Short: "Join the processed layers into a new curated snapshot",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		led, err := initLedger(ctx, cfg)
		if err != nil {
			return err
		}
		defer led.Close() //nolint:errcheck
		store, err := initStorage(ctx, cfg)
		if err != nil {
			return err
		}

		stage := &transform.Curated{Ledger: led, Store: store}
		res, err := stage.Run(ctx)
		if err != nil {
			return eris.Wrap(err, "curated build")
		}
		fmt.Fprintf(os.Stdout, "run %s: %d curated rows under %s (%d gdp rows without co2)\n",
			res.RunID, res.Rows, res.SnapshotDate, res.MissingCO2)
		return nil
	},
}

func init() {
	curatedCmd.AddCommand(curatedBuildCmd)
	rootCmd.AddCommand(curatedCmd)
}
