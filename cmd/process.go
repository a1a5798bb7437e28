package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/atlasdata/econpipe/internal/transform"
)

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Convert raw batches into the typed processed layer",
}

var processWorldBankCmd = &cobra.Command{
	Use:   "worldbank",
	Short: "Build the processed GDP partitions from raw batches",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		store, err := initStorage(ctx, cfg)
		if err != nil {
			return err
		}

		stage := &transform.WorldBankProcessed{Store: store}
		n, err := stage.Run(ctx)
		if err != nil {
			return eris.Wrap(err, "process worldbank")
		}
		fmt.Fprintf(os.Stdout, "processed %d gdp rows\n", n)
		return nil
	},
}

var processWikipediaCmd = &cobra.Command{
	Use:   "wikipedia",
	Short: "Unpivot the latest scraped table into processed CO2 partitions",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		store, err := initStorage(ctx, cfg)
		if err != nil {
			return err
		}

		stage := &transform.WikipediaProcessed{Store: store}
		n, err := stage.Run(ctx)
		if err != nil {
			return eris.Wrap(err, "process wikipedia")
		}
		fmt.Fprintf(os.Stdout, "processed %d co2 rows\n", n)
		return nil
	},
}

func init() {
	processCmd.AddCommand(processWorldBankCmd)
	processCmd.AddCommand(processWikipediaCmd)
	rootCmd.AddCommand(processCmd)
}
