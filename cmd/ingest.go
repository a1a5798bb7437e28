package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/atlasdata/econpipe/internal/fetcher"
	"github.com/atlasdata/econpipe/internal/ingest"
	"github.com/atlasdata/econpipe/internal/model"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Run the incremental ingestion stages",
}

var ingestWorldBankCmd = &cobra.Command{
	Use:   "worldbank",
	Short: "Ingest GDP per capita from the World Bank API",
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

		opts := ingest.WorldBankOptions{}
		if cmd.Flags().Changed("min-year") {
			v, _ := cmd.Flags().GetInt("min-year")
			opts.MinYear = &v
		} else if cfg.WorldBank.MinYear > 0 {
			v := cfg.WorldBank.MinYear
			opts.MinYear = &v
		}
		if cmd.Flags().Changed("max-year") {
			v, _ := cmd.Flags().GetInt("max-year")
			opts.MaxYear = &v
		}

		stage := &ingest.WorldBank{
			Ledger:      led,
			Store:       store,
			Client:      fetcher.NewWorldBank(initHTTPClient(cfg), cfg.WorldBank.BaseURL),
			IndicatorID: cfg.WorldBank.Indicator,
		}

		res, err := stage.Run(ctx, opts)
		if err != nil {
			return eris.Wrap(err, "ingest worldbank")
		}
		printIngestResult(res)
		return nil
	},
}

var ingestWikipediaCmd = &cobra.Command{
	Use:   "wikipedia",
	Short: "Scrape the CO2 emissions table from Wikipedia",
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

		stage := &ingest.Wikipedia{
			Ledger:  led,
			Store:   store,
			Client:  fetcher.NewWikipedia(initHTTPClient(cfg)),
			PageURL: cfg.Wikipedia.PageURL,
		}

		res, err := stage.Run(ctx)
		if err != nil {
			return eris.Wrap(err, "ingest wikipedia")
		}
		printIngestResult(res)
		return nil
	},
}

func printIngestResult(res *ingest.Result) {
	if res.Status == model.RunStatusSkipped {
		fmt.Fprintf(os.Stdout, "run %s: SKIPPED (checkpoint %s unchanged)\n", res.RunID, res.Checkpoint)
		return
	}
	fmt.Fprintf(os.Stdout, "run %s: %s, %d rows, checkpoint %s\n",
		res.RunID, res.Status, res.Rows, res.Checkpoint)
	if res.RawKey != "" {
		fmt.Fprintf(os.Stdout, "raw batch: %s\n", res.RawKey)
	}
}

func init() {
	ingestWorldBankCmd.Flags().Int("min-year", 0, "lowest year to ingest (overrides config)")
	ingestWorldBankCmd.Flags().Int("max-year", 0, "highest year to ingest (default: no upper bound)")

	ingestCmd.AddCommand(ingestWorldBankCmd)
	ingestCmd.AddCommand(ingestWikipediaCmd)
	rootCmd.AddCommand(ingestCmd)
}
