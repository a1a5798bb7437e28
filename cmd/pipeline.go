package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/atlasdata/econpipe/internal/analysis"
	"github.com/atlasdata/econpipe/internal/fetcher"
	"github.com/atlasdata/econpipe/internal/ingest"
	"github.com/atlasdata/econpipe/internal/transform"
)

var pipelineCmd = &cobra.Command{
	Use:   "pipeline",
	Short: "Run the full pipeline end to end",
}

var pipelineRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute ingestion, processing, the curated join, and analytics in order",
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
		httpClient := initHTTPClient(cfg)

		wbOpts := ingest.WorldBankOptions{}
		if cfg.WorldBank.MinYear > 0 {
			v := cfg.WorldBank.MinYear
			wbOpts.MinYear = &v
		}
		wb := &ingest.WorldBank{
			Ledger:      led,
			Store:       store,
			Client:      fetcher.NewWorldBank(httpClient, cfg.WorldBank.BaseURL),
			IndicatorID: cfg.WorldBank.Indicator,
		}
		wbRes, err := wb.Run(ctx, wbOpts)
		if err != nil {
			return eris.Wrap(err, "pipeline: ingest worldbank")
		}
		printIngestResult(wbRes)

		wiki := &ingest.Wikipedia{
			Ledger:  led,
			Store:   store,
			Client:  fetcher.NewWikipedia(httpClient),
			PageURL: cfg.Wikipedia.PageURL,
		}
		wikiRes, err := wiki.Run(ctx)
		if err != nil {
			return eris.Wrap(err, "pipeline: ingest wikipedia")
		}
		printIngestResult(wikiRes)

		gdpRows, err := (&transform.WorldBankProcessed{Store: store}).Run(ctx)
		if err != nil {
			return eris.Wrap(err, "pipeline: process worldbank")
		}
		mappingRows, err := (&transform.Mapping{Store: store, OverridePath: cfg.Mapping.OverridePath}).Run(ctx)
		if err != nil {
			return eris.Wrap(err, "pipeline: mapping build")
		}
		co2Rows, err := (&transform.WikipediaProcessed{Store: store}).Run(ctx)
		if err != nil {
			return eris.Wrap(err, "pipeline: process wikipedia")
		}
		zap.L().Info("processed layer rebuilt",
			zap.Int("gdp_rows", gdpRows),
			zap.Int("mapping_rows", mappingRows),
			zap.Int("co2_rows", co2Rows),
		)

		curatedRes, err := (&transform.Curated{Ledger: led, Store: store}).Run(ctx)
		if err != nil {
			return eris.Wrap(err, "pipeline: curated build")
		}
		fmt.Fprintf(os.Stdout, "run %s: %d curated rows under %s\n",
			curatedRes.RunID, curatedRes.Rows, curatedRes.SnapshotDate)

		analyzer := &analysis.Analyzer{Store: store}
		summaries, err := analyzer.WriteCorrelationSummary(ctx, cfg.Analysis.Years)
		if err != nil {
			return eris.Wrap(err, "pipeline: analyze correlation")
		}
		for _, s := range summaries {
			if s.CompletePairs == 0 {
				continue
			}
			if _, err := analyzer.WriteScatter(ctx, s.Year); err != nil {
				return eris.Wrapf(err, "pipeline: scatter %d", s.Year)
			}
		}

		fmt.Fprintf(os.Stdout, "pipeline complete: %d analyzed years\n", len(summaries))
		return nil
	},
}

func init() {
	pipelineCmd.AddCommand(pipelineRunCmd)
	rootCmd.AddCommand(pipelineCmd)
}
