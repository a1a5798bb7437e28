package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/atlasdata/econpipe/internal/analysis"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Produce analytics artifacts from the curated table",
}

var analyzeCorrelationCmd = &cobra.Command{
	Use:   "correlation",
	Short: "Write the per-year correlation summary (CSV and XLSX)",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		store, err := initStorage(ctx, cfg)
		if err != nil {
			return err
		}

		years := cfg.Analysis.Years
		if cmd.Flags().Changed("years") {
			years, _ = cmd.Flags().GetIntSlice("years")
		}

		analyzer := &analysis.Analyzer{Store: store}
		summaries, err := analyzer.WriteCorrelationSummary(ctx, years)
		if err != nil {
			return eris.Wrap(err, "analyze correlation")
		}

		for _, s := range summaries {
			r := "n/a"
			if s.PearsonR != nil {
				r = fmt.Sprintf("%.4f", *s.PearsonR)
			}
			fmt.Fprintf(os.Stdout, "%d: %d complete pairs, pearson_r=%s\n",
				s.Year, s.CompletePairs, r)
		}
		fmt.Fprintf(os.Stdout, "wrote %s and %s\n",
			analysis.CorrelationCSVKey, analysis.CorrelationXLSXKey)
		return nil
	},
}

var analyzeScatterCmd = &cobra.Command{
	Use:   "scatter",
	Short: "Render the GDP vs CO2 scatter plot for one year",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		year, _ := cmd.Flags().GetInt("year")
		if year <= 0 {
			return eris.New("analyze scatter: --year is required")
		}

		store, err := initStorage(ctx, cfg)
		if err != nil {
			return err
		}

		analyzer := &analysis.Analyzer{Store: store}
		key, err := analyzer.WriteScatter(ctx, year)
		if err != nil {
			return eris.Wrap(err, "analyze scatter")
		}
		fmt.Fprintf(os.Stdout, "wrote %s\n", key)
		return nil
	},
}

func init() {
	analyzeCorrelationCmd.Flags().IntSlice("years", nil, "years to summarize (default: all curated years)")
	analyzeScatterCmd.Flags().Int("year", 0, "curated year to plot")

	analyzeCmd.AddCommand(analyzeCorrelationCmd)
	analyzeCmd.AddCommand(analyzeScatterCmd)
	rootCmd.AddCommand(analyzeCmd)
}
