package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/atlasdata/econpipe/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "econpipe",
	Short: "Batch pipeline joining World Bank GDP and Wikipedia CO2 data",
	Long:  "Ingests GDP per capita from the World Bank API and CO2 per capita from Wikipedia, reconciles countries, joins them into a curated country-year table, and computes analytical artifacts.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
