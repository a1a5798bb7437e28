package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/atlasdata/econpipe/internal/model"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect the run ledger",
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded runs, oldest first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		led, err := initLedger(ctx, cfg)
		if err != nil {
			return err
		}
		defer led.Close() //nolint:errcheck

		scope, _ := cmd.Flags().GetString("scope")
		runs, err := led.ListRuns(ctx, scope)
		if err != nil {
			return eris.Wrap(err, "runs list")
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "RUN ID\tSCOPE\tSTATUS\tSTARTED\tROWS\tCHECKPOINT")
		for _, r := range runs {
			rows := "-"
			if r.RowsProcessed != nil {
				rows = fmt.Sprintf("%d", *r.RowsProcessed)
			}
			ckpt := "-"
			if r.LastCheckpoint != nil {
				ckpt = *r.LastCheckpoint
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				r.ID, r.Scope, r.Status, r.StartTS.UTC().Format(time.RFC3339), rows, ckpt)
		}
		return w.Flush()
	},
}

var runsLastCmd = &cobra.Command{
	Use:   "last <scope>",
	Short: "Show the most recent run for a scope",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		led, err := initLedger(ctx, cfg)
		if err != nil {
			return err
		}
		defer led.Close() //nolint:errcheck

		run, err := led.LastRun(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "runs last")
		}
		if run == nil {
			fmt.Fprintf(os.Stdout, "no runs recorded for scope %q\n", args[0])
			return nil
		}

		printRun(run)
		return nil
	},
}

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show one run by id",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		led, err := initLedger(ctx, cfg)
		if err != nil {
			return err
		}
		defer led.Close() //nolint:errcheck

		runs, err := led.ListRuns(ctx, "")
		if err != nil {
			return eris.Wrap(err, "runs show")
		}
		for i := range runs {
			if runs[i].ID == args[0] {
				printRun(&runs[i])
				return nil
			}
		}
		return eris.Errorf("no run recorded with id %q", args[0])
	},
}

func printRun(run *model.Run) {
	fmt.Fprintf(os.Stdout, "run %s (%s): %s\n", run.ID, run.Scope, run.Status)
	fmt.Fprintf(os.Stdout, "started: %s\n", run.StartTS.UTC().Format(time.RFC3339))
	if run.EndTS != nil {
		fmt.Fprintf(os.Stdout, "ended: %s\n", run.EndTS.UTC().Format(time.RFC3339))
	}
	if run.RowsProcessed != nil {
		fmt.Fprintf(os.Stdout, "rows: %d\n", *run.RowsProcessed)
	}
	if run.LastCheckpoint != nil {
		fmt.Fprintf(os.Stdout, "checkpoint: %s\n", *run.LastCheckpoint)
	}
	if run.ErrorMessage != nil {
		fmt.Fprintf(os.Stdout, "error: %s\n", *run.ErrorMessage)
	}
}

func init() {
	runsListCmd.Flags().String("scope", "", "filter runs by scope")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	runsCmd.AddCommand(runsLastCmd)
	rootCmd.AddCommand(runsCmd)
}
