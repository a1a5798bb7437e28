package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var checkpointCmd = &cobra.Command{
	Use:   "checkpoint",
	Short: "Inspect and override source checkpoints",
}

var checkpointGetCmd = &cobra.Command{
	Use:   "get <source>",
	Short: "Print the stored checkpoint for a source",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		led, err := initLedger(ctx, cfg)
		if err != nil {
			return err
		}
		defer led.Close() //nolint:errcheck

		value, err := led.LoadCheckpoint(ctx, args[0], "")
		if err != nil {
			return eris.Wrap(err, "checkpoint get")
		}
		if value == "" {
			fmt.Fprintf(os.Stdout, "no checkpoint stored for %q\n", args[0])
			return nil
		}
		fmt.Fprintf(os.Stdout, "%s = %s\n", args[0], value)
		return nil
	},
}

var checkpointSetCmd = &cobra.Command{
	Use:   "set <source> <value>",
	Short: "Override the stored checkpoint for a source",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		led, err := initLedger(ctx, cfg)
		if err != nil {
			return err
		}
		defer led.Close() //nolint:errcheck

		if err := led.SaveCheckpoint(ctx, args[0], args[1]); err != nil {
			return eris.Wrap(err, "checkpoint set")
		}
		fmt.Fprintf(os.Stdout, "%s = %s\n", args[0], args[1])
		return nil
	},
}

var checkpointListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all stored checkpoints",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		led, err := initLedger(ctx, cfg)
		if err != nil {
			return err
		}
		defer led.Close() //nolint:errcheck

		checkpoints, err := led.ListCheckpoints(ctx)
		if err != nil {
			return eris.Wrap(err, "checkpoint list")
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "SOURCE\tVALUE")
		for _, cp := range checkpoints {
			fmt.Fprintf(w, "%s\t%s\n", cp.Source, cp.Value)
		}
		return w.Flush()
	},
}

func init() {
	checkpointCmd.AddCommand(checkpointGetCmd)
	checkpointCmd.AddCommand(checkpointSetCmd)
	checkpointCmd.AddCommand(checkpointListCmd)
	rootCmd.AddCommand(checkpointCmd)
}
