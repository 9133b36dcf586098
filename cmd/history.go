package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/firwatch/notamwatch/internal/model"
)

var (
	historyLimit int
	historyJSON  bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent run history",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		led, err := initLedger(ctx)
		if err != nil {
			return err
		}
		defer led.Close()

		runs, err := led.List(ctx, historyLimit)
		if err != nil {
			return eris.Wrap(err, "list runs")
		}

		if historyJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(runs)
		}

		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No runs recorded.")
			return nil
		}
		formatHistory(os.Stdout, runs)
		return nil
	},
}

func formatHistory(w io.Writer, runs []model.RunStats) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RAN AT\tACTIVE\tNEW\tEXPIRED\tBUFFERED\tNOTIFIED\tDURATION")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%d\t%dms\n",
			r.Timestamp.Format("2006-01-02 15:04:05"),
			r.Active, r.New, r.Expired, r.Buffered, r.Notified, r.DurationMS,
		)
	}
	tw.Flush()
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "number of runs to show")
	historyCmd.Flags().BoolVar(&historyJSON, "json", false, "print history as JSON")
	rootCmd.AddCommand(historyCmd)
}
