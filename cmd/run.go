package main

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var runJSON bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute one monitor cycle",
	Long:  "Fetches the current NOTAM snapshot, reconciles it against tracked state, enriches and notifies new records, and appends the run to the ledger.",
	RunE: func(cmd *cobra.Command, args []string) error {
		deadline := time.Duration(cfg.Run.DeadlineSecs) * time.Second
		ctx, cancel := context.WithTimeout(cmd.Context(), deadline)
		defer cancel()

		p, led, err := buildPipeline(ctx)
		if err != nil {
			return err
		}
		defer led.Close()

		stats, err := p.Run(ctx)
		if err != nil {
			zap.L().Error("run failed", zap.Error(err))
			return err
		}

		if runJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(stats)
		}
		return nil
	},
}

func init() {
	runCmd.Flags().BoolVar(&runJSON, "json", false, "print run stats as JSON")
	rootCmd.AddCommand(runCmd)
}
