package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/firwatch/notamwatch/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "notamwatch",
	Short: "NOTAM monitor for the Tehran FIR",
	Long:  "Polls the NOTAM feed, tracks record lifecycle across runs, enriches new records with a structural decode and a plain-language explanation, and notifies a Telegram channel.",
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
