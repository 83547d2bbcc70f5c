package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/drususdark/audit-inventory-mvp/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "inventory-audit",
	Short: "Inventory audit report scoring",
	Long:  "Receives store inventory reports (text, PDF or Excel), extracts their text, scores them 0-100 with an AI provider or heuristic fallback, and ranks stores by their scores.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if err := c.Validate(); err != nil {
			return err
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
