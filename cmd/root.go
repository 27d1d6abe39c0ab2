package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hdx-tools/pcode-detector/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "pcode-detector",
	Short: "Detect p-coded resources in the humanitarian data catalog",
	Long:  "Downloads catalog resources, samples their tables, and decides whether they carry administrative p-codes from the global reference list.",
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
