// Package cli implements explainerctl, the operator command line for the
// explainer service.
package cli

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/kiranshivaraju/explainer/internal/app"
	"github.com/kiranshivaraju/explainer/internal/config"
	"github.com/spf13/cobra"
)

var isDebug bool

var rootCmd = &cobra.Command{
	Use:   "explainerctl",
	Short: "Explainer operator tool",
	Long:  `explainerctl runs video explanation jobs locally and manages API keys and cached thumbnails.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		_ = godotenv.Load()
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&isDebug, "debug", false, "enable debug logging")
}

// loadConfig loads configuration and installs the default logger. It exits
// the process when the configuration is invalid.
func loadConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(app.NewLogger("development", os.Stderr, isDebug))
	return cfg
}
