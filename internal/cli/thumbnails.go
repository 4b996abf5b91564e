package cli

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/kiranshivaraju/explainer/internal/media"
	"github.com/spf13/cobra"
)

var thumbMaxAge time.Duration

var thumbnailsCmd = &cobra.Command{
	Use:   "thumbnails",
	Short: "Manage cached video thumbnails",
}

var thumbnailsCleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove thumbnails older than --max-age",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()

		maxAge := cfg.Storage.ThumbnailMaxAge
		if cmd.Flags().Changed("max-age") {
			maxAge = thumbMaxAge
		}

		n, err := media.CleanupThumbnails(cfg.Storage.ThumbnailsDir, maxAge, time.Now())
		if err != nil {
			slog.Error("Failed to clean thumbnails", "error", err)
			os.Exit(1)
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "removed %d thumbnails from %s\n", n, cfg.Storage.ThumbnailsDir)
	},
}

func init() {
	thumbnailsCleanCmd.Flags().DurationVar(&thumbMaxAge, "max-age", 7*24*time.Hour, "remove thumbnails not modified within this duration")
	thumbnailsCmd.AddCommand(thumbnailsCleanCmd)
	rootCmd.AddCommand(thumbnailsCmd)
}
