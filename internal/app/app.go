// Package app wires the video pipeline from configuration. The HTTP server
// and the operator CLI share it.
package app

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/kiranshivaraju/explainer/internal/config"
	"github.com/kiranshivaraju/explainer/internal/download"
	"github.com/kiranshivaraju/explainer/internal/media"
	"github.com/kiranshivaraju/explainer/internal/orchestrator"
	"github.com/kiranshivaraju/explainer/internal/videoapi"
	"github.com/lmittmann/tint"
)

// NewLogger returns a colored text logger in development and a JSON logger
// everywhere else.
func NewLogger(env string, w io.Writer, debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	if env == "development" {
		return slog.New(tint.NewHandler(w, &tint.Options{
			Level:      level,
			TimeFormat: time.RFC3339,
		}))
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

// Pipeline is the wired remote client, downloader and orchestrator.
type Pipeline struct {
	Client       *videoapi.HTTPClient
	Downloader   *download.Pipeline
	Orchestrator *orchestrator.Orchestrator
}

// NewPipeline builds the orchestrator and its collaborators from cfg. The
// videos directory is created if it is missing.
func NewPipeline(cfg *config.Config, logger *slog.Logger) (*Pipeline, error) {
	if err := os.MkdirAll(cfg.Storage.VideosDir, 0o755); err != nil {
		return nil, err
	}

	client := videoapi.NewHTTPClient(
		cfg.VideoAPI.BaseURL,
		cfg.VideoAPI.RequestTimeout,
		cfg.VideoAPI.ConnectTimeout,
		cfg.VideoAPI.HeaderTimeout,
	)

	extractor := media.NewFFmpeg(cfg.Media.FFprobePath, cfg.Media.FFmpegPath, cfg.Storage.ThumbnailsDir)
	dl := download.New(client, cfg.Storage.VideosDir,
		download.WithExtractor(extractor),
		download.WithExtension(cfg.Storage.Extension),
		download.WithMinFreeBytes(cfg.Storage.MinFreeBytes),
		download.WithLogger(logger),
	)

	orch := orchestrator.New(client, dl,
		orchestrator.WithPollInterval(cfg.Orchestrator.PollInterval),
		orchestrator.WithPollErrorDelay(cfg.Orchestrator.PollErrorDelay),
		orchestrator.WithMaxPollErrors(cfg.Orchestrator.MaxPollErrors),
		orchestrator.WithJobTimeout(cfg.Orchestrator.JobTimeout),
		orchestrator.WithLogger(logger),
	)

	return &Pipeline{Client: client, Downloader: dl, Orchestrator: orch}, nil
}
