package orchestrator

import (
	"context"
	"time"

	"github.com/kiranshivaraju/explainer/internal/download"
	"github.com/kiranshivaraju/explainer/pkg/models"
)

// downloadWithRetry fetches the finished video and publishes COMPLETED.
// STORAGE_FULL is never retried on a timer: the user has to free space first.
func (o *Orchestrator) downloadWithRetry(ctx context.Context, j *job, jobID string) {
	for attempt := 0; ; attempt++ {
		msg := "Downloading video..."
		if attempt > 0 {
			msg = "Retrying download..."
		}
		o.update(j, func(s *models.JobStatus) {
			s.State = models.StateDownloading
			s.Progress = progressDownloading
			s.Message = msg
			if attempt > 0 {
				s.RetryCount++
			}
		})

		art, err := o.downloader.Fetch(ctx, jobID)
		if err == nil {
			o.complete(j, art)
			return
		}
		if ctx.Err() != nil {
			o.abort(ctx, j)
			return
		}

		info := o.asInfo(err)
		o.logger.Warn("video download failed", "request_id", j.id, "job_id", jobID, "kind", info.Kind, "attempt", attempt+1, "error", err)
		if info.Kind == models.ErrorStorageFull {
			o.fail(j, phaseDownload, info, attempt)
			return
		}
		if !o.retryOrFail(ctx, j, phaseDownload, info, attempt, models.StateDownloading) {
			return
		}
	}
}

func (o *Orchestrator) complete(j *job, art *download.Artifact) {
	o.update(j, func(s *models.JobStatus) {
		s.State = models.StateCompleted
		s.Progress = 100
		s.Message = "Video ready"
		s.LocalFilePath = art.Path
		s.FileSizeBytes = art.SizeBytes
		s.DurationSeconds = int(art.Duration / time.Second)
		s.ThumbnailPath = art.ThumbnailPath
	})
	o.logger.Info("video job completed", "request_id", j.id, "path", art.Path, "size_bytes", art.SizeBytes)
}
