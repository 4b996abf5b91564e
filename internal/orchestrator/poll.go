package orchestrator

import (
	"context"
	"strings"

	"github.com/kiranshivaraju/explainer/internal/metrics"
	"github.com/kiranshivaraju/explainer/internal/videoapi"
	"github.com/kiranshivaraju/explainer/pkg/models"
)

// Progress reported for remote states when the service sends none.
const (
	progressQueued      = 15
	progressScript      = 30
	progressRendering   = 70
	progressReady       = 90
	progressDownloading = 95
)

// poll watches the remote job until it completes or fails. It reports true
// once the video is ready to download.
func (o *Orchestrator) poll(ctx context.Context, j *job, jobID string) bool {
	consecutive := 0
	for {
		wait := o.pollInterval
		if consecutive > 0 {
			wait += o.pollErrorDelay
		}
		if err := o.pollWait(ctx, wait); err != nil {
			o.abort(ctx, j)
			return false
		}

		resp, err := o.client.Status(ctx, jobID)
		if err != nil {
			if ctx.Err() != nil {
				o.abort(ctx, j)
				return false
			}
			consecutive++
			metrics.PollErrors.Inc()
			info := o.asInfo(err)
			o.logger.Warn("status poll failed", "request_id", j.id, "job_id", jobID, "consecutive", consecutive, "kind", info.Kind, "error", err)
			if consecutive >= o.maxPollErrors {
				o.fail(j, phasePoll, info, 0)
				return false
			}
			continue
		}
		consecutive = 0

		switch resp.Status {
		case videoapi.RemoteQueued:
			o.progress(j, models.StateQueued, progressQueued, serverMessage(resp.Message, msgQueued))
		case videoapi.RemoteGeneratingScript:
			o.progress(j, models.StateGeneratingScript, serverProgress(resp.Progress, progressScript), serverMessage(resp.Message, "Generating script..."))
		case videoapi.RemoteRenderingVideo:
			o.progress(j, models.StateRenderingVideo, serverProgress(resp.Progress, progressRendering), serverMessage(resp.Message, "Rendering video..."))
		case videoapi.RemoteCompleted:
			o.progress(j, models.StateDownloading, progressReady, "Video ready. Downloading...")
			return true
		case videoapi.RemoteFailed:
			info := o.classifier.GenerationFailure(resp.Message)
			o.fail(j, phasePoll, info, 0)
			return false
		}
	}
}

func (o *Orchestrator) progress(j *job, state models.State, progress int, message string) {
	o.update(j, func(s *models.JobStatus) {
		s.State = state
		s.Progress = progress
		s.Message = message
	})
}

func serverProgress(p *int, fallback int) int {
	if p == nil {
		return fallback
	}
	return min(max(*p, 0), 100)
}

// serverMessage prefers the remote service's own wording.
func serverMessage(msg, fallback string) string {
	if m := strings.TrimSpace(msg); m != "" {
		return m
	}
	return fallback
}
