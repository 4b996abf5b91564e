package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/kiranshivaraju/explainer/internal/classify"
	"github.com/kiranshivaraju/explainer/internal/metrics"
	"github.com/kiranshivaraju/explainer/internal/videoapi"
	"github.com/kiranshivaraju/explainer/pkg/models"
)

const (
	phaseSubmit   = "submit"
	phasePoll     = "poll"
	phaseDownload = "download"
	phaseUnknown  = "unknown"
)

const (
	msgPreparing = "Preparing video request..."
	msgRetrying  = "Retrying video request..."
	msgQueued    = "Video queued for generation..."
)

// submitWithRetry validates the prompt and submits it, retrying classified
// failures the controller allows. It returns the remote job id.
func (o *Orchestrator) submitWithRetry(ctx context.Context, j *job) (string, bool) {
	o.update(j, func(s *models.JobStatus) {
		s.State = models.StateQueued
		s.Progress = 0
		s.Message = msgPreparing
	})

	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			o.update(j, func(s *models.JobStatus) {
				s.State = models.StateQueued
				s.Progress = 0
				s.Message = msgRetrying
				s.RetryCount++
			})
		}

		jobID, err := o.submit(ctx, j.req)
		if err == nil {
			o.update(j, func(s *models.JobStatus) {
				s.State = models.StateQueued
				s.JobID = jobID
				s.Message = msgQueued
			})
			o.logger.Info("video job submitted", "request_id", j.id, "job_id", jobID, "attempt", attempt+1)
			return jobID, true
		}
		if ctx.Err() != nil {
			o.abort(ctx, j)
			return "", false
		}

		info := o.asInfo(err)
		o.logger.Warn("video submission failed", "request_id", j.id, "kind", info.Kind, "attempt", attempt+1, "error", err)
		if !o.retryOrFail(ctx, j, phaseSubmit, info, attempt, models.StateQueued) {
			return "", false
		}
	}
}

func (o *Orchestrator) submit(ctx context.Context, req models.JobRequest) (string, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		info := classify.InvalidPrompt()
		return "", &info
	}
	if n := utf8.RuneCountInString(req.Prompt); n > models.MaxPromptLength {
		info := classify.PromptTooLong(n)
		return "", &info
	}

	resp, err := o.client.Submit(ctx, videoapi.SubmitRequest{
		Prompt:        req.Prompt,
		DurationLimit: int(req.DurationLimit / time.Second),
	})
	if err != nil {
		return "", err
	}
	return resp.VideoID, nil
}

// retryOrFail asks the controller for another attempt after retries previous
// ones in the current phase. A granted retry publishes a retryable FAILED
// snapshot and waits out the delay; a refused one publishes the terminal
// failure. It reports whether the caller should try again.
func (o *Orchestrator) retryOrFail(ctx context.Context, j *job, phase string, info models.ErrorInfo, retries int, resume models.State) bool {
	d := o.retry.Decide(info, retries)
	if !d.Retry {
		o.fail(j, phase, info, retries)
		return false
	}

	metrics.Errors.WithLabelValues(phase, string(info.Kind)).Inc()
	metrics.Retries.WithLabelValues(phase).Inc()

	at := time.Now().UTC()
	o.update(j, func(s *models.JobStatus) {
		s.State = models.StateFailed
		s.Error = &info
		s.CanRetry = true
		s.LastRetryAt = &at
		s.Message = retryMessage(info, resume, d.Delay)
	})

	if err := o.retry.Wait(ctx, d.Delay); err != nil {
		o.abort(ctx, j)
		return false
	}
	return true
}

func retryMessage(info models.ErrorInfo, resume models.State, delay time.Duration) string {
	secs := int(delay / time.Second)
	if resume == models.StateDownloading {
		return fmt.Sprintf("Download failed. Retrying in %d seconds...", secs)
	}
	return fmt.Sprintf("%s Retrying in %d seconds...", info.Message, secs)
}

// fail publishes a terminal FAILED snapshot.
func (o *Orchestrator) fail(j *job, phase string, info models.ErrorInfo, retries int) {
	metrics.Errors.WithLabelValues(phase, string(info.Kind)).Inc()
	o.update(j, func(s *models.JobStatus) {
		s.State = models.StateFailed
		s.Error = &info
		s.CanRetry = info.CanRetry(retries)
		s.Message = info.UserMessage()
	})
	o.logger.Warn("video job failed", "request_id", j.id, "phase", phase, "kind", info.Kind, "details", info.TechnicalDetails)
}

// abort handles a done context. Cancellation publishes nothing; an expired
// job deadline is reported as a generation timeout.
func (o *Orchestrator) abort(ctx context.Context, j *job) {
	if !errors.Is(ctx.Err(), context.DeadlineExceeded) || j.ctx.Err() != nil {
		return
	}
	info := o.classifier.GenerationFailure(fmt.Sprintf("job timeout after %s", o.jobTimeout))
	o.fail(j, phaseUnknown, info, info.MaxRetries)
}

func (o *Orchestrator) asInfo(err error) models.ErrorInfo {
	var info *models.ErrorInfo
	if errors.As(err, &info) {
		return *info
	}
	return o.classifier.Classify(err)
}
