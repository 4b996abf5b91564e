package video

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/explainer/internal/cache"
	"github.com/kiranshivaraju/explainer/internal/events"
	"github.com/kiranshivaraju/explainer/internal/orchestrator"
	"github.com/kiranshivaraju/explainer/internal/store"
	"github.com/kiranshivaraju/explainer/pkg/models"
	"github.com/kiranshivaraju/explainer/pkg/prompt"
)

const (
	// StatusTTL is how long the latest snapshot stays in the cache.
	StatusTTL = 30 * time.Minute

	recordTimeout = 5 * time.Second
)

var (
	ErrNotFound       = errors.New("video request not found")
	ErrNotCancellable = errors.New("video request already finished")
	ErrInvalidRequest = errors.New("invalid video request")
)

// Runner starts and tracks video jobs. *orchestrator.Orchestrator satisfies it.
type Runner interface {
	Request(req models.JobRequest, sink orchestrator.Sink) (*orchestrator.Handle, error)
	Cancel(id uuid.UUID) bool
	Status(id uuid.UUID) (models.JobStatus, bool)
}

var _ Runner = (*orchestrator.Orchestrator)(nil)

// ContextKind selects the prompt template for a request.
type ContextKind string

const (
	ContextGeneral  ContextKind = "general"
	ContextChapter  ContextKind = "chapter"
	ContextExercise ContextKind = "exercise"
)

// SubmitParams holds a validated request from the API or CLI.
type SubmitParams struct {
	Question      string
	Kind          ContextKind
	Chapter       *prompt.ChapterParams
	Exercise      *prompt.ExerciseParams
	DurationLimit time.Duration
}

// Service records every status snapshot of the jobs it starts in the
// history store, the cache and the event bus.
type Service struct {
	runner  Runner
	store   store.Store
	cache   cache.Cache
	bus     *events.Bus
	prompts prompt.Builder
	logger  *slog.Logger
}

// NewService creates a new Service.
func NewService(runner Runner, st store.Store, ca cache.Cache, bus *events.Bus, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		runner: runner,
		store:  st,
		cache:  ca,
		bus:    bus,
		logger: logger,
	}
}

// BuildPrompt renders the prompt for p.
func (s *Service) BuildPrompt(p SubmitParams) (string, error) {
	switch p.Kind {
	case "", ContextGeneral:
		return s.prompts.BuildGeneral(p.Question), nil
	case ContextChapter:
		if p.Chapter == nil {
			return "", fmt.Errorf("%w: chapter context is required", ErrInvalidRequest)
		}
		c := *p.Chapter
		c.Question = p.Question
		return s.prompts.BuildChapter(c), nil
	case ContextExercise:
		if p.Exercise == nil {
			return "", fmt.Errorf("%w: exercise context is required", ErrInvalidRequest)
		}
		e := *p.Exercise
		e.Question = p.Question
		return s.prompts.BuildExercise(e), nil
	default:
		return "", fmt.Errorf("%w: unknown context %q", ErrInvalidRequest, p.Kind)
	}
}

// Submit creates the history row and starts the job. The returned row is in
// NOT_STARTED; progress is read through Status or Events.
func (s *Service) Submit(ctx context.Context, p SubmitParams) (*models.VideoJob, error) {
	text, err := s.BuildPrompt(p)
	if err != nil {
		return nil, err
	}
	limit := p.DurationLimit
	if limit <= 0 {
		limit = models.DefaultDurationLimit
	}

	now := time.Now().UTC()
	job := &models.VideoJob{
		ID:            uuid.New(),
		Prompt:        text,
		DurationLimit: int(limit / time.Second),
		State:         models.StateNotStarted,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.store.CreateVideoJob(ctx, job); err != nil {
		return nil, fmt.Errorf("creating video job: %w", err)
	}

	_, err = s.runner.Request(models.JobRequest{
		ID:            job.ID,
		Prompt:        text,
		DurationLimit: limit,
	}, orchestrator.SinkFunc(s.record))
	if err != nil {
		return nil, fmt.Errorf("starting video job: %w", err)
	}

	s.logger.Info("video job accepted", "request_id", job.ID, "context", p.Kind)
	return job, nil
}

// record stores one snapshot. Failures are logged and never block the job.
func (s *Service) record(status models.JobStatus) {
	s.bus.Append(status)

	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()

	if err := s.cache.SetJobStatus(ctx, status, StatusTTL); err != nil {
		s.logger.Warn("failed to cache video status", "request_id", status.RequestID, "error", err)
	}
	if err := s.store.SaveVideoStatus(ctx, status); err != nil {
		level := slog.LevelWarn
		if errors.Is(err, store.ErrCancelled) {
			level = slog.LevelDebug
		}
		s.logger.Log(ctx, level, "failed to persist video status",
			"request_id", status.RequestID, "state", status.State, "error", err)
	}
}

// Status returns the latest snapshot: the live job first, then the cache,
// then the history row.
func (s *Service) Status(ctx context.Context, id uuid.UUID) (*models.JobStatus, error) {
	if st, ok := s.runner.Status(id); ok {
		return &st, nil
	}

	if st, found, err := s.cache.GetJobStatus(ctx, id); err != nil {
		s.logger.Warn("video status cache lookup failed", "request_id", id, "error", err)
	} else if found {
		return st, nil
	}

	job, err := s.store.GetVideoJob(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting video job: %w", err)
	}
	st := StatusFromJob(job)
	return &st, nil
}

// Get returns the history row.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.VideoJob, error) {
	job, err := s.store.GetVideoJob(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	return job, err
}

// List returns a page of history rows and the total count.
func (s *Service) List(ctx context.Context, filter store.VideoJobFilter) ([]*models.VideoJob, int, error) {
	return s.store.ListVideoJobs(ctx, filter)
}

// Events returns the request's status events after seq.
func (s *Service) Events(id uuid.UUID, since int64) ([]events.Event, error) {
	evs, ok := s.bus.Since(id, since)
	if !ok {
		return nil, ErrNotFound
	}
	return evs, nil
}

// Cancel stops a running job and marks its history row cancelled.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) error {
	live := s.runner.Cancel(id)

	err := s.store.CancelVideoJob(ctx, id)
	switch {
	case err == nil:
	case errors.Is(err, store.ErrNotFound):
		if !live {
			return ErrNotFound
		}
	case errors.Is(err, store.ErrInvalidTransition):
		if !live {
			return ErrNotCancellable
		}
	default:
		return fmt.Errorf("cancelling video job: %w", err)
	}

	if err := s.cache.Delete(ctx, cache.JobStatusKey(id)); err != nil {
		s.logger.Warn("failed to evict cancelled video status", "request_id", id, "error", err)
	}
	s.logger.Info("video job cancelled", "request_id", id, "live", live)
	return nil
}

// StatusFromJob converts a history row into a status snapshot.
func StatusFromJob(job *models.VideoJob) models.JobStatus {
	st := models.JobStatus{
		RequestID:  job.ID,
		State:      job.State,
		Progress:   job.Progress,
		Message:    job.Message,
		RetryCount: job.RetryCount,
		UpdatedAt:  job.UpdatedAt,
	}
	if job.JobID != nil {
		st.JobID = *job.JobID
	}
	if job.State == models.StateCompleted {
		if job.LocalFilePath != nil {
			st.LocalFilePath = *job.LocalFilePath
		}
		if job.ThumbnailPath != nil {
			st.ThumbnailPath = *job.ThumbnailPath
		}
		if job.FileSizeBytes != nil {
			st.FileSizeBytes = *job.FileSizeBytes
		}
		if job.DurationSeconds != nil {
			st.DurationSeconds = *job.DurationSeconds
		}
	}
	if job.State == models.StateFailed && job.ErrorKind != nil {
		st.Error = &models.ErrorInfo{Kind: *job.ErrorKind}
		if job.ErrorMessage != nil {
			st.Error.Message = *job.ErrorMessage
		}
	}
	return st
}
