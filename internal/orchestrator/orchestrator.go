// Package orchestrator runs video explanation jobs end to end: submission,
// status polling, download and metadata extraction, with classified errors
// and bounded retries. Each job runs in its own goroutine and reports every
// snapshot to the Sink given at request time.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/explainer/internal/classify"
	"github.com/kiranshivaraju/explainer/internal/download"
	"github.com/kiranshivaraju/explainer/internal/metrics"
	"github.com/kiranshivaraju/explainer/internal/retry"
	"github.com/kiranshivaraju/explainer/internal/videoapi"
	"github.com/kiranshivaraju/explainer/pkg/models"
)

const (
	DefaultPollInterval   = 3 * time.Second
	DefaultPollErrorDelay = 5 * time.Second
	DefaultMaxPollErrors  = 3
)

var (
	// ErrClosed is returned by Request after Close.
	ErrClosed = errors.New("orchestrator closed")
	// ErrNilSink is returned by Request when no sink is given.
	ErrNilSink = errors.New("status sink is required")
	// ErrDuplicateRequest is returned when the request id is already in flight.
	ErrDuplicateRequest = errors.New("request already in progress")
)

// Downloader fetches a finished video to local storage.
type Downloader interface {
	Fetch(ctx context.Context, jobID string) (*download.Artifact, error)
	LocalPath(jobID string) (string, bool)
}

var _ Downloader = (*download.Pipeline)(nil)

// Orchestrator owns the registry of in-flight jobs.
type Orchestrator struct {
	client     videoapi.Client
	downloader Downloader
	classifier classify.Classifier
	retry      *retry.Controller
	logger     *slog.Logger

	pollInterval   time.Duration
	pollErrorDelay time.Duration
	pollWait       func(ctx context.Context, d time.Duration) error
	maxPollErrors  int
	jobTimeout     time.Duration

	registry *registry
	baseCtx  context.Context
	stop     context.CancelFunc
	wg       sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

func WithClassifier(c classify.Classifier) Option {
	return func(o *Orchestrator) { o.classifier = c }
}

func WithRetryController(c *retry.Controller) Option {
	return func(o *Orchestrator) { o.retry = c }
}

// WithPollInterval sets the wait between status polls.
func WithPollInterval(d time.Duration) Option {
	return func(o *Orchestrator) { o.pollInterval = d }
}

// WithPollErrorDelay sets the extra wait added after a failed poll.
func WithPollErrorDelay(d time.Duration) Option {
	return func(o *Orchestrator) { o.pollErrorDelay = d }
}

// WithPollWaitFunc replaces the wait between status polls. Tests use it to
// observe the poll schedule without sleeping.
func WithPollWaitFunc(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(o *Orchestrator) { o.pollWait = fn }
}

// WithMaxPollErrors sets how many consecutive poll failures end a job.
func WithMaxPollErrors(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.maxPollErrors = n
		}
	}
}

// WithJobTimeout bounds the total wall time of a job. Zero means no limit.
func WithJobTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.jobTimeout = d }
}

func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// New creates an Orchestrator.
func New(client videoapi.Client, downloader Downloader, opts ...Option) *Orchestrator {
	ctx, stop := context.WithCancel(context.Background())
	o := &Orchestrator{
		client:         client,
		downloader:     downloader,
		classifier:     classify.Default{},
		retry:          retry.NewController(),
		logger:         slog.Default(),
		pollInterval:   DefaultPollInterval,
		pollErrorDelay: DefaultPollErrorDelay,
		pollWait:       retry.Sleep,
		maxPollErrors:  DefaultMaxPollErrors,
		registry:       newRegistry(),
		baseCtx:        ctx,
		stop:           stop,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Handle identifies a started job.
type Handle struct {
	ID   uuid.UUID
	done <-chan struct{}
}

// Done is closed once the job's goroutine has exited.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Request starts a job and returns immediately. Every snapshot of the job is
// published to sink until it reaches a terminal state or is cancelled.
func (o *Orchestrator) Request(req models.JobRequest, sink Sink) (*Handle, error) {
	if sink == nil {
		return nil, ErrNilSink
	}

	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}
	if req.DurationLimit <= 0 {
		req.DurationLimit = models.DefaultDurationLimit
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return nil, ErrClosed
	}
	if _, ok := o.registry.get(req.ID); ok {
		return nil, ErrDuplicateRequest
	}

	ctx, cancel := context.WithCancel(o.baseCtx)
	now := time.Now().UTC()
	j := &job{
		id:      req.ID,
		req:     req,
		sink:    sink,
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
		started: now,
	}
	j.status = models.JobStatus{
		RequestID: j.id,
		State:     models.StateNotStarted,
		UpdatedAt: now,
	}

	o.registry.add(j)
	o.wg.Add(1)
	metrics.JobsSubmitted.Inc()
	metrics.ActiveJobs.Inc()

	go o.run(j)

	return &Handle{ID: j.id, done: j.done}, nil
}

// Cancel stops a job. No new snapshot is published for it once Cancel
// returns; a Publish already running sees its context cancelled. Cancel may
// be called from inside the job's own Sink. It reports false if the job is
// unknown or already finished.
func (o *Orchestrator) Cancel(id uuid.UUID) bool {
	j, ok := o.registry.get(id)
	if !ok {
		return false
	}

	j.cancel()
	j.publishMu.Lock()
	j.cancelled = true
	j.publishMu.Unlock()

	o.registry.remove(id)
	o.logger.Info("video job cancelled", "request_id", id)
	return true
}

// Status returns the latest snapshot of an in-flight job.
func (o *Orchestrator) Status(id uuid.UUID) (models.JobStatus, bool) {
	j, ok := o.registry.get(id)
	if !ok {
		return models.JobStatus{}, false
	}
	return j.snapshot(), true
}

// Active returns snapshots of all in-flight jobs.
func (o *Orchestrator) Active() []models.JobStatus {
	jobs := o.registry.list()
	out := make([]models.JobStatus, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, j.snapshot())
	}
	return out
}

// LocalVideoPath returns the local file for a remote job id if it has been downloaded.
func (o *Orchestrator) LocalVideoPath(jobID string) (string, bool) {
	return o.downloader.LocalPath(jobID)
}

// Close cancels every in-flight job and waits for their goroutines to exit
// or for ctx to expire.
func (o *Orchestrator) Close(ctx context.Context) error {
	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()

	for _, j := range o.registry.list() {
		o.Cancel(j.id)
	}
	o.stop()

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for video jobs: %w", ctx.Err())
	}
}

func (o *Orchestrator) run(j *job) {
	defer o.wg.Done()
	defer close(j.done)
	defer o.finish(j)
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("video job panicked", "request_id", j.id, "panic", r)
			o.fail(j, phaseUnknown, classify.Unknown(fmt.Errorf("panic: %v", r)), 0)
		}
	}()

	ctx := j.ctx
	if o.jobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.jobTimeout)
		defer cancel()
	}

	jobID, ok := o.submitWithRetry(ctx, j)
	if !ok {
		return
	}
	if !o.poll(ctx, j, jobID) {
		return
	}
	o.downloadWithRetry(ctx, j, jobID)
}

// finish drops the job from the registry and records its outcome.
func (o *Orchestrator) finish(j *job) {
	j.cancel()
	o.registry.remove(j.id)
	metrics.ActiveJobs.Dec()

	j.publishMu.Lock()
	cancelled := j.cancelled
	j.publishMu.Unlock()

	outcome := "cancelled"
	if !cancelled {
		outcome = string(j.snapshot().State)
	}
	metrics.JobsFinished.WithLabelValues(outcome).Inc()
	metrics.JobDuration.WithLabelValues(outcome).Observe(time.Since(j.started).Seconds())
}

// update applies fn to a copy of the job's status and publishes the result.
// It reports false when nothing was published: the job was cancelled, the
// transition is illegal, or the snapshot did not change. The sink is called
// without holding publishMu, so a sink may call Cancel.
func (o *Orchestrator) update(j *job, fn func(s *models.JobStatus)) bool {
	j.publishMu.Lock()
	if j.cancelled {
		j.publishMu.Unlock()
		return false
	}

	j.statusMu.Lock()
	prev := j.status
	next := prev
	fn(&next)

	if next.State != prev.State && !models.CanTransition(prev.State, next.State) {
		j.statusMu.Unlock()
		j.publishMu.Unlock()
		o.logger.Error("illegal state transition", "request_id", j.id, "from", prev.State, "to", next.State)
		return false
	}
	if next.State == prev.State && next.Progress < prev.Progress {
		next.Progress = prev.Progress
	}
	if next.State != models.StateFailed {
		next.Error = nil
		next.CanRetry = false
	}
	if next.State != models.StateCompleted {
		next.LocalFilePath = ""
	}
	if !changed(prev, next) {
		j.statusMu.Unlock()
		j.publishMu.Unlock()
		return false
	}
	next.UpdatedAt = time.Now().UTC()
	j.status = next
	j.statusMu.Unlock()
	j.publishMu.Unlock()

	if err := j.sink.Publish(j.ctx, next); err != nil {
		o.logger.Debug("status sink rejected snapshot", "request_id", j.id, "state", next.State, "error", err)
	}
	return true
}

func changed(prev, next models.JobStatus) bool {
	return prev.State != next.State ||
		prev.Progress != next.Progress ||
		prev.Message != next.Message ||
		prev.JobID != next.JobID ||
		prev.RetryCount != next.RetryCount ||
		prev.Error != next.Error
}
