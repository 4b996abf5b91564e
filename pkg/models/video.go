package models

import (
	"time"

	"github.com/google/uuid"
)

// State is the local lifecycle state of a video explanation job.
type State string

const (
	StateNotStarted       State = "NOT_STARTED"
	StateQueued           State = "QUEUED"
	StateGeneratingScript State = "GENERATING_SCRIPT"
	StateRenderingVideo   State = "RENDERING_VIDEO"
	StateDownloading      State = "DOWNLOADING"
	StateCompleted        State = "COMPLETED"
	StateFailed           State = "FAILED"
)

const (
	// DefaultDurationLimit is used when a request does not set one.
	DefaultDurationLimit = 60 * time.Second

	// MaxPromptLength is the longest prompt, in characters, the remote service accepts.
	MaxPromptLength = 4000
)

// validTransitions lists the states reachable from each state. The remote
// service may skip intermediate states, so forward jumps are allowed.
// FAILED leads back to QUEUED (submission retry) or DOWNLOADING (download retry).
var validTransitions = map[State][]State{
	StateNotStarted:       {StateQueued, StateFailed},
	StateQueued:           {StateQueued, StateGeneratingScript, StateRenderingVideo, StateDownloading, StateFailed},
	StateGeneratingScript: {StateGeneratingScript, StateRenderingVideo, StateDownloading, StateFailed},
	StateRenderingVideo:   {StateRenderingVideo, StateDownloading, StateFailed},
	StateDownloading:      {StateDownloading, StateCompleted, StateFailed},
	StateFailed:           {StateQueued, StateDownloading},
	StateCompleted:        {},
}

// CanTransition reports whether a job may move from one state to another.
func CanTransition(from, to State) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Valid reports whether s is a known state.
func (s State) Valid() bool {
	_, ok := validTransitions[s]
	return ok
}

// JobRequest is one user request for a video explanation. ID is optional;
// a random id is assigned when it is zero.
type JobRequest struct {
	ID            uuid.UUID
	Prompt        string
	DurationLimit time.Duration
}

// JobStatus is a snapshot of a job as seen by consumers of the status stream.
// LocalFilePath is set only in COMPLETED; Error is set only in FAILED.
type JobStatus struct {
	RequestID       uuid.UUID  `json:"request_id"`
	JobID           string     `json:"job_id,omitempty"`
	State           State      `json:"state"`
	Progress        int        `json:"progress"`
	Message         string     `json:"message"`
	LocalFilePath   string     `json:"local_file_path,omitempty"`
	ThumbnailPath   string     `json:"thumbnail_path,omitempty"`
	DurationSeconds int        `json:"duration_seconds,omitempty"`
	FileSizeBytes   int64      `json:"file_size_bytes,omitempty"`
	Error           *ErrorInfo `json:"error,omitempty"`
	RetryCount      int        `json:"retry_count"`
	CanRetry        bool       `json:"can_retry"`
	LastRetryAt     *time.Time `json:"last_retry_at,omitempty"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// CanRetryNow reports whether a retry is allowed and its backoff delay has
// elapsed since the last retry attempt.
func (s JobStatus) CanRetryNow(now time.Time) bool {
	if !s.CanRetry || s.Error == nil {
		return false
	}
	if s.LastRetryAt == nil {
		return true
	}
	return !now.Before(s.LastRetryAt.Add(s.Error.RetryDelay))
}
