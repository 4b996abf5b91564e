package models

import (
	"time"

	"github.com/google/uuid"
)

// VideoJob is the persisted history record of a video request. The API
// returns its ID on POST /api/v1/videos; clients poll GET /api/v1/videos/{id}
// or read /events until the state is COMPLETED or a terminal FAILED.
type VideoJob struct {
	ID              uuid.UUID  `db:"id"               json:"id"`
	Prompt          string     `db:"prompt"           json:"prompt"`
	DurationLimit   int        `db:"duration_limit"   json:"duration_limit"`
	JobID           *string    `db:"job_id"           json:"job_id,omitempty"`
	State           State      `db:"state"            json:"state"`
	Progress        int        `db:"progress"         json:"progress"`
	Message         string     `db:"message"          json:"message"`
	LocalFilePath   *string    `db:"local_file_path"  json:"local_file_path,omitempty"`
	ThumbnailPath   *string    `db:"thumbnail_path"   json:"thumbnail_path,omitempty"`
	FileSizeBytes   *int64     `db:"file_size_bytes"  json:"file_size_bytes,omitempty"`
	DurationSeconds *int       `db:"duration_seconds" json:"duration_seconds,omitempty"`
	ErrorKind       *ErrorKind `db:"error_kind"       json:"error_kind,omitempty"`
	ErrorMessage    *string    `db:"error_message"    json:"error_message,omitempty"`
	RetryCount      int        `db:"retry_count"      json:"retry_count"`
	CancelledAt     *time.Time `db:"cancelled_at"     json:"cancelled_at,omitempty"`
	CompletedAt     *time.Time `db:"completed_at"     json:"completed_at,omitempty"`
	CreatedAt       time.Time  `db:"created_at"       json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at"       json:"updated_at"`
}
