package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/explainer/pkg/models"
)

var ErrNotFound = errors.New("resource not found")
var ErrDuplicateKey = errors.New("duplicate key violation")
var ErrInvalidTransition = errors.New("invalid video job state transition")
var ErrCancelled = errors.New("video job cancelled")

// Store is the data access interface. All database operations go through here.
type Store interface {
	Ping(ctx context.Context) error

	GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error)
	UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error
	CreateAPIKey(ctx context.Context, key *models.APIKey) error
	ListAPIKeys(ctx context.Context) ([]*models.APIKey, error)
	RevokeAPIKey(ctx context.Context, id uuid.UUID) error

	CreateVideoJob(ctx context.Context, job *models.VideoJob) error
	SaveVideoStatus(ctx context.Context, status models.JobStatus) error
	GetVideoJob(ctx context.Context, id uuid.UUID) (*models.VideoJob, error)
	ListVideoJobs(ctx context.Context, filter VideoJobFilter) ([]*models.VideoJob, int, error)
	CancelVideoJob(ctx context.Context, id uuid.UUID) error
}

type VideoJobFilter struct {
	State models.State
	Since time.Time
	Page  int
	Limit int
}
