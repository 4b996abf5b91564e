package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kiranshivaraju/explainer/pkg/models"
)

// PostgresStore implements the Store interface using pgx/v5.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- API Keys ---

const apiKeyColumns = `id, name, key_hash, key_prefix, scopes, last_used_at, deleted_at, created_at, updated_at`

func scanAPIKeys(rows pgx.Rows) ([]*models.APIKey, error) {
	defer rows.Close()

	var keys []*models.APIKey
	for rows.Next() {
		var k models.APIKey
		if err := rows.Scan(&k.ID, &k.Name, &k.KeyHash, &k.KeyPrefix, &k.Scopes,
			&k.LastUsedAt, &k.DeletedAt, &k.CreatedAt, &k.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan api key: %w", err)
		}
		keys = append(keys, &k)
	}
	return keys, rows.Err()
}

func (s *PostgresStore) GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+apiKeyColumns+` FROM api_keys WHERE key_prefix = $1 AND deleted_at IS NULL`, prefix)
	if err != nil {
		return nil, fmt.Errorf("get api key by prefix: %w", err)
	}
	return scanAPIKeys(rows)
}

func (s *PostgresStore) UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE api_keys SET last_used_at = NOW(), updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("update api key last used: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreateAPIKey(ctx context.Context, key *models.APIKey) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO api_keys (id, name, key_hash, key_prefix, scopes, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		key.ID, key.Name, key.KeyHash, key.KeyPrefix, key.Scopes, key.CreatedAt, key.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create api key: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListAPIKeys(ctx context.Context) ([]*models.APIKey, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+apiKeyColumns+` FROM api_keys WHERE deleted_at IS NULL ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	return scanAPIKeys(rows)
}

func (s *PostgresStore) RevokeAPIKey(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE api_keys SET deleted_at = NOW(), updated_at = NOW()
		 WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("revoke api key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Video Jobs ---

const videoJobColumns = `id, prompt, duration_limit, job_id, state, progress, message,
	local_file_path, thumbnail_path, file_size_bytes, duration_seconds, error_kind, error_message,
	retry_count, cancelled_at, completed_at, created_at, updated_at`

func scanVideoJob(row pgx.Row) (*models.VideoJob, error) {
	var j models.VideoJob
	err := row.Scan(&j.ID, &j.Prompt, &j.DurationLimit, &j.JobID, &j.State, &j.Progress, &j.Message,
		&j.LocalFilePath, &j.ThumbnailPath, &j.FileSizeBytes, &j.DurationSeconds, &j.ErrorKind, &j.ErrorMessage,
		&j.RetryCount, &j.CancelledAt, &j.CompletedAt, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &j, nil
}

func (s *PostgresStore) CreateVideoJob(ctx context.Context, job *models.VideoJob) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO video_jobs (id, prompt, duration_limit, state, progress, message, retry_count, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		job.ID, job.Prompt, job.DurationLimit, job.State, job.Progress, job.Message,
		job.RetryCount, job.CreatedAt, job.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create video job: %w", err)
	}
	return nil
}

// SaveVideoStatus applies a status snapshot to its history row. The state
// change must be a legal transition; cancelled rows are left untouched.
func (s *PostgresStore) SaveVideoStatus(ctx context.Context, status models.JobStatus) error {
	var current models.State
	var cancelledAt *time.Time
	err := s.pool.QueryRow(ctx,
		`SELECT state, cancelled_at FROM video_jobs WHERE id = $1`, status.RequestID,
	).Scan(&current, &cancelledAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("get video job state: %w", err)
	}
	if cancelledAt != nil {
		return ErrCancelled
	}
	if current != status.State && !models.CanTransition(current, status.State) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current, status.State)
	}

	updatedAt := status.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}

	query := `UPDATE video_jobs SET state = $2, progress = $3, message = $4, retry_count = $5,
		job_id = COALESCE($6, job_id), error_kind = $7, error_message = $8, updated_at = $9`
	args := []any{status.RequestID, status.State, status.Progress, status.Message, status.RetryCount,
		nullString(status.JobID), nil, nil, updatedAt}
	argIdx := 10

	if status.Error != nil {
		args[6] = status.Error.Kind
		args[7] = status.Error.UserMessage()
	}
	if status.State == models.StateCompleted {
		query += fmt.Sprintf(`, local_file_path = $%d, thumbnail_path = $%d, file_size_bytes = $%d,
			duration_seconds = $%d, completed_at = $%d`, argIdx, argIdx+1, argIdx+2, argIdx+3, argIdx+4)
		args = append(args, nullString(status.LocalFilePath), nullString(status.ThumbnailPath),
			status.FileSizeBytes, status.DurationSeconds, updatedAt)
	}

	query += " WHERE id = $1"

	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("update video job: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetVideoJob(ctx context.Context, id uuid.UUID) (*models.VideoJob, error) {
	j, err := scanVideoJob(s.pool.QueryRow(ctx,
		`SELECT `+videoJobColumns+` FROM video_jobs WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get video job: %w", err)
	}
	return j, nil
}

func (s *PostgresStore) ListVideoJobs(ctx context.Context, filter VideoJobFilter) ([]*models.VideoJob, int, error) {
	conditions := []string{"TRUE"}
	var args []any
	argIdx := 1

	if filter.State != "" {
		conditions = append(conditions, fmt.Sprintf("state = $%d", argIdx))
		args = append(args, filter.State)
		argIdx++
	}
	if !filter.Since.IsZero() {
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", argIdx))
		args = append(args, filter.Since)
		argIdx++
	}

	where := strings.Join(conditions, " AND ")

	var total int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM video_jobs WHERE "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count video jobs: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	offset := (page - 1) * limit

	dataQuery := fmt.Sprintf(
		`SELECT %s FROM video_jobs WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		videoJobColumns, where, argIdx, argIdx+1)
	args = append(args, limit, offset)

	rows, err := s.pool.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list video jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*models.VideoJob
	for rows.Next() {
		j, err := scanVideoJob(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan video job: %w", err)
		}
		jobs = append(jobs, j)
	}
	return jobs, total, rows.Err()
}

// CancelVideoJob marks a job cancelled. Completed and already cancelled
// jobs return ErrInvalidTransition.
func (s *PostgresStore) CancelVideoJob(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE video_jobs SET cancelled_at = NOW(), message = 'Cancelled', updated_at = NOW()
		 WHERE id = $1 AND cancelled_at IS NULL AND state <> $2`, id, models.StateCompleted)
	if err != nil {
		return fmt.Errorf("cancel video job: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM video_jobs WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("check video job: %w", err)
	}
	if !exists {
		return ErrNotFound
	}
	return ErrInvalidTransition
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// isDuplicateKeyError checks if a pgx error is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}
	return false
}
