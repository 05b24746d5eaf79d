package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"igscout/internal/models"
)

// ErrInvalidTransition is returned when a worker tries to finalize a job it
// does not hold, or a job that is not in processing state. This is a
// programming or concurrency error; the job is left for reclaim.
var ErrInvalidTransition = errors.New("invalid job status transition")

var ErrJobNotFound = errors.New("job not found")

// claimAttempts bounds how many pending candidates one ClaimNext call will
// race for before reporting no work.
const claimAttempts = 5

type JobRepository struct {
	db *sql.DB
}

func NewJobRepository(db *sql.DB) *JobRepository {
	return &JobRepository{db: db}
}

// EnqueueParams describes one job to insert. Exactly one of ClientID and
// PageIDs is set, depending on the job type.
type EnqueueParams struct {
	JobType         models.JobType
	ClientID        *string
	PageIDs         []string
	CoverageAttempt int
}

// Enqueue inserts a pending job and returns its ID
func (r *JobRepository) Enqueue(ctx context.Context, p EnqueueParams) (string, error) {
	id := uuid.New().String()
	now := time.Now()

	query := `
		INSERT INTO scrape_jobs (
			id, job_type, status, client_id, page_ids, coverage_attempt,
			queued_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.db.ExecContext(ctx, query,
		id, p.JobType, models.JobStatusPending, p.ClientID,
		models.StringList(p.PageIDs), p.CoverageAttempt, now, now, now,
	)
	if err != nil {
		return "", fmt.Errorf("failed to enqueue job: %w", err)
	}

	return id, nil
}

// ClaimNext atomically claims the oldest pending job for this worker and
// returns it, or nil when no pending work exists. The claim is a single
// conditional update: it only succeeds if the row is still pending, so two
// workers can never hold the same job.
func (r *JobRepository) ClaimNext(ctx context.Context, workerID string) (*models.ScrapeJob, error) {
	for i := 0; i < claimAttempts; i++ {
		var id string
		err := r.db.QueryRowContext(ctx, `
			SELECT id FROM scrape_jobs
			WHERE status = $1
			ORDER BY queued_at ASC
			LIMIT 1
		`, models.JobStatusPending).Scan(&id)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, nil
			}
			return nil, fmt.Errorf("failed to select pending job: %w", err)
		}

		now := time.Now()
		res, err := r.db.ExecContext(ctx, `
			UPDATE scrape_jobs
			SET status = $1, claimed_by = $2, claimed_at = $3, updated_at = $3
			WHERE id = $4 AND status = $5
		`, models.JobStatusProcessing, workerID, now, id, models.JobStatusPending)
		if err != nil {
			return nil, fmt.Errorf("failed to claim job: %w", err)
		}

		affected, err := res.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("failed to read claim result: %w", err)
		}
		if affected == 1 {
			return r.GetByID(ctx, id)
		}
		// Another worker claimed this one first; try the next candidate.
	}
	return nil, nil
}

// Complete transitions a processing job held by workerID to completed
func (r *JobRepository) Complete(ctx context.Context, jobID, workerID string, result models.JSONB) error {
	return r.finalize(ctx, jobID, workerID, models.JobStatusCompleted, result)
}

// Fail transitions a processing job held by workerID to failed
func (r *JobRepository) Fail(ctx context.Context, jobID, workerID string, result models.JSONB) error {
	return r.finalize(ctx, jobID, workerID, models.JobStatusFailed, result)
}

func (r *JobRepository) finalize(ctx context.Context, jobID, workerID string, status models.JobStatus, result models.JSONB) error {
	now := time.Now()
	res, err := r.db.ExecContext(ctx, `
		UPDATE scrape_jobs
		SET status = $1, result = $2, completed_at = $3, updated_at = $3
		WHERE id = $4 AND status = $5 AND claimed_by = $6
	`, status, result, now, jobID, models.JobStatusProcessing, workerID)
	if err != nil {
		return fmt.Errorf("failed to finalize job: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read finalize result: %w", err)
	}
	if affected == 0 {
		return ErrInvalidTransition
	}
	return nil
}

// ReclaimStale returns jobs stuck in processing longer than timeout to
// pending. Any worker may call this on its polling cycle; it is the only
// cancellation mechanism for crashed or hung claims.
func (r *JobRepository) ReclaimStale(ctx context.Context, timeout time.Duration) (int64, error) {
	cutoff := time.Now().Add(-timeout)
	res, err := r.db.ExecContext(ctx, `
		UPDATE scrape_jobs
		SET status = $1, claimed_by = NULL, claimed_at = NULL, updated_at = now()
		WHERE status = $2 AND claimed_at IS NOT NULL AND claimed_at < $3
	`, models.JobStatusPending, models.JobStatusProcessing, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to reclaim stale jobs: %w", err)
	}
	return res.RowsAffected()
}

// GetByID retrieves a job by ID
func (r *JobRepository) GetByID(ctx context.Context, jobID string) (*models.ScrapeJob, error) {
	query := `
		SELECT id, job_type, status, client_id, page_ids, coverage_attempt,
		       claimed_by, queued_at, claimed_at, completed_at, result,
		       created_at, updated_at
		FROM scrape_jobs
		WHERE id = $1
	`

	var job models.ScrapeJob
	err := r.db.QueryRowContext(ctx, query, jobID).Scan(
		&job.ID, &job.JobType, &job.Status, &job.ClientID, &job.PageIDs,
		&job.CoverageAttempt, &job.ClaimedBy, &job.QueuedAt, &job.ClaimedAt,
		&job.CompletedAt, &job.Result, &job.CreatedAt, &job.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	return &job, nil
}

// HasActiveJob reports whether a pending or processing job of the given
// type already targets this client. Callers should not enqueue a duplicate.
func (r *JobRepository) HasActiveJob(ctx context.Context, jobType models.JobType, clientID string) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `
		SELECT count(*) FROM scrape_jobs
		WHERE job_type = $1 AND client_id = $2 AND status IN ($3, $4)
	`, jobType, clientID, models.JobStatusPending, models.JobStatusProcessing).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check active jobs: %w", err)
	}
	return count > 0, nil
}
