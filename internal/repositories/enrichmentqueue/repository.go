// Package enrichmentqueue persists the re-fetch work queue. One row per
// public id; rows move through pending -> processing -> {completed, pending
// (retry), failed}.
package enrichmentqueue

import (
	"context"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

var taskColumns = []string{
	"id", "public_id", "status", "attempts", "queued_at", "started_at", "completed_at", "last_error",
}

// Repository handles enrichment task persistence. It is the sole writer of
// task rows.
type Repository struct {
	db          database.DB
	logger      ectologger.Logger
	maxAttempts int
}

// NewRepository creates a new enrichment queue repository
func NewRepository(db database.DB, logger ectologger.Logger, maxAttempts int) *Repository {
	return &Repository{
		db:          db,
		logger:      logger,
		maxAttempts: maxAttempts,
	}
}

// MaxAttempts returns the retry budget tasks are held to.
func (r *Repository) MaxAttempts() int {
	return r.maxAttempts
}

// Enqueue creates a task for publicID, or re-arms an existing terminal one
// (attempts back to 0, last_error cleared). A task already pending or
// processing is left untouched, so enqueue is idempotent and at most one
// active task exists per key.
func (r *Repository) Enqueue(ctx context.Context, publicID string) error {
	ctx, span := tracing.StartSpan(ctx, "enrichmentqueue.Repository.Enqueue")
	defer span.End()

	now := time.Now().UTC()
	query := `
		INSERT INTO enrichment_queue (id, public_id, status, attempts, queued_at)
		VALUES ($1, $2, 'pending', 0, $3)
		ON CONFLICT (public_id) DO UPDATE SET
			status = 'pending',
			attempts = 0,
			queued_at = EXCLUDED.queued_at,
			started_at = NULL,
			completed_at = NULL,
			last_error = NULL
		WHERE enrichment_queue.status IN ('completed', 'failed')
	`

	if _, err := r.db.ExecContext(ctx, query, uuid.New().String(), publicID, now); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"public_id": publicID}).Error("Failed to enqueue enrichment task")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to enqueue enrichment task")
	}
	return nil
}

// ClaimNext atomically claims the oldest eligible pending task: flips it to
// processing, stamps started_at, and increments attempts. Returns (nil, nil)
// when nothing is eligible. FOR UPDATE SKIP LOCKED keeps concurrent
// dispatchers from double-claiming a row.
func (r *Repository) ClaimNext(ctx context.Context) (*models.EnrichmentTask, error) {
	ctx, span := tracing.StartSpan(ctx, "enrichmentqueue.Repository.ClaimNext")
	defer span.End()

	query := `
		UPDATE enrichment_queue SET
			status = 'processing',
			started_at = $1,
			attempts = attempts + 1
		WHERE id = (
			SELECT id FROM enrichment_queue
			WHERE status = 'pending' AND attempts < $2
			ORDER BY queued_at ASC
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, public_id, status, attempts, queued_at, started_at, completed_at, last_error
	`

	var task models.EnrichmentTask
	if err := r.db.GetContext(ctx, &task, query, time.Now().UTC(), r.maxAttempts); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to claim enrichment task")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to claim enrichment task")
	}
	return &task, nil
}

// Get retrieves the task for a public id. Returns (nil, nil) when none
// exists.
func (r *Repository) Get(ctx context.Context, publicID string) (*models.EnrichmentTask, error) {
	ctx, span := tracing.StartSpan(ctx, "enrichmentqueue.Repository.Get")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(taskColumns...)
	sb.From("enrichment_queue")
	sb.Where(sb.Equal("public_id", publicID))
	sb.Limit(1)

	query, args := sb.Build()
	var task models.EnrichmentTask
	if err := r.db.GetContext(ctx, &task, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"public_id": publicID}).Error("Failed to get enrichment task")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get enrichment task")
	}
	return &task, nil
}

// MarkCompleted retires a task after a successful re-fetch.
func (r *Repository) MarkCompleted(ctx context.Context, publicID string) error {
	ctx, span := tracing.StartSpan(ctx, "enrichmentqueue.Repository.MarkCompleted")
	defer span.End()

	ub := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	ub.Update("enrichment_queue")
	ub.Set(
		ub.Assign("status", models.TaskStatusCompleted),
		ub.Assign("completed_at", time.Now().UTC()),
		ub.Assign("last_error", nil),
	)
	ub.Where(ub.Equal("public_id", publicID))

	query, args := ub.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"public_id": publicID}).Error("Failed to complete enrichment task")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to complete enrichment task")
	}
	return nil
}

// MarkFailed records a failed attempt. The task returns to pending while it
// still has retry budget; once attempts reaches the cap it lands in the
// terminal failed state and ClaimNext never returns it again.
func (r *Repository) MarkFailed(ctx context.Context, publicID string, taskErr string) error {
	ctx, span := tracing.StartSpan(ctx, "enrichmentqueue.Repository.MarkFailed")
	defer span.End()

	query := `
		UPDATE enrichment_queue SET
			status = CASE WHEN attempts >= $1 THEN 'failed' ELSE 'pending' END,
			last_error = $2
		WHERE public_id = $3
	`

	if _, err := r.db.ExecContext(ctx, query, r.maxAttempts, taskErr, publicID); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"public_id": publicID}).Error("Failed to fail enrichment task")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to fail enrichment task")
	}
	return nil
}

// ClearTerminal deletes all completed and failed rows. Administrative
// housekeeping only.
func (r *Repository) ClearTerminal(ctx context.Context) (int, error) {
	ctx, span := tracing.StartSpan(ctx, "enrichmentqueue.Repository.ClearTerminal")
	defer span.End()

	db := sqlbuilder.PostgreSQL.NewDeleteBuilder()
	db.DeleteFrom("enrichment_queue")
	db.Where(db.In("status", models.TaskStatusCompleted, models.TaskStatusFailed))

	query, args := db.Build()
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to clear terminal enrichment tasks")
		return 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to clear terminal enrichment tasks")
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return int(deleted), nil
}

// Status returns the queue-status summary.
func (r *Repository) Status(ctx context.Context) (*models.QueueStatus, error) {
	ctx, span := tracing.StartSpan(ctx, "enrichmentqueue.Repository.Status")
	defer span.End()

	query := `
		SELECT
			COUNT(*) FILTER (WHERE status = 'pending') AS pending,
			COUNT(*) FILTER (WHERE status = 'processing') AS processing,
			COUNT(*) FILTER (WHERE status = 'completed') AS completed,
			COUNT(*) FILTER (WHERE status = 'failed') AS failed,
			COUNT(*) AS total
		FROM enrichment_queue
	`

	var status models.QueueStatus
	if err := r.db.GetContext(ctx, &status, query); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get enrichment queue status")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get enrichment queue status")
	}
	return &status, nil
}

// ReclaimStale returns processing tasks older than the threshold back to
// pending. The observed upstream design never reclaimed these rows, so a
// dispatcher crash mid-fetch stranded them forever; this is opt-in repair,
// disabled unless the caller configures a threshold.
func (r *Repository) ReclaimStale(ctx context.Context, olderThan time.Duration) (int, error) {
	ctx, span := tracing.StartSpan(ctx, "enrichmentqueue.Repository.ReclaimStale")
	defer span.End()

	cutoff := time.Now().UTC().Add(-olderThan)
	query := `
		UPDATE enrichment_queue SET
			status = 'pending',
			last_error = 'reclaimed: processing since ' || started_at::text
		WHERE status = 'processing' AND started_at < $1
	`

	result, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to reclaim stale enrichment tasks")
		return 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to reclaim stale enrichment tasks")
	}

	reclaimed, err := result.RowsAffected()
	if err != nil {
		return 0, nil
	}
	if reclaimed > 0 {
		r.logger.WithContext(ctx).WithFields(map[string]any{"reclaimed": reclaimed, "cutoff": cutoff}).Warn("Reclaimed stale processing enrichment tasks")
	}
	return int(reclaimed), nil
}
