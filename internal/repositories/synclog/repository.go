// Package synclog persists the append-only batch audit log.
package synclog

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

// Repository handles sync log persistence. Rows are append-only, never
// updated.
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new sync log repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Append records one processed batch.
func (r *Repository) Append(ctx context.Context, entryType string, count int) error {
	ctx, span := tracing.StartSpan(ctx, "synclog.Repository.Append")
	defer span.End()

	ib := sqlbuilder.PostgreSQL.NewInsertBuilder()
	ib.InsertInto("sync_log")
	ib.Cols("id", "type", "count", "synced_at")
	ib.Values(uuid.New().String(), entryType, count, time.Now().UTC())

	query, args := ib.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"type": entryType, "count": count}).Error("Failed to append sync log entry")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to append sync log entry")
	}
	return nil
}

// Recent returns the most recent entries, newest first.
func (r *Repository) Recent(ctx context.Context, limit int) ([]models.SyncLogEntry, error) {
	ctx, span := tracing.StartSpan(ctx, "synclog.Repository.Recent")
	defer span.End()

	if limit < 1 {
		limit = 50
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("id", "type", "count", "synced_at")
	sb.From("sync_log")
	sb.OrderBy("synced_at DESC")
	sb.Limit(limit)

	query, args := sb.Build()
	var entries []models.SyncLogEntry
	if err := r.db.SelectContext(ctx, &entries, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list sync log entries")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list sync log entries")
	}
	return entries, nil
}
