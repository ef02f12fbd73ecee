// Package enrichment coordinates the re-fetch work queue with the profile
// store.
package enrichment

import (
	"context"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/internal/repositories/enrichmentqueue"
	"github.com/Ramsey-B/fern/internal/repositories/profile"
	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// TaskEmitter publishes task lifecycle events. Optional.
type TaskEmitter interface {
	EmitEnrichmentCompleted(ctx context.Context, task *models.EnrichmentTask) error
	EmitEnrichmentFailed(ctx context.Context, task *models.EnrichmentTask) error
}

// Service owns the enrichment task lifecycle.
type Service struct {
	db          database.DB
	logger      ectologger.Logger
	queueRepo   *enrichmentqueue.Repository
	profileRepo *profile.Repository
	emitter     TaskEmitter
}

// NewService creates a new enrichment service. emitter may be nil.
func NewService(
	db database.DB,
	logger ectologger.Logger,
	queueRepo *enrichmentqueue.Repository,
	profileRepo *profile.Repository,
	emitter TaskEmitter,
) *Service {
	return &Service{
		db:          db,
		logger:      logger,
		queueRepo:   queueRepo,
		profileRepo: profileRepo,
		emitter:     emitter,
	}
}

// Enqueue requests a re-fetch for a public id. A stub profile row is created
// first so a key referenced before it was ever observed still has a row to
// flip to full later. Idempotent for already-active tasks.
func (s *Service) Enqueue(ctx context.Context, publicID string) error {
	ctx, span := tracing.StartSpan(ctx, "enrichment.Service.Enqueue")
	defer span.End()

	if err := s.profileRepo.CreateStub(ctx, publicID); err != nil {
		return err
	}

	if err := s.queueRepo.Enqueue(ctx, publicID); err != nil {
		return err
	}

	metrics.RecordTaskTransition("pending")
	return nil
}

// ClaimNext claims the oldest eligible pending task. Returns (nil, nil) when
// the queue has nothing eligible.
func (s *Service) ClaimNext(ctx context.Context) (*models.EnrichmentTask, error) {
	ctx, span := tracing.StartSpan(ctx, "enrichment.Service.ClaimNext")
	defer span.End()

	task, err := s.queueRepo.ClaimNext(ctx)
	if err != nil {
		return nil, err
	}
	if task != nil {
		metrics.RecordTaskTransition("processing")
	}
	return task, nil
}

// Complete reports the outcome of a claimed task. On success the task is
// retired and the profile's completeness flips to full in the same
// transaction, so the two writes never diverge. On failure the task returns
// to pending while it still has retry budget, or lands in the terminal
// failed state once the budget is spent.
func (s *Service) Complete(ctx context.Context, publicID string, success bool, taskErr string) error {
	ctx, span := tracing.StartSpan(ctx, "enrichment.Service.Complete")
	defer span.End()

	if !success {
		return s.fail(ctx, publicID, taskErr)
	}

	txCtx, tx, err := s.db.GetTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback(txCtx)

	if err := s.queueRepo.MarkCompleted(txCtx, publicID); err != nil {
		return err
	}

	if err := s.profileRepo.SetCompleteness(txCtx, publicID, models.CompletenessFull); err != nil {
		return err
	}

	if err := tx.Commit(txCtx); err != nil {
		return err
	}

	metrics.RecordTaskTransition("completed")

	if s.emitter != nil {
		if task, getErr := s.queueRepo.Get(ctx, publicID); getErr == nil && task != nil {
			if emitErr := s.emitter.EmitEnrichmentCompleted(ctx, task); emitErr != nil {
				s.logger.WithContext(ctx).WithError(emitErr).WithFields(map[string]any{"public_id": publicID}).Warn("Failed to emit enrichment.completed event")
			}
		}
	}

	return nil
}

func (s *Service) fail(ctx context.Context, publicID string, taskErr string) error {
	ctx, span := tracing.StartSpan(ctx, "enrichment.Service.fail")
	defer span.End()

	if err := s.queueRepo.MarkFailed(ctx, publicID, taskErr); err != nil {
		return err
	}

	task, err := s.queueRepo.Get(ctx, publicID)
	if err != nil || task == nil {
		return err
	}

	if task.Status == models.TaskStatusFailed {
		metrics.RecordTaskTransition("failed")
		s.logger.WithContext(ctx).WithFields(map[string]any{
			"public_id": publicID,
			"attempts":  task.Attempts,
		}).Warn("Enrichment task exhausted its retry budget")

		if s.emitter != nil {
			if emitErr := s.emitter.EmitEnrichmentFailed(ctx, task); emitErr != nil {
				s.logger.WithContext(ctx).WithError(emitErr).WithFields(map[string]any{"public_id": publicID}).Warn("Failed to emit enrichment.failed event")
			}
		}
	} else {
		metrics.RecordTaskTransition("retry")
	}

	return nil
}

// Status returns the queue-status summary.
func (s *Service) Status(ctx context.Context) (*models.QueueStatus, error) {
	return s.queueRepo.Status(ctx)
}

// Get returns the task for a public id, or (nil, nil).
func (s *Service) Get(ctx context.Context, publicID string) (*models.EnrichmentTask, error) {
	return s.queueRepo.Get(ctx, publicID)
}

// ClearTerminal removes completed and failed tasks.
func (s *Service) ClearTerminal(ctx context.Context) (int, error) {
	return s.queueRepo.ClearTerminal(ctx)
}

// ReclaimStale re-queues processing tasks older than the threshold. Called
// by the dispatcher only when a threshold is configured.
func (s *Service) ReclaimStale(ctx context.Context, olderThan time.Duration) (int, error) {
	return s.queueRepo.ReclaimStale(ctx, olderThan)
}
