// Package processor handles incoming observation batches and drives them
// through the merge pipeline into the profile store.
package processor

import (
	"context"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/merging"
	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/normalizers"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// ProfileStore is the persistence surface the processor writes through.
type ProfileStore interface {
	GetByPublicID(ctx context.Context, publicID string) (*models.Profile, error)
	Upsert(ctx context.Context, profile *models.Profile) error
}

// SyncLog records batch bookkeeping.
type SyncLog interface {
	Append(ctx context.Context, entryType string, count int) error
}

// ProfileCache invalidates cached copies after store writes. Optional.
type ProfileCache interface {
	Invalidate(ctx context.Context, publicID string)
}

// EventEmitter publishes profile lifecycle events. Optional.
type EventEmitter interface {
	EmitProfileCreated(ctx context.Context, profile *models.Profile) error
	EmitProfileUpdated(ctx context.Context, profile *models.Profile) error
}

// Processor applies observation batches with per-item fault isolation: a bad
// item is recorded and skipped, it never aborts the rest of the batch.
type Processor struct {
	logger       ectologger.Logger
	engine       *merging.Engine
	profileStore ProfileStore
	syncLog      SyncLog
	cache        ProfileCache
	emitter      EventEmitter
	maxBatchSize int
}

// NewProcessor creates a new observation processor. cache and emitter may be
// nil when those integrations are disabled.
func NewProcessor(
	logger ectologger.Logger,
	profileStore ProfileStore,
	syncLog SyncLog,
	cache ProfileCache,
	emitter EventEmitter,
	maxBatchSize int,
) *Processor {
	return &Processor{
		logger:       logger,
		engine:       merging.NewEngine(),
		profileStore: profileStore,
		syncLog:      syncLog,
		cache:        cache,
		emitter:      emitter,
		maxBatchSize: maxBatchSize,
	}
}

// SyncBatch reconciles a batch of observations. Each item is cleaned, merged
// against the stored profile, and upserted; failures are collected per item.
// The audit-log append happens once at the end; it is diagnostic, so a crash
// before it leaves already-merged profiles in place, and re-running the same
// batch converges to the same state.
func (p *Processor) SyncBatch(ctx context.Context, items []models.ProfileObservation) (*models.SyncResult, error) {
	ctx, span := tracing.StartSpan(ctx, "processor.SyncBatch")
	defer span.End()

	start := time.Now()
	defer func() {
		metrics.SyncBatchDuration.Observe(time.Since(start).Seconds())
	}()

	log := p.logger.WithContext(ctx).WithFields(map[string]any{
		"batch_size": len(items),
	})

	// Items past the cap are rejected, never silently dropped: every key in
	// the request comes back in Saved or Failed.
	var overflow []models.ProfileObservation
	if p.maxBatchSize > 0 && len(items) > p.maxBatchSize {
		log.WithFields(map[string]any{"max_batch_size": p.maxBatchSize}).Warn("Sync batch exceeds the size cap, rejecting the overflow")
		overflow = items[p.maxBatchSize:]
		items = items[:p.maxBatchSize]
	}

	result := &models.SyncResult{
		Failed:    []models.SyncItemError{},
		SyncedIDs: []string{},
	}

	for i := range items {
		obs := items[i]
		cleanObservation(&obs)

		if obs.PublicID == "" {
			result.Failed = append(result.Failed, models.SyncItemError{
				PublicID: "unknown",
				Error:    models.ErrorKindMissingKey,
			})
			metrics.RecordSyncItem("missing_key")
			continue
		}

		if obs.ObservedAt.IsZero() {
			obs.ObservedAt = time.Now().UTC()
		}

		if err := p.syncItem(ctx, obs); err != nil {
			result.Failed = append(result.Failed, models.SyncItemError{
				PublicID: obs.PublicID,
				Error:    models.ErrorKind(err),
			})
			metrics.RecordSyncItem("failed")
			log.WithError(err).WithFields(map[string]any{"public_id": obs.PublicID}).Warn("Failed to sync observation")
			continue
		}

		result.Saved++
		result.SyncedIDs = append(result.SyncedIDs, obs.PublicID)
		metrics.RecordSyncItem("saved")
	}

	for i := range overflow {
		key := normalizers.Trim(overflow[i].PublicID)
		if key == "" {
			key = "unknown"
		}
		result.Failed = append(result.Failed, models.SyncItemError{
			PublicID: key,
			Error:    models.ErrorKindBatchLimit,
		})
		metrics.RecordSyncItem("rejected")
	}

	// Audit is diagnostic, not authoritative; a failed append never undoes
	// the merges above.
	if err := p.syncLog.Append(ctx, "profile", result.Saved); err != nil {
		log.WithError(err).Warn("Failed to append sync log entry")
	}

	log.WithFields(map[string]any{
		"saved":  result.Saved,
		"failed": len(result.Failed),
	}).Info("Sync batch processed")

	return result, nil
}

func (p *Processor) syncItem(ctx context.Context, obs models.ProfileObservation) error {
	ctx, span := tracing.StartSpan(ctx, "processor.syncItem")
	defer span.End()

	existing, err := p.profileStore.GetByPublicID(ctx, obs.PublicID)
	if err != nil {
		return err
	}

	merged, err := p.engine.Merge(existing, obs)
	if err != nil {
		return err
	}

	if err := p.profileStore.Upsert(ctx, merged); err != nil {
		return err
	}

	if p.cache != nil {
		p.cache.Invalidate(ctx, merged.PublicID)
	}

	if p.emitter != nil {
		var emitErr error
		if existing == nil {
			emitErr = p.emitter.EmitProfileCreated(ctx, merged)
		} else {
			emitErr = p.emitter.EmitProfileUpdated(ctx, merged)
		}
		if emitErr != nil {
			// events are best effort; the store write already landed
			p.logger.WithContext(ctx).WithError(emitErr).WithFields(map[string]any{"public_id": merged.PublicID}).Warn("Failed to emit profile event")
		}
	}

	return nil
}

// cleanObservation repairs the known doubled-text corruption on freeform
// fields before they reach the merge engine.
func cleanObservation(obs *models.ProfileObservation) {
	obs.PublicID = normalizers.Trim(obs.PublicID)
	cleanField(&obs.FullName)
	cleanField(&obs.Headline)
	cleanField(&obs.Location)
	cleanField(&obs.Company)
	cleanField(&obs.Title)
}

func cleanField(field **string) {
	if *field == nil {
		return
	}
	cleaned := normalizers.RepairDoubled(**field)
	*field = &cleaned
}
