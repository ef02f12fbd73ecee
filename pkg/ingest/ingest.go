// Package ingest adapts consumed observation messages onto the sync pipeline.
package ingest

import (
	"context"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/appcontext"
	"github.com/Ramsey-B/fern/pkg/kafka"
	"github.com/Ramsey-B/fern/pkg/models"
)

// Syncer routes parsed observations through the bulk sync path.
type Syncer interface {
	SyncBatch(ctx context.Context, items []models.ProfileObservation) (*models.SyncResult, error)
}

// NewObservationHandler returns a message handler that parses observation
// payloads and hands them to the syncer. A payload that fails to decode is
// logged and committed; redelivering it can never succeed and would wedge the
// partition. A sync error is returned so the message is redelivered; the sync
// path is idempotent, so replays converge.
func NewObservationHandler(logger ectologger.Logger, syncer Syncer) kafka.MessageHandler {
	return func(ctx context.Context, msg *kafka.IncomingMessage) error {
		ctx = appcontext.SetSource(ctx, "kafka")

		log := logger.WithContext(ctx).WithFields(map[string]any{
			"topic":     msg.Topic,
			"partition": msg.Partition,
			"offset":    msg.Offset,
		})

		items, err := msg.ParseObservations()
		if err != nil {
			log.WithError(err).Error("Discarding undecodable observation payload")
			return nil
		}

		result, err := syncer.SyncBatch(ctx, items)
		if err != nil {
			return err
		}

		if len(result.Failed) > 0 {
			log.WithFields(map[string]any{
				"saved":  result.Saved,
				"failed": len(result.Failed),
			}).Warn("Observation batch had failed items")
		}

		return nil
	}
}
