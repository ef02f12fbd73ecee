package ingest

import (
	"context"
	"errors"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/pkg/kafka"
	"github.com/Ramsey-B/fern/pkg/models"
)

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(msg ectologger.EctoLogMessage) {})
}

type fakeSyncer struct {
	batches [][]models.ProfileObservation
	err     error
}

func (s *fakeSyncer) SyncBatch(ctx context.Context, items []models.ProfileObservation) (*models.SyncResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.batches = append(s.batches, items)
	return &models.SyncResult{Saved: len(items)}, nil
}

func TestObservationHandler(t *testing.T) {
	ctx := context.Background()

	t.Run("should sync a batch envelope", func(t *testing.T) {
		syncer := &fakeSyncer{}
		handler := NewObservationHandler(testLogger(), syncer)

		msg := &kafka.IncomingMessage{
			Value: []byte(`{"items":[{"public_id":"alice","partial":true},{"public_id":"bob","partial":false}]}`),
		}

		require.NoError(t, handler(ctx, msg))
		require.Len(t, syncer.batches, 1)
		assert.Len(t, syncer.batches[0], 2)
		assert.Equal(t, "alice", syncer.batches[0][0].PublicID)
	})

	t.Run("should sync a bare single observation", func(t *testing.T) {
		syncer := &fakeSyncer{}
		handler := NewObservationHandler(testLogger(), syncer)

		msg := &kafka.IncomingMessage{
			Value: []byte(`{"public_id":"alice","partial":true,"headline":"Engineer"}`),
		}

		require.NoError(t, handler(ctx, msg))
		require.Len(t, syncer.batches, 1)
		require.Len(t, syncer.batches[0], 1)
		assert.Equal(t, "alice", syncer.batches[0][0].PublicID)
	})

	t.Run("should discard an undecodable payload without error", func(t *testing.T) {
		syncer := &fakeSyncer{}
		handler := NewObservationHandler(testLogger(), syncer)

		msg := &kafka.IncomingMessage{Value: []byte(`not json`)}

		assert.NoError(t, handler(ctx, msg))
		assert.Empty(t, syncer.batches)
	})

	t.Run("should propagate sync errors for redelivery", func(t *testing.T) {
		syncer := &fakeSyncer{err: errors.New("store unavailable")}
		handler := NewObservationHandler(testLogger(), syncer)

		msg := &kafka.IncomingMessage{
			Value: []byte(`{"public_id":"alice"}`),
		}

		assert.Error(t, handler(ctx, msg))
	})
}
