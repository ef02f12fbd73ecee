// Package events handles event emission for profile lifecycle changes
package events

import (
	"context"
	"encoding/json"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/kafka"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// Emitter handles event emission for Fern
type Emitter struct {
	producer *kafka.Producer
	logger   ectologger.Logger
}

// NewEmitter creates a new event emitter
func NewEmitter(producer *kafka.Producer, logger ectologger.Logger) *Emitter {
	return &Emitter{
		producer: producer,
		logger:   logger,
	}
}

// EmitProfileCreated emits a profile.created event
func (e *Emitter) EmitProfileCreated(ctx context.Context, profile *models.Profile) error {
	return e.emitProfile(ctx, "profile.created", profile)
}

// EmitProfileUpdated emits a profile.updated event
func (e *Emitter) EmitProfileUpdated(ctx context.Context, profile *models.Profile) error {
	return e.emitProfile(ctx, "profile.updated", profile)
}

func (e *Emitter) emitProfile(ctx context.Context, eventType string, profile *models.Profile) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.emitProfile")
	defer span.End()

	data, err := json.Marshal(profile)
	if err != nil {
		return err
	}

	event := &kafka.ProfileEvent{
		EventType: eventType,
		PublicID:  profile.PublicID,
		ProfileID: profile.ID,
		Data:      data,
	}

	if err := e.producer.PublishProfileEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).Errorf("Failed to emit %s event", eventType)
		return err
	}

	return nil
}

// EmitEnrichmentCompleted emits an enrichment.completed event
func (e *Emitter) EmitEnrichmentCompleted(ctx context.Context, task *models.EnrichmentTask) error {
	return e.emitTask(ctx, "enrichment.completed", task)
}

// EmitEnrichmentFailed emits an enrichment.failed event when a task exhausts
// its retry budget.
func (e *Emitter) EmitEnrichmentFailed(ctx context.Context, task *models.EnrichmentTask) error {
	return e.emitTask(ctx, "enrichment.failed", task)
}

func (e *Emitter) emitTask(ctx context.Context, eventType string, task *models.EnrichmentTask) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.emitTask")
	defer span.End()

	data, err := json.Marshal(task)
	if err != nil {
		return err
	}

	event := &kafka.ProfileEvent{
		EventType: eventType,
		PublicID:  task.PublicID,
		Data:      data,
	}

	if err := e.producer.PublishProfileEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).Errorf("Failed to emit %s event", eventType)
		return err
	}

	return nil
}
