// Package merging reconciles profile observations into the stored record.
// The engine is pure: no I/O, safe to call from any number of concurrent
// handlers.
package merging

import (
	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/google/uuid"
)

// Engine merges an incoming observation into an existing profile (or none).
type Engine struct{}

// NewEngine creates a new Engine
func NewEngine() *Engine {
	return &Engine{}
}

// Merge produces the profile to persist for an observation. Rules:
//   - no existing profile: the observation becomes the profile, with a fresh
//     surrogate id and completeness derived from Partial
//   - scalar fields coalesce, incoming wins when provided, regardless of
//     partial/full
//   - collections: a full observation replaces outright, even with an empty
//     list; a partial observation only fills collections never observed
//   - completeness is monotonic, it never regresses from full to partial
//   - ObservedAt always takes the observation's timestamp
//
// An observation without a public id returns ErrMissingPublicID and never
// touches anything.
func (e *Engine) Merge(existing *models.Profile, obs models.ProfileObservation) (*models.Profile, error) {
	if obs.PublicID == "" {
		return nil, models.ErrMissingPublicID
	}

	if existing == nil {
		return e.fromObservation(obs), nil
	}

	merged := *existing

	merged.FullName = coalesce(obs.FullName, existing.FullName)
	merged.Headline = coalesce(obs.Headline, existing.Headline)
	merged.Location = coalesce(obs.Location, existing.Location)
	merged.Company = coalesce(obs.Company, existing.Company)
	merged.Title = coalesce(obs.Title, existing.Title)
	merged.AvatarURL = coalesce(obs.AvatarURL, existing.AvatarURL)
	merged.Connections = coalesce(obs.Connections, existing.Connections)

	// About is a detail section, not a scalar: it follows the collection
	// rules, so a partial observation never overwrites a stored about.
	merged.About = mergeText(existing.About, obs.About, obs.Partial)

	merged.Experience = mergeCollection(existing.Experience, obs.Experience, obs.Partial)
	merged.Education = mergeCollection(existing.Education, obs.Education, obs.Partial)
	merged.Skills = mergeCollection(existing.Skills, obs.Skills, obs.Partial)

	if !obs.Partial {
		merged.Completeness = models.CompletenessFull
	}

	merged.ObservedAt = obs.ObservedAt

	return &merged, nil
}

func (e *Engine) fromObservation(obs models.ProfileObservation) *models.Profile {
	completeness := models.CompletenessFull
	if obs.Partial {
		completeness = models.CompletenessPartial
	}

	return &models.Profile{
		ID:           uuid.New().String(),
		PublicID:     obs.PublicID,
		Completeness: completeness,
		FullName:     obs.FullName,
		Headline:     obs.Headline,
		Location:     obs.Location,
		Company:      obs.Company,
		Title:        obs.Title,
		About:        obs.About,
		AvatarURL:    obs.AvatarURL,
		Connections:  obs.Connections,
		Experience:   fromPointer(obs.Experience),
		Education:    fromPointer(obs.Education),
		Skills:       fromPointer(obs.Skills),
		ObservedAt:   obs.ObservedAt,
	}
}

// coalesce keeps the existing value unless the incoming one is present and
// non-empty.
func coalesce(incoming, existing *string) *string {
	if incoming != nil && *incoming != "" {
		return incoming
	}
	return existing
}

// mergeText applies the collection rules to a nullable text section.
func mergeText(existing, incoming *string, partial bool) *string {
	if !partial {
		return incoming
	}
	if existing != nil {
		return existing
	}
	return incoming
}

// mergeCollection applies "last full wins, partial never overwrites". A full
// observation's collection is authoritative even when empty or absent; a
// partial observation only adopts its collection when nothing was stored.
func mergeCollection[T any](existing database.JSONB[T], incoming *T, partial bool) database.JSONB[T] {
	if !partial {
		return fromPointer(incoming)
	}
	if existing.Valid {
		return existing
	}
	return fromPointer(incoming)
}

func fromPointer[T any](v *T) database.JSONB[T] {
	if v == nil {
		return database.JSONB[T]{}
	}
	return database.NewJSONB(*v)
}
