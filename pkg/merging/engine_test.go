package merging

import (
	"testing"
	"time"

	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string {
	return &s
}

func TestMerge(t *testing.T) {
	engine := NewEngine()
	observedAt := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	t.Run("should reject an observation without a public id", func(t *testing.T) {
		_, err := engine.Merge(nil, models.ProfileObservation{
			Headline:   strPtr("Engineer"),
			ObservedAt: observedAt,
		})
		assert.ErrorIs(t, err, models.ErrMissingPublicID)
	})

	t.Run("should create a new profile when none exists", func(t *testing.T) {
		merged, err := engine.Merge(nil, models.ProfileObservation{
			PublicID:   "alice",
			Partial:    true,
			Headline:   strPtr("Engineer"),
			ObservedAt: observedAt,
		})
		require.NoError(t, err)

		assert.NotEmpty(t, merged.ID)
		assert.Equal(t, "alice", merged.PublicID)
		assert.Equal(t, models.CompletenessPartial, merged.Completeness)
		assert.Equal(t, "Engineer", *merged.Headline)
		assert.False(t, merged.Experience.Valid)
		assert.Equal(t, observedAt, merged.ObservedAt)
	})

	t.Run("should set completeness full for a new full observation", func(t *testing.T) {
		merged, err := engine.Merge(nil, models.ProfileObservation{
			PublicID:   "bob",
			Partial:    false,
			ObservedAt: observedAt,
		})
		require.NoError(t, err)
		assert.Equal(t, models.CompletenessFull, merged.Completeness)
	})

	t.Run("should keep existing scalar when incoming is absent", func(t *testing.T) {
		existing := &models.Profile{
			ID:           "id-1",
			PublicID:     "alice",
			Completeness: models.CompletenessPartial,
			Headline:     strPtr("A"),
		}

		merged, err := engine.Merge(existing, models.ProfileObservation{
			PublicID:   "alice",
			Partial:    true,
			ObservedAt: observedAt,
		})
		require.NoError(t, err)
		assert.Equal(t, "A", *merged.Headline)
	})

	t.Run("should take incoming scalar when provided", func(t *testing.T) {
		existing := &models.Profile{
			ID:           "id-1",
			PublicID:     "alice",
			Completeness: models.CompletenessPartial,
		}

		merged, err := engine.Merge(existing, models.ProfileObservation{
			PublicID:   "alice",
			Partial:    true,
			Headline:   strPtr("B"),
			ObservedAt: observedAt,
		})
		require.NoError(t, err)
		assert.Equal(t, "B", *merged.Headline)
	})

	t.Run("should treat incoming empty string as absent", func(t *testing.T) {
		existing := &models.Profile{
			ID:           "id-1",
			PublicID:     "alice",
			Completeness: models.CompletenessFull,
			Headline:     strPtr("A"),
		}

		merged, err := engine.Merge(existing, models.ProfileObservation{
			PublicID:   "alice",
			Partial:    true,
			Headline:   strPtr(""),
			ObservedAt: observedAt,
		})
		require.NoError(t, err)
		assert.Equal(t, "A", *merged.Headline)
	})

	t.Run("should not let a partial observation overwrite a stored collection", func(t *testing.T) {
		existing := &models.Profile{
			ID:           "id-1",
			PublicID:     "alice",
			Completeness: models.CompletenessFull,
			Experience: database.NewJSONB([]models.ExperienceEntry{
				{Title: "Engineer", Company: "Acme"},
			}),
		}

		merged, err := engine.Merge(existing, models.ProfileObservation{
			PublicID:   "alice",
			Partial:    true,
			Experience: &[]models.ExperienceEntry{{Title: "Intern"}},
			ObservedAt: observedAt,
		})
		require.NoError(t, err)

		require.True(t, merged.Experience.Valid)
		require.Len(t, merged.Experience.Data, 1)
		assert.Equal(t, "Engineer", merged.Experience.Data[0].Title)
	})

	t.Run("should let a partial observation fill a collection never observed", func(t *testing.T) {
		existing := &models.Profile{
			ID:           "id-1",
			PublicID:     "alice",
			Completeness: models.CompletenessPartial,
		}

		merged, err := engine.Merge(existing, models.ProfileObservation{
			PublicID:   "alice",
			Partial:    true,
			Skills:     &[]string{"go"},
			ObservedAt: observedAt,
		})
		require.NoError(t, err)

		require.True(t, merged.Skills.Valid)
		assert.Equal(t, []string{"go"}, merged.Skills.Data)
	})

	t.Run("should let a full observation replace collections outright", func(t *testing.T) {
		existing := &models.Profile{
			ID:           "id-1",
			PublicID:     "alice",
			Completeness: models.CompletenessFull,
			Skills:       database.NewJSONB([]string{"go", "sql"}),
		}

		merged, err := engine.Merge(existing, models.ProfileObservation{
			PublicID:   "alice",
			Partial:    false,
			Skills:     &[]string{},
			ObservedAt: observedAt,
		})
		require.NoError(t, err)

		// a full observation's empty collection is authoritative
		require.True(t, merged.Skills.Valid)
		assert.Empty(t, merged.Skills.Data)
	})

	t.Run("should treat about as a detail section", func(t *testing.T) {
		existing := &models.Profile{
			ID:           "id-1",
			PublicID:     "alice",
			Completeness: models.CompletenessFull,
			About:        strPtr("Long-form bio"),
		}

		// partial never overwrites a stored about
		merged, err := engine.Merge(existing, models.ProfileObservation{
			PublicID:   "alice",
			Partial:    true,
			About:      strPtr("Truncated preview"),
			ObservedAt: observedAt,
		})
		require.NoError(t, err)
		assert.Equal(t, "Long-form bio", *merged.About)

		// a full observation replaces it outright, including clearing it
		merged, err = engine.Merge(existing, models.ProfileObservation{
			PublicID:   "alice",
			Partial:    false,
			ObservedAt: observedAt,
		})
		require.NoError(t, err)
		assert.Nil(t, merged.About)
	})

	t.Run("should never regress completeness from full to partial", func(t *testing.T) {
		existing := &models.Profile{
			ID:           "id-1",
			PublicID:     "alice",
			Completeness: models.CompletenessFull,
		}

		merged, err := engine.Merge(existing, models.ProfileObservation{
			PublicID:   "alice",
			Partial:    true,
			ObservedAt: observedAt,
		})
		require.NoError(t, err)
		assert.Equal(t, models.CompletenessFull, merged.Completeness)
	})

	t.Run("should always refresh observed at", func(t *testing.T) {
		existing := &models.Profile{
			ID:           "id-1",
			PublicID:     "alice",
			Completeness: models.CompletenessFull,
			ObservedAt:   observedAt.Add(-24 * time.Hour),
		}

		merged, err := engine.Merge(existing, models.ProfileObservation{
			PublicID:   "alice",
			Partial:    true,
			ObservedAt: observedAt,
		})
		require.NoError(t, err)
		assert.Equal(t, observedAt, merged.ObservedAt)
	})

	t.Run("should keep the surrogate id stable across merges", func(t *testing.T) {
		existing := &models.Profile{
			ID:           "id-1",
			PublicID:     "alice",
			Completeness: models.CompletenessPartial,
		}

		merged, err := engine.Merge(existing, models.ProfileObservation{
			PublicID:   "alice",
			Partial:    false,
			ObservedAt: observedAt,
		})
		require.NoError(t, err)
		assert.Equal(t, "id-1", merged.ID)
	})

	t.Run("should reconcile a partial then full sequence end to end", func(t *testing.T) {
		partial, err := engine.Merge(nil, models.ProfileObservation{
			PublicID:   "alice",
			Partial:    true,
			Headline:   strPtr("Engineer"),
			ObservedAt: observedAt,
		})
		require.NoError(t, err)

		full, err := engine.Merge(partial, models.ProfileObservation{
			PublicID: "alice",
			Partial:  false,
			Experience: &[]models.ExperienceEntry{
				{Title: "Engineer", Company: "Acme"},
			},
			Skills:     &[]string{},
			ObservedAt: observedAt.Add(time.Hour),
		})
		require.NoError(t, err)

		assert.Equal(t, models.CompletenessFull, full.Completeness)
		assert.Equal(t, "Engineer", *full.Headline)
		require.True(t, full.Skills.Valid)
		assert.Empty(t, full.Skills.Data)
		require.True(t, full.Experience.Valid)
		assert.Len(t, full.Experience.Data, 1)
	})

	t.Run("should be deterministic when the same observation is applied twice", func(t *testing.T) {
		obs := models.ProfileObservation{
			PublicID:   "alice",
			Partial:    false,
			Headline:   strPtr("Engineer"),
			Skills:     &[]string{"go"},
			ObservedAt: observedAt,
		}

		once, err := engine.Merge(nil, obs)
		require.NoError(t, err)

		twice, err := engine.Merge(once, obs)
		require.NoError(t, err)

		// id is preserved, everything else converges
		assert.Equal(t, once.ID, twice.ID)
		assert.Equal(t, once.Headline, twice.Headline)
		assert.Equal(t, once.Skills, twice.Skills)
		assert.Equal(t, once.Completeness, twice.Completeness)
	})
}
