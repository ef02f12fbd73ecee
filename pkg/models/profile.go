package models

import (
	"time"

	"github.com/Ramsey-B/fern/pkg/database"
)

// Completeness tracks whether a profile has ever been observed in full.
type Completeness string

const (
	CompletenessPartial Completeness = "partial"
	CompletenessFull    Completeness = "full"
)

// Profile is the reconciled view of one person, keyed by their public
// identifier. Scalar fields are independently nullable. Collections are
// nullable as a whole: a NULL collection was never observed, an empty one
// was observed and confirmed empty.
type Profile struct {
	ID           string       `json:"id" db:"id"`
	PublicID     string       `json:"public_id" db:"public_id"`
	Completeness Completeness `json:"completeness" db:"completeness"`

	FullName    *string `json:"full_name,omitempty" db:"full_name"`
	Headline    *string `json:"headline,omitempty" db:"headline"`
	Location    *string `json:"location,omitempty" db:"location"`
	Company     *string `json:"company,omitempty" db:"company"`
	Title       *string `json:"title,omitempty" db:"title"`
	About       *string `json:"about,omitempty" db:"about"`
	AvatarURL   *string `json:"avatar_url,omitempty" db:"avatar_url"`
	Connections *string `json:"connections,omitempty" db:"connections"`

	Experience database.JSONB[[]ExperienceEntry] `json:"experience" db:"experience"`
	Education  database.JSONB[[]EducationEntry]  `json:"education" db:"education"`
	Skills     database.JSONB[[]string]          `json:"skills" db:"skills"`

	ObservedAt time.Time `json:"observed_at" db:"observed_at"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}

// ExperienceEntry is one position in a profile's work history.
type ExperienceEntry struct {
	Title       string `json:"title"`
	Company     string `json:"company,omitempty"`
	DateRange   string `json:"date_range,omitempty"`
	Location    string `json:"location,omitempty"`
	Description string `json:"description,omitempty"`
}

// EducationEntry is one school in a profile's education history.
type EducationEntry struct {
	School    string `json:"school"`
	Degree    string `json:"degree,omitempty"`
	Field     string `json:"field,omitempty"`
	DateRange string `json:"date_range,omitempty"`
}

// ProfileObservation is one sighting of a profile as delivered by the
// extraction layer. Partial observations carry only whatever the page
// exposed; collections are pointers so "not observed" is distinguishable
// from "observed empty".
type ProfileObservation struct {
	PublicID string `json:"public_id" validate:"required"`
	Partial  bool   `json:"partial"`

	FullName    *string `json:"full_name,omitempty"`
	Headline    *string `json:"headline,omitempty"`
	Location    *string `json:"location,omitempty"`
	Company     *string `json:"company,omitempty"`
	Title       *string `json:"title,omitempty"`
	About       *string `json:"about,omitempty"`
	AvatarURL   *string `json:"avatar_url,omitempty"`
	Connections *string `json:"connections,omitempty"`

	Experience *[]ExperienceEntry `json:"experience,omitempty"`
	Education  *[]EducationEntry  `json:"education,omitempty"`
	Skills     *[]string          `json:"skills,omitempty"`

	ObservedAt time.Time `json:"observed_at"`
}

// ProfileFilter narrows List queries. Zero values mean "no filter".
type ProfileFilter struct {
	PublicID     string       `query:"public_id"`
	Completeness Completeness `query:"completeness"`
	Company      string       `query:"company"`
	Location     string       `query:"location"`
	Search       string       `query:"search"` // matches full_name or headline
	Page         int          `query:"page"`
	PageSize     int          `query:"page_size"`
}

// ProfileListResponse is the response for listing profiles
type ProfileListResponse struct {
	Items      []Profile `json:"items"`
	TotalCount int       `json:"total_count"`
	Page       int       `json:"page"`
	PageSize   int       `json:"page_size"`
}

// ProfileStats is the aggregate count summary for the store.
type ProfileStats struct {
	Total   int `json:"total" db:"total"`
	Partial int `json:"partial" db:"partial"`
	Full    int `json:"full" db:"full"`
}
