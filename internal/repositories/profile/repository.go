package profile

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
	"github.com/Ramsey-B/fern/pkg/normalizers"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

const defaultPageSize = 50
const maxPageSize = 200

var profileColumns = []string{
	"id", "public_id", "completeness",
	"full_name", "headline", "location", "company", "title", "about", "avatar_url", "connections",
	"experience", "education", "skills",
	"observed_at", "created_at", "updated_at",
}

// Repository handles profile persistence. It is the sole writer of profile
// rows; all mutations arrive through the merge engine upstream.
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new profile repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// GetByPublicID retrieves a profile by its public identifier. Returns
// (nil, nil) when no row exists.
func (r *Repository) GetByPublicID(ctx context.Context, publicID string) (*models.Profile, error) {
	ctx, span := tracing.StartSpan(ctx, "profile.Repository.GetByPublicID")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(profileColumns...)
	sb.From("profiles")
	sb.Where(sb.Equal("public_id", publicID))
	sb.Limit(1)

	query, args := sb.Build()
	var profile models.Profile
	if err := r.db.GetContext(ctx, &profile, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"public_id": publicID}).Error("Failed to get profile by public_id")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get profile")
	}
	return &profile, nil
}

// GetByID retrieves a profile by its surrogate id. Returns (nil, nil) when
// no row exists.
func (r *Repository) GetByID(ctx context.Context, id string) (*models.Profile, error) {
	ctx, span := tracing.StartSpan(ctx, "profile.Repository.GetByID")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(profileColumns...)
	sb.From("profiles")
	sb.Where(sb.Equal("id", id))
	sb.Limit(1)

	query, args := sb.Build()
	var profile models.Profile
	if err := r.db.GetContext(ctx, &profile, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"id": id}).Error("Failed to get profile by id")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get profile")
	}
	return &profile, nil
}

// Upsert writes a merged profile keyed by public_id. The row written is the
// merge engine's output, so the update simply takes the incoming values.
func (r *Repository) Upsert(ctx context.Context, profile *models.Profile) error {
	ctx, span := tracing.StartSpan(ctx, "profile.Repository.Upsert")
	defer span.End()

	now := time.Now().UTC()
	if profile.CreatedAt.IsZero() {
		profile.CreatedAt = now
	}
	profile.UpdatedAt = now

	ib := database.NewInsertBuilder().
		InsertInto("profiles").
		Cols(profileColumns...).
		Values(
			profile.ID, profile.PublicID, profile.Completeness,
			profile.FullName, profile.Headline, profile.Location, profile.Company, profile.Title, profile.About, profile.AvatarURL, profile.Connections,
			profile.Experience, profile.Education, profile.Skills,
			profile.ObservedAt, profile.CreatedAt, profile.UpdatedAt,
		)

	ub := ib.OnConflict("public_id")
	ub.Set(
		ub.Assign("completeness", database.Excluded("completeness")),
		ub.Assign("full_name", database.Excluded("full_name")),
		ub.Assign("headline", database.Excluded("headline")),
		ub.Assign("location", database.Excluded("location")),
		ub.Assign("company", database.Excluded("company")),
		ub.Assign("title", database.Excluded("title")),
		ub.Assign("about", database.Excluded("about")),
		ub.Assign("avatar_url", database.Excluded("avatar_url")),
		ub.Assign("connections", database.Excluded("connections")),
		ub.Assign("experience", database.Excluded("experience")),
		ub.Assign("education", database.Excluded("education")),
		ub.Assign("skills", database.Excluded("skills")),
		ub.Assign("observed_at", database.Excluded("observed_at")),
		ub.Assign("updated_at", database.Excluded("updated_at")),
	)

	query, args := ib.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"public_id": profile.PublicID}).Error("Failed to upsert profile")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to upsert profile")
	}
	return nil
}

// CreateStub inserts a minimal partial row for a public id never directly
// observed. Does nothing if the row already exists.
func (r *Repository) CreateStub(ctx context.Context, publicID string) error {
	ctx, span := tracing.StartSpan(ctx, "profile.Repository.CreateStub")
	defer span.End()

	now := time.Now().UTC()
	ib := database.NewInsertBuilder().
		InsertInto("profiles").
		Cols("id", "public_id", "completeness", "observed_at", "created_at", "updated_at").
		Values(uuid.New().String(), publicID, models.CompletenessPartial, now, now, now).
		OnConflictDoNothing()

	query, args := ib.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"public_id": publicID}).Error("Failed to create stub profile")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to create stub profile")
	}
	return nil
}

// SetCompleteness flips a profile's completeness flag. Used when an
// enrichment task completes.
func (r *Repository) SetCompleteness(ctx context.Context, publicID string, completeness models.Completeness) error {
	ctx, span := tracing.StartSpan(ctx, "profile.Repository.SetCompleteness")
	defer span.End()

	ub := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	ub.Update("profiles")
	ub.Set(
		ub.Assign("completeness", completeness),
		ub.Assign("updated_at", time.Now().UTC()),
	)
	ub.Where(ub.Equal("public_id", publicID))

	query, args := ub.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"public_id": publicID}).Error("Failed to set profile completeness")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to set profile completeness")
	}
	return nil
}

// List returns profiles matching the filter, paginated, with a total count.
func (r *Repository) List(ctx context.Context, filter models.ProfileFilter) (*models.ProfileListResponse, error) {
	ctx, span := tracing.StartSpan(ctx, "profile.Repository.List")
	defer span.End()

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(profileColumns...)
	sb.From("profiles")

	where := r.buildFilter(sb, filter)
	if len(where) > 0 {
		sb.Where(where...)
	}
	sb.OrderBy("observed_at DESC")
	sb.Limit(pageSize)
	sb.Offset((page - 1) * pageSize)

	query, args := sb.Build()
	var profiles []models.Profile
	if err := r.db.SelectContext(ctx, &profiles, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list profiles")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list profiles")
	}

	cb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	cb.Select("COUNT(*)")
	cb.From("profiles")
	countWhere := r.buildFilter(cb, filter)
	if len(countWhere) > 0 {
		cb.Where(countWhere...)
	}

	countQuery, countArgs := cb.Build()
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, countArgs...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to count profiles")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to count profiles")
	}

	return &models.ProfileListResponse{
		Items:      profiles,
		TotalCount: total,
		Page:       page,
		PageSize:   pageSize,
	}, nil
}

func (r *Repository) buildFilter(sb *sqlbuilder.SelectBuilder, filter models.ProfileFilter) []string {
	var where []string
	if filter.PublicID != "" {
		where = append(where, sb.Equal("public_id", filter.PublicID))
	}
	if filter.Completeness != "" {
		where = append(where, sb.Equal("completeness", filter.Completeness))
	}
	if filter.Company != "" {
		where = append(where, sb.ILike("company", "%"+filter.Company+"%"))
	}
	if filter.Location != "" {
		where = append(where, sb.ILike("location", "%"+filter.Location+"%"))
	}
	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		where = append(where, sb.Or(
			sb.ILike("full_name", pattern),
			sb.ILike("headline", pattern),
		))
	}
	return where
}

// Counts returns aggregate counts for the store.
func (r *Repository) Counts(ctx context.Context) (*models.ProfileStats, error) {
	ctx, span := tracing.StartSpan(ctx, "profile.Repository.Counts")
	defer span.End()

	query := `
		SELECT
			COUNT(*) AS total,
			COUNT(*) FILTER (WHERE completeness = 'partial') AS partial,
			COUNT(*) FILTER (WHERE completeness = 'full') AS full
		FROM profiles
	`

	var stats models.ProfileStats
	if err := r.db.GetContext(ctx, &stats, query); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to count profiles")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to count profiles")
	}
	return &stats, nil
}

// RepairDoubledText scans stored rows for text still carrying the upstream
// doubling corruption and rewrites it. Idempotent; run once at startup.
func (r *Repository) RepairDoubledText(ctx context.Context) (int, error) {
	ctx, span := tracing.StartSpan(ctx, "profile.Repository.RepairDoubledText")
	defer span.End()

	// candidate rows only; the cheap SQL predicate over-matches and the
	// exact check happens in Go
	query := `
		SELECT id, public_id, full_name, headline, location, company, title
		FROM profiles
		WHERE full_name IS NOT NULL OR headline IS NOT NULL OR location IS NOT NULL OR company IS NOT NULL OR title IS NOT NULL
	`

	type textRow struct {
		ID       string  `db:"id"`
		PublicID string  `db:"public_id"`
		FullName *string `db:"full_name"`
		Headline *string `db:"headline"`
		Location *string `db:"location"`
		Company  *string `db:"company"`
		Title    *string `db:"title"`
	}

	var rows []textRow
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to scan profiles for doubled text")
		return 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to scan profiles for doubled text")
	}

	repaired := 0
	for _, row := range rows {
		fields := map[string]*string{
			"full_name": row.FullName,
			"headline":  row.Headline,
			"location":  row.Location,
			"company":   row.Company,
			"title":     row.Title,
		}

		ub := sqlbuilder.PostgreSQL.NewUpdateBuilder()
		ub.Update("profiles")
		var assignments []string
		for col, val := range fields {
			if val == nil || !normalizers.IsDoubled(*val) {
				continue
			}
			assignments = append(assignments, ub.Assign(col, normalizers.RepairDoubled(*val)))
		}
		if len(assignments) == 0 {
			continue
		}
		assignments = append(assignments, ub.Assign("updated_at", time.Now().UTC()))
		ub.Set(assignments...)
		ub.Where(ub.Equal("id", row.ID))

		updateQuery, updateArgs := ub.Build()
		if _, err := r.db.ExecContext(ctx, updateQuery, updateArgs...); err != nil {
			r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"public_id": row.PublicID}).Error("Failed to repair doubled text")
			continue
		}
		repaired++
	}

	if repaired > 0 {
		r.logger.WithContext(ctx).WithFields(map[string]any{"repaired": repaired}).Info("Repaired doubled text on stored profiles")
	}
	return repaired, nil
}
