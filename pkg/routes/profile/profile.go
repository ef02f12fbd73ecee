package profile

import (
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/fern/internal/repositories/profile"
	"github.com/Ramsey-B/fern/pkg/cache"
	"github.com/Ramsey-B/fern/pkg/models"
)

// Register registers profile routes
func Register(g *echo.Group) {
	g.GET("", List)
	g.GET("/stats", Stats)
	g.GET("/:publicId", Get)
}

// Get returns a single profile by public id. Reads through the cache when one
// is configured; the store stays the source of truth on every miss.
func Get(c echo.Context) error {
	ctx := c.Request().Context()

	publicID := c.Param("publicId")
	if publicID == "" {
		return httperror.NewHTTPError(http.StatusBadRequest, "publicId is required")
	}

	if ctx, profileCache, err := ectoinject.GetContext[*cache.ProfileCache](ctx); err == nil && profileCache != nil {
		if cached, err := profileCache.Get(ctx, publicID); err == nil && cached != nil {
			return c.JSON(http.StatusOK, cached)
		}
	}

	ctx, repo, err := ectoinject.GetContext[*profile.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get repository")
	}

	result, err := repo.GetByPublicID(ctx, publicID)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get profile")
	}
	if result == nil {
		return httperror.NewHTTPError(http.StatusNotFound, "profile not found")
	}

	if ctx, profileCache, err := ectoinject.GetContext[*cache.ProfileCache](ctx); err == nil && profileCache != nil {
		_ = profileCache.Set(ctx, result)
	}

	return c.JSON(http.StatusOK, result)
}

// List returns profiles matching the filter
func List(c echo.Context) error {
	ctx := c.Request().Context()

	var filter models.ProfileFilter
	if err := c.Bind(&filter); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid filter parameters")
	}

	ctx, repo, err := ectoinject.GetContext[*profile.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get repository")
	}

	result, err := repo.List(ctx, filter)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to list profiles")
	}

	return c.JSON(http.StatusOK, result)
}

// Stats returns aggregate profile counts by completeness
func Stats(c echo.Context) error {
	ctx := c.Request().Context()

	ctx, repo, err := ectoinject.GetContext[*profile.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get repository")
	}

	stats, err := repo.Counts(ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to count profiles")
	}

	return c.JSON(http.StatusOK, stats)
}
