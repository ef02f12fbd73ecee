package sync

import (
	"net/http"
	"strconv"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/fern/internal/repositories/synclog"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/processor"
)

var validate = validator.New()

// Register registers bulk sync routes
func Register(g *echo.Group) {
	g.POST("/profiles", SyncProfiles)
	g.GET("/log", RecentLog)
}

// SyncProfiles reconciles a batch of observations. The response always
// carries the per-item outcome, so a batch with bad items still returns 200
// with those items listed under failed.
func SyncProfiles(c echo.Context) error {
	ctx := c.Request().Context()

	var req models.SyncBatchRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if err := validate.Struct(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx, proc, err := ectoinject.GetContext[*processor.Processor](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get processor")
	}

	result, err := proc.SyncBatch(ctx, req.Items)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to process sync batch")
	}

	return c.JSON(http.StatusOK, result)
}

// RecentLog returns the most recent sync audit entries
func RecentLog(c echo.Context) error {
	ctx := c.Request().Context()

	limit, _ := strconv.Atoi(c.QueryParam("limit"))

	ctx, repo, err := ectoinject.GetContext[*synclog.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get repository")
	}

	entries, err := repo.Recent(ctx, limit)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to list sync log entries")
	}

	return c.JSON(http.StatusOK, entries)
}
