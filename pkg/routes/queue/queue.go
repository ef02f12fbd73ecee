package queue

import (
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/fern/pkg/enrichment"
)

// Register registers enrichment queue routes
func Register(g *echo.Group) {
	g.GET("/status", Status)
	g.GET("/:publicId", Get)
	g.POST("/:publicId", Enqueue)
	g.DELETE("/terminal", ClearTerminal)
}

// Enqueue requests a re-fetch for a public id. Safe to call repeatedly: an
// already-active task is left alone, a terminal one is re-armed.
func Enqueue(c echo.Context) error {
	ctx := c.Request().Context()

	publicID := c.Param("publicId")
	if publicID == "" {
		return httperror.NewHTTPError(http.StatusBadRequest, "publicId is required")
	}

	ctx, svc, err := ectoinject.GetContext[*enrichment.Service](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get enrichment service")
	}

	if err := svc.Enqueue(ctx, publicID); err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to enqueue enrichment task")
	}

	task, err := svc.Get(ctx, publicID)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get enrichment task")
	}

	return c.JSON(http.StatusAccepted, task)
}

// Get returns the enrichment task for a public id
func Get(c echo.Context) error {
	ctx := c.Request().Context()

	publicID := c.Param("publicId")

	ctx, svc, err := ectoinject.GetContext[*enrichment.Service](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get enrichment service")
	}

	task, err := svc.Get(ctx, publicID)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get enrichment task")
	}
	if task == nil {
		return httperror.NewHTTPError(http.StatusNotFound, "enrichment task not found")
	}

	return c.JSON(http.StatusOK, task)
}

// Status returns the queue-status summary
func Status(c echo.Context) error {
	ctx := c.Request().Context()

	ctx, svc, err := ectoinject.GetContext[*enrichment.Service](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get enrichment service")
	}

	status, err := svc.Status(ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get queue status")
	}

	return c.JSON(http.StatusOK, status)
}

// ClearTerminal removes completed and failed tasks from the queue
func ClearTerminal(c echo.Context) error {
	ctx := c.Request().Context()

	ctx, svc, err := ectoinject.GetContext[*enrichment.Service](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get enrichment service")
	}

	removed, err := svc.ClearTerminal(ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to clear terminal tasks")
	}

	return c.JSON(http.StatusOK, map[string]int{"removed": removed})
}
