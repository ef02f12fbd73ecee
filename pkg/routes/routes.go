// Package routes wires the HTTP surface onto an echo instance.
package routes

import (
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"github.com/Ramsey-B/fern/config"
	"github.com/Ramsey-B/fern/pkg/middleware"
	"github.com/Ramsey-B/fern/pkg/routes/health"
	profileroutes "github.com/Ramsey-B/fern/pkg/routes/profile"
	queueroutes "github.com/Ramsey-B/fern/pkg/routes/queue"
	syncroutes "github.com/Ramsey-B/fern/pkg/routes/sync"
)

// RegisterAll attaches middleware and all route groups to the echo instance.
func RegisterAll(e *echo.Echo, cfg *config.Config, logger ectologger.Logger, checker *health.Checker) {
	e.HideBanner = true
	e.HTTPErrorHandler = middleware.Error(logger)

	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins: cfg.AllowOrigins,
		AllowMethods: cfg.AllowMethods,
	}))
	e.Use(otelecho.Middleware(cfg.AppName))
	e.Use(middleware.Context())
	e.Use(middleware.Logger(logger))

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	checker.RegisterRoutes(e)

	api := e.Group("/api/v1")
	profileroutes.Register(api.Group("/profiles"))
	syncroutes.Register(api.Group("/sync"))
	queueroutes.Register(api.Group("/queue"))
}
