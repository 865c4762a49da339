// Package http provides the HTTP server.
package http

import (
	"log/slog"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/doublesecretagency/craft-sidekick-sub000/internal/config"
	"github.com/doublesecretagency/craft-sidekick-sub000/internal/service"
	v1 "github.com/doublesecretagency/craft-sidekick-sub000/internal/transport/http/v1"
)

// NewServer creates and configures the browser-facing HTTP server.
// Metrics registered with gatherer are served at /metrics.
func NewServer(svc *service.Service, cfg *config.Config, gatherer prometheus.Gatherer, logger *slog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	// Handlers
	v1Handler := v1.NewHandler(svc, cfg, logger)

	// Register Routes
	v1Handler.RegisterRoutes(e)
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	return e
}
