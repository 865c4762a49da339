// Package v1 provides the browser-facing HTTP handlers.
package v1

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/doublesecretagency/craft-sidekick-sub000/internal/config"
	"github.com/doublesecretagency/craft-sidekick-sub000/internal/domain"
	"github.com/doublesecretagency/craft-sidekick-sub000/internal/service"
	"github.com/doublesecretagency/craft-sidekick-sub000/internal/session"
)

// Handler handles HTTP requests.
type Handler struct {
	service *service.Service
	config  *config.Config
	logger  *slog.Logger
}

// NewHandler creates a new handler.
func NewHandler(svc *service.Service, cfg *config.Config, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		service: svc,
		config:  cfg,
		logger:  logger,
	}
}

// RegisterRoutes registers the routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	chat := e.Group("/v1/chat", Sessions(h.config.Session.CookieName))
	chat.POST("/messages", h.SendMessage)
	chat.GET("/ws", h.ChatSocket)
	chat.GET("/conversation", h.GetConversation)
	chat.DELETE("/conversation", h.ClearConversation)

	models := e.Group("/v1/models", Sessions(h.config.Session.CookieName))
	models.GET("", h.ListModels)
	models.PUT("/selected", h.SelectModel)

	e.GET("/v1/tools", h.ListTools)
	e.GET("/health", h.Health)
}

// Health returns health status.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": service.Version,
	})
}

// session returns the session of the request.
func (h *Handler) session(c echo.Context) *session.Session {
	return h.service.Session(c.Request().Context(), SessionID(c))
}

func fail(c echo.Context, status int, msg string) error {
	return c.JSON(status, domain.ErrorResponse{Success: false, Error: msg})
}
