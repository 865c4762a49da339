package v1

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/doublesecretagency/craft-sidekick-sub000/internal/domain"
	"github.com/doublesecretagency/craft-sidekick-sub000/internal/service"
)

// ListModels lists the models the user can choose from.
// GET /v1/models
func (h *Handler) ListModels(c echo.Context) error {
	resp, err := h.service.Models(c.Request().Context(), h.session(c))
	if err != nil {
		return fail(c, http.StatusBadGateway, err.Error())
	}
	return c.JSON(http.StatusOK, resp)
}

// SelectModel stores the model used for new assistants.
// PUT /v1/models/selected
func (h *Handler) SelectModel(c echo.Context) error {
	var req domain.SelectModelRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid request body")
	}

	sess := h.session(c)
	err := h.service.SelectModel(c.Request().Context(), sess, req.Model)
	switch {
	case errors.Is(err, service.ErrUnknownModel):
		return fail(c, http.StatusBadRequest, err.Error())
	case err != nil:
		return fail(c, http.StatusInternalServerError, err.Error())
	}
	return h.ListModels(c)
}

// ListTools describes the tools exposed to the assistant.
// GET /v1/tools
func (h *Handler) ListTools(c echo.Context) error {
	return c.JSON(http.StatusOK, h.service.Tools())
}
