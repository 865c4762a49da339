package v1

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/doublesecretagency/craft-sidekick-sub000/internal/domain"
	"github.com/doublesecretagency/craft-sidekick-sub000/internal/session"
	"github.com/doublesecretagency/craft-sidekick-sub000/internal/transport/bridge"
)

// SendMessage runs one turn and streams its entries as server-sent events.
// POST /v1/chat/messages
func (h *Handler) SendMessage(c echo.Context) error {
	var req domain.SendMessageRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid request body")
	}
	req.Message = strings.TrimSpace(req.Message)
	if req.Message == "" {
		return fail(c, http.StatusBadRequest, "message is required")
	}

	sse, err := bridge.NewSSE(c.Response(), h.config.Stream.Padding)
	if err != nil {
		return fail(c, http.StatusInternalServerError, err.Error())
	}
	if err := sse.Start(); err != nil {
		return err
	}

	sess := h.session(c)
	h.service.SendMessage(c.Request().Context(), sess, req, sse)

	if err := sse.Close(); err != nil {
		sess.Logger().Warn("failed to close stream", "error", err)
	}
	return nil
}

// GetConversation returns the stored conversation. Assistant entries carry
// their message rendered as HTML.
// GET /v1/chat/conversation
func (h *Handler) GetConversation(c echo.Context) error {
	sess := h.session(c)
	messages := h.service.Conversation(c.Request().Context(), sess, c.QueryParam("greeting"))

	entries := make([]domain.ConversationEntry, 0, len(messages))
	for _, m := range messages {
		entry := domain.ConversationEntry{ConversationMessage: m}
		if m.Role == domain.RoleAssistant {
			html, err := renderMarkdown(m.Message)
			if err != nil {
				sess.Logger().Warn("failed to render message", "error", err)
			}
			entry.HTML = html
		}
		entries = append(entries, entry)
	}

	return c.JSON(http.StatusOK, domain.ConversationResponse{Success: true, Messages: entries})
}

// ClearConversation starts a new conversation.
// DELETE /v1/chat/conversation
//
// While a run is in flight for the session nothing is cleared and the
// request fails with 409 Conflict, so the running turn keeps its thread.
// Clients retry once the stream ends.
func (h *Handler) ClearConversation(c echo.Context) error {
	err := h.service.ClearConversation(c.Request().Context(), h.session(c))
	switch {
	case errors.Is(err, session.ErrRunInFlight):
		return fail(c, http.StatusConflict, err.Error())
	case err != nil:
		return fail(c, http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]bool{"success": true})
}
