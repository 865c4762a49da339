package v1

import (
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/doublesecretagency/craft-sidekick-sub000/internal/domain"
	"github.com/doublesecretagency/craft-sidekick-sub000/internal/transport/bridge"
)

const (
	maxSocketMessageSize = 64 * 1024
	socketPingInterval   = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// ChatSocket runs one turn for each {message, greeting} frame received and
// streams the entries back as JSON frames, ending each turn with a close
// frame.
// GET /v1/chat/ws
func (h *Handler) ChatSocket(c echo.Context) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.logger.Warn("failed to upgrade websocket", "error", err)
		return nil
	}
	defer conn.Close()
	conn.SetReadLimit(maxSocketMessageSize)

	ctx := c.Request().Context()
	sess := h.session(c)
	sink := bridge.NewWebSocket(conn, bridge.DefaultWriteTimeout)
	logger := sess.Logger()
	logger.Info("websocket connected")

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(socketPingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := sink.Ping(); err != nil {
					return
				}
			}
		}
	}()

	for {
		var req domain.SendMessageRequest
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn("websocket read failed", "error", err)
			}
			logger.Info("websocket disconnected")
			return nil
		}

		req.Message = strings.TrimSpace(req.Message)
		if req.Message == "" {
			_ = sink.Send(domain.NewMessage(domain.RoleError, "message is required"))
		} else {
			h.service.SendMessage(ctx, sess, req, sink)
		}
		if err := sink.Close(); err != nil {
			logger.Warn("websocket write failed", "error", err)
			return nil
		}
	}
}
