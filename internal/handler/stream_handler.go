package handler

import (
	"context"

	"rag-chat-be/internal/pkg/logger"
	"rag-chat-be/internal/service"
	internalWS "rag-chat-be/internal/websocket"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// StreamHandler exposes prompt streaming over websocket for clients that
// cannot consume server-sent events.
type StreamHandler struct {
	sessions service.ISessionService
	chat     service.IChatService
	logger   logger.ILogger
}

func NewStreamHandler(sessions service.ISessionService, chat service.IChatService, log logger.ILogger) *StreamHandler {
	return &StreamHandler{
		sessions: sessions,
		chat:     chat,
		logger:   log,
	}
}

func (h *StreamHandler) ServeWs(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}

	ctx := context.WithoutCancel(c.UserContext())
	return websocket.New(func(conn *websocket.Conn) {
		h.logger.Debug("WS", "Stream connection opened", map[string]interface{}{
			"remote": conn.RemoteAddr().String(),
		})
		internalWS.ServeWs(ctx, conn, h.sessions, h.chat, h.logger)
	})(c)
}

func (h *StreamHandler) RegisterRoutes(router fiber.Router) {
	router.Get("/ws/prompt-stream", h.ServeWs)
}
