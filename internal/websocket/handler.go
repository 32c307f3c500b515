package websocket

import (
	"context"

	"rag-chat-be/internal/pkg/logger"
	"rag-chat-be/internal/service"

	"github.com/gofiber/websocket/v2"
)

// ServeWs runs one streaming connection until the peer goes away.
func ServeWs(ctx context.Context, c *websocket.Conn, sessions service.ISessionService, chat service.IChatService, log logger.ILogger) {
	client := &Client{
		Conn:     c,
		Send:     make(chan []byte, sendBuffer),
		sessions: sessions,
		chat:     chat,
		logger:   log,
		done:     make(chan struct{}),
	}

	go client.writePump()
	client.readPump(ctx) // the fiber handler must not return while the conn is in use
}
