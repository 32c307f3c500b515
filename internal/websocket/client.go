package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"rag-chat-be/internal/dto"
	"rag-chat-be/internal/pkg/logger"
	"rag-chat-be/internal/pkg/serverutils"
	"rag-chat-be/internal/service"

	"github.com/gofiber/websocket/v2"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBuffer     = 256
)

var errClientGone = errors.New("websocket client gone")

// Client streams answers over one websocket connection. Prompts on the same
// connection are answered one after another.
type Client struct {
	Conn *websocket.Conn

	// Buffered channel of outbound frames.
	Send chan []byte

	sessions service.ISessionService
	chat     service.IChatService
	logger   logger.ILogger

	done      chan struct{}
	closeOnce sync.Once
}

func (c *Client) shutdown() {
	c.closeOnce.Do(func() { close(c.done) })
}

// push queues a frame, failing once the write side has stopped.
func (c *Client) push(frame dto.StreamFrame) error {
	b, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	select {
	case c.Send <- b:
		return nil
	case <-c.done:
		return errClientGone
	}
}

// readPump reads prompt requests and answers each one before reading the next.
func (c *Client) readPump(ctx context.Context) {
	defer func() {
		c.shutdown()
		c.Conn.Close()
	}()
	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn("WS", "Unexpected close", map[string]interface{}{"error": err.Error()})
			}
			return
		}

		if err := c.answer(ctx, raw); err != nil && errors.Is(err, errClientGone) {
			return
		}
		// a long answer may outlive the pong deadline
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	}
}

func (c *Client) answer(ctx context.Context, raw []byte) error {
	var req dto.PromptRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return c.push(dto.StreamFrame{Type: dto.StreamFrameError, Detail: "malformed request"})
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return c.push(dto.StreamFrame{Type: dto.StreamFrameError, Detail: err.Error()})
	}
	if err := c.sessions.Require(ctx, req.SessionId); err != nil {
		_, detail := serverutils.StatusFor(err)
		return c.push(dto.StreamFrame{Type: dto.StreamFrameError, Detail: detail})
	}

	res, err := c.chat.Stream(ctx, &req, func(fragment string) error {
		return c.push(dto.StreamFrame{Type: dto.StreamFrameToken, Data: fragment})
	})
	if err != nil {
		if errors.Is(err, errClientGone) {
			return err
		}
		_, detail := serverutils.StatusFor(err)
		return c.push(dto.StreamFrame{Type: dto.StreamFrameError, Detail: detail})
	}
	return c.push(dto.StreamFrame{Type: dto.StreamFrameDone, Timestamp: res.Timestamp})
}

// writePump sends queued frames and keeps the connection alive with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.shutdown()
		c.Conn.Close()
	}()

	for {
		select {
		case <-c.done:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case message := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
