package controller

import (
	"bufio"
	"context"

	"rag-chat-be/internal/dto"
	"rag-chat-be/internal/pkg/logger"
	"rag-chat-be/internal/pkg/serverutils"
	"rag-chat-be/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"
)

type IChatController interface {
	RegisterRoutes(r fiber.Router)
	Prompt(ctx *fiber.Ctx) error
	PromptStream(ctx *fiber.Ctx) error
	Upload(ctx *fiber.Ctx) error
}

type chatController struct {
	sessionService   service.ISessionService
	chatService      service.IChatService
	ingestionService service.IIngestionService
	logger           logger.ILogger
}

func NewChatController(
	sessionService service.ISessionService,
	chatService service.IChatService,
	ingestionService service.IIngestionService,
	log logger.ILogger,
) IChatController {
	return &chatController{
		sessionService:   sessionService,
		chatService:      chatService,
		ingestionService: ingestionService,
		logger:           log,
	}
}

func (c *chatController) RegisterRoutes(r fiber.Router) {
	r.Post("/prompt", c.Prompt)
	r.Post("/prompt-stream", c.PromptStream)
	r.Post("/upload", c.Upload)
}

func parsePrompt(ctx *fiber.Ctx) (*dto.PromptRequest, error) {
	var req dto.PromptRequest
	if err := ctx.BodyParser(&req); err != nil {
		return nil, fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return nil, err
	}
	return &req, nil
}

func (c *chatController) Prompt(ctx *fiber.Ctx) error {
	req, err := parsePrompt(ctx)
	if err != nil {
		return err
	}

	res, err := c.chatService.Prompt(ctx.UserContext(), req)
	if err != nil {
		return err
	}
	return ctx.JSON(res)
}

// PromptStream answers with text/event-stream, one data event per model
// fragment. Failures after the first byte can no longer change the status,
// so they are reported as an "error" event before the stream closes.
func (c *chatController) PromptStream(ctx *fiber.Ctx) error {
	req, err := parsePrompt(ctx)
	if err != nil {
		return err
	}
	if err := c.sessionService.Require(ctx.UserContext(), req.SessionId); err != nil {
		return err
	}

	// the handler returns before the body is written
	streamCtx := context.WithoutCancel(ctx.UserContext())

	ctx.Set(fiber.HeaderContentType, "text/event-stream")
	ctx.Set(fiber.HeaderCacheControl, "no-cache")
	ctx.Set(fiber.HeaderConnection, "keep-alive")
	ctx.Set("X-Accel-Buffering", "no")

	ctx.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		emit := func(fragment string) error {
			return serverutils.WriteSSEData(w, fragment)
		}

		if _, err := c.chatService.Stream(streamCtx, req, emit); err != nil {
			c.logger.Warn("CHAT", "Prompt stream ended early", map[string]interface{}{
				"session_id": req.SessionId,
				"error":      err.Error(),
			})
			_, detail := serverutils.StatusFor(err)
			_ = serverutils.WriteSSEEvent(w, "error", detail)
		}
	}))
	return nil
}

func (c *chatController) Upload(ctx *fiber.Ctx) error {
	sessionId := ctx.FormValue("session_id")
	if sessionId == "" {
		sessionId = ctx.Query("session_id")
	}

	file, err := ctx.FormFile("file")
	if err != nil {
		return fiber.NewError(fiber.StatusUnprocessableEntity, "file is required")
	}

	res, err := c.ingestionService.Upload(ctx.UserContext(), sessionId, file)
	if err != nil {
		return err
	}
	return ctx.JSON(res)
}
