package controller

import (
	"rag-chat-be/internal/dto"
	"rag-chat-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type ISessionController interface {
	RegisterRoutes(r fiber.Router)
	Create(ctx *fiber.Ctx) error
	Validate(ctx *fiber.Ctx) error
	History(ctx *fiber.Ctx) error
}

type sessionController struct {
	sessionService service.ISessionService
}

func NewSessionController(sessionService service.ISessionService) ISessionController {
	return &sessionController{
		sessionService: sessionService,
	}
}

func (c *sessionController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/session")
	h.Get("/", c.Create)
	h.Post("/", c.Validate)
	h.Get("/:id/messages", c.History)
}

func (c *sessionController) Create(ctx *fiber.Ctx) error {
	res, err := c.sessionService.Create(ctx.UserContext())
	if err != nil {
		return err
	}
	return ctx.JSON(res)
}

// Validate answers a bare JSON boolean. The id may come from the query string
// or from a JSON body.
func (c *sessionController) Validate(ctx *fiber.Ctx) error {
	var req dto.ValidateSessionRequest
	if err := ctx.QueryParser(&req); err != nil {
		return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
	}
	if req.SessionId == "" && len(ctx.Body()) > 0 {
		if err := ctx.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
		}
	}

	valid, err := c.sessionService.Validate(ctx.UserContext(), req.SessionId)
	if err != nil {
		return err
	}
	return ctx.JSON(valid)
}

func (c *sessionController) History(ctx *fiber.Ctx) error {
	res, err := c.sessionService.History(ctx.UserContext(), ctx.Params("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(res)
}
