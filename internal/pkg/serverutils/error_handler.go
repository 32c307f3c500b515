package serverutils

import (
	"errors"

	"rag-chat-be/internal/pkg/logger"
	"rag-chat-be/pkg/rag/ingest"
	"rag-chat-be/pkg/rag/message"
	"rag-chat-be/pkg/rag/session"

	"github.com/gofiber/fiber/v2"
)

const invalidSessionDetail = "Invalid session"

// StatusFor maps an error coming out of a handler to the HTTP status and
// detail message returned to the client.
func StatusFor(err error) (int, string) {
	var fiberErr *fiber.Error
	var validationErr *ValidationError

	switch {
	case errors.Is(err, session.ErrInvalidSession):
		return fiber.StatusBadRequest, invalidSessionDetail
	case errors.Is(err, ingest.ErrUnsupportedFormat),
		errors.Is(err, ingest.ErrExtractorUnavailable):
		return fiber.StatusBadRequest, err.Error()
	case errors.Is(err, message.ErrInvalidTimestamp):
		return fiber.StatusUnprocessableEntity, err.Error()
	case errors.As(err, &validationErr):
		return fiber.StatusUnprocessableEntity, validationErr.Error()
	case errors.As(err, &fiberErr):
		return fiberErr.Code, fiberErr.Message
	}
	return fiber.StatusInternalServerError, "Internal server error"
}

// ErrorHandler is installed as the fiber app's ErrorHandler. Only 5xx are
// logged; client errors are part of normal traffic.
func ErrorHandler(log logger.ILogger) fiber.ErrorHandler {
	return func(ctx *fiber.Ctx, err error) error {
		code, detail := StatusFor(err)
		if code >= fiber.StatusInternalServerError {
			log.Error("HTTP", "Request failed", map[string]interface{}{
				"method": ctx.Method(),
				"path":   ctx.Path(),
				"error":  err.Error(),
			})
		}
		return ctx.Status(code).JSON(ErrorResponse(code, detail))
	}
}
