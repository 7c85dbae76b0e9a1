package serverutils

import (
	"errors"

	"fittrack-be/internal/pkg/logger"

	"github.com/gofiber/fiber/v2"
)

// ErrorHandlerMiddleware recovers panics and turns unhandled errors into the
// standard response envelope. Handlers that already wrote a response are
// untouched.
func ErrorHandlerMiddleware(log logger.ILogger) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		defer func() {
			if r := recover(); r != nil {
				log.Error("http", "panic recovered", map[string]interface{}{
					"panic": r,
					"path":  ctx.Path(),
				})
				_ = ctx.Status(fiber.StatusInternalServerError).
					JSON(ErrorResponse(500, "Internal server error"))
			}
		}()

		err := ctx.Next()
		if err == nil {
			return nil
		}

		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			return ctx.Status(fiberErr.Code).JSON(ErrorResponse(fiberErr.Code, fiberErr.Message))
		}

		log.Error("http", "unhandled error", map[string]interface{}{
			"error": err.Error(),
			"path":  ctx.Path(),
		})
		return ctx.Status(fiber.StatusInternalServerError).
			JSON(ErrorResponse(500, "Internal server error"))
	}
}
