package serverutils

import (
	"context"

	"fittrack-be/internal/dto"

	"github.com/gofiber/fiber/v2"
)

// SessionValidator is implemented by the auth service. Declared here so the
// middleware does not depend on the service package.
type SessionValidator interface {
	Validate(ctx context.Context, bearer string) (*dto.AuthenticatedUser, error)
}

// NewSessionMiddleware resolves the bearer token to an authenticated user and
// stores the identity in request locals. Every failure mode answers the same
// 401 so callers cannot probe which check rejected them.
func NewSessionMiddleware(validator SessionValidator) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		authHeader := ctx.Get("Authorization")
		if authHeader == "" {
			return ctx.Status(fiber.StatusUnauthorized).
				JSON(ErrorResponse(401, "Invalid or expired session"))
		}

		user, err := validator.Validate(ctx.UserContext(), authHeader)
		if err != nil || user == nil {
			return ctx.Status(fiber.StatusUnauthorized).
				JSON(ErrorResponse(401, "Invalid or expired session"))
		}

		ctx.Locals("user_id", user.UserId.String())
		ctx.Locals("session_token", user.Token)
		return ctx.Next()
	}
}
