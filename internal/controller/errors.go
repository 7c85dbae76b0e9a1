package controller

import (
	"errors"

	"fittrack-be/internal/pkg/serverutils"
	"fittrack-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

// respondError maps service sentinels onto HTTP statuses. Forbidden answers
// 404 like NotFound so foreign resources are indistinguishable from missing
// ones.
func respondError(ctx *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrNotFound), errors.Is(err, service.ErrForbidden):
		return ctx.Status(fiber.StatusNotFound).JSON(serverutils.ErrorResponse(404, "Resource not found"))
	case errors.Is(err, service.ErrUnauthorized):
		return ctx.Status(fiber.StatusUnauthorized).JSON(serverutils.ErrorResponse(401, "Invalid or expired session"))
	case errors.Is(err, service.ErrConflict):
		return ctx.Status(fiber.StatusConflict).JSON(serverutils.ErrorResponse(409, err.Error()))
	case errors.Is(err, service.ErrInvalidInput):
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, err.Error()))
	case errors.Is(err, service.ErrUpstream):
		return ctx.Status(fiber.StatusBadGateway).JSON(serverutils.ErrorResponse(502, "Upstream model unavailable"))
	default:
		return err
	}
}
