package controller

import (
	"fittrack-be/internal/dto"
	"fittrack-be/internal/pkg/serverutils"
	"fittrack-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IAuthController interface {
	RegisterRoutes(r fiber.Router)
	Register(ctx *fiber.Ctx) error
	Login(ctx *fiber.Ctx) error
	Refresh(ctx *fiber.Ctx) error
	Logout(ctx *fiber.Ctx) error
	ForgotPassword(ctx *fiber.Ctx) error
	ResetPassword(ctx *fiber.Ctx) error
}

type authController struct {
	service service.IAuthService
}

func NewAuthController(service service.IAuthService) IAuthController {
	return &authController{service: service}
}

func (c *authController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/auth")
	h.Post("/register", c.Register)
	h.Post("/login", c.Login)
	h.Post("/refresh", c.Refresh)
	h.Post("/logout", c.Logout)
	h.Post("/forgot-password", c.ForgotPassword)
	h.Post("/reset-password", c.ResetPassword)
}

func (c *authController) Register(ctx *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := ctx.BodyParser(&req); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, "Invalid request body"))
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, err.Error()))
	}

	res, err := c.service.Register(ctx.UserContext(), &req)
	if err != nil {
		return respondError(ctx, err)
	}
	return ctx.JSON(serverutils.SuccessResponse("User registered successfully", res))
}

func (c *authController) Login(ctx *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := ctx.BodyParser(&req); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, "Invalid request body"))
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, err.Error()))
	}

	res, err := c.service.Login(ctx.UserContext(), &req, ctx.IP(), ctx.Get("User-Agent"))
	if err != nil {
		return respondError(ctx, err)
	}
	return ctx.JSON(serverutils.SuccessResponse("Login successful", res))
}

func (c *authController) Refresh(ctx *fiber.Ctx) error {
	res, err := c.service.Refresh(ctx.UserContext(), ctx.Get("Authorization"), ctx.IP(), ctx.Get("User-Agent"))
	if err != nil {
		return respondError(ctx, err)
	}
	return ctx.JSON(serverutils.SuccessResponse("Session refreshed", res))
}

func (c *authController) Logout(ctx *fiber.Ctx) error {
	if err := c.service.Logout(ctx.UserContext(), ctx.Get("Authorization")); err != nil {
		return respondError(ctx, err)
	}
	return ctx.JSON(serverutils.SuccessResponse[any]("Logged out", nil))
}

func (c *authController) ForgotPassword(ctx *fiber.Ctx) error {
	var req dto.ForgotPasswordRequest
	if err := ctx.BodyParser(&req); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, "Invalid request body"))
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, err.Error()))
	}

	// Always answers success so account existence cannot be probed.
	if err := c.service.ForgotPassword(ctx.UserContext(), &req); err != nil {
		return respondError(ctx, err)
	}
	return ctx.JSON(serverutils.SuccessResponse[any]("If the email exists, a reset link was sent", nil))
}

func (c *authController) ResetPassword(ctx *fiber.Ctx) error {
	var req dto.ResetPasswordRequest
	if err := ctx.BodyParser(&req); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, "Invalid request body"))
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, err.Error()))
	}

	if err := c.service.ResetPassword(ctx.UserContext(), &req); err != nil {
		return respondError(ctx, err)
	}
	return ctx.JSON(serverutils.SuccessResponse[any]("Password reset successfully", nil))
}
