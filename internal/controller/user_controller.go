package controller

import (
	"fittrack-be/internal/dto"
	"fittrack-be/internal/pkg/serverutils"
	"fittrack-be/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type IUserController interface {
	RegisterRoutes(r fiber.Router)
	GetProfile(ctx *fiber.Ctx) error
	UpdateProfile(ctx *fiber.Ctx) error
	DeleteAccount(ctx *fiber.Ctx) error
}

type userController struct {
	userService       service.IUserService
	sessionMiddleware fiber.Handler
}

func NewUserController(userService service.IUserService, sessionMiddleware fiber.Handler) IUserController {
	return &userController{
		userService:       userService,
		sessionMiddleware: sessionMiddleware,
	}
}

func (c *userController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/user/v1")
	h.Use(c.sessionMiddleware)
	h.Get("/profile", c.GetProfile)
	h.Put("/profile", c.UpdateProfile)
	h.Delete("/account", c.DeleteAccount)
}

func currentUserId(ctx *fiber.Ctx) uuid.UUID {
	userIdStr, _ := ctx.Locals("user_id").(string)
	userId, _ := uuid.Parse(userIdStr)
	return userId
}

func (c *userController) GetProfile(ctx *fiber.Ctx) error {
	res, err := c.userService.GetProfile(ctx.UserContext(), currentUserId(ctx))
	if err != nil {
		return respondError(ctx, err)
	}
	return ctx.JSON(serverutils.SuccessResponse("Success get profile", res))
}

func (c *userController) UpdateProfile(ctx *fiber.Ctx) error {
	var req dto.UpdateProfileRequest
	if err := ctx.BodyParser(&req); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, "Invalid request body"))
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, err.Error()))
	}

	res, err := c.userService.UpdateProfile(ctx.UserContext(), currentUserId(ctx), &req)
	if err != nil {
		return respondError(ctx, err)
	}
	return ctx.JSON(serverutils.SuccessResponse("Success update profile", res))
}

func (c *userController) DeleteAccount(ctx *fiber.Ctx) error {
	if err := c.userService.DeleteAccount(ctx.UserContext(), currentUserId(ctx)); err != nil {
		return respondError(ctx, err)
	}
	return ctx.JSON(serverutils.SuccessResponse[any]("Account deleted", nil))
}
