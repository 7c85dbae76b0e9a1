package controller

import (
	"fittrack-be/internal/dto"
	"fittrack-be/internal/pkg/serverutils"
	"fittrack-be/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type IActivityController interface {
	RegisterRoutes(r fiber.Router)
	Create(ctx *fiber.Ctx) error
	List(ctx *fiber.Ctx) error
	Show(ctx *fiber.Ctx) error
	Update(ctx *fiber.Ctx) error
	Delete(ctx *fiber.Ctx) error
	Stats(ctx *fiber.Ctx) error
}

type activityController struct {
	activityService   service.IActivityService
	sessionMiddleware fiber.Handler
}

func NewActivityController(activityService service.IActivityService, sessionMiddleware fiber.Handler) IActivityController {
	return &activityController{
		activityService:   activityService,
		sessionMiddleware: sessionMiddleware,
	}
}

func (c *activityController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/activity/v1")
	h.Use(c.sessionMiddleware)
	h.Post("", c.Create)
	h.Get("", c.List)
	h.Get("/stats", c.Stats)
	h.Get("/:id", c.Show)
	h.Put("/:id", c.Update)
	h.Delete("/:id", c.Delete)
}

func (c *activityController) Create(ctx *fiber.Ctx) error {
	var req dto.CreateActivityRequest
	if err := ctx.BodyParser(&req); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, "Invalid request body"))
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, err.Error()))
	}

	res, err := c.activityService.CreateActivity(ctx.UserContext(), currentUserId(ctx), &req)
	if err != nil {
		return respondError(ctx, err)
	}
	return ctx.JSON(serverutils.SuccessResponse("Success create activity", res))
}

func (c *activityController) List(ctx *fiber.Ctx) error {
	res, err := c.activityService.ListActivities(ctx.UserContext(), currentUserId(ctx))
	if err != nil {
		return respondError(ctx, err)
	}
	return ctx.JSON(serverutils.SuccessResponse("Success list activities", res))
}

func (c *activityController) Show(ctx *fiber.Ctx) error {
	activityId, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, "Invalid activity id"))
	}

	res, err := c.activityService.GetActivity(ctx.UserContext(), currentUserId(ctx), activityId)
	if err != nil {
		return respondError(ctx, err)
	}
	return ctx.JSON(serverutils.SuccessResponse("Success show activity", res))
}

func (c *activityController) Update(ctx *fiber.Ctx) error {
	activityId, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, "Invalid activity id"))
	}

	var req dto.UpdateActivityRequest
	if err := ctx.BodyParser(&req); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, "Invalid request body"))
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, err.Error()))
	}

	res, err := c.activityService.UpdateActivity(ctx.UserContext(), currentUserId(ctx), activityId, &req)
	if err != nil {
		return respondError(ctx, err)
	}
	return ctx.JSON(serverutils.SuccessResponse("Success update activity", res))
}

func (c *activityController) Delete(ctx *fiber.Ctx) error {
	activityId, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, "Invalid activity id"))
	}

	if err := c.activityService.DeleteActivity(ctx.UserContext(), currentUserId(ctx), activityId); err != nil {
		return respondError(ctx, err)
	}
	return ctx.JSON(serverutils.SuccessResponse[any]("Success delete activity", nil))
}

func (c *activityController) Stats(ctx *fiber.Ctx) error {
	res, err := c.activityService.GetStats(ctx.UserContext(), currentUserId(ctx))
	if err != nil {
		return respondError(ctx, err)
	}
	return ctx.JSON(serverutils.SuccessResponse("Success get activity stats", res))
}
