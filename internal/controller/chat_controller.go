package controller

import (
	"bufio"
	"encoding/json"
	"fmt"

	"fittrack-be/internal/dto"
	"fittrack-be/internal/pkg/serverutils"
	"fittrack-be/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/valyala/fasthttp"
)

type IChatController interface {
	RegisterRoutes(r fiber.Router)
	Create(ctx *fiber.Ctx) error
	List(ctx *fiber.Ctx) error
	History(ctx *fiber.Ctx) error
	Rename(ctx *fiber.Ctx) error
	Delete(ctx *fiber.Ctx) error
	SendTurn(ctx *fiber.Ctx) error
}

type chatController struct {
	chatService       service.IChatService
	sessionMiddleware fiber.Handler
}

func NewChatController(chatService service.IChatService, sessionMiddleware fiber.Handler) IChatController {
	return &chatController{
		chatService:       chatService,
		sessionMiddleware: sessionMiddleware,
	}
}

func (c *chatController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/chat/v1")
	h.Use(c.sessionMiddleware)
	h.Post("", c.Create)
	h.Get("", c.List)
	h.Post("/turn", c.SendTurn)
	h.Get("/:id/messages", c.History)
	h.Put("/:id", c.Rename)
	h.Delete("/:id", c.Delete)
}

func (c *chatController) Create(ctx *fiber.Ctx) error {
	var req dto.CreateChatRequest
	if err := ctx.BodyParser(&req); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, "Invalid request body"))
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, err.Error()))
	}

	res, err := c.chatService.CreateChat(ctx.UserContext(), currentUserId(ctx), &req)
	if err != nil {
		return respondError(ctx, err)
	}
	return ctx.JSON(serverutils.SuccessResponse("Success create chat", res))
}

func (c *chatController) List(ctx *fiber.Ctx) error {
	res, err := c.chatService.ListChats(ctx.UserContext(), currentUserId(ctx))
	if err != nil {
		return respondError(ctx, err)
	}
	return ctx.JSON(serverutils.SuccessResponse("Success list chats", res))
}

func (c *chatController) History(ctx *fiber.Ctx) error {
	chatId, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, "Invalid chat id"))
	}

	res, err := c.chatService.GetChatHistory(ctx.UserContext(), currentUserId(ctx), chatId)
	if err != nil {
		return respondError(ctx, err)
	}
	return ctx.JSON(serverutils.SuccessResponse("Success get chat history", res))
}

func (c *chatController) Rename(ctx *fiber.Ctx) error {
	chatId, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, "Invalid chat id"))
	}

	var req dto.RenameChatRequest
	if err := ctx.BodyParser(&req); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, "Invalid request body"))
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, err.Error()))
	}

	res, err := c.chatService.RenameChat(ctx.UserContext(), currentUserId(ctx), chatId, &req)
	if err != nil {
		return respondError(ctx, err)
	}
	return ctx.JSON(serverutils.SuccessResponse("Success rename chat", res))
}

func (c *chatController) Delete(ctx *fiber.Ctx) error {
	chatId, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, "Invalid chat id"))
	}

	if err := c.chatService.DeleteChat(ctx.UserContext(), currentUserId(ctx), chatId); err != nil {
		return respondError(ctx, err)
	}
	return ctx.JSON(serverutils.SuccessResponse[any]("Success delete chat", nil))
}

// SendTurn answers streamed Server-Sent Events by default; the X-No-Stream
// header switches to a single buffered JSON reply.
func (c *chatController) SendTurn(ctx *fiber.Ctx) error {
	var req dto.SendTurnRequest
	if err := ctx.BodyParser(&req); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, "Invalid request body"))
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, err.Error()))
	}

	userId := currentUserId(ctx)

	if ctx.Get("X-No-Stream") != "" {
		res, err := c.chatService.SendTurn(ctx.UserContext(), userId, &req)
		if err != nil {
			return respondError(ctx, err)
		}
		return ctx.JSON(serverutils.SuccessResponse("Turn completed", res))
	}

	deltas, err := c.chatService.SendTurnStream(ctx.UserContext(), userId, &req)
	if err != nil {
		return respondError(ctx, err)
	}

	ctx.Set("Content-Type", "text/event-stream")
	ctx.Set("Cache-Control", "no-cache")
	ctx.Set("Connection", "keep-alive")
	ctx.Set("X-Accel-Buffering", "no")

	ctx.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		disconnected := false
		for delta := range deltas {
			if disconnected {
				// Keep draining so the service can finish persisting.
				continue
			}
			data, err := json.Marshal(delta)
			if err != nil {
				continue
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
				disconnected = true
				continue
			}
			if err := w.Flush(); err != nil {
				disconnected = true
			}
		}
	}))

	return nil
}
