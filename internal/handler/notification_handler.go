package handler

import (
	"fittrack-be/internal/pkg/logger"
	"fittrack-be/internal/pkg/serverutils"
	"fittrack-be/internal/service"
	internalWS "fittrack-be/internal/websocket"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

type NotificationHandler struct {
	service           *service.NotificationService
	authService       service.IAuthService
	hub               *internalWS.Hub
	sessionMiddleware fiber.Handler
	logger            logger.ILogger
}

func NewNotificationHandler(
	svc *service.NotificationService,
	authService service.IAuthService,
	hub *internalWS.Hub,
	sessionMiddleware fiber.Handler,
	log logger.ILogger,
) *NotificationHandler {
	return &NotificationHandler{
		service:           svc,
		authService:       authService,
		hub:               hub,
		sessionMiddleware: sessionMiddleware,
		logger:            log,
	}
}

func (h *NotificationHandler) RegisterRoutes(r fiber.Router) {
	r.Get("/ws/notifications", h.ServeWs)

	n := r.Group("/notification/v1")
	n.Use(h.sessionMiddleware)
	n.Get("", h.GetNotifications)
	n.Get("/unread-count", h.GetUnreadCount)
	n.Put("/read-all", h.MarkAllAsRead)
	n.Put("/:id/read", h.MarkAsRead)
}

// ServeWs upgrades the connection after resolving the session. Browsers
// cannot set headers on WebSocket handshakes, so the token may come as a
// query param instead.
func (h *NotificationHandler) ServeWs(c *fiber.Ctx) error {
	tokenStr := c.Query("token")
	if tokenStr == "" {
		tokenStr = c.Get("Authorization")
	}

	user, err := h.authService.Validate(c.UserContext(), tokenStr)
	if err != nil || user == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(serverutils.ErrorResponse(401, "Invalid or expired session"))
	}
	userID := user.UserId

	if websocket.IsWebSocketUpgrade(c) {
		return websocket.New(func(conn *websocket.Conn) {
			h.logger.Info("notification", "websocket session started", map[string]interface{}{"user_id": userID})
			internalWS.ServeWs(h.hub, conn, userID)
			h.logger.Info("notification", "websocket session ended", map[string]interface{}{"user_id": userID})
		})(c)
	}
	return fiber.ErrUpgradeRequired
}

func (h *NotificationHandler) GetNotifications(c *fiber.Ctx) error {
	userIDStr, _ := c.Locals("user_id").(string)
	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(serverutils.ErrorResponse(401, "Invalid or expired session"))
	}

	limit := c.QueryInt("limit", 20)
	offset := c.QueryInt("offset", 0)

	notifications, total, err := h.service.List(c.UserContext(), userID, limit, offset)
	if err != nil {
		return err
	}

	return c.JSON(serverutils.SuccessResponse("Success list notifications", fiber.Map{
		"notifications": notifications,
		"total":         total,
	}))
}

func (h *NotificationHandler) GetUnreadCount(c *fiber.Ctx) error {
	userIDStr, _ := c.Locals("user_id").(string)
	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(serverutils.ErrorResponse(401, "Invalid or expired session"))
	}

	count, err := h.service.UnreadCount(c.UserContext(), userID)
	if err != nil {
		return err
	}
	return c.JSON(serverutils.SuccessResponse("Success get unread count", fiber.Map{"count": count}))
}

func (h *NotificationHandler) MarkAsRead(c *fiber.Ctx) error {
	userIDStr, _ := c.Locals("user_id").(string)
	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(serverutils.ErrorResponse(401, "Invalid or expired session"))
	}

	notificationID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, "Invalid notification id"))
	}

	if err := h.service.MarkAsRead(c.UserContext(), notificationID, userID); err != nil {
		return c.Status(fiber.StatusNotFound).JSON(serverutils.ErrorResponse(404, "Resource not found"))
	}
	return c.JSON(serverutils.SuccessResponse[any]("Notification marked as read", nil))
}

func (h *NotificationHandler) MarkAllAsRead(c *fiber.Ctx) error {
	userIDStr, _ := c.Locals("user_id").(string)
	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(serverutils.ErrorResponse(401, "Invalid or expired session"))
	}

	if err := h.service.MarkAllAsRead(c.UserContext(), userID); err != nil {
		return err
	}
	return c.JSON(serverutils.SuccessResponse[any]("All notifications marked as read", nil))
}
