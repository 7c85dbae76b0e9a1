package service

import (
	"context"
	"encoding/json"
	"fmt"

	"fittrack-be/internal/model"
	"fittrack-be/internal/pkg/logger"
	"fittrack-be/internal/repository"
	"fittrack-be/pkg/events"
	pktNats "fittrack-be/pkg/nats"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// NotificationDelivery defines how to push real-time updates.
// Implemented by the WebSocket hub.
type NotificationDelivery interface {
	Send(userID uuid.UUID, notification model.Notification)
	Broadcast(notification model.Notification)
}

type NotificationService struct {
	repo       repository.NotificationRepository
	subscriber *pktNats.Subscriber
	delivery   NotificationDelivery
	logger     logger.ILogger
}

func NewNotificationService(repo repository.NotificationRepository, sub *pktNats.Subscriber, delivery NotificationDelivery, log logger.ILogger) *NotificationService {
	return &NotificationService{
		repo:       repo,
		subscriber: sub,
		delivery:   delivery,
		logger:     log,
	}
}

// Start begins listening to the event bus.
func (s *NotificationService) Start() {
	err := s.subscriber.Subscribe("events.>", "notif-service-worker", s.handleEvent)
	if err != nil {
		s.logger.Error("notification", "failed to start notification subscriber", map[string]interface{}{"error": err})
		return
	}
	s.logger.Info("notification", "notification service started, listening to events.>", nil)
}

func (s *NotificationService) handleEvent(ctx context.Context, event events.Event) error {
	switch event.EventType() {
	case "GOAL_REACHED":
		return s.handleGoalReached(ctx, event)
	case "USER_LOGIN":
		// Login events feed audit logs only, no user-facing notification.
		s.logger.Info("notification", "user login observed", event.Payload())
		return nil
	default:
		return nil
	}
}

func (s *NotificationService) handleGoalReached(ctx context.Context, event events.Event) error {
	payload := event.Payload()

	rawUserId, _ := payload["user_id"].(string)
	userId, err := uuid.Parse(rawUserId)
	if err != nil {
		s.logger.Warn("notification", "GOAL_REACHED without valid user_id, dropping", payload)
		return nil
	}

	goal := intFromPayload(payload["goal"])
	completed := intFromPayload(payload["completed"])

	metadata, _ := json.Marshal(map[string]interface{}{
		"goal":      goal,
		"completed": completed,
	})

	notif := model.Notification{
		ID:       uuid.New(),
		UserID:   userId,
		TypeCode: "GOAL_REACHED",
		Title:    "Meta atingida!",
		Message:  fmt.Sprintf("Parabéns! Você completou %d atividades e atingiu sua meta semanal de %d.", completed, goal),
		Metadata: datatypes.JSON(metadata),
		IsRead:   false,
	}

	if err := s.repo.CreateNotification(ctx, &notif); err != nil {
		s.logger.Error("notification", "failed to persist notification", map[string]interface{}{"error": err.Error()})
		return err // NATS will redeliver
	}

	if s.delivery != nil {
		s.delivery.Send(userId, notif)
	}
	return nil
}

// intFromPayload tolerates the number representations JSON decoding produces.
func intFromPayload(v interface{}) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	case json.Number:
		i, _ := n.Int64()
		return int(i)
	default:
		return 0
	}
}

// Inbox reads, exposed over REST.

func (s *NotificationService) List(ctx context.Context, userID uuid.UUID, limit, offset int) ([]model.Notification, int64, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.GetNotificationsByUserID(ctx, userID, limit, offset)
}

func (s *NotificationService) UnreadCount(ctx context.Context, userID uuid.UUID) (int64, error) {
	return s.repo.GetUnreadCount(ctx, userID)
}

func (s *NotificationService) MarkAsRead(ctx context.Context, notificationID, userID uuid.UUID) error {
	if err := s.repo.MarkAsRead(ctx, notificationID, userID); err != nil {
		return fmt.Errorf("%w: notification not found", ErrNotFound)
	}
	return nil
}

func (s *NotificationService) MarkAllAsRead(ctx context.Context, userID uuid.UUID) error {
	return s.repo.MarkAllAsRead(ctx, userID)
}
