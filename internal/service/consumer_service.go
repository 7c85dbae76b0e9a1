package service

import (
	"context"
	"encoding/json"
	"time"

	"fittrack-be/internal/dto"
	"fittrack-be/internal/pkg/logger"
	"fittrack-be/internal/repository/specification"
	"fittrack-be/internal/repository/unitofwork"
	"fittrack-be/pkg/events"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

type IConsumerService interface {
	Consume(ctx context.Context) error
}

// EventPublisher is the outbound side of the worker, satisfied by the NATS
// publisher.
type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

// consumerService is the goal evaluation worker: every created activity is
// checked against the owner's weekly goal, and crossing the goal emits a
// GOAL_REACHED event.
type consumerService struct {
	pubSub         *gochannel.GoChannel
	topicName      string
	uowFactory     unitofwork.RepositoryFactory
	eventPublisher EventPublisher
	log            logger.ILogger
}

func NewConsumerService(
	pubSub *gochannel.GoChannel,
	topicName string,
	uowFactory unitofwork.RepositoryFactory,
	eventPublisher EventPublisher,
	log logger.ILogger,
) IConsumerService {
	return &consumerService{
		pubSub:         pubSub,
		topicName:      topicName,
		uowFactory:     uowFactory,
		eventPublisher: eventPublisher,
		log:            log,
	}
}

func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.pubSub.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.processMessage(ctx, msg)
		}
	}()

	return nil
}

func (cs *consumerService) processMessage(ctx context.Context, msg *message.Message) {
	var payload dto.ActivityCreatedMessage
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		cs.log.Error("goal-worker", "failed to unmarshal message", map[string]interface{}{"error": err.Error()})
		msg.Ack() // Ack invalid messages to prevent infinite retry
		return
	}

	uow := cs.uowFactory.NewUnitOfWork(ctx)

	user, err := uow.UserRepository().FindOne(ctx, specification.ByID{ID: payload.UserId})
	if err != nil {
		cs.log.Error("goal-worker", "failed to load user", map[string]interface{}{
			"user_id": payload.UserId.String(),
			"error":   err.Error(),
		})
		msg.Nack() // retriable
		return
	}
	if user == nil || user.ActivityGoal == nil || *user.ActivityGoal <= 0 {
		// No goal set, nothing to evaluate.
		msg.Ack()
		return
	}

	weekAgo := time.Now().AddDate(0, 0, -7)
	completed, err := uow.ActivityRepository().Count(ctx,
		specification.UserOwnedBy{UserID: payload.UserId},
		specification.CreatedAfter{After: weekAgo},
	)
	if err != nil {
		cs.log.Error("goal-worker", "failed to count activities", map[string]interface{}{
			"user_id": payload.UserId.String(),
			"error":   err.Error(),
		})
		msg.Nack()
		return
	}

	// Emit only on the activity that crosses the goal, not on every one
	// after it.
	if completed != int64(*user.ActivityGoal) {
		msg.Ack()
		return
	}

	if cs.eventPublisher == nil {
		// Event bus not available; dropping beats redelivering forever.
		msg.Ack()
		return
	}

	event := events.NewGoalReachedEvent(user.Id.String(), *user.ActivityGoal, int(completed))
	if err := cs.eventPublisher.Publish(ctx, event); err != nil {
		cs.log.Error("goal-worker", "failed to publish GOAL_REACHED", map[string]interface{}{
			"user_id": user.Id.String(),
			"error":   err.Error(),
		})
		msg.Nack()
		return
	}

	cs.log.Info("goal-worker", "weekly goal reached", map[string]interface{}{
		"user_id":   user.Id.String(),
		"goal":      *user.ActivityGoal,
		"completed": completed,
	})
	msg.Ack()
}
