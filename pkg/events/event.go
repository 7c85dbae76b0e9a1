package events

import "time"

// Event is the contract every bus event satisfies.
type Event interface {
	// EventType returns the unique code for this event (e.g. "USER_LOGIN").
	EventType() string

	Payload() map[string]interface{}

	Timestamp() time.Time
}

type BaseEvent struct {
	Type       string
	Data       map[string]interface{}
	OccurredAt time.Time
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) Payload() map[string]interface{} {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}

func NewUserLoginEvent(userId, ipAddress, userAgent string) Event {
	return BaseEvent{
		Type: "USER_LOGIN",
		Data: map[string]interface{}{
			"user_id":    userId,
			"ip_address": ipAddress,
			"user_agent": userAgent,
		},
		OccurredAt: time.Now(),
	}
}

func NewGoalReachedEvent(userId string, goal, completed int) Event {
	return BaseEvent{
		Type: "GOAL_REACHED",
		Data: map[string]interface{}{
			"user_id":   userId,
			"goal":      goal,
			"completed": completed,
		},
		OccurredAt: time.Now(),
	}
}
