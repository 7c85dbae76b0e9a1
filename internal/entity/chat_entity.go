package entity

import (
	"time"

	"github.com/google/uuid"
)

type Chat struct {
	Id        uuid.UUID
	UserId    uuid.UUID
	Name      string
	CreatedAt time.Time
	// UpdatedAt is bumped whenever a message is appended; the chat list is
	// ordered by it (most recently active first).
	UpdatedAt time.Time
}

// Message is one turn half. Messages are immutable once created; ordering
// within a chat is defined solely by CreatedAt.
type Message struct {
	Id        uuid.UUID
	ChatId    uuid.UUID
	Content   string
	IsUser    bool
	CreatedAt time.Time
}
