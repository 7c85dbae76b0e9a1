package dto

import (
	"time"

	"github.com/google/uuid"
)

type CreateChatRequest struct {
	Name string `json:"name" validate:"omitempty,min=1,max=50"`
}

type ChatResponse struct {
	Id        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ChatListItem is one entry of the chat list: the chat plus its most recent
// message for preview.
type ChatListItem struct {
	Id          uuid.UUID        `json:"id"`
	Name        string           `json:"name"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
	LastMessage *MessageResponse `json:"last_message,omitempty"`
}

type RenameChatRequest struct {
	Name string `json:"name" validate:"required,min=1,max=50"`
}

type MessageResponse struct {
	Id        uuid.UUID `json:"id"`
	ChatId    uuid.UUID `json:"chat_id"`
	Content   string    `json:"content"`
	IsUser    bool      `json:"is_user"`
	CreatedAt time.Time `json:"created_at"`
}

type SendTurnRequest struct {
	// ChatId is optional: when absent a new chat is created for the turn.
	ChatId  *uuid.UUID `json:"chat_id"`
	Content string     `json:"content" validate:"required,min=1,max=1000"`
}

type SendTurnResponse struct {
	ChatId       uuid.UUID        `json:"chat_id"`
	ChatName     string           `json:"chat_name"`
	Sent         *MessageResponse `json:"sent"`
	Reply        *MessageResponse `json:"reply"`
	FinishReason string           `json:"finish_reason,omitempty"`
}

// TurnDelta is one streamed chunk of the assistant reply. The terminal
// delta carries Done plus the persisted message ids; a stream that ends
// without one must be treated as failed by the client.
type TurnDelta struct {
	Text         string     `json:"text,omitempty"`
	Done         bool       `json:"done,omitempty"`
	ChatId       *uuid.UUID `json:"chat_id,omitempty"`
	MessageId    *uuid.UUID `json:"message_id,omitempty"`
	FinishReason string     `json:"finish_reason,omitempty"`
	Error        string     `json:"error,omitempty"`
}
