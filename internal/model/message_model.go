package model

import (
	"time"

	"github.com/google/uuid"
)

type Message struct {
	Id        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ChatId    uuid.UUID `gorm:"type:uuid;not null;index:idx_messages_chat_created,priority:1"`
	Chat      *Chat     `gorm:"foreignKey:ChatId;constraint:OnDelete:CASCADE"`
	Content   string    `gorm:"type:text;not null"`
	IsUser    bool      `gorm:"not null"`
	CreatedAt time.Time `gorm:"autoCreateTime;index:idx_messages_chat_created,priority:2"`
}

func (Message) TableName() string {
	return "messages"
}
