package model

import (
	"time"

	"github.com/google/uuid"
)

type Chat struct {
	Id        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	UserId    uuid.UUID `gorm:"type:uuid;not null;index"` // owner, every query filters on it
	User      *User     `gorm:"foreignKey:UserId;constraint:OnDelete:CASCADE"`
	Name      string    `gorm:"type:varchar(50);not null"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"index"`
}

func (Chat) TableName() string {
	return "chats"
}
