package specification

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ByChatID struct {
	ChatID uuid.UUID
}

func (s ByChatID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("chat_id = ?", s.ChatID)
}

// CreatedAfter filters rows created at or after the given instant.
type CreatedAfter struct {
	After time.Time
}

func (s CreatedAfter) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("created_at >= ?", s.After)
}
