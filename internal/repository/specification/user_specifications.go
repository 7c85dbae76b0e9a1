package specification

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ByEmail filters users by email
type ByEmail struct {
	Email string
}

func (s ByEmail) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("email = ?", s.Email)
}

// ByToken filters sessions and reset tokens by their opaque token
type ByToken struct {
	Token string
}

func (s ByToken) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("token = ?", s.Token)
}

// UserOwnedBy scopes a query to rows owned by a single user. Applied on
// every read/write path of owned resources as the access-control gate.
type UserOwnedBy struct {
	UserID uuid.UUID
}

func (s UserOwnedBy) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("user_id = ?", s.UserID)
}
