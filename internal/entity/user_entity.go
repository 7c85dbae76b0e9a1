package entity

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	Id           uuid.UUID
	Email        string
	PasswordHash *string
	Name         string
	// ActivityGoal is the weekly activity target shown on the home screen.
	// Nil means the user never set one.
	ActivityGoal *int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Session is the server-side proof of authentication. The token column is
// the full bearer token handed to the client; the row is the authority on
// validity, not the token's own signature.
type Session struct {
	Id        uuid.UUID
	UserId    uuid.UUID
	Token     string
	ExpiresAt time.Time
	IpAddress string
	UserAgent string
	CreatedAt time.Time
}

type PasswordResetToken struct {
	Id        uuid.UUID
	UserId    uuid.UUID
	Token     string
	ExpiresAt time.Time
	Used      bool
	CreatedAt time.Time
}
