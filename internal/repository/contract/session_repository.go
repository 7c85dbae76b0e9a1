package contract

import (
	"context"

	"fittrack-be/internal/entity"
	"fittrack-be/internal/repository/specification"

	"github.com/google/uuid"
)

type SessionRepository interface {
	Create(ctx context.Context, session *entity.Session) error
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteByToken(ctx context.Context, token string) error
	DeleteAllByUserId(ctx context.Context, userId uuid.UUID) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Session, error)
	// FindOneWithUser loads the session row and its owning user in one query.
	// Returns (nil, nil, nil) when no row matches.
	FindOneWithUser(ctx context.Context, token string) (*entity.Session, *entity.User, error)
}
