package contract

import (
	"context"
	"time"

	"fittrack-be/internal/entity"
	"fittrack-be/internal/repository/specification"

	"github.com/google/uuid"
)

type ChatRepository interface {
	Create(ctx context.Context, chat *entity.Chat) error
	Update(ctx context.Context, chat *entity.Chat) error
	// Touch bumps the chat's updated_at, the chat-list ordering key.
	Touch(ctx context.Context, id uuid.UUID, at time.Time) error
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteAllByUserId(ctx context.Context, userId uuid.UUID) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Chat, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Chat, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
}
