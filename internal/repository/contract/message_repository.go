package contract

import (
	"context"

	"fittrack-be/internal/entity"
	"fittrack-be/internal/repository/specification"

	"github.com/google/uuid"
)

type MessageRepository interface {
	Create(ctx context.Context, message *entity.Message) error
	DeleteByChatId(ctx context.Context, chatId uuid.UUID) error
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Message, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
	// FindLatestPerChat returns the single most recent message of each given
	// chat, for list previews.
	FindLatestPerChat(ctx context.Context, chatIds []uuid.UUID) (map[uuid.UUID]*entity.Message, error)
}
