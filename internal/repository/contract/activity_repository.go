package contract

import (
	"context"

	"fittrack-be/internal/entity"
	"fittrack-be/internal/repository/specification"

	"github.com/google/uuid"
)

type ActivityRepository interface {
	Create(ctx context.Context, activity *entity.Activity) error
	Update(ctx context.Context, activity *entity.Activity) error
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteAllByUserId(ctx context.Context, userId uuid.UUID) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Activity, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Activity, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
}
