package implementation

import (
	"context"
	"errors"
	"time"

	"fittrack-be/internal/entity"
	"fittrack-be/internal/mapper"
	"fittrack-be/internal/model"
	"fittrack-be/internal/repository/contract"
	"fittrack-be/internal/repository/specification"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ChatRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.ChatMapper
}

func NewChatRepository(db *gorm.DB) contract.ChatRepository {
	return &ChatRepositoryImpl{
		db:     db,
		mapper: mapper.NewChatMapper(),
	}
}

func (r *ChatRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *ChatRepositoryImpl) Create(ctx context.Context, chat *entity.Chat) error {
	m := r.mapper.ChatToModel(chat)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*chat = *r.mapper.ChatToEntity(m)
	return nil
}

func (r *ChatRepositoryImpl) Update(ctx context.Context, chat *entity.Chat) error {
	m := r.mapper.ChatToModel(chat)
	if err := r.db.WithContext(ctx).Save(m).Error; err != nil {
		return err
	}
	*chat = *r.mapper.ChatToEntity(m)
	return nil
}

func (r *ChatRepositoryImpl) Touch(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&model.Chat{}).
		Where("id = ?", id).
		Update("updated_at", at).Error
}

func (r *ChatRepositoryImpl) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&model.Chat{}, id).Error
}

func (r *ChatRepositoryImpl) DeleteAllByUserId(ctx context.Context, userId uuid.UUID) error {
	return r.db.WithContext(ctx).Where("user_id = ?", userId).Delete(&model.Chat{}).Error
}

func (r *ChatRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Chat, error) {
	var m model.Chat
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ChatToEntity(&m), nil
}

func (r *ChatRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Chat, error) {
	var models []model.Chat
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	chats := make([]*entity.Chat, len(models))
	for i := range models {
		chats[i] = r.mapper.ChatToEntity(&models[i])
	}
	return chats, nil
}

func (r *ChatRepositoryImpl) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var count int64
	query := r.applySpecifications(r.db.WithContext(ctx).Model(&model.Chat{}), specs...)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
