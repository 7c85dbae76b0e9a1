package implementation

import (
	"context"

	"fittrack-be/internal/entity"
	"fittrack-be/internal/mapper"
	"fittrack-be/internal/model"
	"fittrack-be/internal/repository/contract"
	"fittrack-be/internal/repository/specification"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type MessageRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.ChatMapper
}

func NewMessageRepository(db *gorm.DB) contract.MessageRepository {
	return &MessageRepositoryImpl{
		db:     db,
		mapper: mapper.NewChatMapper(),
	}
}

func (r *MessageRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *MessageRepositoryImpl) Create(ctx context.Context, message *entity.Message) error {
	m := r.mapper.MessageToModel(message)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*message = *r.mapper.MessageToEntity(m)
	return nil
}

func (r *MessageRepositoryImpl) DeleteByChatId(ctx context.Context, chatId uuid.UUID) error {
	return r.db.WithContext(ctx).Where("chat_id = ?", chatId).Delete(&model.Message{}).Error
}

func (r *MessageRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Message, error) {
	var models []model.Message
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	messages := make([]*entity.Message, len(models))
	for i := range models {
		messages[i] = r.mapper.MessageToEntity(&models[i])
	}
	return messages, nil
}

func (r *MessageRepositoryImpl) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var count int64
	query := r.applySpecifications(r.db.WithContext(ctx).Model(&model.Message{}), specs...)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *MessageRepositoryImpl) FindLatestPerChat(ctx context.Context, chatIds []uuid.UUID) (map[uuid.UUID]*entity.Message, error) {
	if len(chatIds) == 0 {
		return map[uuid.UUID]*entity.Message{}, nil
	}

	var models []model.Message
	err := r.db.WithContext(ctx).
		Raw(`SELECT DISTINCT ON (chat_id) *
		     FROM messages
		     WHERE chat_id IN ?
		     ORDER BY chat_id, created_at DESC`, chatIds).
		Scan(&models).Error
	if err != nil {
		return nil, err
	}

	latest := make(map[uuid.UUID]*entity.Message, len(models))
	for i := range models {
		latest[models[i].ChatId] = r.mapper.MessageToEntity(&models[i])
	}
	return latest, nil
}
