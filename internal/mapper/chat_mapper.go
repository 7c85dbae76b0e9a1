package mapper

import (
	"fittrack-be/internal/entity"
	"fittrack-be/internal/model"
)

type ChatMapper struct{}

func NewChatMapper() *ChatMapper {
	return &ChatMapper{}
}

func (m *ChatMapper) ChatToEntity(c *model.Chat) *entity.Chat {
	if c == nil {
		return nil
	}
	return &entity.Chat{
		Id:        c.Id,
		UserId:    c.UserId,
		Name:      c.Name,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

func (m *ChatMapper) ChatToModel(c *entity.Chat) *model.Chat {
	if c == nil {
		return nil
	}
	return &model.Chat{
		Id:        c.Id,
		UserId:    c.UserId,
		Name:      c.Name,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

func (m *ChatMapper) MessageToEntity(msg *model.Message) *entity.Message {
	if msg == nil {
		return nil
	}
	return &entity.Message{
		Id:        msg.Id,
		ChatId:    msg.ChatId,
		Content:   msg.Content,
		IsUser:    msg.IsUser,
		CreatedAt: msg.CreatedAt,
	}
}

func (m *ChatMapper) MessageToModel(msg *entity.Message) *model.Message {
	if msg == nil {
		return nil
	}
	return &model.Message{
		Id:        msg.Id,
		ChatId:    msg.ChatId,
		Content:   msg.Content,
		IsUser:    msg.IsUser,
		CreatedAt: msg.CreatedAt,
	}
}
