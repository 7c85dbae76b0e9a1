package mapper

import (
	"fittrack-be/internal/entity"
	"fittrack-be/internal/model"
)

type ActivityMapper struct{}

func NewActivityMapper() *ActivityMapper {
	return &ActivityMapper{}
}

func (m *ActivityMapper) ToEntity(a *model.Activity) *entity.Activity {
	if a == nil {
		return nil
	}
	return &entity.Activity{
		Id:        a.Id,
		UserId:    a.UserId,
		Name:      a.Name,
		Intensity: entity.ActivityIntensity(a.Intensity),
		Duration:  a.Duration,
		Emoji:     a.Emoji,
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
}

func (m *ActivityMapper) ToModel(a *entity.Activity) *model.Activity {
	if a == nil {
		return nil
	}
	return &model.Activity{
		Id:        a.Id,
		UserId:    a.UserId,
		Name:      a.Name,
		Intensity: string(a.Intensity),
		Duration:  a.Duration,
		Emoji:     a.Emoji,
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
}
