package mapper

import (
	"fittrack-be/internal/entity"
	"fittrack-be/internal/model"
)

type UserMapper struct{}

func NewUserMapper() *UserMapper {
	return &UserMapper{}
}

func (m *UserMapper) ToEntity(u *model.User) *entity.User {
	if u == nil {
		return nil
	}
	return &entity.User{
		Id:           u.Id,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		Name:         u.Name,
		ActivityGoal: u.ActivityGoal,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func (m *UserMapper) ToModel(u *entity.User) *model.User {
	if u == nil {
		return nil
	}
	return &model.User{
		Id:           u.Id,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		Name:         u.Name,
		ActivityGoal: u.ActivityGoal,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

// Session mappers

func (m *UserMapper) SessionToEntity(s *model.Session) *entity.Session {
	if s == nil {
		return nil
	}
	return &entity.Session{
		Id:        s.Id,
		UserId:    s.UserId,
		Token:     s.Token,
		ExpiresAt: s.ExpiresAt,
		IpAddress: s.IpAddress,
		UserAgent: s.UserAgent,
		CreatedAt: s.CreatedAt,
	}
}

func (m *UserMapper) SessionToModel(s *entity.Session) *model.Session {
	if s == nil {
		return nil
	}
	return &model.Session{
		Id:        s.Id,
		UserId:    s.UserId,
		Token:     s.Token,
		ExpiresAt: s.ExpiresAt,
		IpAddress: s.IpAddress,
		UserAgent: s.UserAgent,
		CreatedAt: s.CreatedAt,
	}
}

func (m *UserMapper) ResetTokenToEntity(t *model.PasswordResetToken) *entity.PasswordResetToken {
	if t == nil {
		return nil
	}
	return &entity.PasswordResetToken{
		Id:        t.Id,
		UserId:    t.UserId,
		Token:     t.Token,
		ExpiresAt: t.ExpiresAt,
		Used:      t.Used,
		CreatedAt: t.CreatedAt,
	}
}

func (m *UserMapper) ResetTokenToModel(t *entity.PasswordResetToken) *model.PasswordResetToken {
	if t == nil {
		return nil
	}
	return &model.PasswordResetToken{
		Id:        t.Id,
		UserId:    t.UserId,
		Token:     t.Token,
		ExpiresAt: t.ExpiresAt,
		Used:      t.Used,
		CreatedAt: t.CreatedAt,
	}
}
