package unitofwork

import (
	"context"

	"fittrack-be/internal/repository"
	"fittrack-be/internal/repository/contract"
)

type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error

	UserRepository() contract.UserRepository
	SessionRepository() contract.SessionRepository
	ChatRepository() contract.ChatRepository
	MessageRepository() contract.MessageRepository
	ActivityRepository() contract.ActivityRepository
	NotificationRepository() repository.NotificationRepository
}
