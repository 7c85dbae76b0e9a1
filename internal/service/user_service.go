package service

import (
	"context"
	"fmt"
	"time"

	"fittrack-be/internal/dto"
	"fittrack-be/internal/pkg/logger"
	"fittrack-be/internal/repository/memory"
	"fittrack-be/internal/repository/specification"
	"fittrack-be/internal/repository/unitofwork"

	"github.com/google/uuid"
)

type IUserService interface {
	GetProfile(ctx context.Context, userId uuid.UUID) (*dto.UserProfileResponse, error)
	UpdateProfile(ctx context.Context, userId uuid.UUID, req *dto.UpdateProfileRequest) (*dto.UserProfileResponse, error)
	DeleteAccount(ctx context.Context, userId uuid.UUID) error
}

type userService struct {
	uowFactory   unitofwork.RepositoryFactory
	sessionCache *memory.SessionCache
	log          logger.ILogger
}

func NewUserService(uowFactory unitofwork.RepositoryFactory, sessionCache *memory.SessionCache, log logger.ILogger) IUserService {
	return &userService{
		uowFactory:   uowFactory,
		sessionCache: sessionCache,
		log:          log,
	}
}

func (s *userService) GetProfile(ctx context.Context, userId uuid.UUID) (*dto.UserProfileResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	user, err := uow.UserRepository().FindOne(ctx, specification.ByID{ID: userId})
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("%w: user not found", ErrNotFound)
	}

	return &dto.UserProfileResponse{
		Id:           user.Id,
		Email:        user.Email,
		Name:         user.Name,
		ActivityGoal: user.ActivityGoal,
		CreatedAt:    user.CreatedAt,
		UpdatedAt:    user.UpdatedAt,
	}, nil
}

func (s *userService) UpdateProfile(ctx context.Context, userId uuid.UUID, req *dto.UpdateProfileRequest) (*dto.UserProfileResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	user, err := uow.UserRepository().FindOne(ctx, specification.ByID{ID: userId})
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("%w: user not found", ErrNotFound)
	}

	if req.Email != nil && *req.Email != user.Email {
		existing, err := uow.UserRepository().FindOne(ctx, specification.ByEmail{Email: *req.Email})
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return nil, fmt.Errorf("%w: email already registered", ErrConflict)
		}
		user.Email = *req.Email
	}
	if req.Name != nil {
		user.Name = *req.Name
	}
	if req.ActivityGoal != nil {
		user.ActivityGoal = req.ActivityGoal
	}
	user.UpdatedAt = time.Now()

	if err := uow.UserRepository().Update(ctx, user); err != nil {
		return nil, err
	}

	return &dto.UserProfileResponse{
		Id:           user.Id,
		Email:        user.Email,
		Name:         user.Name,
		ActivityGoal: user.ActivityGoal,
		CreatedAt:    user.CreatedAt,
		UpdatedAt:    user.UpdatedAt,
	}, nil
}

// DeleteAccount removes the user and everything they own in one transaction.
func (s *userService) DeleteAccount(ctx context.Context, userId uuid.UUID) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	user, err := uow.UserRepository().FindOne(ctx, specification.ByID{ID: userId})
	if err != nil {
		return err
	}
	if user == nil {
		return fmt.Errorf("%w: user not found", ErrNotFound)
	}

	if err := uow.Begin(ctx); err != nil {
		return err
	}
	defer uow.Rollback()

	chats, err := uow.ChatRepository().FindAll(ctx, specification.UserOwnedBy{UserID: userId})
	if err != nil {
		return err
	}
	for _, chat := range chats {
		if err := uow.MessageRepository().DeleteByChatId(ctx, chat.Id); err != nil {
			return err
		}
	}
	if err := uow.ChatRepository().DeleteAllByUserId(ctx, userId); err != nil {
		return err
	}
	if err := uow.ActivityRepository().DeleteAllByUserId(ctx, userId); err != nil {
		return err
	}
	if err := uow.NotificationRepository().DeleteAllByUserID(ctx, userId); err != nil {
		return err
	}
	if err := uow.SessionRepository().DeleteAllByUserId(ctx, userId); err != nil {
		return err
	}
	if err := uow.UserRepository().Delete(ctx, userId); err != nil {
		return err
	}

	if err := uow.Commit(); err != nil {
		return err
	}

	s.sessionCache.Flush()

	s.log.Info("user", "account deleted", map[string]interface{}{
		"user_id": userId.String(),
	})
	return nil
}
