package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"fittrack-be/internal/dto"
	"fittrack-be/internal/entity"
	"fittrack-be/internal/pkg/logger"
	"fittrack-be/internal/repository/specification"
	"fittrack-be/internal/repository/unitofwork"

	"github.com/google/uuid"
)

type IActivityService interface {
	CreateActivity(ctx context.Context, userId uuid.UUID, req *dto.CreateActivityRequest) (*dto.ActivityResponse, error)
	UpdateActivity(ctx context.Context, userId, activityId uuid.UUID, req *dto.UpdateActivityRequest) (*dto.ActivityResponse, error)
	DeleteActivity(ctx context.Context, userId, activityId uuid.UUID) error
	GetActivity(ctx context.Context, userId, activityId uuid.UUID) (*dto.ActivityResponse, error)
	ListActivities(ctx context.Context, userId uuid.UUID) ([]*dto.ActivityResponse, error)
	GetStats(ctx context.Context, userId uuid.UUID) (*dto.ActivityStatsResponse, error)
}

type activityService struct {
	uowFactory       unitofwork.RepositoryFactory
	publisherService IPublisherService
	log              logger.ILogger
}

func NewActivityService(uowFactory unitofwork.RepositoryFactory, publisherService IPublisherService, log logger.ILogger) IActivityService {
	return &activityService{
		uowFactory:       uowFactory,
		publisherService: publisherService,
		log:              log,
	}
}

func activityToResponse(a *entity.Activity) *dto.ActivityResponse {
	return &dto.ActivityResponse{
		Id:        a.Id,
		Name:      a.Name,
		Intensity: string(a.Intensity),
		Duration:  a.Duration,
		Emoji:     a.Emoji,
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
}

func (s *activityService) findOwnedActivity(ctx context.Context, uow unitofwork.UnitOfWork, userId, activityId uuid.UUID) (*entity.Activity, error) {
	activity, err := uow.ActivityRepository().FindOne(ctx,
		specification.ByID{ID: activityId},
		specification.UserOwnedBy{UserID: userId},
	)
	if err != nil {
		return nil, err
	}
	if activity == nil {
		return nil, fmt.Errorf("%w: activity not found", ErrNotFound)
	}
	return activity, nil
}

func (s *activityService) CreateActivity(ctx context.Context, userId uuid.UUID, req *dto.CreateActivityRequest) (*dto.ActivityResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	now := time.Now()
	activity := &entity.Activity{
		Id:        uuid.New(),
		UserId:    userId,
		Name:      req.Name,
		Intensity: entity.ActivityIntensity(req.Intensity),
		Duration:  req.Duration,
		Emoji:     req.Emoji,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := uow.ActivityRepository().Create(ctx, activity); err != nil {
		return nil, err
	}

	// Hand the goal evaluation to the worker; a bus failure must not fail
	// the request.
	payload, err := json.Marshal(dto.ActivityCreatedMessage{
		ActivityId: activity.Id,
		UserId:     userId,
	})
	if err == nil {
		err = s.publisherService.Publish(ctx, payload)
	}
	if err != nil {
		s.log.Warn("activity", "failed to publish activity.created", map[string]interface{}{
			"activity_id": activity.Id.String(),
			"error":       err.Error(),
		})
	}

	return activityToResponse(activity), nil
}

func (s *activityService) UpdateActivity(ctx context.Context, userId, activityId uuid.UUID, req *dto.UpdateActivityRequest) (*dto.ActivityResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	activity, err := s.findOwnedActivity(ctx, uow, userId, activityId)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		activity.Name = *req.Name
	}
	if req.Intensity != nil {
		activity.Intensity = entity.ActivityIntensity(*req.Intensity)
	}
	if req.Duration != nil {
		activity.Duration = *req.Duration
	}
	if req.Emoji != nil {
		activity.Emoji = req.Emoji
	}
	activity.UpdatedAt = time.Now()

	if err := uow.ActivityRepository().Update(ctx, activity); err != nil {
		return nil, err
	}

	return activityToResponse(activity), nil
}

func (s *activityService) DeleteActivity(ctx context.Context, userId, activityId uuid.UUID) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	if _, err := s.findOwnedActivity(ctx, uow, userId, activityId); err != nil {
		return err
	}

	return uow.ActivityRepository().Delete(ctx, activityId)
}

func (s *activityService) GetActivity(ctx context.Context, userId, activityId uuid.UUID) (*dto.ActivityResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	activity, err := s.findOwnedActivity(ctx, uow, userId, activityId)
	if err != nil {
		return nil, err
	}
	return activityToResponse(activity), nil
}

func (s *activityService) ListActivities(ctx context.Context, userId uuid.UUID) ([]*dto.ActivityResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	activities, err := uow.ActivityRepository().FindAll(ctx,
		specification.UserOwnedBy{UserID: userId},
		specification.OrderBy{Field: "created_at", Desc: true},
	)
	if err != nil {
		return nil, err
	}

	responses := make([]*dto.ActivityResponse, len(activities))
	for i, a := range activities {
		responses[i] = activityToResponse(a)
	}
	return responses, nil
}

func (s *activityService) GetStats(ctx context.Context, userId uuid.UUID) (*dto.ActivityStatsResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	total, err := uow.ActivityRepository().Count(ctx,
		specification.UserOwnedBy{UserID: userId},
	)
	if err != nil {
		return nil, err
	}

	weekAgo := time.Now().AddDate(0, 0, -7)
	lastWeek, err := uow.ActivityRepository().Count(ctx,
		specification.UserOwnedBy{UserID: userId},
		specification.CreatedAfter{After: weekAgo},
	)
	if err != nil {
		return nil, err
	}

	recent, err := uow.ActivityRepository().FindAll(ctx,
		specification.UserOwnedBy{UserID: userId},
		specification.OrderBy{Field: "created_at", Desc: true},
		specification.Limit{N: 3},
	)
	if err != nil {
		return nil, err
	}

	recentResponses := make([]*dto.ActivityResponse, len(recent))
	for i, a := range recent {
		recentResponses[i] = activityToResponse(a)
	}

	return &dto.ActivityStatsResponse{
		TotalActivities:    total,
		ActivitiesLastWeek: lastWeek,
		RecentActivities:   recentResponses,
	}, nil
}
