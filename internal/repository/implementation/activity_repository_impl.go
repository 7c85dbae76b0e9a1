package implementation

import (
	"context"
	"errors"

	"fittrack-be/internal/entity"
	"fittrack-be/internal/mapper"
	"fittrack-be/internal/model"
	"fittrack-be/internal/repository/contract"
	"fittrack-be/internal/repository/specification"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ActivityRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.ActivityMapper
}

func NewActivityRepository(db *gorm.DB) contract.ActivityRepository {
	return &ActivityRepositoryImpl{
		db:     db,
		mapper: mapper.NewActivityMapper(),
	}
}

func (r *ActivityRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *ActivityRepositoryImpl) Create(ctx context.Context, activity *entity.Activity) error {
	m := r.mapper.ToModel(activity)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*activity = *r.mapper.ToEntity(m)
	return nil
}

func (r *ActivityRepositoryImpl) Update(ctx context.Context, activity *entity.Activity) error {
	m := r.mapper.ToModel(activity)
	if err := r.db.WithContext(ctx).Save(m).Error; err != nil {
		return err
	}
	*activity = *r.mapper.ToEntity(m)
	return nil
}

func (r *ActivityRepositoryImpl) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&model.Activity{}, id).Error
}

func (r *ActivityRepositoryImpl) DeleteAllByUserId(ctx context.Context, userId uuid.UUID) error {
	return r.db.WithContext(ctx).Where("user_id = ?", userId).Delete(&model.Activity{}).Error
}

func (r *ActivityRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Activity, error) {
	var m model.Activity
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ToEntity(&m), nil
}

func (r *ActivityRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Activity, error) {
	var models []model.Activity
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	activities := make([]*entity.Activity, len(models))
	for i := range models {
		activities[i] = r.mapper.ToEntity(&models[i])
	}
	return activities, nil
}

func (r *ActivityRepositoryImpl) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var count int64
	query := r.applySpecifications(r.db.WithContext(ctx).Model(&model.Activity{}), specs...)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
