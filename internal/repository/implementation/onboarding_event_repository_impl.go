package implementation

import (
	"context"

	"wiki-console-be/internal/entity"
	"wiki-console-be/internal/mapper"
	"wiki-console-be/internal/model"
	"wiki-console-be/internal/repository/contract"
	"wiki-console-be/internal/repository/specification"

	"gorm.io/gorm"
)

type OnboardingEventRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.OnboardingEventMapper
}

func NewOnboardingEventRepository(db *gorm.DB) contract.OnboardingEventRepository {
	return &OnboardingEventRepositoryImpl{
		db:     db,
		mapper: mapper.NewOnboardingEventMapper(),
	}
}

func (r *OnboardingEventRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *OnboardingEventRepositoryImpl) Create(ctx context.Context, event *entity.OnboardingEvent) error {
	m := r.mapper.ToModel(event)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*event = *r.mapper.ToEntity(m)
	return nil
}

func (r *OnboardingEventRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.OnboardingEvent, error) {
	var models []*model.OnboardingEvent
	query := r.applySpecifications(specification.NewestFirst.Apply(r.db.WithContext(ctx)), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	return r.mapper.ToEntities(models), nil
}

func (r *OnboardingEventRepositoryImpl) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var count int64
	query := r.applySpecifications(r.db.WithContext(ctx).Model(&model.OnboardingEvent{}), specs...)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
