package contract

import (
	"context"

	"wiki-console-be/internal/entity"
	"wiki-console-be/internal/repository/specification"
)

type OnboardingEventRepository interface {
	Create(ctx context.Context, event *entity.OnboardingEvent) error
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.OnboardingEvent, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
}
