package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// OnboardingEvent is one audited wizard event of an operator.
type OnboardingEvent struct {
	Id         uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	OperatorId uuid.UUID      `gorm:"type:uuid;not null;index:idx_onboarding_events_operator_created,priority:1"`
	SessionId  string         `gorm:"type:varchar(64);not null"`
	Kind       string         `gorm:"type:varchar(40);not null;index"`
	Step       *string        `gorm:"type:varchar(40)"`
	KbId       *string        `gorm:"type:varchar(64);index"`
	Message    string         `gorm:"type:text;not null;default:''"`
	Details    datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt  time.Time      `gorm:"default:now();not null;index:idx_onboarding_events_operator_created,priority:2,sort:desc"`
}

func (OnboardingEvent) TableName() string {
	return "onboarding_events"
}
