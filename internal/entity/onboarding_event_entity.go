package entity

import (
	"time"

	"github.com/google/uuid"
)

type OnboardingEventKind string

const (
	OnboardingEventFailSoft OnboardingEventKind = "fail_soft"
	OnboardingEventClosed   OnboardingEventKind = "closed"
	OnboardingEventRelease  OnboardingEventKind = "release"
	OnboardingEventForced   OnboardingEventKind = "forced_open"
)

type OnboardingEvent struct {
	Id         uuid.UUID
	OperatorId uuid.UUID
	SessionId  string
	Kind       OnboardingEventKind
	Step       string
	KbId       string
	Message    string
	Details    map[string]interface{}
	CreatedAt  time.Time
}
