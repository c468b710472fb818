package dto

import (
	"time"

	"github.com/google/uuid"
)

type ObserveKnowledgeBasesRequest struct {
	Count *int `json:"count" validate:"required,min=0"`
}

// KnowledgeBaseObservedMessage travels on the observations topic.
type KnowledgeBaseObservedMessage struct {
	OperatorId uuid.UUID `json:"operator_id"`
	Count      int       `json:"count"`
	ObservedAt time.Time `json:"observed_at"`
}

type KnowledgeBaseResponse struct {
	Id   string `json:"id"`
	Name string `json:"name"`
}

type PublishResponse struct {
	ReleaseId string   `json:"release_id"`
	Tag       string   `json:"tag"`
	KbId      string   `json:"kb_id"`
	NodeIds   []string `json:"node_ids"`
}

type ListOnboardingEventsRequest struct {
	Kind   string `query:"kind" validate:"omitempty,oneof=fail_soft closed release forced_open"`
	Limit  int    `query:"limit" validate:"min=0,max=100"`
	Offset int    `query:"offset" validate:"min=0"`
}

type OnboardingEventResponse struct {
	Id        uuid.UUID              `json:"id"`
	SessionId string                 `json:"session_id"`
	Kind      string                 `json:"kind"`
	Step      string                 `json:"step,omitempty"`
	KbId      string                 `json:"kb_id,omitempty"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}

type ListOnboardingEventsResponse struct {
	Events []*OnboardingEventResponse `json:"events"`
	Total  int64                      `json:"total"`
	Limit  int                        `json:"limit"`
	Offset int                        `json:"offset"`
}
