package mapper

import (
	"encoding/json"

	"wiki-console-be/internal/entity"
	"wiki-console-be/internal/model"

	"gorm.io/datatypes"
)

type OnboardingEventMapper struct{}

func NewOnboardingEventMapper() *OnboardingEventMapper {
	return &OnboardingEventMapper{}
}

func (m *OnboardingEventMapper) ToEntity(e *model.OnboardingEvent) *entity.OnboardingEvent {
	if e == nil {
		return nil
	}
	var details map[string]interface{}
	if len(e.Details) > 0 {
		_ = json.Unmarshal(e.Details, &details)
	}
	return &entity.OnboardingEvent{
		Id:         e.Id,
		OperatorId: e.OperatorId,
		SessionId:  e.SessionId,
		Kind:       entity.OnboardingEventKind(e.Kind),
		Step:       deref(e.Step),
		KbId:       deref(e.KbId),
		Message:    e.Message,
		Details:    details,
		CreatedAt:  e.CreatedAt,
	}
}

func (m *OnboardingEventMapper) ToModel(e *entity.OnboardingEvent) *model.OnboardingEvent {
	if e == nil {
		return nil
	}
	var details datatypes.JSON
	if len(e.Details) > 0 {
		if raw, err := json.Marshal(e.Details); err == nil {
			details = datatypes.JSON(raw)
		}
	}
	return &model.OnboardingEvent{
		Id:         e.Id,
		OperatorId: e.OperatorId,
		SessionId:  e.SessionId,
		Kind:       string(e.Kind),
		Step:       optional(e.Step),
		KbId:       optional(e.KbId),
		Message:    e.Message,
		Details:    details,
		CreatedAt:  e.CreatedAt,
	}
}

func (m *OnboardingEventMapper) ToEntities(models []*model.OnboardingEvent) []*entity.OnboardingEvent {
	entities := make([]*entity.OnboardingEvent, 0, len(models))
	for _, mdl := range models {
		entities = append(entities, m.ToEntity(mdl))
	}
	return entities
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
