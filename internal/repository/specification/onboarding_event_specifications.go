package specification

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ByOperatorID struct {
	OperatorID uuid.UUID
}

func (s ByOperatorID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("operator_id = ?", s.OperatorID)
}

type ByEventKind struct {
	Kind string
}

func (s ByEventKind) Apply(db *gorm.DB) *gorm.DB {
	if s.Kind == "" {
		return db
	}
	return db.Where("kind = ?", s.Kind)
}

type ByKbID struct {
	KbID string
}

func (s ByKbID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("kb_id = ?", s.KbID)
}
