package specification

import (
	"fmt"

	"gorm.io/gorm"
)

// Specification narrows a query; repositories apply them in order.
type Specification interface {
	Apply(db *gorm.DB) *gorm.DB
}

type OrderBy struct {
	Field string
	Desc  bool
}

func (s OrderBy) Apply(db *gorm.DB) *gorm.DB {
	direction := "ASC"
	if s.Desc {
		direction = "DESC"
	}
	return db.Order(fmt.Sprintf("%s %s", s.Field, direction))
}

// NewestFirst orders audit rows by creation time, latest on top.
var NewestFirst = OrderBy{Field: "created_at", Desc: true}

// Pagination with a non-positive limit leaves the query unbounded.
type Pagination struct {
	Limit  int
	Offset int
}

func (s Pagination) Apply(db *gorm.DB) *gorm.DB {
	if s.Limit <= 0 {
		return db.Offset(s.Offset)
	}
	return db.Limit(s.Limit).Offset(s.Offset)
}
