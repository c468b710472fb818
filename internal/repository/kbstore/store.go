// Package kbstore keeps the knowledge base id created by an operator's
// configuration step, where the wizard reads it back after the step.
package kbstore

import (
	"context"

	"github.com/google/uuid"
)

type Store interface {
	// Get returns "" when nothing is stored for the operator.
	Get(ctx context.Context, operatorID uuid.UUID) (string, error)
	Save(ctx context.Context, operatorID uuid.UUID, kbID string) error
}
