package caremanager

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	// GetByID retrieves a care manager. Returns ErrCareManagerNotFound if absent.
	GetByID(ctx context.Context, id uuid.UUID) (*CareManager, error)

	// GetByName retrieves a care manager by display name.
	GetByName(ctx context.Context, name string) (*CareManager, error)

	// List returns all care managers in stable name order.
	List(ctx context.Context) ([]*CareManager, error)
}
