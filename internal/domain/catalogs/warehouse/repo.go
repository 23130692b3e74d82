package warehouse

import (
	"context"

	"stockledger/internal/core/id"
	"stockledger/internal/domain"
)

// ListFilter narrows warehouse listings.
type ListFilter struct {
	Search     string
	ActiveOnly bool
	domain.Page
}

// Repository defines the interface for Warehouse persistence.
type Repository interface {
	Create(ctx context.Context, w *Warehouse) error

	// Update persists changes with optimistic locking on Version.
	Update(ctx context.Context, w *Warehouse) error

	GetByID(ctx context.Context, id id.ID) (*Warehouse, error)

	// GetForUpdate retrieves warehouse with row lock (for transactional updates).
	GetForUpdate(ctx context.Context, id id.ID) (*Warehouse, error)

	ExistsByCode(ctx context.Context, code string) (bool, error)

	List(ctx context.Context, filter ListFilter) (domain.ListResult[*Warehouse], error)

	// ClearDefault clears the default flag on all warehouses (before setting new default).
	ClearDefault(ctx context.Context) error
}
