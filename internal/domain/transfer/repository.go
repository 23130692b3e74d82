package transfer

import (
	"context"
	"time"

	"stockledger/internal/core/id"
	"stockledger/internal/domain"
)

// ListFilter narrows transfer listings.
type ListFilter struct {
	Status      *Status
	WarehouseID *id.ID // matches either side of the route
	FromDate    *time.Time
	ToDate      *time.Time
	Search      string // transfer number substring
	domain.Page
}

// Repository defines persistence for transfers and their items.
type Repository interface {
	// Create inserts the header and all items.
	Create(ctx context.Context, t *Transfer) error

	// GetByID loads the transfer with items ordered by line number.
	GetByID(ctx context.Context, id id.ID) (*Transfer, error)

	// GetForUpdate is GetByID with a row lock on the header.
	GetForUpdate(ctx context.Context, id id.ID) (*Transfer, error)

	// Update persists header fields, bumping Version.
	// Fails with CONCURRENT_MODIFICATION when Version does not match.
	Update(ctx context.Context, t *Transfer) error

	// MarkItemTransferred stamps one item.
	MarkItemTransferred(ctx context.Context, itemID id.ID, at time.Time) error

	// List returns headers only.
	List(ctx context.Context, filter ListFilter) (domain.ListResult[*Transfer], error)
}
