package product

import (
	"context"

	"stockledger/internal/core/id"
	"stockledger/internal/domain"
)

// ListFilter narrows product listings.
type ListFilter struct {
	Search     string
	ActiveOnly bool
	domain.Page
}

// Repository defines the interface for Product persistence.
type Repository interface {
	Create(ctx context.Context, p *Product) error
	Update(ctx context.Context, p *Product) error
	GetByID(ctx context.Context, id id.ID) (*Product, error)
	GetForUpdate(ctx context.Context, id id.ID) (*Product, error)
	ExistsByCode(ctx context.Context, code string) (bool, error)
	List(ctx context.Context, filter ListFilter) (domain.ListResult[*Product], error)
}
