package catalog_repo

import (
	"context"

	"stockledger/internal/core/entity"
	"stockledger/internal/domain"
	"stockledger/internal/domain/catalogs/product"
	"stockledger/internal/infrastructure/storage/postgres"
)

const productTable = "cat_products"

// ProductRepo implements product.Repository.
type ProductRepo struct {
	*BaseCatalogRepo[*product.Product]
}

var _ product.Repository = (*ProductRepo)(nil)

// NewProductRepo creates a new product repository.
func NewProductRepo(txManager *postgres.TxManager) *ProductRepo {
	return &ProductRepo{
		BaseCatalogRepo: NewBaseCatalogRepo[*product.Product](
			txManager,
			productTable,
			product.EntityName,
			entity.Columns[product.Product](),
			func() *product.Product { return &product.Product{} },
		),
	}
}

// Update persists p and advances its version.
func (r *ProductRepo) Update(ctx context.Context, p *product.Product) error {
	if err := r.BaseCatalogRepo.Update(ctx, p); err != nil {
		return err
	}
	p.Version++
	return nil
}

// List returns products ordered by code.
func (r *ProductRepo) List(ctx context.Context, filter product.ListFilter) (domain.ListResult[*product.Product], error) {
	return r.list(ctx, filter.Search, filter.ActiveOnly, filter.Page)
}
