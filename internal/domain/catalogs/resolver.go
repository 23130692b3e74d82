// Package catalogs wires catalog lookups into the stock ledger.
package catalogs

import (
	"context"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/domain/catalogs/product"
	"stockledger/internal/domain/catalogs/warehouse"
)

// Resolver checks that warehouses and products referenced by movements exist and are active.
type Resolver struct {
	warehouses warehouse.Repository
	products   product.Repository
}

// NewResolver creates a catalog resolver.
func NewResolver(warehouses warehouse.Repository, products product.Repository) *Resolver {
	return &Resolver{warehouses: warehouses, products: products}
}

// EnsureWarehouse returns NotFound or WAREHOUSE_INACTIVE when the warehouse cannot hold stock.
func (r *Resolver) EnsureWarehouse(ctx context.Context, whID id.ID) error {
	wh, err := r.warehouses.GetByID(ctx, whID)
	if err != nil {
		return err
	}
	if !wh.CanHoldStock() {
		return apperror.NewBusinessRule(apperror.CodeWarehouseInactive, "Warehouse is inactive").
			WithDetail("id", whID.String())
	}
	return nil
}

// EnsureProduct returns NotFound or PRODUCT_INACTIVE.
func (r *Resolver) EnsureProduct(ctx context.Context, productID id.ID) error {
	p, err := r.products.GetByID(ctx, productID)
	if err != nil {
		return err
	}
	if !p.IsActive {
		return apperror.NewBusinessRule(apperror.CodeProductInactive, "Product is inactive").
			WithDetail("id", productID.String())
	}
	return nil
}
