package catalog_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"

	"stockledger/internal/core/entity"
	"stockledger/internal/domain"
	"stockledger/internal/domain/catalogs/warehouse"
	"stockledger/internal/infrastructure/storage/postgres"
)

const warehouseTable = "cat_warehouses"

// WarehouseRepo implements warehouse.Repository.
type WarehouseRepo struct {
	*BaseCatalogRepo[*warehouse.Warehouse]
}

var _ warehouse.Repository = (*WarehouseRepo)(nil)

// NewWarehouseRepo creates a new warehouse repository.
func NewWarehouseRepo(txManager *postgres.TxManager) *WarehouseRepo {
	return &WarehouseRepo{
		BaseCatalogRepo: NewBaseCatalogRepo[*warehouse.Warehouse](
			txManager,
			warehouseTable,
			warehouse.EntityName,
			entity.Columns[warehouse.Warehouse](),
			func() *warehouse.Warehouse { return &warehouse.Warehouse{} },
		),
	}
}

// Update persists w and advances its version.
func (r *WarehouseRepo) Update(ctx context.Context, w *warehouse.Warehouse) error {
	if err := r.BaseCatalogRepo.Update(ctx, w); err != nil {
		return err
	}
	w.Version++
	return nil
}

// List returns warehouses ordered by code.
func (r *WarehouseRepo) List(ctx context.Context, filter warehouse.ListFilter) (domain.ListResult[*warehouse.Warehouse], error) {
	return r.list(ctx, filter.Search, filter.ActiveOnly, filter.Page)
}

// ClearDefault clears the default flag on all warehouses.
func (r *WarehouseRepo) ClearDefault(ctx context.Context) error {
	sql, args, err := r.Builder().
		Update(warehouseTable).
		Set("is_default", false).
		Set("version", squirrel.Expr("version + 1")).
		Where(squirrel.Eq{"is_default": true}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	if _, err := r.querier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("clear default: %w", err)
	}
	return nil
}
