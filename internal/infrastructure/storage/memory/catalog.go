package memory

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"time"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/domain"
	"stockledger/internal/domain/catalogs/product"
	"stockledger/internal/domain/catalogs/warehouse"
)

// WarehouseRepo implements warehouse.Repository.
type WarehouseRepo struct {
	db *DB
}

// NewWarehouseRepo creates a warehouse repository over db.
func NewWarehouseRepo(db *DB) *WarehouseRepo {
	return &WarehouseRepo{db: db}
}

func (r *WarehouseRepo) Create(ctx context.Context, w *warehouse.Warehouse) error {
	r.db.mu.Lock()
	for _, existing := range r.db.warehouses {
		if existing.Code == w.Code {
			r.db.mu.Unlock()
			return apperror.NewDuplicate(warehouse.EntityName, "code", w.Code)
		}
	}
	r.db.mu.Unlock()

	row := *w
	r.db.write(ctx, func(db *DB) { db.warehouses[row.ID] = row })
	return nil
}

func (r *WarehouseRepo) Update(ctx context.Context, w *warehouse.Warehouse) error {
	current, err := r.GetByID(ctx, w.ID)
	if err != nil {
		return err
	}
	if current.Version != w.Version {
		return apperror.NewConcurrentModification(warehouse.EntityName, w.ID.String())
	}

	w.Version++
	w.UpdatedAt = time.Now().UTC()
	row := *w
	r.db.write(ctx, func(db *DB) { db.warehouses[row.ID] = row })
	return nil
}

func (r *WarehouseRepo) GetByID(ctx context.Context, whID id.ID) (*warehouse.Warehouse, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	w, ok := r.db.warehouses[whID]
	if !ok {
		return nil, apperror.NewNotFound(warehouse.EntityName, whID.String())
	}
	return &w, nil
}

func (r *WarehouseRepo) GetForUpdate(ctx context.Context, whID id.ID) (*warehouse.Warehouse, error) {
	if err := r.db.lock(ctx, "warehouse:"+whID.String()); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, whID)
}

func (r *WarehouseRepo) ExistsByCode(ctx context.Context, code string) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, w := range r.db.warehouses {
		if w.Code == code {
			return true, nil
		}
	}
	return false, nil
}

func (r *WarehouseRepo) List(ctx context.Context, filter warehouse.ListFilter) (domain.ListResult[*warehouse.Warehouse], error) {
	search := strings.ToLower(filter.Search)

	r.db.mu.Lock()
	var items []*warehouse.Warehouse
	for _, w := range r.db.warehouses {
		if filter.ActiveOnly && !w.IsActive {
			continue
		}
		if search != "" && !matchesSearch(search, w.Code, w.Name) {
			continue
		}
		row := w
		items = append(items, &row)
	}
	r.db.mu.Unlock()

	slices.SortFunc(items, func(a, b *warehouse.Warehouse) int { return cmp.Compare(a.Code, b.Code) })
	return domain.Window(items, filter.Page), nil
}

func (r *WarehouseRepo) ClearDefault(ctx context.Context) error {
	r.db.write(ctx, func(db *DB) {
		for wid, w := range db.warehouses {
			if w.IsDefault {
				w.IsDefault = false
				w.Version++
				db.warehouses[wid] = w
			}
		}
	})
	return nil
}

// ProductRepo implements product.Repository.
type ProductRepo struct {
	db *DB
}

// NewProductRepo creates a product repository over db.
func NewProductRepo(db *DB) *ProductRepo {
	return &ProductRepo{db: db}
}

func (r *ProductRepo) Create(ctx context.Context, p *product.Product) error {
	exists, _ := r.ExistsByCode(ctx, p.Code)
	if exists {
		return apperror.NewDuplicate(product.EntityName, "code", p.Code)
	}
	row := *p
	r.db.write(ctx, func(db *DB) { db.products[row.ID] = row })
	return nil
}

func (r *ProductRepo) Update(ctx context.Context, p *product.Product) error {
	current, err := r.GetByID(ctx, p.ID)
	if err != nil {
		return err
	}
	if current.Version != p.Version {
		return apperror.NewConcurrentModification(product.EntityName, p.ID.String())
	}

	p.Version++
	p.UpdatedAt = time.Now().UTC()
	row := *p
	r.db.write(ctx, func(db *DB) { db.products[row.ID] = row })
	return nil
}

func (r *ProductRepo) GetByID(ctx context.Context, productID id.ID) (*product.Product, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	p, ok := r.db.products[productID]
	if !ok {
		return nil, apperror.NewNotFound(product.EntityName, productID.String())
	}
	return &p, nil
}

func (r *ProductRepo) GetForUpdate(ctx context.Context, productID id.ID) (*product.Product, error) {
	if err := r.db.lock(ctx, "product:"+productID.String()); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, productID)
}

func (r *ProductRepo) ExistsByCode(ctx context.Context, code string) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, p := range r.db.products {
		if p.Code == code {
			return true, nil
		}
	}
	return false, nil
}

func (r *ProductRepo) List(ctx context.Context, filter product.ListFilter) (domain.ListResult[*product.Product], error) {
	search := strings.ToLower(filter.Search)

	r.db.mu.Lock()
	var items []*product.Product
	for _, p := range r.db.products {
		if filter.ActiveOnly && !p.IsActive {
			continue
		}
		if search != "" && !matchesSearch(search, p.Code, p.Name) {
			continue
		}
		row := p
		items = append(items, &row)
	}
	r.db.mu.Unlock()

	slices.SortFunc(items, func(a, b *product.Product) int { return cmp.Compare(a.Code, b.Code) })
	return domain.Window(items, filter.Page), nil
}

func matchesSearch(search string, fields ...string) bool {
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), search) {
			return true
		}
	}
	return false
}
