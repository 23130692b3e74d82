package ledger

import (
	"context"

	"stockledger/internal/core/id"
	"stockledger/internal/domain"
)

// Store persists stock levels and the movement log.
//
// Methods that write or lock must run inside tx.Manager.RunInTransaction;
// locks taken by LockLevels are held until that transaction ends.
type Store interface {
	// Lookup returns the committed level, or found=false if the key never moved.
	Lookup(ctx context.Context, key Key) (level StockLevel, found bool, err error)

	// LockLevels row-locks the keys in canonical order, creating zero levels on first touch.
	LockLevels(ctx context.Context, keys []Key) (map[Key]StockLevel, error)

	// SaveLevels persists levels previously returned by LockLevels.
	SaveLevels(ctx context.Context, levels []StockLevel) error

	// AppendMovements adds movements to the log. Movements are never updated or deleted.
	AppendMovements(ctx context.Context, movements []StockMovement) error

	ListLevels(ctx context.Context, filter LevelFilter) (domain.ListResult[StockLevel], error)

	// ListMovements returns at most q.Limit movements, newest first.
	ListMovements(ctx context.Context, q MovementQuery) ([]StockMovement, error)

	// Totals returns the sum of deltas and the number of movements for key.
	Totals(ctx context.Context, key Key) (sum int64, count int64, err error)

	// LockReference serializes writers of ref until the transaction ends.
	// Take it before LockLevels.
	LockReference(ctx context.Context, ref Reference) error

	// HasReference reports whether any movement carries ref.
	HasReference(ctx context.Context, ref Reference) (bool, error)
}

// Catalog validates the warehouses and products a movement touches.
type Catalog interface {
	// EnsureWarehouse returns NotFound or WAREHOUSE_INACTIVE.
	EnsureWarehouse(ctx context.Context, warehouseID id.ID) error

	// EnsureProduct returns NotFound or PRODUCT_INACTIVE.
	EnsureProduct(ctx context.Context, productID id.ID) error
}
