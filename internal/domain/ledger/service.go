package ledger

import (
	"context"
	"fmt"
	"time"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/core/tx"
	"stockledger/internal/domain"
	"stockledger/pkg/logger"
)

// Service exposes ledger reads and threshold maintenance.
// It never changes quantities; that is Recorder's job.
type Service struct {
	store   Store
	catalog Catalog
	txm     tx.Manager
}

// NewService creates a ledger read service.
func NewService(store Store, catalog Catalog, txm tx.Manager) *Service {
	return &Service{store: store, catalog: catalog, txm: txm}
}

// GetQuantity returns the committed quantity, 0 when the key never moved.
func (s *Service) GetQuantity(ctx context.Context, warehouseID, productID id.ID) (int64, error) {
	level, found, err := s.store.Lookup(ctx, NewKey(warehouseID, productID))
	if err != nil {
		return 0, fmt.Errorf("lookup level: %w", err)
	}
	if !found {
		return 0, nil
	}
	return level.Quantity, nil
}

// Lookup returns the level for key, or found=false if the key never moved.
func (s *Service) Lookup(ctx context.Context, key Key) (StockLevel, bool, error) {
	return s.store.Lookup(ctx, key)
}

// ListLevels returns a page of stock levels.
func (s *Service) ListLevels(ctx context.Context, filter LevelFilter) (domain.ListResult[StockLevel], error) {
	filter.Page = filter.Page.Normalize()
	return s.store.ListLevels(ctx, filter)
}

// ListLowStock returns levels at or below their positive threshold.
func (s *Service) ListLowStock(ctx context.Context, warehouseID *id.ID, page domain.Page) (domain.ListResult[StockLevel], error) {
	return s.ListLevels(ctx, LevelFilter{
		WarehouseID: warehouseID,
		LowOnly:     true,
		Page:        page,
	})
}

// ListMovements returns a page of the movement log, newest first.
// A non-empty NextCursor means more movements follow.
func (s *Service) ListMovements(ctx context.Context, filter MovementFilter) (MovementPage, error) {
	page := filter.Page.Normalize()
	q := MovementQuery{
		WarehouseID: filter.WarehouseID,
		ProductID:   filter.ProductID,
		Types:       filter.Types,
		Reference:   filter.Reference,
		FromDate:    filter.FromDate,
		ToDate:      filter.ToDate,
		Limit:       page.Limit + 1,
		Offset:      page.Offset,
	}
	for _, t := range filter.Types {
		if !t.Valid() {
			return MovementPage{}, apperror.NewValidation("unknown movement type").
				WithDetail("field", "type").
				WithDetail("value", string(t))
		}
	}
	if filter.Cursor != "" {
		c, err := DecodeCursor(filter.Cursor)
		if err != nil {
			return MovementPage{}, err
		}
		q.After = &c
		q.Offset = 0
		page.Offset = 0
	}

	items, err := s.store.ListMovements(ctx, q)
	if err != nil {
		return MovementPage{}, fmt.Errorf("list movements: %w", err)
	}

	res := MovementPage{Items: items, Limit: page.Limit, Offset: page.Offset}
	if len(items) > page.Limit {
		res.Items = items[:page.Limit]
		res.NextCursor = CursorOf(res.Items[page.Limit-1]).Encode()
	}
	if res.Items == nil {
		res.Items = []StockMovement{}
	}
	return res, nil
}

// SetMinStockLevel changes the low-stock threshold of a level, creating the level if needed.
func (s *Service) SetMinStockLevel(ctx context.Context, key Key, minLevel int64) (StockLevel, error) {
	if minLevel < 0 {
		return StockLevel{}, apperror.NewValidation("min stock level must not be negative").
			WithDetail("field", "minStockLevel").
			WithDetail("value", minLevel)
	}

	var level StockLevel
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.catalog.EnsureWarehouse(ctx, key.WarehouseID); err != nil {
			return err
		}
		if err := s.catalog.EnsureProduct(ctx, key.ProductID); err != nil {
			return err
		}

		levels, err := s.store.LockLevels(ctx, []Key{key})
		if err != nil {
			return fmt.Errorf("lock level: %w", err)
		}
		level = levels[key]
		level.MinStockLevel = minLevel
		level.UpdatedAt = time.Now().UTC()
		return s.store.SaveLevels(ctx, []StockLevel{level})
	})
	if err != nil {
		return StockLevel{}, err
	}

	logger.Info(ctx, "min stock level set", "warehouse_id", key.WarehouseID, "product_id", key.ProductID, "min", minLevel)
	return level, nil
}

// Reconcile compares the level quantity with the sum of its movement deltas.
// An existing level is read under its row lock.
func (s *Service) Reconcile(ctx context.Context, key Key) (Reconciliation, error) {
	res := Reconciliation{Key: key}
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		_, found, err := s.store.Lookup(ctx, key)
		if err != nil {
			return fmt.Errorf("lookup level: %w", err)
		}
		if found {
			levels, err := s.store.LockLevels(ctx, []Key{key})
			if err != nil {
				return fmt.Errorf("lock level: %w", err)
			}
			res.Quantity = levels[key].Quantity
		}

		res.MovementSum, res.MovementCount, err = s.store.Totals(ctx, key)
		if err != nil {
			return fmt.Errorf("movement totals: %w", err)
		}
		return nil
	})
	if err != nil {
		return Reconciliation{}, err
	}

	res.Balanced = res.Quantity == res.MovementSum
	if !res.Balanced {
		logger.Warn(ctx, "stock level out of balance",
			"warehouse_id", key.WarehouseID,
			"product_id", key.ProductID,
			"quantity", res.Quantity,
			"movement_sum", res.MovementSum,
		)
	}
	return res, nil
}
