package ledger

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"stockledger/internal/core/apperror"
	appctx "stockledger/internal/core/context"
	"stockledger/internal/core/id"
	"stockledger/internal/core/tx"
	"stockledger/pkg/logger"
)

var tracer = otel.Tracer("stockledger/ledger")

// Recorder is the only writer of stock quantities.
// Each call updates levels and appends movements as one atomic unit.
type Recorder struct {
	store   Store
	catalog Catalog
	txm     tx.Manager
	now     func() time.Time
}

// NewRecorder creates a movement recorder.
func NewRecorder(store Store, catalog Catalog, txm tx.Manager) *Recorder {
	return &Recorder{
		store:   store,
		catalog: catalog,
		txm:     txm,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Record applies a single entry.
func (r *Recorder) Record(ctx context.Context, e Entry) (StockMovement, error) {
	movements, err := r.RecordAll(ctx, []Entry{e})
	if err != nil {
		return StockMovement{}, err
	}
	return movements[0], nil
}

// RecordAll applies entries in the given order as one atomic unit.
// Keys are locked in canonical order before any entry is applied, so concurrent
// calls over overlapping keys serialize without deadlocking.
// Any failing entry rolls back the whole unit.
func (r *Recorder) RecordAll(ctx context.Context, entries []Entry) ([]StockMovement, error) {
	if len(entries) == 0 {
		return nil, nil
	}

	ctx, span := tracer.Start(ctx, "ledger.record")
	defer span.End()
	span.SetAttributes(
		attribute.Int("ledger.entries", len(entries)),
		attribute.String("ledger.reference", entries[0].Reference.String()),
	)

	for i, e := range entries {
		if err := e.Validate(); err != nil {
			span.SetStatus(codes.Error, "invalid entry")
			if appErr, ok := apperror.AsAppError(err); ok {
				return nil, appErr.WithDetail("entry", i)
			}
			return nil, err
		}
	}

	var movements []StockMovement
	err := r.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := r.checkCatalog(ctx, entries); err != nil {
			return err
		}

		keys := make([]Key, len(entries))
		for i, e := range entries {
			keys[i] = e.Key()
		}
		levels, err := r.store.LockLevels(ctx, keys)
		if err != nil {
			return fmt.Errorf("lock levels: %w", err)
		}

		now := r.now()
		createdBy := appctx.GetActorID(ctx)
		movements = make([]StockMovement, 0, len(entries))
		touched := make([]Key, 0, len(entries))

		for _, e := range entries {
			key := e.Key()
			level, ok := levels[key]
			if !ok {
				level = ZeroLevel(key)
			}

			if e.Delta > 0 && level.Quantity > math.MaxInt64-e.Delta {
				return apperror.NewValidation("quantity overflows stock level").
					WithDetail("field", "quantity").
					WithDetail("warehouse_id", key.WarehouseID.String()).
					WithDetail("product_id", key.ProductID.String())
			}
			next := level.Quantity + e.Delta
			if next < 0 {
				return apperror.NewInsufficientStock(
					key.WarehouseID.String(),
					key.ProductID.String(),
					-e.Delta,
					level.Quantity,
				)
			}

			date := e.Date
			if date.IsZero() {
				date = now
			}

			movements = append(movements, StockMovement{
				ID:           id.New(),
				WarehouseID:  key.WarehouseID,
				ProductID:    key.ProductID,
				MovementType: e.Type,
				Quantity:     e.Delta,
				StockAfter:   next,
				Reference:    e.Reference,
				Notes:        e.Notes,
				MovementDate: date,
				CreatedBy:    createdBy,
				CreatedAt:    now,
			})

			level.Quantity = next
			level.LastMovementAt = &now
			level.UpdatedAt = now
			levels[key] = level
			touched = append(touched, key)
		}

		changed := make([]StockLevel, 0, len(touched))
		for _, key := range SortKeys(touched) {
			changed = append(changed, levels[key])
		}
		if err := r.store.SaveLevels(ctx, changed); err != nil {
			return fmt.Errorf("save levels: %w", err)
		}
		if err := r.store.AppendMovements(ctx, movements); err != nil {
			return fmt.Errorf("append movements: %w", err)
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "record failed")
		return nil, err
	}

	logger.Debug(ctx, "stock movements recorded",
		"count", len(movements),
		"reference", entries[0].Reference.String(),
	)
	return movements, nil
}

// Lock row-locks keys for the enclosing transaction and returns their current quantities.
// Callers use it to read-then-compute inside the same atomic unit as a later RecordAll.
// It must run inside tx.Manager.RunInTransaction.
func (r *Recorder) Lock(ctx context.Context, keys ...Key) (map[Key]int64, error) {
	entries := make([]Entry, len(keys))
	for i, key := range keys {
		entries[i] = Entry{WarehouseID: key.WarehouseID, ProductID: key.ProductID}
	}
	if err := r.checkCatalog(ctx, entries); err != nil {
		return nil, err
	}

	levels, err := r.store.LockLevels(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("lock levels: %w", err)
	}
	out := make(map[Key]int64, len(keys))
	for _, key := range keys {
		out[key] = levels[key].Quantity
	}
	return out, nil
}

// Claim locks ref for the rest of the transaction, so duplicate deliveries
// of one document wait for each other regardless of which keys they touch.
func (r *Recorder) Claim(ctx context.Context, ref Reference) error {
	return r.store.LockReference(ctx, ref)
}

// Recorded reports whether any movement already carries ref.
func (r *Recorder) Recorded(ctx context.Context, ref Reference) (bool, error) {
	return r.store.HasReference(ctx, ref)
}

func (r *Recorder) checkCatalog(ctx context.Context, entries []Entry) error {
	warehouses := make(map[id.ID]struct{})
	products := make(map[id.ID]struct{})
	for _, e := range entries {
		if _, ok := warehouses[e.WarehouseID]; !ok {
			if err := r.catalog.EnsureWarehouse(ctx, e.WarehouseID); err != nil {
				return err
			}
			warehouses[e.WarehouseID] = struct{}{}
		}
		if _, ok := products[e.ProductID]; !ok {
			if err := r.catalog.EnsureProduct(ctx, e.ProductID); err != nil {
				return err
			}
			products[e.ProductID] = struct{}{}
		}
	}
	return nil
}
