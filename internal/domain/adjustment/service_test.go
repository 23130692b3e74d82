package adjustment_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/events"
	"stockledger/internal/core/id"
	"stockledger/internal/domain/adjustment"
	"stockledger/internal/domain/catalogs"
	"stockledger/internal/domain/catalogs/product"
	"stockledger/internal/domain/catalogs/warehouse"
	"stockledger/internal/domain/ledger"
	"stockledger/internal/infrastructure/storage/memory"
)

type fixture struct {
	db      *memory.DB
	ledger  *ledger.Service
	service *adjustment.Service
	wh      id.ID
	product id.ID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	db := memory.New()
	store := memory.NewLedgerStore(db)
	whRepo, pRepo := memory.NewWarehouseRepo(db), memory.NewProductRepo(db)
	resolver := catalogs.NewResolver(whRepo, pRepo)

	w := warehouse.NewWarehouse("MAIN", "Main")
	require.NoError(t, whRepo.Create(ctx, w))
	p := product.NewProduct("SKU-1", "Widget", "pcs")
	require.NoError(t, pRepo.Create(ctx, p))

	return &fixture{
		db:      db,
		ledger:  ledger.NewService(store, resolver, db),
		service: adjustment.NewService(ledger.NewRecorder(store, resolver, db), db, db),
		wh:      w.ID,
		product: p.ID,
	}
}

func (f *fixture) adjust(t *testing.T, typ adjustment.Type, qty int64) (adjustment.Result, error) {
	t.Helper()
	return f.service.Adjust(context.Background(), adjustment.Request{
		WarehouseID: f.wh,
		ProductID:   f.product,
		Quantity:    qty,
		Type:        typ,
		Notes:       "cycle count",
	})
}

func (f *fixture) movementCount(t *testing.T) int {
	t.Helper()
	page, err := f.ledger.ListMovements(context.Background(), ledger.MovementFilter{WarehouseID: &f.wh})
	require.NoError(t, err)
	return len(page.Items)
}

func TestAdjust_AddSubtract(t *testing.T) {
	f := newFixture(t)

	res, err := f.adjust(t, adjustment.TypeAdd, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(10), res.Quantity)
	require.NotNil(t, res.Movement)
	assert.Equal(t, ledger.MovementAdjustment, res.Movement.MovementType)
	assert.Equal(t, ledger.AdjustmentRef(res.AdjustmentID), res.Movement.Reference)
	assert.Equal(t, "cycle count", res.Movement.Notes)

	res, err = f.adjust(t, adjustment.TypeSubtract, 4)
	require.NoError(t, err)
	assert.Equal(t, int64(6), res.Quantity)
	assert.Equal(t, int64(-4), res.Movement.Quantity)

	_, err = f.adjust(t, adjustment.TypeSubtract, 7)
	assert.True(t, apperror.IsInsufficientStock(err))
	assert.Equal(t, 2, f.movementCount(t))
}

func TestAdjust_Set(t *testing.T) {
	f := newFixture(t)
	_, err := f.adjust(t, adjustment.TypeAdd, 10)
	require.NoError(t, err)

	res, err := f.adjust(t, adjustment.TypeSet, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(7), res.Quantity)
	require.NotNil(t, res.Movement)
	assert.Equal(t, int64(-3), res.Movement.Quantity)
	assert.Equal(t, int64(7), res.Movement.StockAfter)
	assert.Equal(t, 2, f.movementCount(t))

	res, err = f.adjust(t, adjustment.TypeSet, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(7), res.Quantity)
	assert.Nil(t, res.Movement)
	assert.Equal(t, 2, f.movementCount(t))

	res, err = f.adjust(t, adjustment.TypeSet, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(0), res.Quantity)
	assert.Equal(t, int64(-7), res.Movement.Quantity)
}

func TestAdjust_Validation(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		typ  adjustment.Type
		qty  int64
	}{
		{"add zero", adjustment.TypeAdd, 0},
		{"subtract negative", adjustment.TypeSubtract, -1},
		{"set negative", adjustment.TypeSet, -1},
		{"unknown type", adjustment.Type("multiply"), 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.adjust(t, tt.typ, tt.qty)
			assert.True(t, apperror.HasCode(err, apperror.CodeValidation), "got %v", err)
		})
	}

	_, err := f.service.Adjust(context.Background(), adjustment.Request{
		WarehouseID: id.New(), ProductID: f.product, Quantity: 1, Type: adjustment.TypeSet,
	})
	assert.True(t, apperror.IsNotFound(err))
}

func TestAdjust_PublishesEventOnlyForMovements(t *testing.T) {
	f := newFixture(t)

	res, err := f.adjust(t, adjustment.TypeSet, 3)
	require.NoError(t, err)
	_, err = f.adjust(t, adjustment.TypeSet, 3)
	require.NoError(t, err)

	evts := f.db.Events()
	require.Len(t, evts, 1)
	assert.Equal(t, events.StockAdjusted, evts[0].EventType)
	assert.Equal(t, events.AggregateStock, evts[0].AggregateType)
	assert.Equal(t, res.AdjustmentID, evts[0].AggregateID)

	payload, ok := evts[0].Payload.(adjustment.Payload)
	require.True(t, ok)
	assert.Equal(t, int64(3), payload.Delta)
	assert.Equal(t, int64(3), payload.Quantity)
}
