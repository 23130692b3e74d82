package consumption_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/domain/catalogs"
	"stockledger/internal/domain/catalogs/product"
	"stockledger/internal/domain/catalogs/warehouse"
	"stockledger/internal/domain/consumption"
	"stockledger/internal/domain/ledger"
	"stockledger/internal/infrastructure/storage/memory"
)

type fixture struct {
	hooks  *consumption.Hooks
	ledger *ledger.Service
	wh     id.ID
	p1, p2 id.ID
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
	p1 := product.NewProduct("SKU-1", "Widget", "")
	p2 := product.NewProduct("SKU-2", "Gadget", "")
	require.NoError(t, pRepo.Create(ctx, p1))
	require.NoError(t, pRepo.Create(ctx, p2))

	return &fixture{
		hooks:  consumption.NewHooks(ledger.NewRecorder(store, resolver, db), db),
		ledger: ledger.NewService(store, resolver, db),
		wh:     w.ID,
		p1:     p1.ID,
		p2:     p2.ID,
	}
}

func (f *fixture) qty(t *testing.T, p id.ID) int64 {
	t.Helper()
	q, err := f.ledger.GetQuantity(context.Background(), f.wh, p)
	require.NoError(t, err)
	return q
}

func TestHooks_PurchaseSaleReturn(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ms, err := f.hooks.PurchaseReceived(ctx, id.New(), []consumption.Line{
		{WarehouseID: f.wh, ProductID: f.p1, Quantity: 10},
		{WarehouseID: f.wh, ProductID: f.p2, Quantity: 4},
	})
	require.NoError(t, err)
	require.Len(t, ms, 2)
	assert.Equal(t, ledger.MovementPurchase, ms[0].MovementType)

	saleID := id.New()
	ms, err = f.hooks.SaleConfirmed(ctx, saleID, []consumption.Line{{WarehouseID: f.wh, ProductID: f.p1, Quantity: 3}})
	require.NoError(t, err)
	require.Len(t, ms, 1)
	assert.Equal(t, int64(-3), ms[0].Quantity)
	assert.Equal(t, ledger.SaleRef(saleID), ms[0].Reference)

	_, err = f.hooks.ReturnAccepted(ctx, id.New(), []consumption.Line{{WarehouseID: f.wh, ProductID: f.p1, Quantity: 1}})
	require.NoError(t, err)

	assert.Equal(t, int64(8), f.qty(t, f.p1))
	assert.Equal(t, int64(4), f.qty(t, f.p2))
}

func TestHooks_SaleConfirmed_InsufficientStockLeavesNoPartialSale(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.hooks.PurchaseReceived(ctx, id.New(), []consumption.Line{
		{WarehouseID: f.wh, ProductID: f.p1, Quantity: 10},
		{WarehouseID: f.wh, ProductID: f.p2, Quantity: 2},
	})
	require.NoError(t, err)

	saleID := id.New()
	_, err = f.hooks.SaleConfirmed(ctx, saleID, []consumption.Line{
		{WarehouseID: f.wh, ProductID: f.p1, Quantity: 4},
		{WarehouseID: f.wh, ProductID: f.p2, Quantity: 5},
	})
	require.True(t, apperror.IsInsufficientStock(err))
	appErr, _ := apperror.AsAppError(err)
	assert.Equal(t, int64(2), appErr.Details["available"])
	assert.Equal(t, int64(5), appErr.Details["requested"])

	assert.Equal(t, int64(10), f.qty(t, f.p1))
	assert.Equal(t, int64(2), f.qty(t, f.p2))

	ref := ledger.SaleRef(saleID)
	page, err := f.ledger.ListMovements(ctx, ledger.MovementFilter{Reference: &ref})
	require.NoError(t, err)
	assert.Empty(t, page.Items)
}

func TestHooks_DuplicateEventRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	purchaseID := id.New()
	lines := []consumption.Line{{WarehouseID: f.wh, ProductID: f.p1, Quantity: 5}}

	_, err := f.hooks.PurchaseReceived(ctx, purchaseID, lines)
	require.NoError(t, err)

	_, err = f.hooks.PurchaseReceived(ctx, purchaseID, lines)
	require.True(t, apperror.HasCode(err, apperror.CodeAlreadyRecorded))
	assert.Equal(t, int64(5), f.qty(t, f.p1))
}

func TestHooks_ConcurrentDuplicatesRecordOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.hooks.PurchaseReceived(ctx, id.New(), []consumption.Line{{WarehouseID: f.wh, ProductID: f.p1, Quantity: 10}})
	require.NoError(t, err)

	saleID := id.New()
	lines := []consumption.Line{{WarehouseID: f.wh, ProductID: f.p1, Quantity: 2}}

	var wg sync.WaitGroup
	errs := make([]error, 5)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.hooks.SaleConfirmed(ctx, saleID, lines)
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.True(t, apperror.HasCode(err, apperror.CodeAlreadyRecorded))
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, int64(8), f.qty(t, f.p1))
}

func TestHooks_ConcurrentDuplicatesOnDisjointLinesRecordOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.hooks.PurchaseReceived(ctx, id.New(), []consumption.Line{
		{WarehouseID: f.wh, ProductID: f.p1, Quantity: 10},
		{WarehouseID: f.wh, ProductID: f.p2, Quantity: 10},
	})
	require.NoError(t, err)

	saleID := id.New()
	deliveries := [][]consumption.Line{
		{{WarehouseID: f.wh, ProductID: f.p1, Quantity: 1}},
		{{WarehouseID: f.wh, ProductID: f.p2, Quantity: 1}},
	}

	for round := 0; round < 20; round++ {
		var wg sync.WaitGroup
		errs := make([]error, len(deliveries))
		for i, lines := range deliveries {
			wg.Add(1)
			go func(i int, lines []consumption.Line) {
				defer wg.Done()
				_, errs[i] = f.hooks.SaleConfirmed(ctx, saleID, lines)
			}(i, lines)
		}
		wg.Wait()

		for _, err := range errs {
			if err != nil {
				assert.True(t, apperror.HasCode(err, apperror.CodeAlreadyRecorded))
			}
		}
	}

	assert.Equal(t, int64(19), f.qty(t, f.p1)+f.qty(t, f.p2))
}

func TestHooks_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.hooks.SaleConfirmed(ctx, id.New(), nil)
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))

	_, err = f.hooks.SaleConfirmed(ctx, id.Nil(), []consumption.Line{{WarehouseID: f.wh, ProductID: f.p1, Quantity: 1}})
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))

	_, err = f.hooks.ReturnAccepted(ctx, id.New(), []consumption.Line{{WarehouseID: f.wh, ProductID: f.p1, Quantity: 0}})
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))

	_, err = f.hooks.PurchaseReceived(ctx, id.New(), []consumption.Line{{WarehouseID: id.New(), ProductID: f.p1, Quantity: 1}})
	assert.True(t, apperror.IsNotFound(err))
}
