package ledger_test

import (
	"context"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockledger/internal/core/apperror"
	appctx "stockledger/internal/core/context"
	"stockledger/internal/core/id"
	"stockledger/internal/domain/ledger"
)

func TestRecorder_Record_UpdatesLevelAndAppendsMovement(t *testing.T) {
	f := newFixture(t)
	ctx := appctx.WithActor(context.Background(), &appctx.Actor{ID: "clerk-7"})
	wh, p := f.warehouse(t, "A"), f.product(t, "P1")

	steps := []struct {
		typ   ledger.MovementType
		delta int64
		ref   ledger.Reference
		after int64
	}{
		{ledger.MovementPurchase, 10, ledger.PurchaseRef(id.New()), 10},
		{ledger.MovementSale, -3, ledger.SaleRef(id.New()), 7},
		{ledger.MovementReturn, 1, ledger.ReturnRef(id.New()), 8},
		{ledger.MovementAdjustment, -8, ledger.AdjustmentRef(id.New()), 0},
	}

	for _, step := range steps {
		before := f.quantity(t, wh, p)
		m, err := f.recorder.Record(ctx, ledger.Entry{
			WarehouseID: wh, ProductID: p, Type: step.typ, Delta: step.delta, Reference: step.ref,
		})
		require.NoError(t, err)

		assert.Equal(t, step.delta, m.Quantity)
		assert.Equal(t, step.after, m.StockAfter)
		assert.Equal(t, before+step.delta, f.quantity(t, wh, p))
		assert.Equal(t, "clerk-7", m.CreatedBy)
		assert.Equal(t, step.ref, m.Reference)
	}

	rec, err := f.service.Reconcile(ctx, ledger.NewKey(wh, p))
	require.NoError(t, err)
	assert.True(t, rec.Balanced)
	assert.Equal(t, int64(4), rec.MovementCount)
	assert.Equal(t, int64(0), rec.Quantity)
}

func TestRecorder_Record_InsufficientStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	wh, p := f.warehouse(t, "A"), f.product(t, "P1")
	f.stock(t, wh, p, 2)

	_, err := f.recorder.Record(ctx, ledger.Entry{
		WarehouseID: wh, ProductID: p, Type: ledger.MovementSale, Delta: -5, Reference: ledger.SaleRef(id.New()),
	})
	require.Error(t, err)

	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeInsufficientStock, appErr.Code)
	assert.Equal(t, int64(2), appErr.Details["available"])
	assert.Equal(t, int64(5), appErr.Details["requested"])
	assert.Equal(t, wh.String(), appErr.Details["warehouse_id"])

	assert.Equal(t, int64(2), f.quantity(t, wh, p))
	page, err := f.service.ListMovements(ctx, ledger.MovementFilter{WarehouseID: &wh})
	require.NoError(t, err)
	assert.Len(t, page.Items, 1)
}

func TestRecorder_Record_OverflowIsValidationError(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	wh, p := f.warehouse(t, "A"), f.product(t, "P1")
	f.stock(t, wh, p, 5)

	_, err := f.recorder.Record(ctx, ledger.Entry{
		WarehouseID: wh, ProductID: p, Type: ledger.MovementPurchase, Delta: math.MaxInt64, Reference: ledger.PurchaseRef(id.New()),
	})
	require.Error(t, err)

	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeValidation, appErr.Code)
	assert.Equal(t, "quantity", appErr.Details["field"])
	assert.Equal(t, int64(5), f.quantity(t, wh, p))

	m, err := f.recorder.Record(ctx, ledger.Entry{
		WarehouseID: wh, ProductID: p, Type: ledger.MovementPurchase, Delta: math.MaxInt64 - 5, Reference: ledger.PurchaseRef(id.New()),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(math.MaxInt64), m.StockAfter)
}

func TestRecorder_Record_RejectsInvalidEntries(t *testing.T) {
	f := newFixture(t)
	wh, p := f.warehouse(t, "A"), f.product(t, "P1")

	tests := []struct {
		name  string
		entry ledger.Entry
	}{
		{"zero delta", ledger.Entry{Type: ledger.MovementAdjustment, Delta: 0, Reference: ledger.AdjustmentRef(id.New())}},
		{"positive sale", ledger.Entry{Type: ledger.MovementSale, Delta: 1, Reference: ledger.SaleRef(id.New())}},
		{"negative purchase", ledger.Entry{Type: ledger.MovementPurchase, Delta: -1, Reference: ledger.PurchaseRef(id.New())}},
		{"negative transfer in", ledger.Entry{Type: ledger.MovementTransferIn, Delta: -1, Reference: ledger.TransferRef(id.New())}},
		{"mismatched reference", ledger.Entry{Type: ledger.MovementSale, Delta: -1, Reference: ledger.ReturnRef(id.New())}},
		{"missing reference", ledger.Entry{Type: ledger.MovementReturn, Delta: 1}},
		{"unknown type", ledger.Entry{Type: "theft", Delta: -1, Reference: ledger.SaleRef(id.New())}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.entry.WarehouseID = wh
			tt.entry.ProductID = p
			_, err := f.recorder.Record(context.Background(), tt.entry)
			assert.True(t, apperror.HasCode(err, apperror.CodeValidation), "got %v", err)
		})
	}

	assert.Equal(t, int64(0), f.quantity(t, wh, p))
}

func TestRecorder_Record_ChecksCatalog(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	wh, p := f.warehouse(t, "A"), f.product(t, "P1")

	inactiveWh := f.warehouse(t, "B")
	w, err := f.warehouses.GetByID(ctx, inactiveWh)
	require.NoError(t, err)
	w.IsActive = false
	require.NoError(t, f.warehouses.Update(ctx, w))

	inactiveP := f.product(t, "P2")
	pr, err := f.products.GetByID(ctx, inactiveP)
	require.NoError(t, err)
	pr.IsActive = false
	require.NoError(t, f.products.Update(ctx, pr))

	entry := func(wh, p id.ID) ledger.Entry {
		return ledger.Entry{WarehouseID: wh, ProductID: p, Type: ledger.MovementPurchase, Delta: 1, Reference: ledger.PurchaseRef(id.New())}
	}

	_, err = f.recorder.Record(ctx, entry(id.New(), p))
	assert.True(t, apperror.IsNotFound(err))

	_, err = f.recorder.Record(ctx, entry(wh, id.New()))
	assert.True(t, apperror.IsNotFound(err))

	_, err = f.recorder.Record(ctx, entry(inactiveWh, p))
	assert.True(t, apperror.HasCode(err, apperror.CodeWarehouseInactive))

	_, err = f.recorder.Record(ctx, entry(wh, inactiveP))
	assert.True(t, apperror.HasCode(err, apperror.CodeProductInactive))
}

func TestRecorder_RecordAll_IsAtomic(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, b := f.warehouse(t, "A"), f.warehouse(t, "B")
	p := f.product(t, "P1")
	f.stock(t, a, p, 1)

	ref := ledger.SaleRef(id.New())
	_, err := f.recorder.RecordAll(ctx, []ledger.Entry{
		{WarehouseID: a, ProductID: p, Type: ledger.MovementSale, Delta: -1, Reference: ref},
		{WarehouseID: b, ProductID: p, Type: ledger.MovementSale, Delta: -1, Reference: ref},
	})
	require.True(t, apperror.IsInsufficientStock(err))

	assert.Equal(t, int64(1), f.quantity(t, a, p))
	recorded, err := f.recorder.Recorded(ctx, ref)
	require.NoError(t, err)
	assert.False(t, recorded)
}

func TestRecorder_RecordAll_SameKeyAppliedInOrder(t *testing.T) {
	f := newFixture(t)
	wh, p := f.warehouse(t, "A"), f.product(t, "P1")
	ref := ledger.AdjustmentRef(id.New())

	ms, err := f.recorder.RecordAll(context.Background(), []ledger.Entry{
		{WarehouseID: wh, ProductID: p, Type: ledger.MovementAdjustment, Delta: 4, Reference: ref},
		{WarehouseID: wh, ProductID: p, Type: ledger.MovementAdjustment, Delta: -3, Reference: ref},
	})
	require.NoError(t, err)
	require.Len(t, ms, 2)
	assert.Equal(t, int64(4), ms[0].StockAfter)
	assert.Equal(t, int64(1), ms[1].StockAfter)
	assert.Equal(t, int64(1), f.quantity(t, wh, p))
}

func TestRecorder_ConcurrentDecrements_Serialize(t *testing.T) {
	f := newFixture(t)
	wh, p := f.warehouse(t, "A"), f.product(t, "P1")
	f.stock(t, wh, p, 5)

	var (
		wg    sync.WaitGroup
		start = make(chan struct{})
		errs  = make([]error, 2)
	)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, errs[i] = f.recorder.Record(context.Background(), ledger.Entry{
				WarehouseID: wh, ProductID: p, Type: ledger.MovementSale, Delta: -3, Reference: ledger.SaleRef(id.New()),
			})
		}(i)
	}
	close(start)
	wg.Wait()

	var failed error
	successes := 0
	for _, err := range errs {
		if err == nil {
			successes++
		} else {
			failed = err
		}
	}
	require.Equal(t, 1, successes)

	appErr, ok := apperror.AsAppError(failed)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeInsufficientStock, appErr.Code)
	assert.Equal(t, int64(2), appErr.Details["available"])
	assert.Equal(t, int64(3), appErr.Details["requested"])
	assert.Equal(t, int64(2), f.quantity(t, wh, p))
}

func TestRecorder_ManyConcurrentWriters_Reconcile(t *testing.T) {
	f := newFixture(t)
	a, b := f.warehouse(t, "A"), f.warehouse(t, "B")
	p1, p2 := f.product(t, "P1"), f.product(t, "P2")
	keys := []ledger.Key{ledger.NewKey(a, p1), ledger.NewKey(a, p2), ledger.NewKey(b, p1), ledger.NewKey(b, p2)}
	for _, k := range keys {
		f.stock(t, k.WarehouseID, k.ProductID, 20)
	}

	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			from, to := keys[i%4], keys[(i+1)%4]
			ref := ledger.AdjustmentRef(id.New())
			// Opposite lock orders across goroutines must not deadlock.
			_, _ = f.recorder.RecordAll(context.Background(), []ledger.Entry{
				{WarehouseID: from.WarehouseID, ProductID: from.ProductID, Type: ledger.MovementAdjustment, Delta: -1, Reference: ref},
				{WarehouseID: to.WarehouseID, ProductID: to.ProductID, Type: ledger.MovementAdjustment, Delta: 1, Reference: ref},
			})
		}(i)
	}
	wg.Wait()

	var total int64
	for _, k := range keys {
		rec, err := f.service.Reconcile(context.Background(), k)
		require.NoError(t, err)
		assert.True(t, rec.Balanced, "key %s", k)
		assert.GreaterOrEqual(t, rec.Quantity, int64(0))
		total += rec.Quantity
	}
	assert.Equal(t, int64(80), total)
}

func TestRecorder_Lock_ReturnsZeroForUntouchedKey(t *testing.T) {
	f := newFixture(t)
	wh, p := f.warehouse(t, "A"), f.product(t, "P1")
	key := ledger.NewKey(wh, p)

	err := f.db.RunInTransaction(context.Background(), func(ctx context.Context) error {
		got, err := f.recorder.Lock(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, int64(0), got[key])
		return nil
	})
	require.NoError(t, err)

	_, found, err := f.service.Lookup(context.Background(), key)
	require.NoError(t, err)
	assert.False(t, found)
}
