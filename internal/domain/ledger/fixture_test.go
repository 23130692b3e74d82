package ledger_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"stockledger/internal/core/id"
	"stockledger/internal/domain/catalogs"
	"stockledger/internal/domain/catalogs/product"
	"stockledger/internal/domain/catalogs/warehouse"
	"stockledger/internal/domain/ledger"
	"stockledger/internal/infrastructure/storage/memory"
)

type fixture struct {
	db         *memory.DB
	store      *memory.LedgerStore
	warehouses *memory.WarehouseRepo
	products   *memory.ProductRepo
	recorder   *ledger.Recorder
	service    *ledger.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := memory.New()
	f := &fixture{
		db:         db,
		store:      memory.NewLedgerStore(db),
		warehouses: memory.NewWarehouseRepo(db),
		products:   memory.NewProductRepo(db),
	}
	resolver := catalogs.NewResolver(f.warehouses, f.products)
	f.recorder = ledger.NewRecorder(f.store, resolver, db)
	f.service = ledger.NewService(f.store, resolver, db)
	return f
}

func (f *fixture) warehouse(t *testing.T, code string) id.ID {
	t.Helper()
	w := warehouse.NewWarehouse(code, "Warehouse "+code)
	require.NoError(t, f.warehouses.Create(context.Background(), w))
	return w.ID
}

func (f *fixture) product(t *testing.T, code string) id.ID {
	t.Helper()
	p := product.NewProduct(code, "Product "+code, "")
	require.NoError(t, f.products.Create(context.Background(), p))
	return p.ID
}

// stock seeds a level through a purchase movement.
func (f *fixture) stock(t *testing.T, wh, p id.ID, qty int64) {
	t.Helper()
	_, err := f.recorder.Record(context.Background(), ledger.Entry{
		WarehouseID: wh,
		ProductID:   p,
		Type:        ledger.MovementPurchase,
		Delta:       qty,
		Reference:   ledger.PurchaseRef(id.New()),
	})
	require.NoError(t, err)
}

func (f *fixture) quantity(t *testing.T, wh, p id.ID) int64 {
	t.Helper()
	q, err := f.service.GetQuantity(context.Background(), wh, p)
	require.NoError(t, err)
	return q
}
