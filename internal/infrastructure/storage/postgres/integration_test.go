//go:build integration

package postgres_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/events"
	"stockledger/internal/core/id"
	"stockledger/internal/domain/catalogs"
	"stockledger/internal/domain/catalogs/product"
	"stockledger/internal/domain/catalogs/warehouse"
	"stockledger/internal/domain/ledger"
	"stockledger/internal/domain/transfer"
	"stockledger/internal/infrastructure/numerator"
	"stockledger/internal/infrastructure/storage/postgres"
	"stockledger/internal/infrastructure/storage/postgres/catalog_repo"
	"stockledger/internal/infrastructure/storage/postgres/ledger_repo"
	"stockledger/internal/infrastructure/storage/postgres/transfer_repo"
)

type env struct {
	txm        *postgres.TxManager
	warehouses *catalog_repo.WarehouseRepo
	products   *catalog_repo.ProductRepo
	store      *ledger_repo.Store
	recorder   *ledger.Recorder
	ledger     *ledger.Service
	transfers  *transfer.Service
	audit      *postgres.AuditLog
}

func newEnv(t *testing.T) *env {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("stockledger_test"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	migrator, err := postgres.NewMigrator(dsn)
	require.NoError(t, err)
	require.NoError(t, migrator.Up(ctx))
	require.NoError(t, migrator.Close())

	pool, err := postgres.NewPool(ctx, postgres.DefaultPoolConfig(dsn))
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	txm := postgres.NewTxManager(pool)
	auditLog, err := postgres.NewAuditLog(txm)
	require.NoError(t, err)

	e := &env{
		txm:        txm,
		warehouses: catalog_repo.NewWarehouseRepo(txm),
		products:   catalog_repo.NewProductRepo(txm),
		store:      ledger_repo.NewStore(txm),
		audit:      auditLog,
	}
	resolver := catalogs.NewResolver(e.warehouses, e.products)
	num := numerator.NewWithResolver(func(ctx context.Context) numerator.Querier { return txm.GetQuerier(ctx) })

	e.recorder = ledger.NewRecorder(e.store, resolver, txm)
	e.ledger = ledger.NewService(e.store, resolver, txm)
	e.transfers = transfer.NewService(transfer_repo.NewRepo(txm), e.recorder, resolver, txm, num,
		postgres.NewOutboxPublisher(txm), auditLog)
	return e
}

func (e *env) warehouse(t *testing.T, code string) id.ID {
	t.Helper()
	w := warehouse.NewWarehouse(code, "Warehouse "+code)
	require.NoError(t, e.txm.RunInTransaction(context.Background(), func(ctx context.Context) error {
		return e.warehouses.Create(ctx, w)
	}))
	return w.ID
}

func (e *env) product(t *testing.T, code string) id.ID {
	t.Helper()
	p := product.NewProduct(code, "Product "+code, "pcs")
	require.NoError(t, e.txm.RunInTransaction(context.Background(), func(ctx context.Context) error {
		return e.products.Create(ctx, p)
	}))
	return p.ID
}

func (e *env) purchase(t *testing.T, wh, p id.ID, qty int64) {
	t.Helper()
	_, err := e.recorder.Record(context.Background(), ledger.Entry{
		WarehouseID: wh,
		ProductID:   p,
		Type:        ledger.MovementPurchase,
		Delta:       qty,
		Reference:   ledger.PurchaseRef(id.New()),
	})
	require.NoError(t, err)
}

func TestPostgres_LedgerAndTransfer(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	main := e.warehouse(t, "MAIN")
	store := e.warehouse(t, "STORE")
	widget := e.product(t, "WIDGET")

	t.Run("duplicate code", func(t *testing.T) {
		err := e.txm.RunInTransaction(ctx, func(ctx context.Context) error {
			return e.warehouses.Create(ctx, warehouse.NewWarehouse("MAIN", "again"))
		})
		appErr, ok := apperror.AsAppError(err)
		require.True(t, ok, "got %v", err)
		assert.Equal(t, apperror.CodeDuplicate, appErr.Code)
	})

	e.purchase(t, main, widget, 10)

	t.Run("insufficient stock leaves level untouched", func(t *testing.T) {
		_, err := e.recorder.Record(ctx, ledger.Entry{
			WarehouseID: main,
			ProductID:   widget,
			Type:        ledger.MovementSale,
			Delta:       -11,
			Reference:   ledger.SaleRef(id.New()),
		})
		assert.True(t, apperror.IsInsufficientStock(err))

		q, err := e.ledger.GetQuantity(ctx, main, widget)
		require.NoError(t, err)
		assert.Equal(t, int64(10), q)
	})

	t.Run("transfer completes and balances", func(t *testing.T) {
		tr, err := e.transfers.Create(ctx, transfer.CreateRequest{
			FromWarehouseID: main,
			ToWarehouseID:   store,
			Items:           []transfer.ItemRequest{{ProductID: widget, Quantity: 4}},
		})
		require.NoError(t, err)
		assert.NotEmpty(t, tr.TransferNumber)

		_, err = e.transfers.Dispatch(ctx, tr.ID)
		require.NoError(t, err)
		done, err := e.transfers.Complete(ctx, tr.ID)
		require.NoError(t, err)
		assert.Equal(t, transfer.StatusCompleted, done.Status)
		require.Len(t, done.Items, 1)
		assert.NotNil(t, done.Items[0].TransferredAt)

		for wh, want := range map[id.ID]int64{main: 6, store: 4} {
			rec, err := e.ledger.Reconcile(ctx, ledger.NewKey(wh, widget))
			require.NoError(t, err)
			assert.Equal(t, want, rec.Quantity)
			assert.True(t, rec.Balanced)
		}

		moved, err := e.store.HasReference(ctx, ledger.TransferRef(tr.ID))
		require.NoError(t, err)
		assert.True(t, moved)

		history, err := e.transfers.History(ctx, tr.ID, 0)
		require.NoError(t, err)
		require.NotEmpty(t, history)
		change, ok := history[0].Changes["status"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "completed", change["new"])
	})

	t.Run("concurrent decrements never oversell", func(t *testing.T) {
		var (
			wg       sync.WaitGroup
			mu       sync.Mutex
			accepted int
		)
		for range 10 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := e.recorder.Record(ctx, ledger.Entry{
					WarehouseID: main,
					ProductID:   widget,
					Type:        ledger.MovementSale,
					Delta:       -1,
					Reference:   ledger.SaleRef(id.New()),
				})
				if err == nil {
					mu.Lock()
					accepted++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, 6, accepted)
		rec, err := e.ledger.Reconcile(ctx, ledger.NewKey(main, widget))
		require.NoError(t, err)
		assert.Equal(t, int64(0), rec.Quantity)
		assert.True(t, rec.Balanced)
	})

	t.Run("outbox relay delivers transfer events", func(t *testing.T) {
		var delivered []string
		relay := postgres.NewOutboxRelay(e.txm, postgres.OutboxHandlerFunc(
			func(_ context.Context, msg *postgres.OutboxMessage) error {
				var payload map[string]any
				if err := json.Unmarshal(msg.Payload, &payload); err != nil {
					return err
				}
				delivered = append(delivered, msg.EventType)
				return nil
			}), postgres.DefaultOutboxRelayConfig())

		n, err := relay.ProcessBatch(ctx)
		require.NoError(t, err)
		assert.Equal(t, len(delivered), n)
		assert.Contains(t, delivered, events.TransferCreated)
		assert.Contains(t, delivered, events.TransferCompleted)

		n, err = relay.ProcessBatch(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)
	})
}

func TestPostgres_IdempotencyStore(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	s := postgres.NewIdempotencyStore(e.txm, time.Hour)

	replay, err := s.AcquireKey(ctx, "key-1", "clerk", "POST /transfers", "hash-a")
	require.NoError(t, err)
	assert.Nil(t, replay)

	_, err = s.AcquireKey(ctx, "key-1", "clerk", "POST /transfers", "hash-a")
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeIdempotency, appErr.Code)
	assert.Equal(t, "Operation already in progress or completed", appErr.Message)

	require.NoError(t, s.CompleteKey(ctx, "key-1", 201, "application/json", map[string]string{"id": "t1"}))

	replay, err = s.AcquireKey(ctx, "key-1", "clerk", "POST /transfers", "hash-a")
	require.NoError(t, err)
	require.NotNil(t, replay)
	assert.Equal(t, 201, replay.StatusCode)
	assert.JSONEq(t, `{"id":"t1"}`, string(replay.Body))

	_, err = s.AcquireKey(ctx, "key-1", "clerk", "POST /transfers", "hash-b")
	appErr, ok = apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, "Idempotency key mismatch", appErr.Message)
}
