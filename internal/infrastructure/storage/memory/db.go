// Package memory is an in-process implementation of the stockledger storage
// contracts, used by tests and local tooling.
//
// It keeps the PostgreSQL semantics the domain relies on: row locks are held
// until the owning transaction ends, writes are buffered until commit and
// discarded on error, and calls outside a transaction autocommit.
package memory

import (
	"context"
	"errors"
	"slices"
	"sync"

	"stockledger/internal/core/events"
	"stockledger/internal/core/id"
	"stockledger/internal/domain/audit"
	"stockledger/internal/domain/catalogs/product"
	"stockledger/internal/domain/catalogs/warehouse"
	"stockledger/internal/domain/ledger"
	"stockledger/internal/domain/transfer"
)

// ErrNoTransaction is returned by operations that require a transaction.
var ErrNoTransaction = errors.New("memory: no transaction in context")

// DB holds committed state. It implements tx.Manager and events.Publisher.
type DB struct {
	mu         sync.Mutex
	levels     map[ledger.Key]ledger.StockLevel
	movements  []ledger.StockMovement
	warehouses map[id.ID]warehouse.Warehouse
	products   map[id.ID]product.Product
	transfers  map[id.ID]transfer.Transfer
	events     []events.Event
	audit      []audit.Entry

	lockMu sync.Mutex
	locks  map[string]chan struct{}
}

// New creates an empty database.
func New() *DB {
	return &DB{
		levels:     make(map[ledger.Key]ledger.StockLevel),
		warehouses: make(map[id.ID]warehouse.Warehouse),
		products:   make(map[id.ID]product.Product),
		transfers:  make(map[id.ID]transfer.Transfer),
		locks:      make(map[string]chan struct{}),
	}
}

type txKey struct{}

// txState is the uncommitted work of one transaction.
type txState struct {
	held      map[string]chan struct{}
	levels    map[ledger.Key]ledger.StockLevel
	movements []ledger.StockMovement
	transfers map[id.ID]transfer.Transfer
	writes    []func(*DB)
	events    []events.Event
}

func txFrom(ctx context.Context) *txState {
	t, _ := ctx.Value(txKey{}).(*txState)
	return t
}

// InTransaction reports whether ctx carries a transaction.
func InTransaction(ctx context.Context) bool {
	return txFrom(ctx) != nil
}

// RunInTransaction executes fn in a transaction. Nested calls reuse the outer one.
func (db *DB) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if txFrom(ctx) != nil {
		return fn(ctx)
	}

	t := &txState{
		held:      make(map[string]chan struct{}),
		levels:    make(map[ledger.Key]ledger.StockLevel),
		transfers: make(map[id.ID]transfer.Transfer),
	}
	defer db.release(t)

	if err := fn(context.WithValue(ctx, txKey{}, t)); err != nil {
		return err
	}
	db.commit(t)
	return nil
}

func (db *DB) commit(t *txState) {
	db.mu.Lock()
	defer db.mu.Unlock()

	for k, l := range t.levels {
		db.levels[k] = l
	}
	db.movements = append(db.movements, t.movements...)
	for tid, tr := range t.transfers {
		db.transfers[tid] = tr
	}
	for _, w := range t.writes {
		w(db)
	}
	db.events = append(db.events, t.events...)
}

// lock takes a named row lock for the transaction. Outside a transaction it is a no-op.
func (db *DB) lock(ctx context.Context, name string) error {
	t := txFrom(ctx)
	if t == nil {
		return nil
	}
	if _, ok := t.held[name]; ok {
		return nil
	}

	db.lockMu.Lock()
	ch, ok := db.locks[name]
	if !ok {
		ch = make(chan struct{}, 1)
		db.locks[name] = ch
	}
	db.lockMu.Unlock()

	select {
	case ch <- struct{}{}:
		t.held[name] = ch
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (db *DB) release(t *txState) {
	for name, ch := range t.held {
		<-ch
		delete(t.held, name)
	}
}

// write applies fn on commit, or immediately outside a transaction.
func (db *DB) write(ctx context.Context, fn func(*DB)) {
	if t := txFrom(ctx); t != nil {
		t.writes = append(t.writes, fn)
		return
	}
	db.mu.Lock()
	defer db.mu.Unlock()
	fn(db)
}

// Publish buffers an event until the enclosing transaction commits.
func (db *DB) Publish(ctx context.Context, e events.Event) error {
	t := txFrom(ctx)
	if t == nil {
		return ErrNoTransaction
	}
	t.events = append(t.events, e)
	return nil
}

// Events returns committed events in publish order.
func (db *DB) Events() []events.Event {
	db.mu.Lock()
	defer db.mu.Unlock()
	return slices.Clone(db.events)
}
