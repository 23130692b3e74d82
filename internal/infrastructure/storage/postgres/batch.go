package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// ErrNoTransaction is returned by operations that require a transaction in ctx.
var ErrNoTransaction = errors.New("postgres: operation requires a transaction")

// BatchInserter bulk-inserts rows with the COPY protocol inside the current transaction.
type BatchInserter struct {
	txManager *TxManager
}

// NewBatchInserter creates a new batch inserter.
func NewBatchInserter(txManager *TxManager) *BatchInserter {
	return &BatchInserter{txManager: txManager}
}

// CopyFromSlice copies rows into table. Each row must match columns.
func (b *BatchInserter) CopyFromSlice(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	t := b.txManager.GetTx(ctx)
	if t == nil {
		return 0, ErrNoTransaction
	}

	n, err := t.CopyFrom(ctx, pgx.Identifier{table}, columns, pgx.CopyFromRows(rows))
	if err != nil {
		return 0, fmt.Errorf("copy into %s: %w", table, err)
	}
	return n, nil
}

// BatchExecutor sends several statements in one round-trip.
type BatchExecutor struct {
	txManager *TxManager
}

// NewBatchExecutor creates a new batch executor.
func NewBatchExecutor(txManager *TxManager) *BatchExecutor {
	return &BatchExecutor{txManager: txManager}
}

// BatchQuery represents a query in a batch.
type BatchQuery struct {
	SQL  string
	Args []any
}

// ExecuteBatch executes queries in order. Each must affect at least minRows rows.
func (e *BatchExecutor) ExecuteBatch(ctx context.Context, queries []BatchQuery, minRows int64) error {
	if len(queries) == 0 {
		return nil
	}
	t := e.txManager.GetTx(ctx)
	if t == nil {
		return ErrNoTransaction
	}

	batch := &pgx.Batch{}
	for _, q := range queries {
		batch.Queue(q.SQL, q.Args...)
	}

	results := t.SendBatch(ctx, batch)
	defer results.Close()

	for i := range queries {
		tag, err := results.Exec()
		if err != nil {
			return fmt.Errorf("batch query %d: %w", i, err)
		}
		if tag.RowsAffected() < minRows {
			return fmt.Errorf("batch query %d: affected %d rows, want at least %d", i, tag.RowsAffected(), minRows)
		}
	}
	return results.Close()
}
