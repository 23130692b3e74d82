package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockledger/internal/core/id"
	"stockledger/internal/domain/ledger"
)

func TestLedgerStore_LockReferenceHeldUntilCommit(t *testing.T) {
	db := New()
	store := NewLedgerStore(db)
	ctx := context.Background()
	ref := ledger.SaleRef(id.New())

	locked := make(chan struct{})
	release := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = db.RunInTransaction(ctx, func(ctx context.Context) error {
			if err := store.LockReference(ctx, ref); err != nil {
				return err
			}
			close(locked)
			<-release
			return nil
		})
	}()
	<-locked

	waitCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	err := db.RunInTransaction(waitCtx, func(ctx context.Context) error {
		return store.LockReference(ctx, ref)
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// Other references are independent.
	require.NoError(t, db.RunInTransaction(ctx, func(ctx context.Context) error {
		return store.LockReference(ctx, ledger.SaleRef(id.New()))
	}))

	close(release)
	<-done
	require.NoError(t, db.RunInTransaction(ctx, func(ctx context.Context) error {
		return store.LockReference(ctx, ref)
	}))
}
