package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockledger/internal/core/events"
	"stockledger/internal/core/id"
)

func TestDB_RollbackDiscardsWritesAndEvents(t *testing.T) {
	db := New()
	ctx := context.Background()
	boom := errors.New("boom")

	err := db.RunInTransaction(ctx, func(ctx context.Context) error {
		require.NoError(t, db.Publish(ctx, events.Event{EventType: events.StockAdjusted, AggregateID: id.New()}))
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, db.Events())

	err = db.RunInTransaction(ctx, func(ctx context.Context) error {
		return db.Publish(ctx, events.Event{EventType: events.StockAdjusted, AggregateID: id.New()})
	})
	require.NoError(t, err)
	assert.Len(t, db.Events(), 1)
}

func TestDB_PublishRequiresTransaction(t *testing.T) {
	db := New()
	err := db.Publish(context.Background(), events.Event{})
	assert.ErrorIs(t, err, ErrNoTransaction)
}

func TestDB_LockIsHeldUntilCommit(t *testing.T) {
	db := New()
	ctx := context.Background()

	locked := make(chan struct{})
	release := make(chan struct{})
	done := make(chan struct{})

	go func() {
		defer close(done)
		_ = db.RunInTransaction(ctx, func(ctx context.Context) error {
			if err := db.lock(ctx, "row"); err != nil {
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
		return db.lock(ctx, "row")
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	<-done
	require.NoError(t, db.RunInTransaction(ctx, func(ctx context.Context) error {
		return db.lock(ctx, "row")
	}))
}
