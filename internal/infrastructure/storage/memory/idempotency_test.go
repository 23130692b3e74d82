package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockledger/internal/core/apperror"
)

func TestIdempotencyStore_Lifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewIdempotencyStore(time.Hour)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	replay, err := s.AcquireKey(ctx, "k", "clerk", "POST /stock/adjustments", "h1")
	require.NoError(t, err)
	assert.Nil(t, replay)

	_, err = s.AcquireKey(ctx, "k", "clerk", "POST /stock/adjustments", "h1")
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, "Operation already in progress or completed", appErr.Message)

	require.NoError(t, s.CompleteKey(ctx, "k", 201, "application/json", map[string]int{"quantity": 7}))

	replay, err = s.AcquireKey(ctx, "k", "clerk", "POST /stock/adjustments", "h1")
	require.NoError(t, err)
	require.NotNil(t, replay)
	assert.Equal(t, 201, replay.StatusCode)
	assert.JSONEq(t, `{"quantity":7}`, string(replay.Body))

	_, err = s.AcquireKey(ctx, "k", "clerk", "POST /stock/adjustments", "h2")
	appErr, ok = apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, "Idempotency key mismatch", appErr.Message)

	now = now.Add(2 * time.Hour)
	replay, err = s.AcquireKey(ctx, "k", "clerk", "POST /stock/adjustments", "h2")
	require.NoError(t, err, "expired keys are reusable")
	assert.Nil(t, replay)
}

func TestIdempotencyStore_StalePendingKeyIsReclaimed(t *testing.T) {
	ctx := context.Background()
	s := NewIdempotencyStore(time.Hour)
	now := time.Now()
	s.now = func() time.Time { return now }

	_, err := s.AcquireKey(ctx, "k", "", "POST /transfers", "h")
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	replay, err := s.AcquireKey(ctx, "k", "", "POST /transfers", "h")
	require.NoError(t, err)
	assert.Nil(t, replay)
}

func TestIdempotencyStore_ReleaseKey(t *testing.T) {
	ctx := context.Background()
	s := NewIdempotencyStore(time.Hour)

	_, err := s.AcquireKey(ctx, "k", "", "POST /transfers", "h")
	require.NoError(t, err)
	require.NoError(t, s.ReleaseKey(ctx, "k"))

	replay, err := s.AcquireKey(ctx, "k", "", "POST /transfers", "h")
	require.NoError(t, err)
	assert.Nil(t, replay)
}
