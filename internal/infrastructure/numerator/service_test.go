package numerator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	corenumerator "stockledger/internal/core/numerator"
)

type mockRow struct {
	val int64
	err error
}

func (m *mockRow) Scan(dest ...any) error {
	if m.err != nil {
		return m.err
	}
	if len(dest) > 0 {
		if ptr, ok := dest[0].(*int64); ok {
			*ptr = m.val
		}
	}
	return nil
}

// mockQuerier emulates sys_sequences: one counter per key.
type mockQuerier struct {
	mu       sync.Mutex
	counters map[string]int64
	calls    int
	err      error
}

func newMockQuerier() *mockQuerier {
	return &mockQuerier{counters: make(map[string]int64)}
}

func (m *mockQuerier) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++

	if m.err != nil {
		return &mockRow{err: m.err}
	}

	key := args[0].(string)
	m.counters[key] += args[1].(int64)
	return &mockRow{val: m.counters[key]}
}

var period = time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)

func TestGetNextNumber_Strict(t *testing.T) {
	q := newMockQuerier()
	svc := New(q)
	ctx := context.Background()

	num, err := svc.GetNextNumber(ctx, corenumerator.TransferConfig, nil, period)
	require.NoError(t, err)
	assert.Equal(t, "TR-2026-00001", num)

	num, err = svc.GetNextNumber(ctx, corenumerator.TransferConfig, nil, period)
	require.NoError(t, err)
	assert.Equal(t, "TR-2026-00002", num)

	assert.Equal(t, int64(2), q.counters["TR_2026"])
}

func TestGetNextNumber_WithoutYear(t *testing.T) {
	svc := New(newMockQuerier())

	num, err := svc.GetNextNumber(context.Background(), corenumerator.ProductConfig, nil, period)
	require.NoError(t, err)
	assert.Equal(t, "PRD-00001", num)
}

func TestGetNextNumber_Cached(t *testing.T) {
	q := newMockQuerier()
	svc := New(q)
	ctx := context.Background()
	cfg := corenumerator.WarehouseConfig
	opts := &corenumerator.Options{Strategy: corenumerator.StrategyCached, RangeSize: 10}

	num, err := svc.GetNextNumber(ctx, cfg, opts, period)
	require.NoError(t, err)
	assert.Equal(t, "WH-2026-00001", num)
	assert.Equal(t, int64(10), q.counters["WH_2026"])

	// Served from memory.
	num, err = svc.GetNextNumber(ctx, cfg, opts, period)
	require.NoError(t, err)
	assert.Equal(t, "WH-2026-00002", num)
	assert.Equal(t, 1, q.calls)

	for i := 0; i < 8; i++ {
		_, err = svc.GetNextNumber(ctx, cfg, opts, period)
		require.NoError(t, err)
	}

	// Range exhausted, next call reserves 11..20.
	num, err = svc.GetNextNumber(ctx, cfg, opts, period)
	require.NoError(t, err)
	assert.Equal(t, "WH-2026-00011", num)
	assert.Equal(t, int64(20), q.counters["WH_2026"])
	assert.Equal(t, 2, q.calls)
}

func TestGetNextNumber_PropagatesQueryError(t *testing.T) {
	q := newMockQuerier()
	q.err = errors.New("connection refused")
	svc := New(q)

	_, err := svc.GetNextNumber(context.Background(), corenumerator.TransferConfig, nil, period)
	require.Error(t, err)
	assert.ErrorIs(t, err, q.err)
}

func TestNewWithResolver_ResolvesPerCall(t *testing.T) {
	first, second := newMockQuerier(), newMockQuerier()
	useSecond := false
	svc := NewWithResolver(func(context.Context) Querier {
		if useSecond {
			return second
		}
		return first
	})

	_, err := svc.GetNextNumber(context.Background(), corenumerator.TransferConfig, nil, period)
	require.NoError(t, err)
	useSecond = true
	_, err = svc.GetNextNumber(context.Background(), corenumerator.TransferConfig, nil, period)
	require.NoError(t, err)

	assert.Equal(t, 1, first.calls)
	assert.Equal(t, 1, second.calls)
}

func TestConfig_MonthlyReset(t *testing.T) {
	cfg := corenumerator.Config{Prefix: "TR", IncludeYear: true, PadWidth: 3, Reset: corenumerator.PeriodMonth}
	q := newMockQuerier()
	svc := New(q)

	num, err := svc.GetNextNumber(context.Background(), cfg, nil, period)
	require.NoError(t, err)
	assert.Equal(t, "TR-2026-001", num)

	_, err = svc.GetNextNumber(context.Background(), cfg, nil, period.AddDate(0, 1, 0))
	require.NoError(t, err)
	assert.Equal(t, int64(1), q.counters["TR_2026_03"])
	assert.Equal(t, int64(1), q.counters["TR_2026_04"])
}
