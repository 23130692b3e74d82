package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	appctx "stockledger/internal/core/context"
)

func TestFromContext_EnrichesTraceAndActor(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	ctx := WithLogger(context.Background(), NewFromZap(zap.New(core)))
	ctx = appctx.WithTrace(ctx, &appctx.TraceContext{TraceID: "tr-1", RequestID: "req-1"})
	ctx = appctx.WithActor(ctx, &appctx.Actor{ID: "clerk-7", Source: "test"})

	Info(ctx, "stock adjusted", "quantity", int64(7))

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "tr-1", fields["trace_id"])
	assert.Equal(t, "req-1", fields["request_id"])
	assert.Equal(t, "clerk-7", fields["actor_id"])
	assert.Equal(t, int64(7), fields["quantity"])
}

func TestNew_InvalidLevelFallsBackToInfo(t *testing.T) {
	l, err := New(Config{Level: "loud", OutputPaths: []string{"stderr"}})
	require.NoError(t, err)
	assert.False(t, l.Desugar().Core().Enabled(zap.DebugLevel))
	assert.True(t, l.Desugar().Core().Enabled(zap.InfoLevel))
}

func TestWithContext_SkipsEmptyIdentifiers(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	ctx := WithLogger(context.Background(), NewFromZap(zap.New(core)))
	ctx = appctx.WithActor(ctx, &appctx.Actor{ID: "clerk-7"})

	Warn(ctx, "low stock")

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "clerk-7", fields["actor_id"])
	assert.NotContains(t, fields, "trace_id")
	assert.NotContains(t, fields, "actor_source")
}
