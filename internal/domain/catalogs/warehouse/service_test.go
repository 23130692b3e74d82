package warehouse_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockledger/internal/core/apperror"
	appctx "stockledger/internal/core/context"
	"stockledger/internal/core/id"
	"stockledger/internal/core/numerator"
	"stockledger/internal/domain/audit"
	"stockledger/internal/domain/catalogs/warehouse"
	"stockledger/internal/infrastructure/storage/memory"
)

func newService() *warehouse.Service {
	db := memory.New()
	return warehouse.NewService(memory.NewWarehouseRepo(db), db, &numerator.MockGenerator{}, memory.NewAuditLog(db))
}

func TestService_Create_GeneratesCode(t *testing.T) {
	svc := newService()
	ctx := context.Background()

	wh := warehouse.NewWarehouse("", "Central")
	require.NoError(t, svc.Create(ctx, wh))
	assert.Regexp(t, `^WH-\d{4}-00001$`, wh.Code)

	dup := warehouse.NewWarehouse(wh.Code, "Other")
	err := svc.Create(ctx, dup)
	assert.True(t, apperror.HasCode(err, apperror.CodeDuplicate))

	err = svc.Create(ctx, warehouse.NewWarehouse("X", " "))
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
}

func TestService_SetDefault_KeepsSingleDefault(t *testing.T) {
	svc := newService()
	ctx := context.Background()

	a := warehouse.NewWarehouse("A", "A")
	a.IsDefault = true
	require.NoError(t, svc.Create(ctx, a))
	b := warehouse.NewWarehouse("B", "B")
	require.NoError(t, svc.Create(ctx, b))

	_, err := svc.SetDefault(ctx, b.ID)
	require.NoError(t, err)

	res, err := svc.List(ctx, warehouse.ListFilter{})
	require.NoError(t, err)
	defaults := 0
	for _, w := range res.Items {
		if w.IsDefault {
			defaults++
			assert.Equal(t, b.ID, w.ID)
		}
	}
	assert.Equal(t, 1, defaults)
}

func TestService_SetActive(t *testing.T) {
	svc := newService()
	ctx := context.Background()

	wh := warehouse.NewWarehouse("A", "A")
	wh.IsDefault = true
	require.NoError(t, svc.Create(ctx, wh))

	got, err := svc.SetActive(ctx, wh.ID, false)
	require.NoError(t, err)
	assert.False(t, got.IsActive)
	assert.False(t, got.IsDefault, "deactivation clears default")
	assert.False(t, got.CanHoldStock())

	_, err = svc.SetDefault(ctx, wh.ID)
	assert.True(t, apperror.HasCode(err, apperror.CodeWarehouseInactive))

	res, err := svc.List(ctx, warehouse.ListFilter{ActiveOnly: true})
	require.NoError(t, err)
	assert.Empty(t, res.Items)

	got, err = svc.SetActive(ctx, wh.ID, true)
	require.NoError(t, err)
	assert.True(t, got.IsActive)
}

func TestService_Update_OptimisticLock(t *testing.T) {
	svc := newService()
	ctx := context.Background()

	wh := warehouse.NewWarehouse("A", "Old name")
	require.NoError(t, svc.Create(ctx, wh))

	stale := *wh
	wh.Name = "New name"
	require.NoError(t, svc.Update(ctx, wh))
	assert.Equal(t, 2, wh.Version)

	stale.Name = "Lost update"
	err := svc.Update(ctx, &stale)
	assert.True(t, apperror.IsConcurrentModification(err))

	got, err := svc.GetByID(ctx, wh.ID)
	require.NoError(t, err)
	assert.Equal(t, "New name", got.Name)
}

func TestService_History(t *testing.T) {
	svc := newService()
	ctx := appctx.WithActor(context.Background(), &appctx.Actor{ID: "clerk-7", Source: "test"})

	wh := warehouse.NewWarehouse("A", "Old name")
	require.NoError(t, svc.Create(ctx, wh))
	wh.Name = "New name"
	require.NoError(t, svc.Update(ctx, wh))
	_, err := svc.SetActive(ctx, wh.ID, false)
	require.NoError(t, err)

	history, err := svc.History(ctx, wh.ID, 10)
	require.NoError(t, err)
	require.Len(t, history, 3)

	assert.Equal(t, audit.ActionDeactivate, history[0].Action)
	assert.Contains(t, history[0].Changes, "is_active")

	assert.Equal(t, audit.ActionUpdate, history[1].Action)
	assert.Equal(t, map[string]any{"old": "Old name", "new": "New name"}, history[1].Changes["name"])
	assert.NotContains(t, history[1].Changes, "code")

	assert.Equal(t, audit.ActionCreate, history[2].Action)
	assert.Equal(t, "clerk-7", history[2].ActorID)

	_, err = svc.History(ctx, id.New(), 10)
	assert.True(t, apperror.IsNotFound(err))
}
