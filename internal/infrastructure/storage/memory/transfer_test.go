package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/domain/transfer"
)

func TestTransferRepo_MarkItemTransferredOnce(t *testing.T) {
	db := New()
	repo := NewTransferRepo(db)
	ctx := context.Background()

	itemID := id.New()
	tr := &transfer.Transfer{
		ID:              id.New(),
		TransferNumber:  "TR-2026-00001",
		FromWarehouseID: id.New(),
		ToWarehouseID:   id.New(),
		Status:          transfer.StatusInTransit,
		Version:         1,
	}
	tr.Items = []transfer.Item{{ID: itemID, TransferID: tr.ID, LineNo: 1, ProductID: id.New(), Quantity: 3}}
	require.NoError(t, repo.Create(ctx, tr))

	at := time.Now().UTC()
	require.NoError(t, db.RunInTransaction(ctx, func(ctx context.Context) error {
		return repo.MarkItemTransferred(ctx, itemID, at)
	}))

	got, err := repo.GetByID(ctx, tr.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Items[0].TransferredAt)
	assert.True(t, got.Items[0].TransferredAt.Equal(at))

	err = db.RunInTransaction(ctx, func(ctx context.Context) error {
		return repo.MarkItemTransferred(ctx, itemID, at.Add(time.Minute))
	})
	assert.True(t, apperror.HasCode(err, apperror.CodeNotFound))

	got, err = repo.GetByID(ctx, tr.ID)
	require.NoError(t, err)
	assert.True(t, got.Items[0].TransferredAt.Equal(at))

	err = repo.MarkItemTransferred(ctx, id.New(), at)
	assert.True(t, apperror.HasCode(err, apperror.CodeNotFound))
}
