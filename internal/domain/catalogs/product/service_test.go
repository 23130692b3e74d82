package product_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/numerator"
	"stockledger/internal/domain"
	"stockledger/internal/domain/catalogs/product"
	"stockledger/internal/infrastructure/storage/memory"
)

func TestService_CreateAndList(t *testing.T) {
	db := memory.New()
	svc := product.NewService(memory.NewProductRepo(db), db, &numerator.MockGenerator{}, memory.NewAuditLog(db))
	ctx := context.Background()

	p := product.NewProduct("", "Blue widget", "")
	require.NoError(t, svc.Create(ctx, p))
	assert.Equal(t, "PRD-00001", p.Code)
	assert.Equal(t, product.DefaultUnit, p.Unit)

	require.NoError(t, svc.Create(ctx, product.NewProduct("", "Red gadget", "box")))

	res, err := svc.List(ctx, product.ListFilter{Search: "widget"})
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Equal(t, p.ID, res.Items[0].ID)

	res, err = svc.List(ctx, product.ListFilter{Page: domain.Page{Limit: 1, Offset: 1}})
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.TotalCount)
	assert.Len(t, res.Items, 1)
}

func TestProduct_Validate(t *testing.T) {
	bad := "12a4"
	p := product.NewProduct("P", "Item", "pcs")
	p.Barcode = &bad
	assert.True(t, apperror.HasCode(p.Validate(context.Background()), apperror.CodeValidation))

	good := "4006381333931"
	p.Barcode = &good
	assert.NoError(t, p.Validate(context.Background()))
}

func TestService_Update(t *testing.T) {
	db := memory.New()
	svc := product.NewService(memory.NewProductRepo(db), db, &numerator.MockGenerator{}, memory.NewAuditLog(db))
	ctx := context.Background()

	p := product.NewProduct("P-1", "Item", "pcs")
	require.NoError(t, svc.Create(ctx, p))
	p.IsActive = false
	require.NoError(t, svc.Update(ctx, p))

	got, err := svc.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)
	assert.Equal(t, 2, got.Version)
}
