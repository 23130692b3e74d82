// Package warehouse provides the Warehouse catalog.
// Warehouses are the physical or logical locations stock levels are kept for.
package warehouse

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
)

// EntityName is used in errors and logs.
const EntityName = "warehouse"

// Warehouse represents a storage location for goods.
// Warehouses are never hard-deleted; deactivation keeps stock history readable.
type Warehouse struct {
	ID   id.ID  `db:"id" json:"id"`
	Code string `db:"code" json:"code"`
	Name string `db:"name" json:"name"`

	// Address is the physical address
	Address *string `db:"address" json:"address,omitempty"`

	// IsActive indicates if warehouse accepts new movements
	IsActive bool `db:"is_active" json:"isActive"`

	// IsDefault marks the single default warehouse
	IsDefault bool `db:"is_default" json:"isDefault"`

	Version   int       `db:"version" json:"version"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// NewWarehouse creates a new active Warehouse.
func NewWarehouse(code, name string) *Warehouse {
	now := time.Now().UTC()
	return &Warehouse{
		ID:        id.New(),
		Code:      strings.TrimSpace(code),
		Name:      strings.TrimSpace(name),
		IsActive:  true,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Validate checks field constraints.
func (w *Warehouse) Validate(ctx context.Context) error {
	if strings.TrimSpace(w.Name) == "" {
		return apperror.NewValidation("name is required").WithDetail("field", "name")
	}
	if utf8.RuneCountInString(w.Name) > 150 {
		return apperror.NewValidation("name is too long").
			WithDetail("field", "name").
			WithDetail("max", 150)
	}
	if utf8.RuneCountInString(w.Code) > 50 {
		return apperror.NewValidation("code is too long").
			WithDetail("field", "code").
			WithDetail("max", 50)
	}
	return nil
}

// CanHoldStock returns true if warehouse accepts stock movements.
func (w *Warehouse) CanHoldStock() bool {
	return w.IsActive
}
