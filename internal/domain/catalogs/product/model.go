// Package product provides the Product catalog.
// Products are the goods whose quantities the ledger tracks per warehouse.
package product

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
)

// EntityName is used in errors and logs.
const EntityName = "product"

// DefaultUnit is assigned when no unit of measure is given.
const DefaultUnit = "pcs"

// Product represents a stock-keeping item.
type Product struct {
	ID   id.ID  `db:"id" json:"id"`
	Code string `db:"code" json:"code"`
	Name string `db:"name" json:"name"`

	// Unit of measure (pcs, kg, box)
	Unit string `db:"unit" json:"unit"`

	// Barcode is the item barcode (EAN-13, etc.)
	Barcode *string `db:"barcode" json:"barcode,omitempty"`

	IsActive bool `db:"is_active" json:"isActive"`

	Version   int       `db:"version" json:"version"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// NewProduct creates a new active Product.
func NewProduct(code, name, unit string) *Product {
	now := time.Now().UTC()
	unit = strings.TrimSpace(unit)
	if unit == "" {
		unit = DefaultUnit
	}
	return &Product{
		ID:        id.New(),
		Code:      strings.TrimSpace(code),
		Name:      strings.TrimSpace(name),
		Unit:      unit,
		IsActive:  true,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Validate checks field constraints.
func (p *Product) Validate(ctx context.Context) error {
	if strings.TrimSpace(p.Name) == "" {
		return apperror.NewValidation("name is required").WithDetail("field", "name")
	}
	if utf8.RuneCountInString(p.Name) > 250 {
		return apperror.NewValidation("name is too long").
			WithDetail("field", "name").
			WithDetail("max", 250)
	}
	if utf8.RuneCountInString(p.Code) > 50 {
		return apperror.NewValidation("code is too long").
			WithDetail("field", "code").
			WithDetail("max", 50)
	}
	if p.Unit == "" {
		return apperror.NewValidation("unit is required").WithDetail("field", "unit")
	}
	if p.Barcode != nil && *p.Barcode != "" {
		for _, r := range *p.Barcode {
			if r < '0' || r > '9' {
				return apperror.NewValidation("barcode must contain only digits").
					WithDetail("field", "barcode").
					WithDetail("value", *p.Barcode)
			}
		}
	}
	return nil
}
