package dto

import (
	"time"

	"stockledger/internal/domain/catalogs/product"
)

// CreateProductRequest is the request body for creating a product.
type CreateProductRequest struct {
	Code    string  `json:"code" binding:"max=50"`
	Name    string  `json:"name" binding:"required,max=250"`
	Unit    string  `json:"unit" binding:"max=20"`
	Barcode *string `json:"barcode" binding:"omitempty,max=64"`
}

// ToEntity converts DTO to domain entity.
func (r *CreateProductRequest) ToEntity() *product.Product {
	p := product.NewProduct(r.Code, r.Name, r.Unit)
	p.Barcode = r.Barcode
	return p
}

// UpdateProductRequest is the request body for updating a product.
type UpdateProductRequest struct {
	Code     string  `json:"code" binding:"required,max=50"`
	Name     string  `json:"name" binding:"required,max=250"`
	Unit     string  `json:"unit" binding:"required,max=20"`
	Barcode  *string `json:"barcode,omitempty" binding:"omitempty,max=64"`
	IsActive bool    `json:"isActive"`
	Version  int     `json:"version" binding:"required,min=1"`
}

// ApplyTo applies update DTO to existing entity.
func (r *UpdateProductRequest) ApplyTo(p *product.Product) {
	p.Code = r.Code
	p.Name = r.Name
	p.Unit = r.Unit
	p.Barcode = r.Barcode
	p.IsActive = r.IsActive
	p.Version = r.Version
}

// ProductResponse is the response body for a product.
type ProductResponse struct {
	ID        string    `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Unit      string    `json:"unit"`
	Barcode   *string   `json:"barcode,omitempty"`
	IsActive  bool      `json:"isActive"`
	Version   int       `json:"version"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// FromProduct creates response DTO from domain entity.
func FromProduct(p *product.Product) ProductResponse {
	return ProductResponse{
		ID:        p.ID.String(),
		Code:      p.Code,
		Name:      p.Name,
		Unit:      p.Unit,
		Barcode:   p.Barcode,
		IsActive:  p.IsActive,
		Version:   p.Version,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

// CatalogListQuery filters catalog listings.
type CatalogListQuery struct {
	Search     string `form:"search"`
	ActiveOnly bool   `form:"activeOnly"`
	PageQuery
}
