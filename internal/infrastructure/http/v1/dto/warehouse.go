package dto

import (
	"time"

	"stockledger/internal/domain/catalogs/warehouse"
)

// --- Request DTOs ---

// CreateWarehouseRequest is the request body for creating a warehouse.
// An empty code is generated by the numerator.
type CreateWarehouseRequest struct {
	Code      string  `json:"code" binding:"max=50"`
	Name      string  `json:"name" binding:"required,max=150"`
	Address   *string `json:"address"`
	IsDefault bool    `json:"isDefault"`
}

// ToEntity converts DTO to domain entity.
func (r *CreateWarehouseRequest) ToEntity() *warehouse.Warehouse {
	wh := warehouse.NewWarehouse(r.Code, r.Name)
	wh.Address = r.Address
	wh.IsDefault = r.IsDefault
	return wh
}

// UpdateWarehouseRequest is the request body for updating a warehouse.
type UpdateWarehouseRequest struct {
	Code      string  `json:"code" binding:"required,max=50"`
	Name      string  `json:"name" binding:"required,max=150"`
	Address   *string `json:"address,omitempty"`
	IsDefault bool    `json:"isDefault"`
	Version   int     `json:"version" binding:"required,min=1"`
}

// ApplyTo applies update DTO to existing entity.
func (r *UpdateWarehouseRequest) ApplyTo(wh *warehouse.Warehouse) {
	wh.Code = r.Code
	wh.Name = r.Name
	wh.Address = r.Address
	wh.IsDefault = r.IsDefault
	wh.Version = r.Version
}

// --- Response DTOs ---

// WarehouseResponse is the response body for a warehouse.
type WarehouseResponse struct {
	ID        string    `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Address   *string   `json:"address,omitempty"`
	IsActive  bool      `json:"isActive"`
	IsDefault bool      `json:"isDefault"`
	Version   int       `json:"version"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// FromWarehouse creates response DTO from domain entity.
func FromWarehouse(wh *warehouse.Warehouse) WarehouseResponse {
	return WarehouseResponse{
		ID:        wh.ID.String(),
		Code:      wh.Code,
		Name:      wh.Name,
		Address:   wh.Address,
		IsActive:  wh.IsActive,
		IsDefault: wh.IsDefault,
		Version:   wh.Version,
		CreatedAt: wh.CreatedAt,
		UpdatedAt: wh.UpdatedAt,
	}
}
