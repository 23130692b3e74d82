// Package ledger is the stock ledger: per-warehouse, per-product quantities and
// the append-only movement log that explains every change to them.
//
// Quantities change only through Recorder. Every change appends exactly one
// StockMovement whose StockAfter equals the level's new quantity.
package ledger

import (
	"fmt"
	"slices"
	"time"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
)

// Key identifies one stock level.
type Key struct {
	WarehouseID id.ID `json:"warehouseId"`
	ProductID   id.ID `json:"productId"`
}

// NewKey builds a Key.
func NewKey(warehouseID, productID id.ID) Key {
	return Key{WarehouseID: warehouseID, ProductID: productID}
}

// Compare orders keys by warehouse, then product.
// Every multi-key lock is taken in this order.
func (k Key) Compare(o Key) int {
	if c := id.Compare(k.WarehouseID, o.WarehouseID); c != 0 {
		return c
	}
	return id.Compare(k.ProductID, o.ProductID)
}

func (k Key) String() string {
	return k.WarehouseID.String() + "/" + k.ProductID.String()
}

// SortKeys returns the distinct keys in canonical lock order.
func SortKeys(keys []Key) []Key {
	out := slices.Clone(keys)
	slices.SortFunc(out, Key.Compare)
	return slices.Compact(out)
}

// MovementType classifies a stock movement.
type MovementType string

const (
	MovementSale        MovementType = "sale"
	MovementReturn      MovementType = "return"
	MovementPurchase    MovementType = "purchase"
	MovementTransferIn  MovementType = "transfer_in"
	MovementTransferOut MovementType = "transfer_out"
	MovementAdjustment  MovementType = "adjustment"
)

// MovementTypes lists every known movement type.
var MovementTypes = []MovementType{
	MovementSale, MovementReturn, MovementPurchase,
	MovementTransferIn, MovementTransferOut, MovementAdjustment,
}

// Valid reports whether t is a known movement type.
func (t MovementType) Valid() bool {
	return slices.Contains(MovementTypes, t)
}

// ReferenceType returns the only reference kind a movement of this type may carry.
func (t MovementType) ReferenceType() ReferenceType {
	switch t {
	case MovementSale:
		return RefSale
	case MovementReturn:
		return RefReturn
	case MovementPurchase:
		return RefPurchase
	case MovementTransferIn, MovementTransferOut:
		return RefTransfer
	case MovementAdjustment:
		return RefAdjustment
	}
	return ""
}

// AllowsDelta checks the sign rule for the movement type.
func (t MovementType) AllowsDelta(delta int64) bool {
	switch t {
	case MovementSale, MovementTransferOut:
		return delta < 0
	case MovementReturn, MovementPurchase, MovementTransferIn:
		return delta > 0
	case MovementAdjustment:
		return delta != 0
	}
	return false
}

// StockLevel is the current quantity of one product in one warehouse.
type StockLevel struct {
	WarehouseID    id.ID      `db:"warehouse_id" json:"warehouseId"`
	ProductID      id.ID      `db:"product_id" json:"productId"`
	Quantity       int64      `db:"quantity" json:"quantity"`
	MinStockLevel  int64      `db:"min_stock_level" json:"minStockLevel"`
	LastMovementAt *time.Time `db:"last_movement_at" json:"lastMovementAt,omitempty"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updatedAt"`
}

// ZeroLevel is the implicit level of a key that has never moved.
func ZeroLevel(key Key) StockLevel {
	return StockLevel{WarehouseID: key.WarehouseID, ProductID: key.ProductID}
}

// Key returns the level's key.
func (l StockLevel) Key() Key {
	return Key{WarehouseID: l.WarehouseID, ProductID: l.ProductID}
}

// IsLow reports whether the level is at or below a positive threshold.
func (l StockLevel) IsLow() bool {
	return l.MinStockLevel > 0 && l.Quantity <= l.MinStockLevel
}

// StockMovement is one immutable entry of the movement log.
type StockMovement struct {
	ID           id.ID        `json:"id"`
	WarehouseID  id.ID        `json:"warehouseId"`
	ProductID    id.ID        `json:"productId"`
	MovementType MovementType `json:"movementType"`
	Quantity     int64        `json:"quantity"`
	StockAfter   int64        `json:"stockAfter"`
	Reference    Reference    `json:"reference"`
	Notes        string       `json:"notes,omitempty"`
	MovementDate time.Time    `json:"movementDate"`
	CreatedBy    string       `json:"createdBy,omitempty"`
	CreatedAt    time.Time    `json:"createdAt"`
}

// Key returns the movement's level key.
func (m StockMovement) Key() Key {
	return Key{WarehouseID: m.WarehouseID, ProductID: m.ProductID}
}

// Entry is a request to change one level by Delta.
type Entry struct {
	WarehouseID id.ID
	ProductID   id.ID
	Type        MovementType
	Delta       int64
	Reference   Reference
	Notes       string

	// Date is the business date of the movement; zero means now.
	Date time.Time
}

// Key returns the entry's level key.
func (e Entry) Key() Key {
	return Key{WarehouseID: e.WarehouseID, ProductID: e.ProductID}
}

// Validate checks type, sign and reference compatibility.
func (e Entry) Validate() error {
	if id.IsNil(e.WarehouseID) {
		return apperror.NewValidation("warehouse is required").WithDetail("field", "warehouseId")
	}
	if id.IsNil(e.ProductID) {
		return apperror.NewValidation("product is required").WithDetail("field", "productId")
	}
	if !e.Type.Valid() {
		return apperror.NewValidation("unknown movement type").
			WithDetail("field", "movementType").
			WithDetail("value", string(e.Type))
	}
	if e.Delta == 0 {
		return apperror.NewValidation("quantity must not be zero").WithDetail("field", "quantity")
	}
	if !e.Type.AllowsDelta(e.Delta) {
		return apperror.NewValidation(fmt.Sprintf("quantity sign does not match movement type %s", e.Type)).
			WithDetail("field", "quantity").
			WithDetail("value", e.Delta)
	}
	if e.Reference.IsZero() {
		return apperror.NewValidation("reference is required").WithDetail("field", "reference")
	}
	if e.Reference.Type() != e.Type.ReferenceType() {
		return apperror.NewValidation(fmt.Sprintf("movement type %s cannot reference %s", e.Type, e.Reference.Type())).
			WithDetail("field", "reference").
			WithDetail("value", string(e.Reference.Type()))
	}
	return nil
}

// Reconciliation compares a level against the sum of its movements.
type Reconciliation struct {
	Key
	Quantity      int64 `json:"quantity"`
	MovementSum   int64 `json:"movementSum"`
	MovementCount int64 `json:"movementCount"`
	Balanced      bool  `json:"balanced"`
}
