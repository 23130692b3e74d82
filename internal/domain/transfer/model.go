// Package transfer implements stock transfers between warehouses.
package transfer

import (
	"fmt"
	"time"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
)

// EntityName is used in errors and logs.
const EntityName = "transfer"

// Status is the transfer lifecycle state.
type Status string

const (
	StatusPending            Status = "pending"
	StatusInTransit          Status = "in_transit"
	StatusPartiallyCompleted Status = "partially_completed"
	StatusCompleted          Status = "completed"
	StatusCancelled          Status = "cancelled"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInTransit, StatusPartiallyCompleted, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is possible.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

func (s Status) CanDispatch() bool {
	return s == StatusPending
}

func (s Status) CanComplete() bool {
	return s == StatusPending || s == StatusInTransit || s == StatusPartiallyCompleted
}

// CanCancel is false once any item has moved stock.
func (s Status) CanCancel() bool {
	return s == StatusPending || s == StatusInTransit
}

// Transfer moves a list of products from one warehouse to another.
type Transfer struct {
	ID              id.ID      `db:"id" json:"id"`
	TransferNumber  string     `db:"transfer_number" json:"transferNumber"`
	FromWarehouseID id.ID      `db:"from_warehouse_id" json:"fromWarehouseId"`
	ToWarehouseID   id.ID      `db:"to_warehouse_id" json:"toWarehouseId"`
	TransferDate    time.Time  `db:"transfer_date" json:"transferDate"`
	Status          Status     `db:"status" json:"status"`
	Notes           *string    `db:"notes" json:"notes,omitempty"`
	CreatedBy       *string    `db:"created_by" json:"createdBy,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updatedAt"`
	DispatchedAt    *time.Time `db:"dispatched_at" json:"dispatchedAt,omitempty"`
	CompletedAt     *time.Time `db:"completed_at" json:"completedAt,omitempty"`
	CancelledAt     *time.Time `db:"cancelled_at" json:"cancelledAt,omitempty"`
	Version         int        `db:"version" json:"version"`

	Items []Item `db:"-" json:"items"`
}

// Item is one product line of a transfer.
// Quantity is the planned amount and never changes after creation.
type Item struct {
	ID            id.ID      `db:"id" json:"id"`
	TransferID    id.ID      `db:"transfer_id" json:"-"`
	LineNo        int        `db:"line_no" json:"lineNo"`
	ProductID     id.ID      `db:"product_id" json:"productId"`
	Quantity      int64      `db:"quantity" json:"quantity"`
	TransferredAt *time.Time `db:"transferred_at" json:"transferredAt,omitempty"`
}

// IsTransferred reports whether the item's movements were recorded.
func (i Item) IsTransferred() bool {
	return i.TransferredAt != nil
}

// Validate checks the route and the item lines.
func (t *Transfer) Validate() error {
	if id.IsNil(t.FromWarehouseID) {
		return apperror.NewValidation("source warehouse is required").WithDetail("field", "fromWarehouseId")
	}
	if id.IsNil(t.ToWarehouseID) {
		return apperror.NewValidation("destination warehouse is required").WithDetail("field", "toWarehouseId")
	}
	if t.FromWarehouseID == t.ToWarehouseID {
		return apperror.NewInvalidTransferRoute(t.FromWarehouseID.String(), t.ToWarehouseID.String())
	}
	if len(t.Items) == 0 {
		return apperror.NewValidation("transfer must have at least one item").WithDetail("field", "items")
	}
	for i, item := range t.Items {
		if id.IsNil(item.ProductID) {
			return apperror.NewValidation(fmt.Sprintf("item %d: product is required", i+1)).
				WithDetail("field", fmt.Sprintf("items[%d].productId", i))
		}
		if item.Quantity <= 0 {
			return apperror.NewValidation(fmt.Sprintf("item %d: quantity must be positive", i+1)).
				WithDetail("field", fmt.Sprintf("items[%d].quantity", i)).
				WithDetail("value", item.Quantity)
		}
	}
	return nil
}

// CompletedItems counts items whose movements were recorded.
func (t *Transfer) CompletedItems() int {
	n := 0
	for _, item := range t.Items {
		if item.IsTransferred() {
			n++
		}
	}
	return n
}

// Dispatch moves a pending transfer in transit.
func (t *Transfer) Dispatch(now time.Time) error {
	if !t.Status.CanDispatch() {
		return apperror.NewInvalidState(EntityName, t.ID.String(), string(t.Status), "dispatch")
	}
	t.Status = StatusInTransit
	t.DispatchedAt = &now
	t.UpdatedAt = now
	return nil
}

// Cancel terminates a transfer that has not moved any stock.
func (t *Transfer) Cancel(now time.Time) error {
	if !t.Status.CanCancel() {
		return apperror.NewInvalidState(EntityName, t.ID.String(), string(t.Status), "cancel")
	}
	t.Status = StatusCancelled
	t.CancelledAt = &now
	t.UpdatedAt = now
	return nil
}

// MarkItemTransferred stamps the item and advances the status.
func (t *Transfer) MarkItemTransferred(lineNo int, now time.Time) error {
	if !t.Status.CanComplete() {
		return apperror.NewInvalidState(EntityName, t.ID.String(), string(t.Status), "complete")
	}
	for i := range t.Items {
		if t.Items[i].LineNo != lineNo {
			continue
		}
		t.Items[i].TransferredAt = &now
		t.UpdatedAt = now
		if t.CompletedItems() == len(t.Items) {
			t.Status = StatusCompleted
			t.CompletedAt = &now
		} else {
			t.Status = StatusPartiallyCompleted
		}
		return nil
	}
	return apperror.NewNotFound("transfer item", lineNo)
}
