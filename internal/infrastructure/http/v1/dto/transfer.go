package dto

import (
	"time"

	"stockledger/internal/core/apperror"
	"stockledger/internal/domain/transfer"
)

// CreateTransferItemRequest is one requested line.
type CreateTransferItemRequest struct {
	ProductID string `json:"productId" binding:"required,uuid"`
	Quantity  int64  `json:"quantity" binding:"required,gt=0"`
}

// CreateTransferRequest is the request body for creating a transfer.
type CreateTransferRequest struct {
	FromWarehouseID string                      `json:"fromWarehouseId" binding:"required,uuid"`
	ToWarehouseID   string                      `json:"toWarehouseId" binding:"required,uuid"`
	TransferDate    *time.Time                  `json:"transferDate"`
	Items           []CreateTransferItemRequest `json:"items" binding:"required,min=1,dive"`
	Notes           *string                     `json:"notes" binding:"omitempty,max=1000"`
}

// ToRequest converts DTO to the transfer service request.
func (r *CreateTransferRequest) ToRequest() (transfer.CreateRequest, error) {
	from, err := ParseID("fromWarehouseId", r.FromWarehouseID)
	if err != nil {
		return transfer.CreateRequest{}, err
	}
	to, err := ParseID("toWarehouseId", r.ToWarehouseID)
	if err != nil {
		return transfer.CreateRequest{}, err
	}

	req := transfer.CreateRequest{
		FromWarehouseID: from,
		ToWarehouseID:   to,
		Notes:           r.Notes,
		Items:           make([]transfer.ItemRequest, 0, len(r.Items)),
	}
	if r.TransferDate != nil {
		req.TransferDate = r.TransferDate.UTC()
	}
	for _, item := range r.Items {
		productID, err := ParseID("productId", item.ProductID)
		if err != nil {
			return transfer.CreateRequest{}, err
		}
		req.Items = append(req.Items, transfer.ItemRequest{ProductID: productID, Quantity: item.Quantity})
	}
	return req, nil
}

// TransferListQuery filters transfer listings.
type TransferListQuery struct {
	Status      string     `form:"status" binding:"omitempty,oneof=pending in_transit partially_completed completed cancelled"`
	WarehouseID string     `form:"warehouseId" binding:"omitempty,uuid"`
	FromDate    *time.Time `form:"fromDate" time_format:"2006-01-02"`
	ToDate      *time.Time `form:"toDate" time_format:"2006-01-02"`
	Search      string     `form:"search"`
	PageQuery
}

// ToFilter converts the query to a transfer filter.
func (q TransferListQuery) ToFilter() (transfer.ListFilter, error) {
	whID, err := ParseOptionalID("warehouseId", q.WarehouseID)
	if err != nil {
		return transfer.ListFilter{}, err
	}
	if q.FromDate != nil && q.ToDate != nil && q.ToDate.Before(*q.FromDate) {
		return transfer.ListFilter{}, apperror.NewValidation("toDate must not precede fromDate").
			WithDetail("field", "toDate")
	}

	f := transfer.ListFilter{
		WarehouseID: whID,
		FromDate:    q.FromDate,
		ToDate:      q.ToDate,
		Search:      q.Search,
		Page:        q.ToPage(),
	}
	if q.Status != "" {
		status := transfer.Status(q.Status)
		f.Status = &status
	}
	return f, nil
}

// TransferItemResponse is one transfer line.
type TransferItemResponse struct {
	ID            string     `json:"id"`
	LineNo        int        `json:"lineNo"`
	ProductID     string     `json:"productId"`
	Quantity      int64      `json:"quantity"`
	TransferredAt *time.Time `json:"transferredAt,omitempty"`
}

// TransferResponse is a transfer with its items.
type TransferResponse struct {
	ID              string                 `json:"id"`
	TransferNumber  string                 `json:"transferNumber"`
	FromWarehouseID string                 `json:"fromWarehouseId"`
	ToWarehouseID   string                 `json:"toWarehouseId"`
	TransferDate    time.Time              `json:"transferDate"`
	Status          string                 `json:"status"`
	Notes           *string                `json:"notes,omitempty"`
	CreatedBy       *string                `json:"createdBy,omitempty"`
	CompletedItems  *int                   `json:"completedItems,omitempty"`
	TotalItems      *int                   `json:"totalItems,omitempty"`
	Items           []TransferItemResponse `json:"items,omitempty"`
	DispatchedAt    *time.Time             `json:"dispatchedAt,omitempty"`
	CompletedAt     *time.Time             `json:"completedAt,omitempty"`
	CancelledAt     *time.Time             `json:"cancelledAt,omitempty"`
	Version         int                    `json:"version"`
	CreatedAt       time.Time              `json:"createdAt"`
	UpdatedAt       time.Time              `json:"updatedAt"`
}

// FromTransfer creates response DTO from a transfer.
// Items are omitted in listings where the repository does not load them.
func FromTransfer(t *transfer.Transfer) TransferResponse {
	resp := TransferResponse{
		ID:              t.ID.String(),
		TransferNumber:  t.TransferNumber,
		FromWarehouseID: t.FromWarehouseID.String(),
		ToWarehouseID:   t.ToWarehouseID.String(),
		TransferDate:    t.TransferDate,
		Status:          string(t.Status),
		Notes:           t.Notes,
		CreatedBy:       t.CreatedBy,
		DispatchedAt:    t.DispatchedAt,
		CompletedAt:     t.CompletedAt,
		CancelledAt:     t.CancelledAt,
		Version:         t.Version,
		CreatedAt:       t.CreatedAt,
		UpdatedAt:       t.UpdatedAt,
	}
	if t.Items == nil {
		return resp
	}

	completed, total := t.CompletedItems(), len(t.Items)
	resp.CompletedItems = &completed
	resp.TotalItems = &total
	for _, item := range t.Items {
		resp.Items = append(resp.Items, TransferItemResponse{
			ID:            item.ID.String(),
			LineNo:        item.LineNo,
			ProductID:     item.ProductID.String(),
			Quantity:      item.Quantity,
			TransferredAt: item.TransferredAt,
		})
	}
	return resp
}
