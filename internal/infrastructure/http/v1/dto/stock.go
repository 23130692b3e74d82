package dto

import (
	"time"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/domain/adjustment"
	"stockledger/internal/domain/consumption"
	"stockledger/internal/domain/ledger"
)

// --- Levels ---

// StockLevelQuery filters stock level listings.
type StockLevelQuery struct {
	WarehouseID string   `form:"warehouseId" binding:"omitempty,uuid"`
	ProductIDs  []string `form:"productId" binding:"omitempty,dive,uuid"`
	ExcludeZero bool     `form:"excludeZero"`
	LowOnly     bool     `form:"lowOnly"`
	PageQuery
}

// ToFilter converts the query to a ledger filter.
func (q StockLevelQuery) ToFilter() (ledger.LevelFilter, error) {
	whID, err := ParseOptionalID("warehouseId", q.WarehouseID)
	if err != nil {
		return ledger.LevelFilter{}, err
	}
	productIDs := make([]id.ID, 0, len(q.ProductIDs))
	for _, raw := range q.ProductIDs {
		pid, err := ParseID("productId", raw)
		if err != nil {
			return ledger.LevelFilter{}, err
		}
		productIDs = append(productIDs, pid)
	}
	return ledger.LevelFilter{
		WarehouseID: whID,
		ProductIDs:  productIDs,
		ExcludeZero: q.ExcludeZero,
		LowOnly:     q.LowOnly,
		Page:        q.ToPage(),
	}, nil
}

// LowStockQuery filters the low-stock report.
type LowStockQuery struct {
	WarehouseID string `form:"warehouseId" binding:"omitempty,uuid"`
	PageQuery
}

// StockLevelResponse is a single stock level.
type StockLevelResponse struct {
	WarehouseID    string     `json:"warehouseId"`
	ProductID      string     `json:"productId"`
	Quantity       int64      `json:"quantity"`
	MinStockLevel  int64      `json:"minStockLevel"`
	IsLow          bool       `json:"isLow"`
	LastMovementAt *time.Time `json:"lastMovementAt,omitempty"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

// FromStockLevel creates response DTO from a ledger level.
func FromStockLevel(l ledger.StockLevel) StockLevelResponse {
	return StockLevelResponse{
		WarehouseID:    l.WarehouseID.String(),
		ProductID:      l.ProductID.String(),
		Quantity:       l.Quantity,
		MinStockLevel:  l.MinStockLevel,
		IsLow:          l.IsLow(),
		LastMovementAt: l.LastMovementAt,
		UpdatedAt:      l.UpdatedAt,
	}
}

// QuantityResponse is the current quantity for one key.
type QuantityResponse struct {
	WarehouseID string `json:"warehouseId"`
	ProductID   string `json:"productId"`
	Quantity    int64  `json:"quantity"`
}

// SetMinStockLevelRequest sets the low-stock threshold.
type SetMinStockLevelRequest struct {
	MinStockLevel *int64 `json:"minStockLevel" binding:"required,min=0"`
}

// ReconciliationResponse compares the cached level with the movement journal.
type ReconciliationResponse struct {
	WarehouseID   string `json:"warehouseId"`
	ProductID     string `json:"productId"`
	Quantity      int64  `json:"quantity"`
	MovementSum   int64  `json:"movementSum"`
	MovementCount int64  `json:"movementCount"`
	Balanced      bool   `json:"balanced"`
}

// FromReconciliation creates response DTO from a reconciliation.
func FromReconciliation(r ledger.Reconciliation) ReconciliationResponse {
	return ReconciliationResponse{
		WarehouseID:   r.WarehouseID.String(),
		ProductID:     r.ProductID.String(),
		Quantity:      r.Quantity,
		MovementSum:   r.MovementSum,
		MovementCount: r.MovementCount,
		Balanced:      r.Balanced,
	}
}

// --- Movements ---

// MovementQuery filters the movement journal.
type MovementQuery struct {
	WarehouseID   string     `form:"warehouseId" binding:"omitempty,uuid"`
	ProductID     string     `form:"productId" binding:"omitempty,uuid"`
	Types         []string   `form:"type" binding:"omitempty,dive,movement_type"`
	ReferenceType string     `form:"referenceType" binding:"required_with=ReferenceID"`
	ReferenceID   string     `form:"referenceId" binding:"omitempty,uuid"`
	FromDate      *time.Time `form:"fromDate" time_format:"2006-01-02T15:04:05Z07:00"`
	ToDate        *time.Time `form:"toDate" time_format:"2006-01-02T15:04:05Z07:00"`
	Cursor        string     `form:"cursor"`
	PageQuery
}

// ToFilter converts the query to a ledger filter.
func (q MovementQuery) ToFilter() (ledger.MovementFilter, error) {
	var (
		f   ledger.MovementFilter
		err error
	)
	if f.WarehouseID, err = ParseOptionalID("warehouseId", q.WarehouseID); err != nil {
		return f, err
	}
	if f.ProductID, err = ParseOptionalID("productId", q.ProductID); err != nil {
		return f, err
	}
	for _, t := range q.Types {
		f.Types = append(f.Types, ledger.MovementType(t))
	}
	if q.ReferenceType != "" {
		refID, err := ParseID("referenceId", q.ReferenceID)
		if err != nil {
			return f, err
		}
		ref, err := ledger.ParseReference(q.ReferenceType, refID)
		if err != nil {
			return f, err
		}
		f.Reference = &ref
	}
	if q.FromDate != nil && q.ToDate != nil && q.ToDate.Before(*q.FromDate) {
		return f, apperror.NewValidation("toDate must not precede fromDate").
			WithDetail("field", "toDate")
	}
	f.FromDate = q.FromDate
	f.ToDate = q.ToDate
	f.Cursor = q.Cursor
	f.Page = q.ToPage()
	return f, nil
}

// ReferenceResponse identifies the business document behind a movement.
type ReferenceResponse struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// MovementResponse is one journal entry.
type MovementResponse struct {
	ID           string            `json:"id"`
	WarehouseID  string            `json:"warehouseId"`
	ProductID    string            `json:"productId"`
	MovementType string            `json:"movementType"`
	Quantity     int64             `json:"quantity"`
	StockAfter   int64             `json:"stockAfter"`
	Reference    ReferenceResponse `json:"reference"`
	Notes        string            `json:"notes,omitempty"`
	MovementDate time.Time         `json:"movementDate"`
	CreatedBy    string            `json:"createdBy,omitempty"`
	CreatedAt    time.Time         `json:"createdAt"`
}

// FromMovement creates response DTO from a ledger movement.
func FromMovement(m ledger.StockMovement) MovementResponse {
	return MovementResponse{
		ID:           m.ID.String(),
		WarehouseID:  m.WarehouseID.String(),
		ProductID:    m.ProductID.String(),
		MovementType: string(m.MovementType),
		Quantity:     m.Quantity,
		StockAfter:   m.StockAfter,
		Reference:    ReferenceResponse{Type: string(m.Reference.Type()), ID: m.Reference.ID().String()},
		Notes:        m.Notes,
		MovementDate: m.MovementDate,
		CreatedBy:    m.CreatedBy,
		CreatedAt:    m.CreatedAt,
	}
}

// FromMovements maps a slice of movements.
func FromMovements(ms []ledger.StockMovement) []MovementResponse {
	out := make([]MovementResponse, len(ms))
	for i, m := range ms {
		out[i] = FromMovement(m)
	}
	return out
}

// MovementPageResponse is a cursor-paginated journal page.
type MovementPageResponse struct {
	Items      []MovementResponse `json:"items"`
	Limit      int                `json:"limit"`
	Offset     int                `json:"offset"`
	NextCursor string             `json:"nextCursor,omitempty"`
}

// FromMovementPage creates response DTO from a ledger page.
func FromMovementPage(p ledger.MovementPage) MovementPageResponse {
	return MovementPageResponse{
		Items:      FromMovements(p.Items),
		Limit:      p.Limit,
		Offset:     p.Offset,
		NextCursor: p.NextCursor,
	}
}

// --- Adjustments ---

// AdjustmentRequest is a manual stock correction.
type AdjustmentRequest struct {
	WarehouseID string `json:"warehouseId" binding:"required,uuid"`
	ProductID   string `json:"productId" binding:"required,uuid"`
	Quantity    *int64 `json:"quantity" binding:"required,min=0"`
	Type        string `json:"type" binding:"required,adjustment_type"`
	Notes       string `json:"notes" binding:"max=500"`
}

// ToRequest converts DTO to the adjustment request.
func (r *AdjustmentRequest) ToRequest() (adjustment.Request, error) {
	whID, err := ParseID("warehouseId", r.WarehouseID)
	if err != nil {
		return adjustment.Request{}, err
	}
	productID, err := ParseID("productId", r.ProductID)
	if err != nil {
		return adjustment.Request{}, err
	}
	return adjustment.Request{
		WarehouseID: whID,
		ProductID:   productID,
		Quantity:    *r.Quantity,
		Type:        adjustment.Type(r.Type),
		Notes:       r.Notes,
	}, nil
}

// AdjustmentResponse reports the level after an adjustment.
type AdjustmentResponse struct {
	AdjustmentID string            `json:"adjustmentId"`
	Quantity     int64             `json:"quantity"`
	Movement     *MovementResponse `json:"movement,omitempty"`
}

// FromAdjustment creates response DTO from an adjustment result.
func FromAdjustment(r adjustment.Result) AdjustmentResponse {
	resp := AdjustmentResponse{AdjustmentID: r.AdjustmentID.String(), Quantity: r.Quantity}
	if r.Movement != nil {
		m := FromMovement(*r.Movement)
		resp.Movement = &m
	}
	return resp
}

// --- Business events ---

// EventLineRequest is one line of a sale, return or purchase.
type EventLineRequest struct {
	WarehouseID string `json:"warehouseId" binding:"required,uuid"`
	ProductID   string `json:"productId" binding:"required,uuid"`
	Quantity    int64  `json:"quantity" binding:"required,gt=0"`
}

// BusinessEventRequest reports a confirmed sale, accepted return or received purchase.
type BusinessEventRequest struct {
	DocumentID string             `json:"documentId" binding:"required,uuid"`
	Lines      []EventLineRequest `json:"lines" binding:"required,min=1,dive"`
}

// ToLines converts DTO to consumption lines.
func (r *BusinessEventRequest) ToLines() (id.ID, []consumption.Line, error) {
	docID, err := ParseID("documentId", r.DocumentID)
	if err != nil {
		return id.Nil(), nil, err
	}
	lines := make([]consumption.Line, 0, len(r.Lines))
	for _, l := range r.Lines {
		whID, err := ParseID("warehouseId", l.WarehouseID)
		if err != nil {
			return id.Nil(), nil, err
		}
		productID, err := ParseID("productId", l.ProductID)
		if err != nil {
			return id.Nil(), nil, err
		}
		lines = append(lines, consumption.Line{WarehouseID: whID, ProductID: productID, Quantity: l.Quantity})
	}
	return docID, lines, nil
}

// KeyQuery addresses one (warehouse, product) pair.
type KeyQuery struct {
	WarehouseID string `form:"warehouseId" binding:"required,uuid"`
	ProductID   string `form:"productId" binding:"required,uuid"`
}

// ToKey converts the query to a ledger key.
func (q KeyQuery) ToKey() (ledger.Key, error) {
	whID, err := ParseID("warehouseId", q.WarehouseID)
	if err != nil {
		return ledger.Key{}, err
	}
	productID, err := ParseID("productId", q.ProductID)
	if err != nil {
		return ledger.Key{}, err
	}
	return ledger.NewKey(whID, productID), nil
}
