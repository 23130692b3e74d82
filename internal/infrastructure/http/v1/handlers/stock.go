package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"stockledger/internal/core/id"
	"stockledger/internal/domain/adjustment"
	"stockledger/internal/domain/consumption"
	"stockledger/internal/domain/ledger"
	"stockledger/internal/infrastructure/http/v1/dto"
)

// StockHandler serves stock levels, the movement journal and manual adjustments.
type StockHandler struct {
	*BaseHandler
	ledger      *ledger.Service
	adjustments *adjustment.Service
}

// NewStockHandler creates a new stock handler.
func NewStockHandler(base *BaseHandler, ledgerService *ledger.Service, adjustments *adjustment.Service) *StockHandler {
	return &StockHandler{
		BaseHandler: base,
		ledger:      ledgerService,
		adjustments: adjustments,
	}
}

// Quantity handles GET /stock/quantity. Unknown pairs report zero.
func (h *StockHandler) Quantity(c *gin.Context) {
	var q dto.KeyQuery
	if !h.BindQuery(c, &q) {
		return
	}
	key, err := q.ToKey()
	if err != nil {
		h.Error(c, err)
		return
	}

	qty, err := h.ledger.GetQuantity(c.Request.Context(), key.WarehouseID, key.ProductID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.QuantityResponse{
		WarehouseID: q.WarehouseID,
		ProductID:   q.ProductID,
		Quantity:    qty,
	})
}

// Levels handles GET /stock/levels.
func (h *StockHandler) Levels(c *gin.Context) {
	var q dto.StockLevelQuery
	if !h.BindQuery(c, &q) {
		return
	}
	filter, err := q.ToFilter()
	if err != nil {
		h.Error(c, err)
		return
	}

	result, err := h.ledger.ListLevels(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewListResponse(result, dto.FromStockLevel))
}

// LowStock handles GET /stock/low.
func (h *StockHandler) LowStock(c *gin.Context) {
	var q dto.LowStockQuery
	if !h.BindQuery(c, &q) {
		return
	}
	whID, err := dto.ParseOptionalID("warehouseId", q.WarehouseID)
	if err != nil {
		h.Error(c, err)
		return
	}

	result, err := h.ledger.ListLowStock(c.Request.Context(), whID, q.ToPage())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewListResponse(result, dto.FromStockLevel))
}

// SetMinLevel handles PUT /stock/levels/:warehouseId/:productId/min-level.
func (h *StockHandler) SetMinLevel(c *gin.Context) {
	whID, ok := h.PathID(c, "warehouseId")
	if !ok {
		return
	}
	productID, ok := h.PathID(c, "productId")
	if !ok {
		return
	}
	var req dto.SetMinStockLevelRequest
	if !h.BindJSON(c, &req) {
		return
	}

	level, err := h.ledger.SetMinStockLevel(c.Request.Context(), ledger.NewKey(whID, productID), *req.MinStockLevel)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromStockLevel(level))
}

// Movements handles GET /stock/movements.
func (h *StockHandler) Movements(c *gin.Context) {
	var q dto.MovementQuery
	if !h.BindQuery(c, &q) {
		return
	}
	filter, err := q.ToFilter()
	if err != nil {
		h.Error(c, err)
		return
	}

	page, err := h.ledger.ListMovements(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromMovementPage(page))
}

// Reconcile handles GET /stock/reconcile.
func (h *StockHandler) Reconcile(c *gin.Context) {
	var q dto.KeyQuery
	if !h.BindQuery(c, &q) {
		return
	}
	key, err := q.ToKey()
	if err != nil {
		h.Error(c, err)
		return
	}

	rec, err := h.ledger.Reconcile(c.Request.Context(), key)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromReconciliation(rec))
}

// Adjust handles POST /stock/adjustments.
func (h *StockHandler) Adjust(c *gin.Context) {
	var req dto.AdjustmentRequest
	if !h.BindJSON(c, &req) {
		return
	}
	adjReq, err := req.ToRequest()
	if err != nil {
		h.Error(c, err)
		return
	}

	result, err := h.adjustments.Adjust(c.Request.Context(), adjReq)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, dto.FromAdjustment(result))
}

// EventHandler records movements for sales, returns and purchases
// confirmed by upstream systems.
type EventHandler struct {
	*BaseHandler
	hooks *consumption.Hooks
}

type eventHook func(ctx context.Context, docID id.ID, lines []consumption.Line) ([]ledger.StockMovement, error)

// NewEventHandler creates a business event handler.
func NewEventHandler(base *BaseHandler, hooks *consumption.Hooks) *EventHandler {
	return &EventHandler{BaseHandler: base, hooks: hooks}
}

// Sale handles POST /stock/events/sales.
func (h *EventHandler) Sale(c *gin.Context) {
	h.apply(c, h.hooks.SaleConfirmed)
}

// Return handles POST /stock/events/returns.
func (h *EventHandler) Return(c *gin.Context) {
	h.apply(c, h.hooks.ReturnAccepted)
}

// Purchase handles POST /stock/events/purchases.
func (h *EventHandler) Purchase(c *gin.Context) {
	h.apply(c, h.hooks.PurchaseReceived)
}

func (h *EventHandler) apply(c *gin.Context, hook eventHook) {
	var req dto.BusinessEventRequest
	if !h.BindJSON(c, &req) {
		return
	}
	docID, lines, err := req.ToLines()
	if err != nil {
		h.Error(c, err)
		return
	}

	movements, err := hook(c.Request.Context(), docID, lines)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, gin.H{"items": dto.FromMovements(movements)})
}
