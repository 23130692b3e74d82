package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"stockledger/internal/core/id"
	"stockledger/internal/domain/transfer"
	"stockledger/internal/infrastructure/http/v1/dto"
)

// TransferHandler serves stock transfers between warehouses.
type TransferHandler struct {
	*BaseHandler
	service *transfer.Service
}

// NewTransferHandler creates a transfer handler.
func NewTransferHandler(base *BaseHandler, service *transfer.Service) *TransferHandler {
	return &TransferHandler{BaseHandler: base, service: service}
}

// Create handles POST /transfers.
func (h *TransferHandler) Create(c *gin.Context) {
	var req dto.CreateTransferRequest
	if !h.BindJSON(c, &req) {
		return
	}
	createReq, err := req.ToRequest()
	if err != nil {
		h.Error(c, err)
		return
	}

	t, err := h.service.Create(c.Request.Context(), createReq)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, dto.FromTransfer(t))
}

// List handles GET /transfers.
func (h *TransferHandler) List(c *gin.Context) {
	var q dto.TransferListQuery
	if !h.BindQuery(c, &q) {
		return
	}
	filter, err := q.ToFilter()
	if err != nil {
		h.Error(c, err)
		return
	}

	result, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewListResponse(result, dto.FromTransfer))
}

// Get handles GET /transfers/:id.
func (h *TransferHandler) Get(c *gin.Context) {
	h.run(c, h.service.Get)
}

// Dispatch handles POST /transfers/:id/dispatch.
func (h *TransferHandler) Dispatch(c *gin.Context) {
	h.run(c, h.service.Dispatch)
}

// Complete handles POST /transfers/:id/complete.
// A failed item is reported with transferId, lineNo and completedItems in
// the error details; repeating the call resumes from that item.
func (h *TransferHandler) Complete(c *gin.Context) {
	h.run(c, h.service.Complete)
}

// Cancel handles POST /transfers/:id/cancel.
func (h *TransferHandler) Cancel(c *gin.Context) {
	h.run(c, h.service.Cancel)
}

// History handles GET /transfers/:id/history.
func (h *TransferHandler) History(c *gin.Context) {
	transferID, ok := h.PathID(c, "id")
	if !ok {
		return
	}
	var q dto.HistoryQuery
	if !h.BindQuery(c, &q) {
		return
	}

	entries, err := h.service.History(c.Request.Context(), transferID, q.Limit)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, gin.H{"items": dto.FromHistory(entries)})
}

func (h *TransferHandler) run(c *gin.Context, op func(context.Context, id.ID) (*transfer.Transfer, error)) {
	transferID, ok := h.PathID(c, "id")
	if !ok {
		return
	}

	t, err := op(c.Request.Context(), transferID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromTransfer(t))
}
