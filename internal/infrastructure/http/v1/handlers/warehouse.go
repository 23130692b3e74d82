package handlers

import (
	"github.com/gin-gonic/gin"

	"stockledger/internal/domain/catalogs/warehouse"
	"stockledger/internal/infrastructure/http/v1/dto"
)

// WarehouseHandler serves the warehouse catalog and its flag operations.
type WarehouseHandler struct {
	*CatalogHandler[
		*warehouse.Warehouse,
		warehouse.ListFilter,
		dto.CreateWarehouseRequest,
		dto.UpdateWarehouseRequest,
		dto.WarehouseResponse,
	]
	service *warehouse.Service
}

// NewWarehouseHandler creates a warehouse handler.
func NewWarehouseHandler(base *BaseHandler, service *warehouse.Service) *WarehouseHandler {
	config := CatalogHandlerConfig[
		*warehouse.Warehouse,
		warehouse.ListFilter,
		dto.CreateWarehouseRequest,
		dto.UpdateWarehouseRequest,
		dto.WarehouseResponse,
	]{
		Service: service,
		MapCreateDTO: func(req *dto.CreateWarehouseRequest) *warehouse.Warehouse {
			return req.ToEntity()
		},
		MapUpdateDTO: func(req *dto.UpdateWarehouseRequest, existing *warehouse.Warehouse) *warehouse.Warehouse {
			req.ApplyTo(existing)
			return existing
		},
		MapFilter: func(q dto.CatalogListQuery) warehouse.ListFilter {
			return warehouse.ListFilter{Search: q.Search, ActiveOnly: q.ActiveOnly, Page: q.ToPage()}
		},
		MapToDTO: dto.FromWarehouse,
	}

	return &WarehouseHandler{
		CatalogHandler: NewCatalogHandler(base, config),
		service:        service,
	}
}

// Activate handles POST /catalog/warehouses/:id/activate.
func (h *WarehouseHandler) Activate(c *gin.Context) {
	h.setActive(c, true)
}

// Deactivate handles POST /catalog/warehouses/:id/deactivate.
func (h *WarehouseHandler) Deactivate(c *gin.Context) {
	h.setActive(c, false)
}

func (h *WarehouseHandler) setActive(c *gin.Context, active bool) {
	whID, ok := h.PathID(c, "id")
	if !ok {
		return
	}
	wh, err := h.service.SetActive(c.Request.Context(), whID, active)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromWarehouse(wh))
}

// SetDefault handles POST /catalog/warehouses/:id/default.
func (h *WarehouseHandler) SetDefault(c *gin.Context) {
	whID, ok := h.PathID(c, "id")
	if !ok {
		return
	}
	wh, err := h.service.SetDefault(c.Request.Context(), whID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromWarehouse(wh))
}
