package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"stockledger/internal/core/id"
	"stockledger/internal/domain"
	"stockledger/internal/domain/audit"
	"stockledger/internal/infrastructure/http/v1/dto"
)

// CatalogService is the part of a catalog service the generic handler needs.
type CatalogService[T any, F any] interface {
	Create(ctx context.Context, entity T) error
	Update(ctx context.Context, entity T) error
	GetByID(ctx context.Context, entityID id.ID) (T, error)
	History(ctx context.Context, entityID id.ID, limit int) ([]audit.Entry, error)
	List(ctx context.Context, filter F) (domain.ListResult[T], error)
}

// CatalogHandler provides generic HTTP handlers for catalog entities.
type CatalogHandler[T any, F any, CreateDTO any, UpdateDTO any, R any] struct {
	*BaseHandler
	service CatalogService[T, F]

	mapCreateDTO func(req *CreateDTO) T
	mapUpdateDTO func(req *UpdateDTO, existing T) T
	mapFilter    func(q dto.CatalogListQuery) F
	mapToDTO     func(entity T) R
}

// CatalogHandlerConfig configures the catalog handler.
type CatalogHandlerConfig[T any, F any, CreateDTO any, UpdateDTO any, R any] struct {
	Service      CatalogService[T, F]
	MapCreateDTO func(req *CreateDTO) T
	MapUpdateDTO func(req *UpdateDTO, existing T) T
	MapFilter    func(q dto.CatalogListQuery) F
	MapToDTO     func(entity T) R
}

// NewCatalogHandler creates a new catalog handler.
func NewCatalogHandler[T any, F any, CreateDTO any, UpdateDTO any, R any](
	base *BaseHandler,
	cfg CatalogHandlerConfig[T, F, CreateDTO, UpdateDTO, R],
) *CatalogHandler[T, F, CreateDTO, UpdateDTO, R] {
	return &CatalogHandler[T, F, CreateDTO, UpdateDTO, R]{
		BaseHandler:  base,
		service:      cfg.Service,
		mapCreateDTO: cfg.MapCreateDTO,
		mapUpdateDTO: cfg.MapUpdateDTO,
		mapFilter:    cfg.MapFilter,
		mapToDTO:     cfg.MapToDTO,
	}
}

// List handles GET /{entity}.
func (h *CatalogHandler[T, F, CreateDTO, UpdateDTO, R]) List(c *gin.Context) {
	var q dto.CatalogListQuery
	if !h.BindQuery(c, &q) {
		return
	}

	result, err := h.service.List(c.Request.Context(), h.mapFilter(q))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewListResponse(result, h.mapToDTO))
}

// Get handles GET /{entity}/:id.
func (h *CatalogHandler[T, F, CreateDTO, UpdateDTO, R]) Get(c *gin.Context) {
	entityID, ok := h.PathID(c, "id")
	if !ok {
		return
	}

	entity, err := h.service.GetByID(c.Request.Context(), entityID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, h.mapToDTO(entity))
}

// Create handles POST /{entity}.
func (h *CatalogHandler[T, F, CreateDTO, UpdateDTO, R]) Create(c *gin.Context) {
	var req CreateDTO
	if !h.BindJSON(c, &req) {
		return
	}

	entity := h.mapCreateDTO(&req)
	if err := h.service.Create(c.Request.Context(), entity); err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, h.mapToDTO(entity))
}

// Update handles PUT /{entity}/:id.
func (h *CatalogHandler[T, F, CreateDTO, UpdateDTO, R]) Update(c *gin.Context) {
	ctx := c.Request.Context()

	entityID, ok := h.PathID(c, "id")
	if !ok {
		return
	}

	var req UpdateDTO
	if !h.BindJSON(c, &req) {
		return
	}

	existing, err := h.service.GetByID(ctx, entityID)
	if err != nil {
		h.Error(c, err)
		return
	}

	updated := h.mapUpdateDTO(&req, existing)
	if err := h.service.Update(ctx, updated); err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, h.mapToDTO(updated))
}

// History handles GET /{entity}/:id/history.
func (h *CatalogHandler[T, F, CreateDTO, UpdateDTO, R]) History(c *gin.Context) {
	entityID, ok := h.PathID(c, "id")
	if !ok {
		return
	}
	var q dto.HistoryQuery
	if !h.BindQuery(c, &q) {
		return
	}

	entries, err := h.service.History(c.Request.Context(), entityID, q.Limit)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, gin.H{"items": dto.FromHistory(entries)})
}
