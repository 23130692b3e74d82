package handlers

import (
	"stockledger/internal/domain/catalogs/product"
	"stockledger/internal/infrastructure/http/v1/dto"
)

// ProductHandler serves the product catalog.
type ProductHandler = CatalogHandler[
	*product.Product,
	product.ListFilter,
	dto.CreateProductRequest,
	dto.UpdateProductRequest,
	dto.ProductResponse,
]

// NewProductHandler creates a product handler.
func NewProductHandler(base *BaseHandler, service *product.Service) *ProductHandler {
	config := CatalogHandlerConfig[
		*product.Product,
		product.ListFilter,
		dto.CreateProductRequest,
		dto.UpdateProductRequest,
		dto.ProductResponse,
	]{
		Service: service,
		MapCreateDTO: func(req *dto.CreateProductRequest) *product.Product {
			return req.ToEntity()
		},
		MapUpdateDTO: func(req *dto.UpdateProductRequest, existing *product.Product) *product.Product {
			req.ApplyTo(existing)
			return existing
		},
		MapFilter: func(q dto.CatalogListQuery) product.ListFilter {
			return product.ListFilter{Search: q.Search, ActiveOnly: q.ActiveOnly, Page: q.ToPage()}
		},
		MapToDTO: dto.FromProduct,
	}

	return NewCatalogHandler(base, config)
}
