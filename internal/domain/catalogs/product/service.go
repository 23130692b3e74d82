package product

import (
	"context"
	"fmt"
	"time"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/core/numerator"
	"stockledger/internal/core/tx"
	"stockledger/internal/domain"
	"stockledger/internal/domain/audit"
	"stockledger/pkg/logger"
)

// Service provides business logic for Product catalog.
type Service struct {
	repo      Repository
	txm       tx.Manager
	numerator numerator.Generator
	audit     audit.Logger
}

// NewService creates a new Product service.
func NewService(repo Repository, txm tx.Manager, numerator numerator.Generator, auditLog audit.Logger) *Service {
	return &Service{repo: repo, txm: txm, numerator: numerator, audit: auditLog}
}

// Create validates and stores a new product, generating a code when none is given.
func (s *Service) Create(ctx context.Context, p *Product) error {
	if err := p.Validate(ctx); err != nil {
		return err
	}

	if p.Code == "" {
		code, err := s.numerator.GetNextNumber(ctx, numerator.ProductConfig,
			&numerator.Options{Strategy: numerator.StrategyCached}, time.Now())
		if err != nil {
			return fmt.Errorf("generate code: %w", err)
		}
		p.Code = code
	}

	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		exists, err := s.repo.ExistsByCode(ctx, p.Code)
		if err != nil {
			return err
		}
		if exists {
			return apperror.NewDuplicate(EntityName, "code", p.Code)
		}
		if err := s.repo.Create(ctx, p); err != nil {
			return err
		}
		return s.audit.Record(ctx, EntityName, p.ID, audit.ActionCreate, nil, p)
	})
	if err != nil {
		return err
	}

	logger.Info(ctx, "product created", "product_id", p.ID, "code", p.Code)
	return nil
}

// Update persists changes to an existing product.
func (s *Service) Update(ctx context.Context, p *Product) error {
	if err := p.Validate(ctx); err != nil {
		return err
	}

	return s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		current, err := s.repo.GetForUpdate(ctx, p.ID)
		if err != nil {
			return err
		}
		if current.Version != p.Version {
			return apperror.NewConcurrentModification(EntityName, p.ID.String())
		}
		if p.Code != current.Code {
			exists, err := s.repo.ExistsByCode(ctx, p.Code)
			if err != nil {
				return err
			}
			if exists {
				return apperror.NewDuplicate(EntityName, "code", p.Code)
			}
		}

		p.CreatedAt = current.CreatedAt
		p.UpdatedAt = time.Now().UTC()
		if err := s.repo.Update(ctx, p); err != nil {
			return err
		}
		action := audit.ActionUpdate
		if current.IsActive != p.IsActive {
			action = audit.ActionDeactivate
			if p.IsActive {
				action = audit.ActionActivate
			}
		}
		return s.audit.Record(ctx, EntityName, p.ID, action, current, p)
	})
}

// GetByID returns a product or NotFound.
func (s *Service) GetByID(ctx context.Context, productID id.ID) (*Product, error) {
	return s.repo.GetByID(ctx, productID)
}

// History returns the latest audited changes of a product.
func (s *Service) History(ctx context.Context, productID id.ID, limit int) ([]audit.Entry, error) {
	if _, err := s.repo.GetByID(ctx, productID); err != nil {
		return nil, err
	}
	return s.audit.History(ctx, EntityName, productID, limit)
}

// List returns a page of products.
func (s *Service) List(ctx context.Context, filter ListFilter) (domain.ListResult[*Product], error) {
	filter.Page = filter.Page.Normalize()
	return s.repo.List(ctx, filter)
}
