package warehouse

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

// Service provides business logic for Warehouse catalog.
type Service struct {
	repo      Repository
	txm       tx.Manager
	numerator numerator.Generator
	audit     audit.Logger
}

// NewService creates a new Warehouse service.
func NewService(repo Repository, txm tx.Manager, numerator numerator.Generator, auditLog audit.Logger) *Service {
	return &Service{
		repo:      repo,
		txm:       txm,
		numerator: numerator,
		audit:     auditLog,
	}
}

// Create validates and stores a new warehouse, generating a code when none is given.
func (s *Service) Create(ctx context.Context, wh *Warehouse) error {
	if err := wh.Validate(ctx); err != nil {
		return err
	}

	if wh.Code == "" {
		code, err := s.numerator.GetNextNumber(ctx, numerator.WarehouseConfig,
			&numerator.Options{Strategy: numerator.StrategyCached}, time.Now())
		if err != nil {
			return fmt.Errorf("generate code: %w", err)
		}
		wh.Code = code
	}

	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		exists, err := s.repo.ExistsByCode(ctx, wh.Code)
		if err != nil {
			return err
		}
		if exists {
			return apperror.NewDuplicate(EntityName, "code", wh.Code)
		}

		if wh.IsDefault {
			if err := s.repo.ClearDefault(ctx); err != nil {
				return err
			}
		}
		if err := s.repo.Create(ctx, wh); err != nil {
			return err
		}
		return s.audit.Record(ctx, EntityName, wh.ID, audit.ActionCreate, nil, wh)
	})
	if err != nil {
		return err
	}

	logger.Info(ctx, "warehouse created", "warehouse_id", wh.ID, "code", wh.Code)
	return nil
}

// Update changes name, address and default flag of an existing warehouse.
func (s *Service) Update(ctx context.Context, wh *Warehouse) error {
	if err := wh.Validate(ctx); err != nil {
		return err
	}

	return s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		current, err := s.repo.GetForUpdate(ctx, wh.ID)
		if err != nil {
			return err
		}
		if current.Version != wh.Version {
			return apperror.NewConcurrentModification(EntityName, wh.ID.String())
		}

		if wh.Code != current.Code {
			exists, err := s.repo.ExistsByCode(ctx, wh.Code)
			if err != nil {
				return err
			}
			if exists {
				return apperror.NewDuplicate(EntityName, "code", wh.Code)
			}
		}

		if wh.IsDefault && !current.IsDefault {
			if !wh.IsActive {
				return apperror.NewValidation("inactive warehouse cannot be default").
					WithDetail("field", "isDefault")
			}
			if err := s.repo.ClearDefault(ctx); err != nil {
				return err
			}
		}

		wh.CreatedAt = current.CreatedAt
		wh.UpdatedAt = time.Now().UTC()
		if err := s.repo.Update(ctx, wh); err != nil {
			return err
		}
		return s.audit.Record(ctx, EntityName, wh.ID, audit.ActionUpdate, current, wh)
	})
}

// GetByID returns a warehouse or NotFound.
func (s *Service) GetByID(ctx context.Context, whID id.ID) (*Warehouse, error) {
	return s.repo.GetByID(ctx, whID)
}

// History returns the latest audited changes of a warehouse.
func (s *Service) History(ctx context.Context, whID id.ID, limit int) ([]audit.Entry, error) {
	if _, err := s.repo.GetByID(ctx, whID); err != nil {
		return nil, err
	}
	return s.audit.History(ctx, EntityName, whID, limit)
}

// List returns a page of warehouses.
func (s *Service) List(ctx context.Context, filter ListFilter) (domain.ListResult[*Warehouse], error) {
	filter.Page = filter.Page.Normalize()
	return s.repo.List(ctx, filter)
}

// SetActive activates or soft-disables a warehouse.
// A deactivated warehouse loses its default flag.
func (s *Service) SetActive(ctx context.Context, whID id.ID, active bool) (*Warehouse, error) {
	var wh *Warehouse
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		wh, err = s.repo.GetForUpdate(ctx, whID)
		if err != nil {
			return err
		}
		if wh.IsActive == active {
			return nil
		}

		before := *wh
		wh.IsActive = active
		if !active {
			wh.IsDefault = false
		}
		wh.UpdatedAt = time.Now().UTC()
		if err := s.repo.Update(ctx, wh); err != nil {
			return err
		}
		action := audit.ActionDeactivate
		if active {
			action = audit.ActionActivate
		}
		return s.audit.Record(ctx, EntityName, wh.ID, action, &before, wh)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "warehouse activity changed", "warehouse_id", whID, "active", active)
	return wh, nil
}

// SetDefault makes the warehouse the single default one.
func (s *Service) SetDefault(ctx context.Context, whID id.ID) (*Warehouse, error) {
	var wh *Warehouse
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		wh, err = s.repo.GetForUpdate(ctx, whID)
		if err != nil {
			return err
		}
		if !wh.IsActive {
			return apperror.NewBusinessRule(apperror.CodeWarehouseInactive, "Inactive warehouse cannot be default").
				WithDetail("id", whID.String())
		}
		if wh.IsDefault {
			return nil
		}

		if err := s.repo.ClearDefault(ctx); err != nil {
			return err
		}
		before := *wh
		wh.IsDefault = true
		wh.UpdatedAt = time.Now().UTC()
		if err := s.repo.Update(ctx, wh); err != nil {
			return err
		}
		return s.audit.Record(ctx, EntityName, wh.ID, audit.ActionUpdate, &before, wh)
	})
	if err != nil {
		return nil, err
	}
	return wh, nil
}
