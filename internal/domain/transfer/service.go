package transfer

import (
	"context"
	"fmt"
	"slices"
	"time"

	"stockledger/internal/core/apperror"
	appctx "stockledger/internal/core/context"
	"stockledger/internal/core/events"
	"stockledger/internal/core/id"
	"stockledger/internal/core/numerator"
	"stockledger/internal/core/tx"
	"stockledger/internal/domain"
	"stockledger/internal/domain/audit"
	"stockledger/internal/domain/ledger"
	"stockledger/pkg/logger"
)

// Service runs the transfer lifecycle.
//
// Completion moves stock item by item. Each item is its own transaction that
// locks the transfer row first and the level rows second, so a failure leaves
// earlier items committed and the transfer resumable.
type Service struct {
	repo      Repository
	recorder  *ledger.Recorder
	catalog   ledger.Catalog
	txm       tx.Manager
	numerator numerator.Generator
	events    events.Publisher
	audit     audit.Logger
	now       func() time.Time
}

// NewService creates a transfer service.
func NewService(
	repo Repository,
	recorder *ledger.Recorder,
	catalog ledger.Catalog,
	txm tx.Manager,
	numerator numerator.Generator,
	publisher events.Publisher,
	auditLog audit.Logger,
) *Service {
	return &Service{
		repo:      repo,
		recorder:  recorder,
		catalog:   catalog,
		txm:       txm,
		numerator: numerator,
		events:    publisher,
		audit:     auditLog,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// ItemRequest is one requested line.
type ItemRequest struct {
	ProductID id.ID
	Quantity  int64
}

// CreateRequest describes a new transfer.
type CreateRequest struct {
	FromWarehouseID id.ID
	ToWarehouseID   id.ID
	TransferDate    time.Time
	Items           []ItemRequest
	Notes           *string
}

// EventPayload is written to the outbox on every transition.
type EventPayload struct {
	TransferNumber  string `json:"transferNumber"`
	Status          Status `json:"status"`
	FromWarehouseID id.ID  `json:"fromWarehouseId"`
	ToWarehouseID   id.ID  `json:"toWarehouseId"`
	CompletedItems  int    `json:"completedItems"`
	TotalItems      int    `json:"totalItems"`
}

// Create stores a pending transfer. No stock moves until Complete.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Transfer, error) {
	now := s.now()
	t := &Transfer{
		ID:              id.New(),
		FromWarehouseID: req.FromWarehouseID,
		ToWarehouseID:   req.ToWarehouseID,
		TransferDate:    req.TransferDate,
		Status:          StatusPending,
		Notes:           req.Notes,
		CreatedAt:       now,
		UpdatedAt:       now,
		Version:         1,
	}
	if t.TransferDate.IsZero() {
		t.TransferDate = now
	}
	if actorID := appctx.GetActorID(ctx); actorID != "" {
		t.CreatedBy = &actorID
	}
	for i, item := range req.Items {
		t.Items = append(t.Items, Item{
			ID:         id.New(),
			TransferID: t.ID,
			LineNo:     i + 1,
			ProductID:  item.ProductID,
			Quantity:   item.Quantity,
		})
	}

	if err := t.Validate(); err != nil {
		return nil, err
	}

	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.catalog.EnsureWarehouse(ctx, t.FromWarehouseID); err != nil {
			return err
		}
		if err := s.catalog.EnsureWarehouse(ctx, t.ToWarehouseID); err != nil {
			return err
		}
		checked := make(map[id.ID]struct{}, len(t.Items))
		for _, item := range t.Items {
			if _, ok := checked[item.ProductID]; ok {
				continue
			}
			if err := s.catalog.EnsureProduct(ctx, item.ProductID); err != nil {
				return err
			}
			checked[item.ProductID] = struct{}{}
		}

		number, err := s.numerator.GetNextNumber(ctx, numerator.TransferConfig, numerator.DefaultOptions(), t.TransferDate)
		if err != nil {
			return fmt.Errorf("generate transfer number: %w", err)
		}
		t.TransferNumber = number

		if err := s.repo.Create(ctx, t); err != nil {
			return err
		}
		if err := s.audit.Record(ctx, EntityName, t.ID, audit.ActionCreate, nil, t); err != nil {
			return err
		}
		return s.publish(ctx, t, events.TransferCreated)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "transfer created",
		"transfer_id", t.ID,
		"transfer_number", t.TransferNumber,
		"items", len(t.Items),
	)
	return t, nil
}

// Get returns a transfer with its items.
func (s *Service) Get(ctx context.Context, transferID id.ID) (*Transfer, error) {
	return s.repo.GetByID(ctx, transferID)
}

// List returns a page of transfer headers.
func (s *Service) List(ctx context.Context, filter ListFilter) (domain.ListResult[*Transfer], error) {
	if filter.Status != nil && !filter.Status.Valid() {
		return domain.ListResult[*Transfer]{}, apperror.NewValidation("unknown transfer status").
			WithDetail("field", "status").
			WithDetail("value", string(*filter.Status))
	}
	filter.Page = filter.Page.Normalize()
	return s.repo.List(ctx, filter)
}

// Dispatch moves a pending transfer to in_transit.
func (s *Service) Dispatch(ctx context.Context, transferID id.ID) (*Transfer, error) {
	return s.transition(ctx, transferID, events.TransferDispatched, (*Transfer).Dispatch)
}

// Cancel cancels a pending or in-transit transfer. No movements are written.
func (s *Service) Cancel(ctx context.Context, transferID id.ID) (*Transfer, error) {
	return s.transition(ctx, transferID, events.TransferCancelled, (*Transfer).Cancel)
}

func (s *Service) transition(
	ctx context.Context,
	transferID id.ID,
	eventType string,
	apply func(*Transfer, time.Time) error,
) (*Transfer, error) {
	var t *Transfer
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		t, err = s.repo.GetForUpdate(ctx, transferID)
		if err != nil {
			return err
		}
		prev := t.Status
		if err := apply(t, s.now()); err != nil {
			return err
		}
		if err := s.repo.Update(ctx, t); err != nil {
			return err
		}
		if err := s.recordTransition(ctx, t, prev); err != nil {
			return err
		}
		return s.publish(ctx, t, eventType)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "transfer status changed",
		"transfer_id", t.ID,
		"transfer_number", t.TransferNumber,
		"status", t.Status,
	)
	return t, nil
}

// Complete moves the stock of every pending item, in line order.
//
// Each item records transfer_out on the source and transfer_in on the
// destination in one transaction. The first item to succeed on a multi-item
// transfer moves it to partially_completed, the last to completed. On failure
// the error carries transferId, lineNo and completedItems; calling Complete
// again resumes with the first untransferred item.
func (s *Service) Complete(ctx context.Context, transferID id.ID) (*Transfer, error) {
	t, err := s.repo.GetByID(ctx, transferID)
	if err != nil {
		return nil, err
	}
	if !t.Status.CanComplete() {
		return nil, apperror.NewInvalidState(EntityName, t.ID.String(), string(t.Status), "complete")
	}

	items := slices.Clone(t.Items)
	slices.SortFunc(items, func(a, b Item) int { return a.LineNo - b.LineNo })

	for _, item := range items {
		if item.IsTransferred() {
			continue
		}

		err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
			current, err := s.completeItem(ctx, transferID, item.LineNo)
			if current != nil {
				t = current
			}
			return err
		})
		if err != nil {
			logger.Warn(ctx, "transfer item failed",
				"transfer_id", transferID,
				"line_no", item.LineNo,
				"completed_items", t.CompletedItems(),
				"error", err,
			)
			if appErr, ok := apperror.AsAppError(err); ok {
				return nil, appErr.
					WithDetail("transferId", transferID.String()).
					WithDetail("lineNo", item.LineNo).
					WithDetail("completedItems", t.CompletedItems())
			}
			return nil, fmt.Errorf("complete transfer %s line %d: %w", transferID, item.LineNo, err)
		}
	}

	if t.Status != StatusCompleted {
		// Every item was already transferred by a concurrent call.
		return s.repo.GetByID(ctx, transferID)
	}

	logger.Info(ctx, "transfer completed",
		"transfer_id", t.ID,
		"transfer_number", t.TransferNumber,
		"items", len(t.Items),
	)
	return t, nil
}

// completeItem runs inside the item's transaction. The returned transfer
// reflects the locked row before any failure.
func (s *Service) completeItem(ctx context.Context, transferID id.ID, lineNo int) (*Transfer, error) {
	t, err := s.repo.GetForUpdate(ctx, transferID)
	if err != nil {
		return nil, err
	}
	if !t.Status.CanComplete() {
		return t, apperror.NewInvalidState(EntityName, t.ID.String(), string(t.Status), "complete")
	}

	idx := slices.IndexFunc(t.Items, func(i Item) bool { return i.LineNo == lineNo })
	if idx < 0 {
		return t, apperror.NewNotFound("transfer item", lineNo)
	}
	item := t.Items[idx]
	if item.IsTransferred() {
		return t, nil
	}

	ref := ledger.TransferRef(t.ID)
	notes := t.TransferNumber
	_, err = s.recorder.RecordAll(ctx, []ledger.Entry{
		{
			WarehouseID: t.FromWarehouseID,
			ProductID:   item.ProductID,
			Type:        ledger.MovementTransferOut,
			Delta:       -item.Quantity,
			Reference:   ref,
			Notes:       notes,
		},
		{
			WarehouseID: t.ToWarehouseID,
			ProductID:   item.ProductID,
			Type:        ledger.MovementTransferIn,
			Delta:       item.Quantity,
			Reference:   ref,
			Notes:       notes,
		},
	})
	if err != nil {
		return t, err
	}

	now := s.now()
	if err := s.repo.MarkItemTransferred(ctx, item.ID, now); err != nil {
		return t, err
	}

	updated := *t
	updated.Items = slices.Clone(t.Items)
	prev := updated.Status
	if err := updated.MarkItemTransferred(lineNo, now); err != nil {
		return t, err
	}
	if err := s.repo.Update(ctx, &updated); err != nil {
		return t, err
	}

	if updated.Status != prev {
		if err := s.recordTransition(ctx, &updated, prev); err != nil {
			return t, err
		}
	}

	switch {
	case updated.Status == StatusCompleted:
		err = s.publish(ctx, &updated, events.TransferCompleted)
	case updated.Status == StatusPartiallyCompleted && prev != StatusPartiallyCompleted:
		err = s.publish(ctx, &updated, events.TransferPartiallyCompleted)
	}
	if err != nil {
		return t, err
	}
	return &updated, nil
}

// History returns the audited changes of a transfer, newest first.
func (s *Service) History(ctx context.Context, transferID id.ID, limit int) ([]audit.Entry, error) {
	if _, err := s.repo.GetByID(ctx, transferID); err != nil {
		return nil, err
	}
	return s.audit.History(ctx, EntityName, transferID, limit)
}

type statusSnapshot struct {
	Status Status `json:"status" db:"status"`
}

func (s *Service) recordTransition(ctx context.Context, t *Transfer, prev Status) error {
	return s.audit.Record(ctx, EntityName, t.ID, audit.ActionTransition,
		statusSnapshot{Status: prev}, statusSnapshot{Status: t.Status})
}

func (s *Service) publish(ctx context.Context, t *Transfer, eventType string) error {
	return s.events.Publish(ctx, events.Event{
		AggregateType: events.AggregateTransfer,
		AggregateID:   t.ID,
		EventType:     eventType,
		Payload: EventPayload{
			TransferNumber:  t.TransferNumber,
			Status:          t.Status,
			FromWarehouseID: t.FromWarehouseID,
			ToWarehouseID:   t.ToWarehouseID,
			CompletedItems:  t.CompletedItems(),
			TotalItems:      len(t.Items),
		},
	})
}
