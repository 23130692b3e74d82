// Package consumption adapts sales, returns and purchases into ledger movements.
//
// Every event is one atomic unit: a failing line fails the whole event and
// leaves no partial movement behind. An event whose reference already has
// movements is rejected with ALREADY_RECORDED.
package consumption

import (
	"context"
	"fmt"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/core/tx"
	"stockledger/internal/domain/ledger"
	"stockledger/pkg/logger"
)

// Line is one product quantity of a business event.
type Line struct {
	WarehouseID id.ID
	ProductID   id.ID
	Quantity    int64
}

// Hooks records stock movements for external business events.
type Hooks struct {
	recorder *ledger.Recorder
	txm      tx.Manager
}

// NewHooks creates consumption hooks.
func NewHooks(recorder *ledger.Recorder, txm tx.Manager) *Hooks {
	return &Hooks{recorder: recorder, txm: txm}
}

// SaleConfirmed takes the sold quantities out of stock.
func (h *Hooks) SaleConfirmed(ctx context.Context, saleID id.ID, lines []Line) ([]ledger.StockMovement, error) {
	return h.apply(ctx, ledger.SaleRef(saleID), ledger.MovementSale, -1, lines)
}

// ReturnAccepted puts returned quantities back into stock.
func (h *Hooks) ReturnAccepted(ctx context.Context, returnID id.ID, lines []Line) ([]ledger.StockMovement, error) {
	return h.apply(ctx, ledger.ReturnRef(returnID), ledger.MovementReturn, 1, lines)
}

// PurchaseReceived adds received quantities to stock.
func (h *Hooks) PurchaseReceived(ctx context.Context, purchaseID id.ID, lines []Line) ([]ledger.StockMovement, error) {
	return h.apply(ctx, ledger.PurchaseRef(purchaseID), ledger.MovementPurchase, 1, lines)
}

func (h *Hooks) apply(
	ctx context.Context,
	ref ledger.Reference,
	movementType ledger.MovementType,
	sign int64,
	lines []Line,
) ([]ledger.StockMovement, error) {
	if id.IsNil(ref.ID()) {
		return nil, apperror.NewValidation(fmt.Sprintf("%s id is required", ref.Type())).
			WithDetail("field", "id")
	}
	if len(lines) == 0 {
		return nil, apperror.NewValidation("at least one line is required").WithDetail("field", "lines")
	}

	entries := make([]ledger.Entry, len(lines))
	keys := make([]ledger.Key, len(lines))
	for i, line := range lines {
		if line.Quantity <= 0 {
			return nil, apperror.NewValidation(fmt.Sprintf("line %d: quantity must be positive", i+1)).
				WithDetail("field", fmt.Sprintf("lines[%d].quantity", i)).
				WithDetail("value", line.Quantity)
		}
		entries[i] = ledger.Entry{
			WarehouseID: line.WarehouseID,
			ProductID:   line.ProductID,
			Type:        movementType,
			Delta:       sign * line.Quantity,
			Reference:   ref,
		}
		if err := entries[i].Validate(); err != nil {
			return nil, err
		}
		keys[i] = entries[i].Key()
	}

	var movements []ledger.StockMovement
	err := h.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		// The reference lock makes the check below see whatever a concurrent
		// delivery of the same document committed.
		if err := h.recorder.Claim(ctx, ref); err != nil {
			return fmt.Errorf("claim reference: %w", err)
		}
		if _, err := h.recorder.Lock(ctx, ledger.SortKeys(keys)...); err != nil {
			return err
		}
		recorded, err := h.recorder.Recorded(ctx, ref)
		if err != nil {
			return fmt.Errorf("check reference: %w", err)
		}
		if recorded {
			return apperror.NewAlreadyRecorded(string(ref.Type()), ref.ID().String())
		}

		movements, err = h.recorder.RecordAll(ctx, entries)
		return err
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "stock event recorded",
		"reference", ref.String(),
		"lines", len(lines),
	)
	return movements, nil
}
