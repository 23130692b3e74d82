// Package adjustment applies manual stock corrections.
package adjustment

import (
	"context"
	"fmt"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/events"
	"stockledger/internal/core/id"
	"stockledger/internal/core/tx"
	"stockledger/internal/domain/ledger"
	"stockledger/pkg/logger"
)

// Type selects how Quantity is applied.
type Type string

const (
	TypeAdd      Type = "add"
	TypeSubtract Type = "subtract"
	TypeSet      Type = "set"
)

// Valid reports whether t is a known adjustment type.
func (t Type) Valid() bool {
	return t == TypeAdd || t == TypeSubtract || t == TypeSet
}

// Request is a manual correction of one stock level.
type Request struct {
	WarehouseID id.ID
	ProductID   id.ID
	Quantity    int64
	Type        Type
	Notes       string
}

// Validate checks the quantity against the adjustment type.
func (r Request) Validate() error {
	if !r.Type.Valid() {
		return apperror.NewValidation("unknown adjustment type").
			WithDetail("field", "type").
			WithDetail("value", string(r.Type))
	}
	if r.Type == TypeSet {
		if r.Quantity < 0 {
			return apperror.NewValidation("quantity must not be negative").
				WithDetail("field", "quantity").
				WithDetail("value", r.Quantity)
		}
		return nil
	}
	if r.Quantity <= 0 {
		return apperror.NewValidation("quantity must be positive").
			WithDetail("field", "quantity").
			WithDetail("value", r.Quantity)
	}
	return nil
}

// Result reports the level after the adjustment.
// Movement is nil when a set request matched the current quantity.
type Result struct {
	AdjustmentID id.ID                 `json:"adjustmentId"`
	Quantity     int64                 `json:"quantity"`
	Movement     *ledger.StockMovement `json:"movement,omitempty"`
}

// Payload of the stock.adjusted event.
type Payload struct {
	AdjustmentID id.ID `json:"adjustmentId"`
	WarehouseID  id.ID `json:"warehouseId"`
	ProductID    id.ID `json:"productId"`
	Type         Type  `json:"type"`
	Delta        int64 `json:"delta"`
	Quantity     int64 `json:"quantity"`
}

// Service translates corrections into ledger movements.
type Service struct {
	recorder *ledger.Recorder
	txm      tx.Manager
	events   events.Publisher
}

// NewService creates an adjustment service.
func NewService(recorder *ledger.Recorder, txm tx.Manager, publisher events.Publisher) *Service {
	return &Service{recorder: recorder, txm: txm, events: publisher}
}

// Adjust applies the request as a single adjustment movement.
func (s *Service) Adjust(ctx context.Context, req Request) (Result, error) {
	if err := req.Validate(); err != nil {
		return Result{}, err
	}

	res := Result{AdjustmentID: id.New()}
	key := ledger.NewKey(req.WarehouseID, req.ProductID)

	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		var delta int64
		switch req.Type {
		case TypeAdd:
			delta = req.Quantity
		case TypeSubtract:
			delta = -req.Quantity
		case TypeSet:
			current, err := s.recorder.Lock(ctx, key)
			if err != nil {
				return err
			}
			delta = req.Quantity - current[key]
			if delta == 0 {
				res.Quantity = current[key]
				return nil
			}
		}

		m, err := s.recorder.Record(ctx, ledger.Entry{
			WarehouseID: req.WarehouseID,
			ProductID:   req.ProductID,
			Type:        ledger.MovementAdjustment,
			Delta:       delta,
			Reference:   ledger.AdjustmentRef(res.AdjustmentID),
			Notes:       req.Notes,
		})
		if err != nil {
			return err
		}
		res.Quantity = m.StockAfter
		res.Movement = &m

		err = s.events.Publish(ctx, events.Event{
			AggregateType: events.AggregateStock,
			AggregateID:   res.AdjustmentID,
			EventType:     events.StockAdjusted,
			Payload: Payload{
				AdjustmentID: res.AdjustmentID,
				WarehouseID:  req.WarehouseID,
				ProductID:    req.ProductID,
				Type:         req.Type,
				Delta:        delta,
				Quantity:     m.StockAfter,
			},
		})
		if err != nil {
			return fmt.Errorf("publish adjustment: %w", err)
		}
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	if res.Movement == nil {
		logger.Debug(ctx, "stock adjustment is a no-op",
			"warehouse_id", req.WarehouseID,
			"product_id", req.ProductID,
			"quantity", res.Quantity,
		)
		return res, nil
	}

	logger.Info(ctx, "stock adjusted",
		"adjustment_id", res.AdjustmentID,
		"warehouse_id", req.WarehouseID,
		"product_id", req.ProductID,
		"type", req.Type,
		"delta", res.Movement.Quantity,
		"quantity", res.Quantity,
	)
	return res, nil
}
