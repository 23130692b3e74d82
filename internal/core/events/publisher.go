// Package events defines the domain event contract written to the transactional outbox.
package events

import (
	"context"

	"stockledger/internal/core/id"
)

// Aggregate types.
const (
	AggregateTransfer = "StockTransfer"
	AggregateStock    = "StockLevel"
)

// Event types.
const (
	TransferCreated            = "transfer.created"
	TransferDispatched         = "transfer.dispatched"
	TransferPartiallyCompleted = "transfer.partially_completed"
	TransferCompleted          = "transfer.completed"
	TransferCancelled          = "transfer.cancelled"
	StockAdjusted              = "stock.adjusted"
)

// Event is a fact about an aggregate, published after the owning transaction commits.
type Event struct {
	AggregateType string
	AggregateID   id.ID
	EventType     string
	Payload       any
}

// Publisher records events inside the caller's transaction.
// Implementations must fail when ctx carries no transaction.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}
