package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"stockledger/internal/core/events"
	"stockledger/internal/core/id"
	"stockledger/pkg/logger"
)

// OutboxStatus represents the state of an outbox message.
type OutboxStatus string

const (
	OutboxStatusPending   OutboxStatus = "pending"
	OutboxStatusPublished OutboxStatus = "published"
	OutboxStatusFailed    OutboxStatus = "failed"
)

const outboxTable = "sys_outbox"

// OutboxMessage represents a message in the transactional outbox.
type OutboxMessage struct {
	ID            id.ID           `db:"id"`
	AggregateType string          `db:"aggregate_type"` // e.g., "StockTransfer"
	AggregateID   id.ID           `db:"aggregate_id"`
	EventType     string          `db:"event_type"` // e.g., "transfer.completed"
	Payload       json.RawMessage `db:"payload"`
	Status        OutboxStatus    `db:"status"`
	RetryCount    int             `db:"retry_count"`
	LastError     *string         `db:"last_error"`
	NextRetryAt   *time.Time      `db:"next_retry_at"`
	CreatedAt     time.Time       `db:"created_at"`
	PublishedAt   *time.Time      `db:"published_at"`
}

var outboxColumns = []string{
	"id", "aggregate_type", "aggregate_id", "event_type", "payload", "status",
	"retry_count", "last_error", "next_retry_at", "created_at", "published_at",
}

// OutboxPublisher writes events to the outbox table.
type OutboxPublisher struct {
	txManager *TxManager
}

var _ events.Publisher = (*OutboxPublisher)(nil)

// NewOutboxPublisher creates a new outbox publisher.
func NewOutboxPublisher(txManager *TxManager) *OutboxPublisher {
	return &OutboxPublisher{txManager: txManager}
}

// Publish writes an event to the outbox within the current transaction.
// MUST be called inside a transaction context.
func (p *OutboxPublisher) Publish(ctx context.Context, event events.Event) error {
	return p.PublishBatch(ctx, []events.Event{event})
}

// PublishBatch writes several events in one statement.
func (p *OutboxPublisher) PublishBatch(ctx context.Context, batch []events.Event) error {
	if len(batch) == 0 {
		return nil
	}
	tx := p.txManager.GetTx(ctx)
	if tx == nil {
		return fmt.Errorf("outbox publish: %w", ErrNoTransaction)
	}

	now := time.Now().UTC()
	q := psql.Insert(outboxTable).
		Columns("id", "aggregate_type", "aggregate_id", "event_type", "payload", "status", "created_at")
	for _, event := range batch {
		payload, err := json.Marshal(event.Payload)
		if err != nil {
			return fmt.Errorf("marshal event payload: %w", err)
		}
		q = q.Values(id.New(), event.AggregateType, event.AggregateID, event.EventType, payload, OutboxStatusPending, now)
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build outbox insert: %w", err)
	}
	if _, err := tx.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert outbox message: %w", err)
	}
	return nil
}

// OutboxHandler processes outbox messages.
type OutboxHandler interface {
	// Handle delivers a message and returns error if it failed
	Handle(ctx context.Context, msg *OutboxMessage) error
}

// OutboxHandlerFunc adapts a function to OutboxHandler.
type OutboxHandlerFunc func(ctx context.Context, msg *OutboxMessage) error

// Handle implements OutboxHandler.
func (f OutboxHandlerFunc) Handle(ctx context.Context, msg *OutboxMessage) error {
	return f(ctx, msg)
}

// OutboxRelayConfig tunes the relay.
type OutboxRelayConfig struct {
	BatchSize  int
	MaxRetries int
	// Backoff is multiplied by the attempt number to schedule the next retry
	Backoff time.Duration
}

// DefaultOutboxRelayConfig returns 100 messages per batch, 5 retries, 1 minute linear backoff.
func DefaultOutboxRelayConfig() OutboxRelayConfig {
	return OutboxRelayConfig{BatchSize: 100, MaxRetries: 5, Backoff: time.Minute}
}

// OutboxRelay reads and processes messages from the outbox.
// Used by the background worker to publish events to the message broker.
type OutboxRelay struct {
	txManager *TxManager
	handler   OutboxHandler
	cfg       OutboxRelayConfig
	now       func() time.Time
}

// NewOutboxRelay creates a new outbox relay.
func NewOutboxRelay(txManager *TxManager, handler OutboxHandler, cfg OutboxRelayConfig) *OutboxRelay {
	def := DefaultOutboxRelayConfig()
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = def.MaxRetries
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = def.Backoff
	}
	return &OutboxRelay{
		txManager: txManager,
		handler:   handler,
		cfg:       cfg,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// ProcessBatch claims due messages and hands them to the handler, all in one
// transaction. Concurrent relays skip rows claimed by each other.
// Returns number of published messages.
func (r *OutboxRelay) ProcessBatch(ctx context.Context) (int, error) {
	published := 0
	err := r.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		messages, err := r.claim(ctx)
		if err != nil {
			return err
		}
		for _, msg := range messages {
			ok, err := r.processMessage(ctx, msg)
			if err != nil {
				return err
			}
			if ok {
				published++
			}
		}
		return nil
	})
	return published, err
}

func (r *OutboxRelay) claim(ctx context.Context) ([]*OutboxMessage, error) {
	sql, args, err := psql.Select(outboxColumns...).
		From(outboxTable).
		Where(squirrel.Eq{"status": OutboxStatusPending}).
		Where(squirrel.Or{
			squirrel.Eq{"next_retry_at": nil},
			squirrel.LtOrEq{"next_retry_at": r.now()},
		}).
		OrderBy("created_at", "id").
		Limit(uint64(r.cfg.BatchSize)).
		Suffix("FOR UPDATE SKIP LOCKED").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build outbox query: %w", err)
	}

	var messages []*OutboxMessage
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &messages, sql, args...); err != nil {
		return nil, fmt.Errorf("fetch outbox messages: %w", err)
	}
	return messages, nil
}

// processMessage delivers one message. A delivery failure is recorded on the
// row and reported as (false, nil); only storage errors abort the batch.
func (r *OutboxRelay) processMessage(ctx context.Context, msg *OutboxMessage) (bool, error) {
	q := r.txManager.GetQuerier(ctx)
	now := r.now()

	if handleErr := r.handler.Handle(ctx, msg); handleErr != nil {
		attempt := msg.RetryCount + 1
		status := OutboxStatusPending
		if attempt >= r.cfg.MaxRetries {
			status = OutboxStatusFailed
		}
		errStr := handleErr.Error()

		sql, args, err := psql.Update(outboxTable).
			Set("retry_count", attempt).
			Set("last_error", errStr).
			Set("next_retry_at", now.Add(time.Duration(attempt)*r.cfg.Backoff)).
			Set("status", status).
			Where(squirrel.Eq{"id": msg.ID}).
			ToSql()
		if err != nil {
			return false, fmt.Errorf("build outbox retry: %w", err)
		}
		if _, err := q.Exec(ctx, sql, args...); err != nil {
			return false, fmt.Errorf("update failed message: %w", err)
		}

		logger.Warn(ctx, "outbox delivery failed",
			"message_id", msg.ID,
			"event_type", msg.EventType,
			"attempt", attempt,
			"status", status,
			"error", handleErr,
		)
		return false, nil
	}

	sql, args, err := psql.Update(outboxTable).
		Set("status", OutboxStatusPublished).
		Set("published_at", now).
		Where(squirrel.Eq{"id": msg.ID}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build outbox publish: %w", err)
	}
	if _, err := q.Exec(ctx, sql, args...); err != nil {
		return false, fmt.Errorf("mark message published: %w", err)
	}
	return true, nil
}

// MoveToDLQ moves failed messages to the dead letter queue.
func (r *OutboxRelay) MoveToDLQ(ctx context.Context) (int64, error) {
	result, err := r.txManager.GetQuerier(ctx).Exec(ctx, `
		WITH moved AS (
			DELETE FROM sys_outbox
			WHERE status = $1
			RETURNING id, aggregate_type, aggregate_id, event_type, payload,
			          retry_count, last_error, created_at
		)
		INSERT INTO sys_outbox_dlq (id, aggregate_type, aggregate_id, event_type, payload,
		                            retry_count, failure_reason, created_at, failed_at)
		SELECT id, aggregate_type, aggregate_id, event_type, payload,
		       retry_count, last_error, created_at, NOW()
		FROM moved
	`, OutboxStatusFailed)
	if err != nil {
		return 0, fmt.Errorf("move to DLQ: %w", err)
	}

	return result.RowsAffected(), nil
}

// PurgePublished deletes published messages older than the retention window.
func (r *OutboxRelay) PurgePublished(ctx context.Context, retention time.Duration) (int64, error) {
	sql, args, err := psql.Delete(outboxTable).
		Where(squirrel.Eq{"status": OutboxStatusPublished}).
		Where(squirrel.Lt{"published_at": r.now().Add(-retention)}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build outbox purge: %w", err)
	}
	result, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return 0, fmt.Errorf("purge published messages: %w", err)
	}
	return result.RowsAffected(), nil
}
