package messaging

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockledger/internal/core/events"
	"stockledger/internal/core/id"
	"stockledger/internal/infrastructure/storage/postgres"
)

func TestNewEnvelope(t *testing.T) {
	msg := &postgres.OutboxMessage{
		ID:            id.New(),
		AggregateType: events.AggregateTransfer,
		AggregateID:   id.New(),
		EventType:     events.TransferCompleted,
		Payload:       json.RawMessage(`{"status":"completed"}`),
		CreatedAt:     time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}

	data, err := json.Marshal(NewEnvelope(msg))
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "transfer.completed", got["eventType"])
	assert.Equal(t, "StockTransfer", got["aggregateType"])
	assert.Equal(t, msg.AggregateID.String(), got["aggregateId"])
	assert.Equal(t, map[string]any{"status": "completed"}, got["payload"])
	assert.Equal(t, "2026-03-01T10:00:00Z", got["occurredAt"])
}

func TestRedisPublisher_HandleReportsBrokerFailure(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	p := NewRedisPublisherWithClient(client, "stockledger.events")
	defer p.Close()

	err := p.Handle(context.Background(), &postgres.OutboxMessage{
		ID:        id.New(),
		EventType: events.StockAdjusted,
		Payload:   json.RawMessage(`{}`),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "publish stock.adjusted")
}
