package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/idempotency"
)

type idempotencyRecord struct {
	actorID     string
	operation   string
	requestHash string
	done        bool
	replay      idempotency.Replay
	updatedAt   time.Time
	expiresAt   time.Time
}

// IdempotencyStore implements idempotency.Store in memory.
type IdempotencyStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	records map[string]*idempotencyRecord
	now     func() time.Time
}

var _ idempotency.Store = (*IdempotencyStore)(nil)

// NewIdempotencyStore creates a store whose keys live for ttl.
func NewIdempotencyStore(ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{
		ttl:     ttl,
		records: make(map[string]*idempotencyRecord),
		now:     time.Now,
	}
}

func (s *IdempotencyStore) AcquireKey(ctx context.Context, key, actorID, operation, requestHash string) (*idempotency.Replay, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	rec, ok := s.records[key]
	if !ok || now.After(rec.expiresAt) {
		s.records[key] = &idempotencyRecord{
			actorID:     actorID,
			operation:   operation,
			requestHash: requestHash,
			updatedAt:   now,
			expiresAt:   now.Add(s.ttl),
		}
		return nil, nil
	}

	if rec.actorID != actorID || rec.operation != operation || rec.requestHash != requestHash {
		return nil, apperror.NewIdempotencyMismatch(key).
			WithDetail("stored_operation", rec.operation).
			WithDetail("request_operation", operation)
	}
	if rec.done {
		replay := rec.replay
		return &replay, nil
	}
	if now.Sub(rec.updatedAt) <= idempotency.StaleAfter {
		return nil, apperror.NewIdempotencyConflict(key)
	}
	rec.updatedAt = now
	return nil, nil
}

func (s *IdempotencyStore) CompleteKey(ctx context.Context, key string, statusCode int, contentType string, response any) error {
	return s.finish(key, statusCode, contentType, response)
}

func (s *IdempotencyStore) FailKey(ctx context.Context, key string, statusCode int, contentType string, response any) error {
	return s.finish(key, statusCode, contentType, response)
}

func (s *IdempotencyStore) ReleaseKey(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.records[key]; ok && !rec.done {
		delete(s.records, key)
	}
	return nil
}

func (s *IdempotencyStore) finish(key string, statusCode int, contentType string, response any) error {
	var body []byte
	switch v := response.(type) {
	case nil:
	case []byte:
		body = v
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("marshal response: %w", err)
		}
		body = b
	}
	if statusCode == 0 {
		statusCode = http.StatusOK
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[key]
	if !ok {
		return nil
	}
	rec.done = true
	rec.updatedAt = s.now()
	rec.replay = idempotency.Replay{StatusCode: statusCode, ContentType: contentType, Body: body}
	return nil
}
