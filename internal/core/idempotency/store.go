// Package idempotency defines the contract for X-Idempotency-Key handling.
package idempotency

import (
	"context"
	"time"
)

// StaleAfter is how long a pending key may sit before another request reclaims it.
const StaleAfter = time.Minute

// Replay is a stored response returned instead of re-running the operation.
type Replay struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// Store persists idempotency keys.
type Store interface {
	// AcquireKey returns:
	//   - (nil, nil) if the caller owns the key and must run the operation
	//   - (replay, nil) if the operation already finished
	//   - (nil, error) if the key is in flight elsewhere or belongs to another request
	AcquireKey(ctx context.Context, key, actorID, operation, requestHash string) (*Replay, error)

	// CompleteKey stores a successful response for replay.
	CompleteKey(ctx context.Context, key string, statusCode int, contentType string, response any) error

	// FailKey stores an error response for replay.
	FailKey(ctx context.Context, key string, statusCode int, contentType string, response any) error

	// ReleaseKey forgets a pending key so the request can be retried.
	ReleaseKey(ctx context.Context, key string) error
}
