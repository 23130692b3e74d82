package numerator

import (
	"context"
	"time"
)

// Generator hands out sequential numbers.
// Implementations live in the infrastructure layer.
type Generator interface {
	GetNextNumber(ctx context.Context, cfg Config, opts *Options, period time.Time) (string, error)
}
