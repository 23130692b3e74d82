// Package numerator implements core/numerator.Generator on the sys_sequences table.
package numerator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	corenumerator "stockledger/internal/core/numerator"
)

// Querier is the slice of pgx the service needs.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Resolver returns the querier for ctx: the active transaction when there is one.
type Resolver func(ctx context.Context) Querier

const reserveSQL = `
	INSERT INTO sys_sequences (key, current_val)
	VALUES ($1, $2)
	ON CONFLICT (key) DO UPDATE SET current_val = sys_sequences.current_val + EXCLUDED.current_val
	RETURNING current_val`

// block is a reserved range (next-1, last].
type block struct {
	next int64
	last int64
}

// Service allocates numbers from PostgreSQL counters.
type Service struct {
	resolve Resolver

	mu     sync.Mutex
	blocks map[string]*block
}

var _ corenumerator.Generator = (*Service)(nil)

// New creates a numerator service bound to a single querier.
func New(querier Querier) *Service {
	return NewWithResolver(func(context.Context) Querier { return querier })
}

// NewWithResolver creates a numerator service that resolves its querier per call,
// so strict numbers allocated inside a business transaction roll back with it.
func NewWithResolver(resolve Resolver) *Service {
	return &Service{resolve: resolve, blocks: make(map[string]*block)}
}

// GetNextNumber implements corenumerator.Generator.
func (s *Service) GetNextNumber(ctx context.Context, cfg corenumerator.Config, opts *corenumerator.Options, period time.Time) (string, error) {
	if opts == nil {
		opts = corenumerator.DefaultOptions()
	}
	key := cfg.Key(period)

	var (
		n   int64
		err error
	)
	if opts.Strategy == corenumerator.StrategyCached {
		n, err = s.nextCached(ctx, key, opts.RangeSize)
	} else {
		n, err = s.reserve(ctx, key, 1)
	}
	if err != nil {
		return "", fmt.Errorf("next number for %s: %w", key, err)
	}
	return cfg.Format(period, n), nil
}

func (s *Service) nextCached(ctx context.Context, key string, size int64) (int64, error) {
	if size <= 0 {
		size = corenumerator.DefaultRangeSize
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	b := s.blocks[key]
	if b == nil || b.next > b.last {
		last, err := s.reserve(ctx, key, size)
		if err != nil {
			return 0, err
		}
		b = &block{next: last - size + 1, last: last}
		s.blocks[key] = b
	}
	n := b.next
	b.next++
	return n, nil
}

// reserve advances the counter by size and returns its new value.
func (s *Service) reserve(ctx context.Context, key string, size int64) (int64, error) {
	var last int64
	if err := s.resolve(ctx).QueryRow(ctx, reserveSQL, key, size).Scan(&last); err != nil {
		return 0, fmt.Errorf("reserve %d: %w", size, err)
	}
	return last, nil
}
