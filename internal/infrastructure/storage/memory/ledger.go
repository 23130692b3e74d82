package memory

import (
	"context"
	"slices"

	"stockledger/internal/domain"
	"stockledger/internal/domain/ledger"
)

// LedgerStore implements ledger.Store.
type LedgerStore struct {
	db *DB
}

// NewLedgerStore creates a ledger store over db.
func NewLedgerStore(db *DB) *LedgerStore {
	return &LedgerStore{db: db}
}

func (s *LedgerStore) Lookup(ctx context.Context, key ledger.Key) (ledger.StockLevel, bool, error) {
	if t := txFrom(ctx); t != nil {
		if l, ok := t.levels[key]; ok {
			return l, true, nil
		}
	}
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	l, ok := s.db.levels[key]
	return l, ok, nil
}

func (s *LedgerStore) LockLevels(ctx context.Context, keys []ledger.Key) (map[ledger.Key]ledger.StockLevel, error) {
	out := make(map[ledger.Key]ledger.StockLevel, len(keys))
	for _, key := range ledger.SortKeys(keys) {
		if err := s.db.lock(ctx, "level:"+key.String()); err != nil {
			return nil, err
		}
		l, found, err := s.Lookup(ctx, key)
		if err != nil {
			return nil, err
		}
		if !found {
			l = ledger.ZeroLevel(key)
		}
		out[key] = l
	}
	return out, nil
}

func (s *LedgerStore) SaveLevels(ctx context.Context, levels []ledger.StockLevel) error {
	if t := txFrom(ctx); t != nil {
		for _, l := range levels {
			t.levels[l.Key()] = l
		}
		return nil
	}
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, l := range levels {
		s.db.levels[l.Key()] = l
	}
	return nil
}

func (s *LedgerStore) AppendMovements(ctx context.Context, movements []ledger.StockMovement) error {
	if t := txFrom(ctx); t != nil {
		t.movements = append(t.movements, movements...)
		return nil
	}
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	s.db.movements = append(s.db.movements, movements...)
	return nil
}

func (s *LedgerStore) ListLevels(ctx context.Context, filter ledger.LevelFilter) (domain.ListResult[ledger.StockLevel], error) {
	var items []ledger.StockLevel
	for _, l := range s.levels(ctx) {
		if filter.Matches(l) {
			items = append(items, l)
		}
	}
	slices.SortFunc(items, func(a, b ledger.StockLevel) int { return a.Key().Compare(b.Key()) })
	return domain.Window(items, filter.Page), nil
}

func (s *LedgerStore) ListMovements(ctx context.Context, q ledger.MovementQuery) ([]ledger.StockMovement, error) {
	var items []ledger.StockMovement
	for _, m := range s.movements(ctx) {
		if q.Matches(m) {
			items = append(items, m)
		}
	}
	slices.SortFunc(items, ledger.CompareMovements)

	if q.Offset >= len(items) {
		return []ledger.StockMovement{}, nil
	}
	items = items[q.Offset:]
	if q.Limit > 0 && len(items) > q.Limit {
		items = items[:q.Limit]
	}
	return items, nil
}

func (s *LedgerStore) Totals(ctx context.Context, key ledger.Key) (int64, int64, error) {
	var sum, count int64
	for _, m := range s.movements(ctx) {
		if m.Key() == key {
			sum += m.Quantity
			count++
		}
	}
	return sum, count, nil
}

func (s *LedgerStore) LockReference(ctx context.Context, ref ledger.Reference) error {
	return s.db.lock(ctx, "ref:"+ref.String())
}

func (s *LedgerStore) HasReference(ctx context.Context, ref ledger.Reference) (bool, error) {
	for _, m := range s.movements(ctx) {
		if m.Reference == ref {
			return true, nil
		}
	}
	return false, nil
}

// levels returns committed levels overlaid with the transaction's writes.
func (s *LedgerStore) levels(ctx context.Context) map[ledger.Key]ledger.StockLevel {
	s.db.mu.Lock()
	out := make(map[ledger.Key]ledger.StockLevel, len(s.db.levels))
	for k, l := range s.db.levels {
		out[k] = l
	}
	s.db.mu.Unlock()

	if t := txFrom(ctx); t != nil {
		for k, l := range t.levels {
			out[k] = l
		}
	}
	return out
}

func (s *LedgerStore) movements(ctx context.Context) []ledger.StockMovement {
	s.db.mu.Lock()
	out := slices.Clone(s.db.movements)
	s.db.mu.Unlock()

	if t := txFrom(ctx); t != nil {
		out = append(out, t.movements...)
	}
	return out
}
