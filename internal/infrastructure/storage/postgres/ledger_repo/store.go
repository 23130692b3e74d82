// Package ledger_repo provides the PostgreSQL stock ledger store.
package ledger_repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"

	"stockledger/internal/core/id"
	"stockledger/internal/domain"
	"stockledger/internal/domain/ledger"
	"stockledger/internal/infrastructure/storage/postgres"
)

const (
	levelsTable    = "stock_levels"
	movementsTable = "stock_movements"
)

var levelColumns = []string{
	"warehouse_id", "product_id", "quantity", "min_stock_level", "last_movement_at", "updated_at",
}

var movementColumns = []string{
	"id", "warehouse_id", "product_id", "movement_type", "quantity", "stock_after",
	"reference_type", "reference_id", "notes", "movement_date", "created_by", "created_at",
}

// movementRow is a stock_movements row.
type movementRow struct {
	ID            id.ID               `db:"id"`
	WarehouseID   id.ID               `db:"warehouse_id"`
	ProductID     id.ID               `db:"product_id"`
	MovementType  ledger.MovementType `db:"movement_type"`
	Quantity      int64               `db:"quantity"`
	StockAfter    int64               `db:"stock_after"`
	ReferenceType string              `db:"reference_type"`
	ReferenceID   id.ID               `db:"reference_id"`
	Notes         *string             `db:"notes"`
	MovementDate  time.Time           `db:"movement_date"`
	CreatedBy     *string             `db:"created_by"`
	CreatedAt     time.Time           `db:"created_at"`
}

func (r movementRow) toMovement() (ledger.StockMovement, error) {
	ref, err := ledger.ParseReference(r.ReferenceType, r.ReferenceID)
	if err != nil {
		return ledger.StockMovement{}, fmt.Errorf("movement %s: %w", r.ID, err)
	}
	m := ledger.StockMovement{
		ID:           r.ID,
		WarehouseID:  r.WarehouseID,
		ProductID:    r.ProductID,
		MovementType: r.MovementType,
		Quantity:     r.Quantity,
		StockAfter:   r.StockAfter,
		Reference:    ref,
		MovementDate: r.MovementDate,
		CreatedAt:    r.CreatedAt,
	}
	if r.Notes != nil {
		m.Notes = *r.Notes
	}
	if r.CreatedBy != nil {
		m.CreatedBy = *r.CreatedBy
	}
	return m, nil
}

// Store implements ledger.Store.
type Store struct {
	txManager *postgres.TxManager
	builder   squirrel.StatementBuilderType
}

var _ ledger.Store = (*Store)(nil)

// NewStore creates a new ledger store.
func NewStore(txManager *postgres.TxManager) *Store {
	return &Store{
		txManager: txManager,
		builder:   postgres.Builder(),
	}
}

func (s *Store) querier(ctx context.Context) postgres.Querier {
	return s.txManager.GetQuerier(ctx)
}

// Lookup returns the committed level of key.
func (s *Store) Lookup(ctx context.Context, key ledger.Key) (ledger.StockLevel, bool, error) {
	sql, args, err := s.builder.Select(levelColumns...).
		From(levelsTable).
		Where(squirrel.Eq{"warehouse_id": key.WarehouseID, "product_id": key.ProductID}).
		ToSql()
	if err != nil {
		return ledger.StockLevel{}, false, fmt.Errorf("build query: %w", err)
	}

	var level ledger.StockLevel
	if err := pgxscan.Get(ctx, s.querier(ctx), &level, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return ledger.ZeroLevel(key), false, nil
		}
		return ledger.StockLevel{}, false, fmt.Errorf("get stock level: %w", err)
	}
	return level, true, nil
}

// LockLevels inserts missing zero rows and locks every key, both in canonical order.
// Postgres compares uuid bytewise, so ORDER BY matches ledger.Key.Compare.
func (s *Store) LockLevels(ctx context.Context, keys []ledger.Key) (map[ledger.Key]ledger.StockLevel, error) {
	if s.txManager.GetTx(ctx) == nil {
		return nil, postgres.ErrNoTransaction
	}
	sorted := ledger.SortKeys(keys)
	if len(sorted) == 0 {
		return map[ledger.Key]ledger.StockLevel{}, nil
	}

	now := time.Now().UTC()
	insert := s.builder.Insert(levelsTable).
		Columns("warehouse_id", "product_id", "quantity", "min_stock_level", "updated_at")
	match := make(squirrel.Or, 0, len(sorted))
	for _, k := range sorted {
		insert = insert.Values(k.WarehouseID, k.ProductID, 0, 0, now)
		match = append(match, squirrel.Eq{"warehouse_id": k.WarehouseID, "product_id": k.ProductID})
	}

	sql, args, err := insert.Suffix("ON CONFLICT (warehouse_id, product_id) DO NOTHING").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build zero levels: %w", err)
	}
	if _, err := s.querier(ctx).Exec(ctx, sql, args...); err != nil {
		return nil, fmt.Errorf("insert zero levels: %w", err)
	}

	sql, args, err = s.builder.Select(levelColumns...).
		From(levelsTable).
		Where(match).
		OrderBy("warehouse_id", "product_id").
		Suffix("FOR UPDATE").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build lock query: %w", err)
	}

	var levels []ledger.StockLevel
	if err := pgxscan.Select(ctx, s.querier(ctx), &levels, sql, args...); err != nil {
		return nil, fmt.Errorf("lock stock levels: %w", err)
	}

	out := make(map[ledger.Key]ledger.StockLevel, len(levels))
	for _, l := range levels {
		out[l.Key()] = l
	}
	if len(out) != len(sorted) {
		return nil, fmt.Errorf("lock stock levels: locked %d of %d keys", len(out), len(sorted))
	}
	return out, nil
}

// SaveLevels writes locked levels in one round-trip.
func (s *Store) SaveLevels(ctx context.Context, levels []ledger.StockLevel) error {
	queries := make([]postgres.BatchQuery, 0, len(levels))
	for _, l := range levels {
		sql, args, err := s.builder.Update(levelsTable).
			Set("quantity", l.Quantity).
			Set("min_stock_level", l.MinStockLevel).
			Set("last_movement_at", l.LastMovementAt).
			Set("updated_at", l.UpdatedAt).
			Where(squirrel.Eq{"warehouse_id": l.WarehouseID, "product_id": l.ProductID}).
			ToSql()
		if err != nil {
			return fmt.Errorf("build level update: %w", err)
		}
		queries = append(queries, postgres.BatchQuery{SQL: sql, Args: args})
	}

	if err := postgres.NewBatchExecutor(s.txManager).ExecuteBatch(ctx, queries, 1); err != nil {
		if postgres.IsCheckViolation(err) {
			return fmt.Errorf("save stock levels: negative quantity rejected: %w", err)
		}
		return fmt.Errorf("save stock levels: %w", err)
	}
	return nil
}

// AppendMovements copies movements into the log.
func (s *Store) AppendMovements(ctx context.Context, movements []ledger.StockMovement) error {
	rows := make([][]any, 0, len(movements))
	for _, m := range movements {
		rows = append(rows, []any{
			m.ID, m.WarehouseID, m.ProductID, string(m.MovementType), m.Quantity, m.StockAfter,
			string(m.Reference.Type()), m.Reference.ID(), nullable(m.Notes), m.MovementDate,
			nullable(m.CreatedBy), m.CreatedAt,
		})
	}

	if _, err := postgres.NewBatchInserter(s.txManager).CopyFromSlice(ctx, movementsTable, movementColumns, rows); err != nil {
		return fmt.Errorf("append movements: %w", err)
	}
	return nil
}

// ListLevels returns levels ordered by key.
func (s *Store) ListLevels(ctx context.Context, filter ledger.LevelFilter) (domain.ListResult[ledger.StockLevel], error) {
	page := filter.Page.Normalize()
	result := domain.ListResult[ledger.StockLevel]{Items: []ledger.StockLevel{}, Limit: page.Limit, Offset: page.Offset}

	q := s.builder.Select(levelColumns...).From(levelsTable)
	if filter.WarehouseID != nil {
		q = q.Where(squirrel.Eq{"warehouse_id": *filter.WarehouseID})
	}
	if len(filter.ProductIDs) > 0 {
		q = q.Where(squirrel.Eq{"product_id": filter.ProductIDs})
	}
	if filter.ExcludeZero {
		q = q.Where(squirrel.NotEq{"quantity": 0})
	}
	if filter.LowOnly {
		q = q.Where(squirrel.Gt{"min_stock_level": 0}).
			Where(squirrel.Expr("quantity <= min_stock_level"))
	}

	countSQL, countArgs, err := s.builder.Select("COUNT(*)").FromSelect(q, "sub").ToSql()
	if err != nil {
		return result, fmt.Errorf("build count query: %w", err)
	}
	if err := s.querier(ctx).QueryRow(ctx, countSQL, countArgs...).Scan(&result.TotalCount); err != nil {
		return result, fmt.Errorf("count stock levels: %w", err)
	}

	sql, args, err := q.OrderBy("warehouse_id", "product_id").
		Limit(uint64(page.Limit)).
		Offset(uint64(page.Offset)).
		ToSql()
	if err != nil {
		return result, fmt.Errorf("build query: %w", err)
	}
	if err := pgxscan.Select(ctx, s.querier(ctx), &result.Items, sql, args...); err != nil {
		return result, fmt.Errorf("list stock levels: %w", err)
	}
	return result, nil
}

// ListMovements returns movements newest first.
func (s *Store) ListMovements(ctx context.Context, mq ledger.MovementQuery) ([]ledger.StockMovement, error) {
	q := s.builder.Select(movementColumns...).From(movementsTable)
	if mq.WarehouseID != nil {
		q = q.Where(squirrel.Eq{"warehouse_id": *mq.WarehouseID})
	}
	if mq.ProductID != nil {
		q = q.Where(squirrel.Eq{"product_id": *mq.ProductID})
	}
	if len(mq.Types) > 0 {
		types := make([]string, len(mq.Types))
		for i, t := range mq.Types {
			types[i] = string(t)
		}
		q = q.Where(squirrel.Eq{"movement_type": types})
	}
	if mq.Reference != nil {
		q = q.Where(squirrel.Eq{
			"reference_type": string(mq.Reference.Type()),
			"reference_id":   mq.Reference.ID(),
		})
	}
	if mq.FromDate != nil {
		q = q.Where(squirrel.GtOrEq{"movement_date": *mq.FromDate})
	}
	if mq.ToDate != nil {
		q = q.Where(squirrel.LtOrEq{"movement_date": *mq.ToDate})
	}
	if mq.After != nil {
		q = q.Where(squirrel.Expr("(movement_date, id) < (?, ?)", mq.After.MovementDate, mq.After.ID))
	}

	q = q.OrderBy("movement_date DESC", "id DESC")
	if mq.Limit > 0 {
		q = q.Limit(uint64(mq.Limit))
	}
	if mq.Offset > 0 {
		q = q.Offset(uint64(mq.Offset))
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var rows []movementRow
	if err := pgxscan.Select(ctx, s.querier(ctx), &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("list movements: %w", err)
	}

	out := make([]ledger.StockMovement, 0, len(rows))
	for _, r := range rows {
		m, err := r.toMovement()
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// Totals sums the movement log of key.
func (s *Store) Totals(ctx context.Context, key ledger.Key) (int64, int64, error) {
	sql, args, err := s.builder.Select("COALESCE(SUM(quantity), 0)", "COUNT(*)").
		From(movementsTable).
		Where(squirrel.Eq{"warehouse_id": key.WarehouseID, "product_id": key.ProductID}).
		ToSql()
	if err != nil {
		return 0, 0, fmt.Errorf("build query: %w", err)
	}

	var sum, count int64
	if err := s.querier(ctx).QueryRow(ctx, sql, args...).Scan(&sum, &count); err != nil {
		return 0, 0, fmt.Errorf("movement totals: %w", err)
	}
	return sum, count, nil
}

// LockReference takes a transaction-scoped advisory lock on ref.
func (s *Store) LockReference(ctx context.Context, ref ledger.Reference) error {
	tx := s.txManager.GetTx(ctx)
	if tx == nil {
		return postgres.ErrNoTransaction
	}
	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock(hashtext($1))", ref.String()); err != nil {
		return fmt.Errorf("lock reference: %w", err)
	}
	return nil
}

// HasReference reports whether any movement carries ref.
func (s *Store) HasReference(ctx context.Context, ref ledger.Reference) (bool, error) {
	sql, args, err := s.builder.Select("1").
		From(movementsTable).
		Where(squirrel.Eq{"reference_type": string(ref.Type()), "reference_id": ref.ID()}).
		Limit(1).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build query: %w", err)
	}

	var one int
	err = s.querier(ctx).QueryRow(ctx, sql, args...).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("has reference: %w", err)
	}
	return true, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
