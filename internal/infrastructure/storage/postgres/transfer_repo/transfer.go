// Package transfer_repo provides the PostgreSQL transfer repository.
package transfer_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/entity"
	"stockledger/internal/core/id"
	"stockledger/internal/domain"
	"stockledger/internal/domain/transfer"
	"stockledger/internal/infrastructure/storage/postgres"
)

const (
	transfersTable = "stock_transfers"
	itemsTable     = "stock_transfer_items"
)

var (
	headerColumns = entity.Columns[transfer.Transfer]()
	itemColumns   = entity.Columns[transfer.Item]()
)

// Repo implements transfer.Repository.
type Repo struct {
	txManager *postgres.TxManager
	builder   squirrel.StatementBuilderType
}

var _ transfer.Repository = (*Repo)(nil)

// NewRepo creates a new transfer repository.
func NewRepo(txManager *postgres.TxManager) *Repo {
	return &Repo{txManager: txManager, builder: postgres.Builder()}
}

func (r *Repo) querier(ctx context.Context) postgres.Querier {
	return r.txManager.GetQuerier(ctx)
}

// Create inserts the header, then copies the items.
func (r *Repo) Create(ctx context.Context, t *transfer.Transfer) error {
	if r.txManager.GetTx(ctx) == nil {
		return postgres.ErrNoTransaction
	}

	sql, args, err := r.builder.Insert(transfersTable).SetMap(entity.ToMap(t)).ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.querier(ctx).Exec(ctx, sql, args...); err != nil {
		return postgres.MapUniqueViolation(fmt.Errorf("insert transfer: %w", err),
			transfer.EntityName, "transferNumber", t.TransferNumber)
	}

	rows := make([][]any, 0, len(t.Items))
	for _, item := range t.Items {
		m := entity.ToMap(item)
		row := make([]any, len(itemColumns))
		for i, col := range itemColumns {
			row[i] = m[col]
		}
		rows = append(rows, row)
	}
	if _, err := postgres.NewBatchInserter(r.txManager).CopyFromSlice(ctx, itemsTable, itemColumns, rows); err != nil {
		return fmt.Errorf("copy transfer items: %w", err)
	}
	return nil
}

// GetByID loads the header and its items.
func (r *Repo) GetByID(ctx context.Context, transferID id.ID) (*transfer.Transfer, error) {
	return r.get(ctx, transferID, "")
}

// GetForUpdate loads the transfer and locks the header row.
func (r *Repo) GetForUpdate(ctx context.Context, transferID id.ID) (*transfer.Transfer, error) {
	if r.txManager.GetTx(ctx) == nil {
		return nil, postgres.ErrNoTransaction
	}
	return r.get(ctx, transferID, "FOR UPDATE")
}

func (r *Repo) get(ctx context.Context, transferID id.ID, suffix string) (*transfer.Transfer, error) {
	q := r.builder.Select(headerColumns...).From(transfersTable).Where(squirrel.Eq{"id": transferID})
	if suffix != "" {
		q = q.Suffix(suffix)
	}
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var t transfer.Transfer
	if err := pgxscan.Get(ctx, r.querier(ctx), &t, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound(transfer.EntityName, transferID.String())
		}
		return nil, fmt.Errorf("get transfer: %w", err)
	}

	sql, args, err = r.builder.Select(itemColumns...).
		From(itemsTable).
		Where(squirrel.Eq{"transfer_id": transferID}).
		OrderBy("line_no").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build items query: %w", err)
	}
	if err := pgxscan.Select(ctx, r.querier(ctx), &t.Items, sql, args...); err != nil {
		return nil, fmt.Errorf("get transfer items: %w", err)
	}
	return &t, nil
}

// Update persists header fields with optimistic locking and advances t.Version.
func (r *Repo) Update(ctx context.Context, t *transfer.Transfer) error {
	data := entity.ToMap(t)
	delete(data, "id")
	delete(data, "version")
	delete(data, "created_at")

	sql, args, err := r.builder.Update(transfersTable).
		SetMap(data).
		Set("version", squirrel.Expr("version + 1")).
		Where(squirrel.Eq{"id": t.ID, "version": t.Version}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	result, err := r.querier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update transfer: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewConcurrentModification(transfer.EntityName, t.ID.String())
	}
	t.Version++
	return nil
}

// MarkItemTransferred stamps an item that has not moved yet.
func (r *Repo) MarkItemTransferred(ctx context.Context, itemID id.ID, at time.Time) error {
	sql, args, err := r.builder.Update(itemsTable).
		Set("transferred_at", at).
		Where(squirrel.Eq{"id": itemID, "transferred_at": nil}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	result, err := r.querier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("mark item transferred: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewNotFound("transfer item", itemID.String())
	}
	return nil
}

// List returns headers, newest transfer date first.
func (r *Repo) List(ctx context.Context, filter transfer.ListFilter) (domain.ListResult[*transfer.Transfer], error) {
	page := filter.Page.Normalize()
	result := domain.ListResult[*transfer.Transfer]{Items: []*transfer.Transfer{}, Limit: page.Limit, Offset: page.Offset}

	q := r.builder.Select(headerColumns...).From(transfersTable)
	if filter.Status != nil {
		q = q.Where(squirrel.Eq{"status": string(*filter.Status)})
	}
	if filter.WarehouseID != nil {
		q = q.Where(squirrel.Or{
			squirrel.Eq{"from_warehouse_id": *filter.WarehouseID},
			squirrel.Eq{"to_warehouse_id": *filter.WarehouseID},
		})
	}
	if filter.FromDate != nil {
		q = q.Where(squirrel.GtOrEq{"transfer_date": *filter.FromDate})
	}
	if filter.ToDate != nil {
		q = q.Where(squirrel.LtOrEq{"transfer_date": *filter.ToDate})
	}
	if filter.Search != "" {
		q = q.Where(squirrel.ILike{"transfer_number": "%" + filter.Search + "%"})
	}

	countSQL, countArgs, err := r.builder.Select("COUNT(*)").FromSelect(q, "sub").ToSql()
	if err != nil {
		return result, fmt.Errorf("build count query: %w", err)
	}
	if err := r.querier(ctx).QueryRow(ctx, countSQL, countArgs...).Scan(&result.TotalCount); err != nil {
		return result, fmt.Errorf("count transfers: %w", err)
	}

	sql, args, err := q.OrderBy("transfer_date DESC", "transfer_number DESC").
		Limit(uint64(page.Limit)).
		Offset(uint64(page.Offset)).
		ToSql()
	if err != nil {
		return result, fmt.Errorf("build query: %w", err)
	}
	if err := pgxscan.Select(ctx, r.querier(ctx), &result.Items, sql, args...); err != nil {
		return result, fmt.Errorf("list transfers: %w", err)
	}
	return result, nil
}
