package memory

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"time"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/domain"
	"stockledger/internal/domain/transfer"
)

// TransferRepo implements transfer.Repository.
type TransferRepo struct {
	db *DB
}

// NewTransferRepo creates a transfer repository over db.
func NewTransferRepo(db *DB) *TransferRepo {
	return &TransferRepo{db: db}
}

func (r *TransferRepo) Create(ctx context.Context, t *transfer.Transfer) error {
	for _, existing := range r.all(ctx) {
		if existing.TransferNumber == t.TransferNumber {
			return apperror.NewDuplicate(transfer.EntityName, "transferNumber", t.TransferNumber)
		}
	}
	r.put(ctx, cloneTransfer(*t))
	return nil
}

func (r *TransferRepo) GetByID(ctx context.Context, transferID id.ID) (*transfer.Transfer, error) {
	t, ok := r.get(ctx, transferID)
	if !ok {
		return nil, apperror.NewNotFound(transfer.EntityName, transferID.String())
	}
	return &t, nil
}

func (r *TransferRepo) GetForUpdate(ctx context.Context, transferID id.ID) (*transfer.Transfer, error) {
	if err := r.db.lock(ctx, "transfer:"+transferID.String()); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, transferID)
}

func (r *TransferRepo) Update(ctx context.Context, t *transfer.Transfer) error {
	current, ok := r.get(ctx, t.ID)
	if !ok {
		return apperror.NewNotFound(transfer.EntityName, t.ID.String())
	}
	if current.Version != t.Version {
		return apperror.NewConcurrentModification(transfer.EntityName, t.ID.String())
	}

	t.Version++
	row := cloneTransfer(*t)
	row.Items = current.Items
	r.put(ctx, row)
	return nil
}

// MarkItemTransferred stamps an item that has not moved yet.
func (r *TransferRepo) MarkItemTransferred(ctx context.Context, itemID id.ID, at time.Time) error {
	for _, t := range r.all(ctx) {
		for i := range t.Items {
			if t.Items[i].ID == itemID {
				if t.Items[i].IsTransferred() {
					return apperror.NewNotFound("transfer item", itemID.String())
				}
				row := cloneTransfer(t)
				row.Items[i].TransferredAt = &at
				r.put(ctx, row)
				return nil
			}
		}
	}
	return apperror.NewNotFound("transfer item", itemID.String())
}

func (r *TransferRepo) List(ctx context.Context, filter transfer.ListFilter) (domain.ListResult[*transfer.Transfer], error) {
	search := strings.ToLower(filter.Search)

	var items []*transfer.Transfer
	for _, t := range r.all(ctx) {
		if filter.Status != nil && t.Status != *filter.Status {
			continue
		}
		if filter.WarehouseID != nil && t.FromWarehouseID != *filter.WarehouseID && t.ToWarehouseID != *filter.WarehouseID {
			continue
		}
		if filter.FromDate != nil && t.TransferDate.Before(*filter.FromDate) {
			continue
		}
		if filter.ToDate != nil && t.TransferDate.After(*filter.ToDate) {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(t.TransferNumber), search) {
			continue
		}
		header := t
		header.Items = nil
		items = append(items, &header)
	}

	slices.SortFunc(items, func(a, b *transfer.Transfer) int {
		if c := b.TransferDate.Compare(a.TransferDate); c != 0 {
			return c
		}
		return cmp.Compare(b.TransferNumber, a.TransferNumber)
	})
	return domain.Window(items, filter.Page), nil
}

func (r *TransferRepo) get(ctx context.Context, transferID id.ID) (transfer.Transfer, bool) {
	if tx := txFrom(ctx); tx != nil {
		if t, ok := tx.transfers[transferID]; ok {
			return cloneTransfer(t), true
		}
	}
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	t, ok := r.db.transfers[transferID]
	if !ok {
		return transfer.Transfer{}, false
	}
	return cloneTransfer(t), true
}

// all returns committed transfers overlaid with the transaction's writes.
func (r *TransferRepo) all(ctx context.Context) []transfer.Transfer {
	r.db.mu.Lock()
	merged := make(map[id.ID]transfer.Transfer, len(r.db.transfers))
	for tid, t := range r.db.transfers {
		merged[tid] = t
	}
	r.db.mu.Unlock()

	if tx := txFrom(ctx); tx != nil {
		for tid, t := range tx.transfers {
			merged[tid] = t
		}
	}

	out := make([]transfer.Transfer, 0, len(merged))
	for _, t := range merged {
		out = append(out, cloneTransfer(t))
	}
	return out
}

func (r *TransferRepo) put(ctx context.Context, t transfer.Transfer) {
	if tx := txFrom(ctx); tx != nil {
		tx.transfers[t.ID] = t
		return
	}
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.db.transfers[t.ID] = t
}

func cloneTransfer(t transfer.Transfer) transfer.Transfer {
	t.Items = slices.Clone(t.Items)
	return t
}
