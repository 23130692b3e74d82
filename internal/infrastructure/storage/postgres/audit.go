package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/klauspost/compress/zstd"

	appctx "stockledger/internal/core/context"
	"stockledger/internal/core/id"
	"stockledger/internal/domain/audit"
)

// CompressionAlgo specifies how a change set is stored.
type CompressionAlgo string

const (
	CompressionNone CompressionAlgo = "none"
	CompressionZstd CompressionAlgo = "zstd"
)

// DefaultCompressThreshold is the change-set size above which it is compressed.
const DefaultCompressThreshold = 10 * 1024

// auditRow is a sys_audit row.
type auditRow struct {
	ID                id.ID           `db:"id"`
	EntityType        string          `db:"entity_type"`
	EntityID          id.ID           `db:"entity_id"`
	Action            audit.Action    `db:"action"`
	ActorID           *string         `db:"actor_id"`
	Changes           json.RawMessage `db:"changes"`
	ChangesCompressed []byte          `db:"changes_compressed"`
	CompressionAlgo   CompressionAlgo `db:"compression_algo"`
	CreatedAt         time.Time       `db:"created_at"`
}

// AuditLog implements audit.Logger on the sys_audit table.
// Entries are written through the caller's transaction.
type AuditLog struct {
	txManager         *TxManager
	encoder           *zstd.Encoder
	decoder           *zstd.Decoder
	compressThreshold int
}

var _ audit.Logger = (*AuditLog)(nil)

// NewAuditLog creates an audit log.
func NewAuditLog(txManager *TxManager) (*AuditLog, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}

	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}

	return &AuditLog{
		txManager:         txManager,
		encoder:           encoder,
		decoder:           decoder,
		compressThreshold: DefaultCompressThreshold,
	}, nil
}

// Record stores the diff between before and after.
func (a *AuditLog) Record(ctx context.Context, entityType string, entityID id.ID, action audit.Action, before, after any) error {
	changes, err := audit.Changes(before, after)
	if err != nil {
		return err
	}

	row := auditRow{
		ID:              id.New(),
		EntityType:      entityType,
		EntityID:        entityID,
		Action:          action,
		CompressionAlgo: CompressionNone,
		CreatedAt:       time.Now().UTC(),
	}
	if actorID := appctx.GetActorID(ctx); actorID != "" {
		row.ActorID = &actorID
	}
	row.Changes, row.ChangesCompressed, row.CompressionAlgo = a.encode(changes)

	query, args, err := psql.Insert("sys_audit").
		Columns("id", "entity_type", "entity_id", "action", "actor_id",
			"changes", "changes_compressed", "compression_algo", "created_at").
		Values(row.ID, row.EntityType, row.EntityID, row.Action, row.ActorID,
			row.Changes, row.ChangesCompressed, row.CompressionAlgo, row.CreatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build audit insert: %w", err)
	}

	if _, err := a.txManager.GetQuerier(ctx).Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// History returns the latest entries for an entity, newest first.
func (a *AuditLog) History(ctx context.Context, entityType string, entityID id.ID, limit int) ([]audit.Entry, error) {
	builder := psql.Select("id", "entity_type", "entity_id", "action", "actor_id",
		"changes", "changes_compressed", "compression_algo", "created_at").
		From("sys_audit").
		Where(squirrel.Eq{"entity_type": entityType, "entity_id": entityID}).
		OrderBy("created_at DESC", "id DESC")
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build audit query: %w", err)
	}

	var rows []auditRow
	if err := pgxscan.Select(ctx, a.txManager.GetQuerier(ctx), &rows, query, args...); err != nil {
		return nil, fmt.Errorf("query audit history: %w", err)
	}

	entries := make([]audit.Entry, 0, len(rows))
	for _, r := range rows {
		raw, err := a.decode(r)
		if err != nil {
			return nil, err
		}
		e := audit.Entry{
			ID:         r.ID,
			EntityType: r.EntityType,
			EntityID:   r.EntityID,
			Action:     r.Action,
			CreatedAt:  r.CreatedAt,
		}
		if r.ActorID != nil {
			e.ActorID = *r.ActorID
		}
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &e.Changes); err != nil {
				return nil, fmt.Errorf("decode audit changes: %w", err)
			}
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func (a *AuditLog) encode(changes json.RawMessage) (json.RawMessage, []byte, CompressionAlgo) {
	if len(changes) <= a.compressThreshold {
		return changes, nil, CompressionNone
	}
	return nil, a.encoder.EncodeAll(changes, nil), CompressionZstd
}

func (a *AuditLog) decode(r auditRow) ([]byte, error) {
	if r.CompressionAlgo != CompressionZstd {
		return r.Changes, nil
	}
	raw, err := a.decoder.DecodeAll(r.ChangesCompressed, nil)
	if err != nil {
		return nil, fmt.Errorf("decompress audit changes: %w", err)
	}
	return raw, nil
}
