package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	appctx "stockledger/internal/core/context"
	"stockledger/internal/core/id"
	"stockledger/internal/domain/audit"
)

// AuditLog implements audit.Logger.
type AuditLog struct {
	db *DB
}

// NewAuditLog creates an audit log over db.
func NewAuditLog(db *DB) *AuditLog {
	return &AuditLog{db: db}
}

var _ audit.Logger = (*AuditLog)(nil)

func (a *AuditLog) Record(ctx context.Context, entityType string, entityID id.ID, action audit.Action, before, after any) error {
	raw, err := audit.Changes(before, after)
	if err != nil {
		return err
	}
	var changes map[string]any
	if err := json.Unmarshal(raw, &changes); err != nil {
		return fmt.Errorf("decode changes: %w", err)
	}

	entry := audit.Entry{
		ID:         id.New(),
		EntityType: entityType,
		EntityID:   entityID,
		Action:     action,
		ActorID:    appctx.GetActorID(ctx),
		Changes:    changes,
		CreatedAt:  time.Now().UTC(),
	}
	a.db.write(ctx, func(db *DB) {
		db.audit = append(db.audit, entry)
	})
	return nil
}

// History returns entries newest first.
func (a *AuditLog) History(_ context.Context, entityType string, entityID id.ID, limit int) ([]audit.Entry, error) {
	a.db.mu.Lock()
	defer a.db.mu.Unlock()

	var out []audit.Entry
	for i := len(a.db.audit) - 1; i >= 0; i-- {
		e := a.db.audit[i]
		if e.EntityType != entityType || e.EntityID != entityID {
			continue
		}
		out = append(out, e)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}
