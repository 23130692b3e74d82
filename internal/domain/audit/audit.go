// Package audit defines the change log for catalog entries and transfers.
package audit

import (
	"context"
	"time"

	"stockledger/internal/core/id"
)

// Action represents the type of audited operation.
type Action string

const (
	ActionCreate     Action = "create"
	ActionUpdate     Action = "update"
	ActionActivate   Action = "activate"
	ActionDeactivate Action = "deactivate"
	ActionTransition Action = "transition"
)

// Entry is one audited change as returned by History.
type Entry struct {
	ID         id.ID          `json:"id"`
	EntityType string         `json:"entityType"`
	EntityID   id.ID          `json:"entityId"`
	Action     Action         `json:"action"`
	ActorID    string         `json:"actorId,omitempty"`
	Changes    map[string]any `json:"changes"`
	CreatedAt  time.Time      `json:"createdAt"`
}

// Logger records changes inside the caller's transaction.
// before is nil for creations; implementations store only the fields that differ.
type Logger interface {
	Record(ctx context.Context, entityType string, entityID id.ID, action Action, before, after any) error
	History(ctx context.Context, entityType string, entityID id.ID, limit int) ([]Entry, error)
}

// Diff returns {"field": {"old": x, "new": y}} for every field that differs.
func Diff(before, after map[string]any) map[string]any {
	changes := make(map[string]any)

	for key, newVal := range after {
		oldVal, exists := before[key]
		if !exists || !equal(oldVal, newVal) {
			changes[key] = map[string]any{"old": oldVal, "new": newVal}
		}
	}
	for key, oldVal := range before {
		if _, exists := after[key]; !exists {
			changes[key] = map[string]any{"old": oldVal, "new": nil}
		}
	}

	return changes
}
