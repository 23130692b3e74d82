package dto

import (
	"time"

	"stockledger/internal/domain/audit"
)

// HistoryQuery limits the number of audit entries.
type HistoryQuery struct {
	Limit int `form:"limit" binding:"omitempty,min=1,max=500"`
}

// HistoryEntryResponse is one audited change.
type HistoryEntryResponse struct {
	ID        string         `json:"id"`
	Action    string         `json:"action"`
	ActorID   string         `json:"actorId,omitempty"`
	Changes   map[string]any `json:"changes,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
}

// FromHistory maps audit entries, newest first.
func FromHistory(entries []audit.Entry) []HistoryEntryResponse {
	out := make([]HistoryEntryResponse, len(entries))
	for i, e := range entries {
		out[i] = HistoryEntryResponse{
			ID:        e.ID.String(),
			Action:    string(e.Action),
			ActorID:   e.ActorID,
			Changes:   e.Changes,
			CreatedAt: e.CreatedAt,
		}
	}
	return out
}
