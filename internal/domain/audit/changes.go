package audit

import (
	"encoding/json"
	"fmt"

	"stockledger/internal/core/entity"
)

// Changes returns the JSON-encoded Diff between two entity states,
// keyed by column name.
func Changes(before, after any) (json.RawMessage, error) {
	data, err := json.Marshal(Diff(entity.ToMap(before), entity.ToMap(after)))
	if err != nil {
		return nil, fmt.Errorf("marshal changes: %w", err)
	}
	return data, nil
}
