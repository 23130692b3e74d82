package audit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDiff(t *testing.T) {
	now := time.Now()
	addr := "Dock 4"
	sameAddr := "Dock 4"

	before := map[string]any{"name": "Main", "address": &addr, "updated_at": now, "legacy": 1}
	after := map[string]any{"name": "Central", "address": &sameAddr, "updated_at": now.In(time.FixedZone("X", 3600)), "is_active": true}

	changes := Diff(before, after)

	assert.Equal(t, map[string]any{"old": "Main", "new": "Central"}, changes["name"])
	assert.Equal(t, map[string]any{"old": nil, "new": true}, changes["is_active"])
	assert.Equal(t, map[string]any{"old": 1, "new": nil}, changes["legacy"])
	assert.NotContains(t, changes, "address")
	assert.NotContains(t, changes, "updated_at")
}

func TestDiff_CreationHasEveryField(t *testing.T) {
	changes := Diff(nil, map[string]any{"code": "WH-1"})
	assert.Equal(t, map[string]any{"old": nil, "new": "WH-1"}, changes["code"])
}

type changeSubject struct {
	Code string `db:"code"`
	Note string
}

func TestChanges(t *testing.T) {
	raw, err := Changes(&changeSubject{Code: "A", Note: "x"}, &changeSubject{Code: "B", Note: "y"})
	assert.NoError(t, err)
	assert.JSONEq(t, `{"code":{"old":"A","new":"B"}}`, string(raw))
}
