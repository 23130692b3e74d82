package ledger

import (
	"encoding/base64"
	"strings"
	"time"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/domain"
)

// LevelFilter narrows stock level listings.
type LevelFilter struct {
	WarehouseID *id.ID
	ProductIDs  []id.ID
	ExcludeZero bool
	LowOnly     bool
	domain.Page
}

// Matches applies the filter to a single level.
func (f LevelFilter) Matches(l StockLevel) bool {
	if f.WarehouseID != nil && l.WarehouseID != *f.WarehouseID {
		return false
	}
	if len(f.ProductIDs) > 0 && !containsID(f.ProductIDs, l.ProductID) {
		return false
	}
	if f.ExcludeZero && l.Quantity == 0 {
		return false
	}
	if f.LowOnly && !l.IsLow() {
		return false
	}
	return true
}

// MovementFilter narrows movement listings.
// Results are ordered newest first; Cursor continues a previous page and takes precedence over Offset.
type MovementFilter struct {
	WarehouseID *id.ID
	ProductID   *id.ID
	Types       []MovementType
	Reference   *Reference
	FromDate    *time.Time
	ToDate      *time.Time
	Cursor      string
	domain.Page
}

// MovementQuery is a MovementFilter resolved for a Store.
type MovementQuery struct {
	WarehouseID *id.ID
	ProductID   *id.ID
	Types       []MovementType
	Reference   *Reference
	FromDate    *time.Time
	ToDate      *time.Time

	// After returns only movements strictly older than the cursor position.
	After  *Cursor
	Limit  int
	Offset int
}

// Matches applies the query predicates (not paging) to a single movement.
func (q MovementQuery) Matches(m StockMovement) bool {
	if q.WarehouseID != nil && m.WarehouseID != *q.WarehouseID {
		return false
	}
	if q.ProductID != nil && m.ProductID != *q.ProductID {
		return false
	}
	if len(q.Types) > 0 && !containsType(q.Types, m.MovementType) {
		return false
	}
	if q.Reference != nil && m.Reference != *q.Reference {
		return false
	}
	if q.FromDate != nil && m.MovementDate.Before(*q.FromDate) {
		return false
	}
	if q.ToDate != nil && m.MovementDate.After(*q.ToDate) {
		return false
	}
	if q.After != nil && !q.After.Follows(m) {
		return false
	}
	return true
}

// MovementPage is one page of the movement log.
type MovementPage struct {
	Items      []StockMovement `json:"items"`
	Limit      int             `json:"limit"`
	Offset     int             `json:"offset"`
	NextCursor string          `json:"nextCursor,omitempty"`
}

// Cursor is a keyset position in the (movement_date DESC, id DESC) ordering.
type Cursor struct {
	MovementDate time.Time
	ID           id.ID
}

// CursorOf returns the position of m.
func CursorOf(m StockMovement) Cursor {
	return Cursor{MovementDate: m.MovementDate, ID: m.ID}
}

// Follows reports whether m sorts after the cursor.
func (c Cursor) Follows(m StockMovement) bool {
	if m.MovementDate.Equal(c.MovementDate) {
		return id.Compare(m.ID, c.ID) < 0
	}
	return m.MovementDate.Before(c.MovementDate)
}

// Encode renders the cursor as an opaque URL-safe token.
func (c Cursor) Encode() string {
	raw := c.MovementDate.UTC().Format(time.RFC3339Nano) + "|" + c.ID.String()
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// DecodeCursor parses a token produced by Cursor.Encode.
func DecodeCursor(token string) (Cursor, error) {
	invalid := apperror.NewValidation("invalid cursor").WithDetail("field", "cursor")

	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return Cursor{}, invalid.WithCause(err)
	}
	datePart, idPart, ok := strings.Cut(string(raw), "|")
	if !ok {
		return Cursor{}, invalid
	}
	date, err := time.Parse(time.RFC3339Nano, datePart)
	if err != nil {
		return Cursor{}, invalid.WithCause(err)
	}
	movementID, err := id.Parse(idPart)
	if err != nil {
		return Cursor{}, invalid.WithCause(err)
	}
	return Cursor{MovementDate: date, ID: movementID}, nil
}

// CompareMovements orders movements newest first (movement_date DESC, id DESC).
func CompareMovements(a, b StockMovement) int {
	if c := b.MovementDate.Compare(a.MovementDate); c != 0 {
		return c
	}
	return id.Compare(b.ID, a.ID)
}

func containsID(ids []id.ID, v id.ID) bool {
	for _, x := range ids {
		if x == v {
			return true
		}
	}
	return false
}

func containsType(types []MovementType, v MovementType) bool {
	for _, x := range types {
		if x == v {
			return true
		}
	}
	return false
}
