// Package domain holds types shared by the domain packages.
package domain

// Pagination limits applied when a caller does not specify them.
const (
	DefaultLimit = 50
	MaxLimit     = 500
)

// Page is an offset/limit window over a result set.
type Page struct {
	Limit  int
	Offset int
}

// Normalize clamps the page to sane bounds.
func (p Page) Normalize() Page {
	if p.Limit <= 0 {
		p.Limit = DefaultLimit
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

// ListResult contains paginated results.
type ListResult[T any] struct {
	Items      []T   `json:"items"`
	TotalCount int64 `json:"totalCount"`
	Limit      int   `json:"limit"`
	Offset     int   `json:"offset"`
}

// Window applies an offset/limit page to an in-memory slice.
func Window[T any](items []T, page Page) ListResult[T] {
	page = page.Normalize()
	res := ListResult[T]{TotalCount: int64(len(items)), Limit: page.Limit, Offset: page.Offset}
	if page.Offset >= len(items) {
		res.Items = []T{}
		return res
	}
	end := page.Offset + page.Limit
	if end > len(items) {
		end = len(items)
	}
	res.Items = items[page.Offset:end]
	return res
}
