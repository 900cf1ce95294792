package models

// Page is the envelope returned by paginated list endpoints.
type Page[T any] struct {
	Items   []T  `json:"items"`
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
}

// NewPage trims a result fetched with limit+1 rows into a page.
func NewPage[T any](items []T, limit, offset int) Page[T] {
	hasMore := false
	if limit > 0 && len(items) > limit {
		items = items[:limit]
		hasMore = true
	}
	if items == nil {
		items = []T{}
	}
	return Page[T]{Items: items, Limit: limit, Offset: offset, HasMore: hasMore}
}
