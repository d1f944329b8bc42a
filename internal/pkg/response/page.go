package response

// Pager describes where the next page of a cursor listing starts.
type Pager struct {
	Next     *int64 `json:"next,omitempty"`
	PageSize int64  `json:"page_size"`
}

// CursorPageResponse is the standard wrapper for cursor-paginated list endpoints.
type CursorPageResponse[T any] struct {
	Items []T   `json:"items"`
	Pager Pager `json:"pager"`
}

// NewCursorPageResponse is a helper to quickly create a response.
// next is nil when the listing is exhausted.
func NewCursorPageResponse[T any](items []T, pageSize int64, next *int64) CursorPageResponse[T] {
	// Handle empty slice to avoid JSON outputting null
	if items == nil {
		items = make([]T, 0)
	}

	return CursorPageResponse[T]{
		Items: items,
		Pager: Pager{
			Next:     next,
			PageSize: pageSize,
		},
	}
}
