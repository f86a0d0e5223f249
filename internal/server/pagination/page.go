// Package pagination normalizes page/size query parameters and carries a
// page of results with its totals.
package pagination

// PageSizeConfig configures page size normalization.
type PageSizeConfig struct {
	Default int
	Max     int
}

// ClampPageSize applies defaults and limits for page sizes.
func ClampPageSize(value int, cfg PageSizeConfig) int {
	pageSize := value
	if pageSize <= 0 {
		pageSize = cfg.Default
	}
	if cfg.Max > 0 && pageSize > cfg.Max {
		pageSize = cfg.Max
	}
	if pageSize <= 0 {
		pageSize = 1
	}
	return pageSize
}

// Request is a 1-based page request.
type Request struct {
	Page int
	Size int
}

// Normalize clamps the size and moves non-positive pages to the first one.
func (r Request) Normalize(cfg PageSizeConfig) Request {
	if r.Page < 1 {
		r.Page = 1
	}
	r.Size = ClampPageSize(r.Size, cfg)
	return r
}

func (r Request) Offset() int {
	return (r.Page - 1) * r.Size
}

// Page is one page of items.
type Page[T any] struct {
	Items []T `json:"items"`
	Total int `json:"total"`
	Page  int `json:"page"`
	Size  int `json:"size"`
	Pages int `json:"pages"`
}

// NewPage builds a Page, computing the page count from total and size.
func NewPage[T any](items []T, total int, req Request) *Page[T] {
	if items == nil {
		items = []T{}
	}
	pages := 0
	if req.Size > 0 {
		pages = (total + req.Size - 1) / req.Size
	}
	return &Page[T]{Items: items, Total: total, Page: req.Page, Size: req.Size, Pages: pages}
}
