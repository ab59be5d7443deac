package pagination

const MaxPageSize = 250

// Page is a 1-based offset page request.
type Page struct {
	Page     int `form:"page"`
	PageSize int `form:"page_size"`
}

type PageInfo struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
}

// Normalize clamps page to at least 1 and substitutes defaultSize for non-positive sizes.
func (p Page) Normalize(defaultSize int) Page {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize <= 0 {
		p.PageSize = defaultSize
	}
	if p.PageSize <= 0 {
		p.PageSize = 10
	}
	if p.PageSize > MaxPageSize {
		p.PageSize = MaxPageSize
	}
	return p
}

func (p Page) Offset() int {
	if p.Page < 1 {
		return 0
	}
	return (p.Page - 1) * p.PageSize
}

// Slice returns the window of items for the page. Out-of-range pages yield an empty slice.
func Slice[T any](items []T, p Page) []T {
	start := p.Offset()
	if start >= len(items) {
		return []T{}
	}
	end := start + p.PageSize
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

func BuildPageInfo(p Page, total int64) PageInfo {
	info := PageInfo{Page: p.Page, PageSize: p.PageSize, Total: total}
	if p.PageSize > 0 {
		info.TotalPages = int((total + int64(p.PageSize) - 1) / int64(p.PageSize))
	}
	return info
}
