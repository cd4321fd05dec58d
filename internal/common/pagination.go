package common

import (
	"net/http"
	"strconv"
)

// MaxPerPage caps the page size a client may request.
const MaxPerPage = 100

// Page is a validated page request.
type Page struct {
	Number int
	Size   int
}

// Pagination is the metadata returned next to list results.
type Pagination struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	TotalItems int `json:"total_items"`
	TotalPages int `json:"total_pages"`
}

// ParsePage reads ?page= and ?limit=, ignoring invalid values.
func ParsePage(r *http.Request, defaultSize int) Page {
	p := Page{Number: 1, Size: defaultSize}
	q := r.URL.Query()
	if n, err := strconv.Atoi(q.Get("page")); err == nil && n > 0 {
		p.Number = n
	}
	if n, err := strconv.Atoi(q.Get("limit")); err == nil && n > 0 {
		p.Size = n
	}
	if p.Size <= 0 {
		p.Size = 20
	}
	if p.Size > MaxPerPage {
		p.Size = MaxPerPage
	}
	return p
}

// Bounds returns the slice bounds of this page within total items.
func (p Page) Bounds(total int) (start, end int) {
	start = min((p.Number-1)*p.Size, total)
	end = min(start+p.Size, total)
	return start, end
}

// Meta describes this page within total items.
func (p Page) Meta(total int) Pagination {
	pages := 0
	if p.Size > 0 {
		pages = (total + p.Size - 1) / p.Size
	}
	return Pagination{Page: p.Number, PerPage: p.Size, TotalItems: total, TotalPages: pages}
}
