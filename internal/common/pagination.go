package common

import (
	"net/http"
	"strconv"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Page holds normalized pagination parameters.
type Page struct {
	Number int32
	Size   int32
}

func (p Page) Offset() int32 { return (p.Number - 1) * p.Size }

// ParsePage reads page and page_size query params, clamping to sane bounds.
func ParsePage(r *http.Request) Page {
	p := Page{Number: 1, Size: defaultPageSize}
	if raw := r.URL.Query().Get("page"); raw != "" {
		if n, err := strconv.ParseInt(raw, 10, 32); err == nil && n > 0 {
			p.Number = int32(n)
		}
	}
	if raw := r.URL.Query().Get("page_size"); raw != "" {
		if n, err := strconv.ParseInt(raw, 10, 32); err == nil && n > 0 {
			if n > maxPageSize {
				n = maxPageSize
			}
			p.Size = int32(n)
		}
	}
	return p
}

// PageMeta is the pagination envelope returned alongside list payloads.
type PageMeta struct {
	Page       int32 `json:"page"`
	PageSize   int32 `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int64 `json:"total_pages"`
}

// NewPageMeta computes the meta block for a page over total rows.
func NewPageMeta(p Page, total int64) PageMeta {
	pages := total / int64(p.Size)
	if total%int64(p.Size) != 0 {
		pages++
	}
	if pages == 0 {
		pages = 1
	}
	return PageMeta{Page: p.Number, PageSize: p.Size, Total: total, TotalPages: pages}
}
