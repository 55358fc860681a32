package pagination

import (
	"strconv"
	"strings"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Query is a 1-indexed page request
type Query struct {
	Page     int
	PageSize int
}

// Page is one slice of a listing plus its totals
type Page[T any] struct {
	Items      []T `json:"items"`
	Page       int `json:"page"`
	PageSize   int `json:"pageSize"`
	TotalItems int `json:"totalItems"`
	TotalPages int `json:"totalPages"`
}

// ParseQuery reads page and pageSize query values. Missing, malformed or
// out-of-range values fall back to page 1 and defaultSize; sizes above
// MaxPageSize are clamped.
func ParseQuery(page, pageSize string, defaultSize int) Query {
	if defaultSize <= 0 {
		defaultSize = DefaultPageSize
	}
	q := Query{Page: 1, PageSize: defaultSize}
	if n, err := strconv.Atoi(strings.TrimSpace(page)); err == nil && n > 0 {
		q.Page = n
	}
	if n, err := strconv.Atoi(strings.TrimSpace(pageSize)); err == nil && n > 0 {
		q.PageSize = n
	}
	if q.PageSize > MaxPageSize {
		q.PageSize = MaxPageSize
	}
	return q
}

// Paginate cuts items down to the requested page. A page past the end is
// empty but still reports the totals.
func Paginate[T any](items []T, q Query) Page[T] {
	if q.Page <= 0 {
		q.Page = 1
	}
	if q.PageSize <= 0 {
		q.PageSize = DefaultPageSize
	}

	total := len(items)
	pages := (total + q.PageSize - 1) / q.PageSize
	if pages == 0 {
		pages = 1
	}

	start := total
	if q.Page <= pages {
		start = (q.Page - 1) * q.PageSize
	}
	end := start + q.PageSize
	if end > total {
		end = total
	}

	out := make([]T, end-start)
	copy(out, items[start:end])
	return Page[T]{
		Items:      out,
		Page:       q.Page,
		PageSize:   q.PageSize,
		TotalItems: total,
		TotalPages: pages,
	}
}
