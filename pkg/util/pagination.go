package util

import "strconv"

const (
	MaxPageSize = 100
	// MaxPage bounds page numbers so that offsets cannot overflow.
	MaxPage = 1 << 20
)

type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

func ParseIntDefault(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

// Normalize clamps page to [1, MaxPage] and size to [1, MaxPageSize]; a
// zero or negative size falls back to def.
func Normalize(page, size, def int) (int, int) {
	if page < 1 {
		page = 1
	}
	if page > MaxPage {
		page = MaxPage
	}
	if size <= 0 {
		size = def
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	return page, size
}

func Calculate(page, size int) (from, limit int) {
	page, size = Normalize(page, size, MaxPageSize)
	return (page - 1) * size, size
}

func TotalPages(total, limit int) int {
	if limit <= 0 {
		return 0
	}
	return (total + limit - 1) / limit
}

// Paginate slices an already filtered and sorted list.
func Paginate[T any](items []T, page, limit int) ([]T, Pagination) {
	total := len(items)
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = MaxPageSize
	}
	meta := Pagination{Page: page, Limit: limit, Total: total, TotalPages: TotalPages(total, limit)}
	if total == 0 || page-1 > (total-1)/limit {
		return []T{}, meta
	}
	from, size := (page-1)*limit, limit
	to := from + size
	if to > total {
		to = total
	}
	return items[from:to], meta
}
