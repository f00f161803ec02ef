package common

import (
	"net/http"
	"strconv"
)

// Pagination holds pagination metadata for list responses.
type Pagination struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	TotalItems int `json:"total_items"`
	TotalPages int `json:"total_pages"`
}

// ParsePagination extracts page and per_page parameters from the query string
// or a submitted form. perPage is capped at maxPerPage when it is positive.
func ParsePagination(r *http.Request, defaultPerPage, maxPerPage int) (page, perPage int) {
	page = 1
	perPage = defaultPerPage
	if p, err := strconv.Atoi(r.FormValue("page")); err == nil && p > 0 {
		page = p
	}
	if l, err := strconv.Atoi(r.FormValue("per_page")); err == nil && l > 0 {
		perPage = l
	}
	if maxPerPage > 0 && perPage > maxPerPage {
		perPage = maxPerPage
	}
	return
}

// Paginate returns the page window of items along with its metadata. Pages
// past the end yield an empty window.
func Paginate[T any](items []T, page, perPage int) ([]T, Pagination) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 1
	}
	total := len(items)
	meta := Pagination{
		Page:       page,
		PerPage:    perPage,
		TotalItems: total,
		TotalPages: (total + perPage - 1) / perPage,
	}
	offset := (page - 1) * perPage
	if offset >= total {
		return []T{}, meta
	}
	end := offset + perPage
	if end > total {
		end = total
	}
	return items[offset:end], meta
}
