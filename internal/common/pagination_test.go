package common

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParsePagination(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/invoices?page=3&per_page=500", nil)
	page, perPage := ParsePagination(r, 10, 100)
	require.Equal(t, 3, page)
	require.Equal(t, 100, perPage)

	r = httptest.NewRequest(http.MethodGet, "/invoices?page=-1&per_page=abc", nil)
	page, perPage = ParsePagination(r, 10, 100)
	require.Equal(t, 1, page)
	require.Equal(t, 10, perPage)
}

func TestPaginate(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}

	window, meta := Paginate(items, 2, 2)
	require.Equal(t, []int{3, 4}, window)
	require.Equal(t, Pagination{Page: 2, PerPage: 2, TotalItems: 5, TotalPages: 3}, meta)

	window, _ = Paginate(items, 3, 2)
	require.Equal(t, []int{5}, window)

	window, meta = Paginate(items, 9, 2)
	require.Empty(t, window)
	require.Equal(t, 5, meta.TotalItems)
}

func TestWriteErrorFallsBackToInternal(t *testing.T) {
	rr := httptest.NewRecorder()
	WriteError(rr, http.ErrHandlerTimeout)
	require.Equal(t, http.StatusInternalServerError, rr.Code)
	require.Contains(t, rr.Body.String(), CodeInternal)

	rr = httptest.NewRecorder()
	WriteError(rr, ValidationError("Service price must be provided", nil).WithDetails(map[string]int{"line": 0}))
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Contains(t, rr.Body.String(), "Service price must be provided")
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.0.0.9:5123"
	r.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")

	require.Equal(t, "10.0.0.9", ClientIP(r, false))
	require.Equal(t, "203.0.113.7", ClientIP(r, true))

	r.Header.Del("X-Forwarded-For")
	r.Header.Set("X-Real-IP", "198.51.100.2")
	require.Equal(t, "198.51.100.2", ClientIP(r, true))
	require.Empty(t, ClientIP(nil, true))
}
