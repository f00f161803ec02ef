package security

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func readAll(t *testing.T, max int64, body string, declared int64) (*httptest.ResponseRecorder, string, error) {
	t.Helper()
	var (
		captured string
		readErr  error
	)
	handler := BodyLimit{Max: max}.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := io.ReadAll(r.Body)
		captured, readErr = string(data), err
		w.WriteHeader(http.StatusOK)
	}))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/invoices/generate", strings.NewReader(body))
	if declared != 0 {
		req.ContentLength = declared
	}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr, captured, readErr
}

func TestBodyLimitAllowsWithinLimit(t *testing.T) {
	rr, body, err := readAll(t, 10, "hello", 0)
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, err)
	require.Equal(t, "hello", body)
}

func TestBodyLimitRejectsDeclaredLength(t *testing.T) {
	rr, _, _ := readAll(t, 5, "content", 100)
	require.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
}

func TestBodyLimitStopsUndeclaredOversizedBody(t *testing.T) {
	_, _, err := readAll(t, 5, "excessive", -1)
	var maxErr *http.MaxBytesError
	require.ErrorAs(t, err, &maxErr)
}
