package security

import (
	"net/http"

	"github.com/noah-isme/coreb-invoice/internal/common"
)

// BodyLimit caps request payloads such as invoice form posts.
type BodyLimit struct {
	Max int64
}

// Middleware rejects declared oversized bodies with 413 and bounds the rest
// with http.MaxBytesReader, so form parsing fails once Max is exceeded.
func (b BodyLimit) Middleware(next http.Handler) http.Handler {
	if b.Max <= 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.ContentLength > b.Max {
			common.JSONError(w, http.StatusRequestEntityTooLarge, common.CodeValidation, "request body too large", nil)
			return
		}
		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, b.Max)
		}
		next.ServeHTTP(w, r)
	})
}
