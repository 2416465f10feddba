package middleware

import (
	"net/http"

	"github.com/baechuer/biometric-auth/internal/domain"
)

// BodyLimit caps request bodies at maxBytes. Declared oversize bodies are
// rejected up front; undeclared ones fail while decoding.
func BodyLimit(maxBytes int64, writeErr WriteErrFunc) func(http.Handler) http.Handler {
	if maxBytes <= 0 {
		maxBytes = 1 << 20
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxBytes {
				writeErr(w, r, domain.ErrEvidenceTooLarge(int(maxBytes)))
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}
