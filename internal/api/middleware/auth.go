// internal/api/middleware/auth.go
package middleware

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/newthinker/archivist/internal/api/response"
	"github.com/newthinker/archivist/internal/core"
)

const (
	// APIKeyHeader is the preferred credential header.
	APIKeyHeader = "X-API-Key"

	bearerPrefix = "Bearer "
)

var errNoCredentials = errors.New("X-API-Key or Authorization: Bearer header is required")

// APIKeyAuth returns middleware that requires the configured key in
// X-API-Key or as an Authorization bearer token. An empty apiKey disables
// the check, which is how local development runs.
func APIKeyAuth(apiKey string) func(http.Handler) http.Handler {
	want := []byte(apiKey)
	return func(next http.Handler) http.Handler {
		if apiKey == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got, ok := credentials(r)
			if !ok {
				response.Fail(w, core.WrapError(core.ErrUnauthorized, errNoCredentials))
				return
			}
			if subtle.ConstantTimeCompare([]byte(got), want) != 1 {
				response.Fail(w, core.ErrUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// credentials extracts the presented key. X-API-Key wins when both are sent.
func credentials(r *http.Request) (string, bool) {
	if key := r.Header.Get(APIKeyHeader); key != "" {
		return key, true
	}
	auth := r.Header.Get("Authorization")
	if len(auth) > len(bearerPrefix) && strings.EqualFold(auth[:len(bearerPrefix)], bearerPrefix) {
		return strings.TrimSpace(auth[len(bearerPrefix):]), true
	}
	return "", false
}
