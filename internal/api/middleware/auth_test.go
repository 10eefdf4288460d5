// internal/api/middleware/auth_test.go
package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/newthinker/archivist/internal/api/response"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestAPIKeyAuth(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		want    int
	}{
		{"api key header", map[string]string{"X-API-Key": "secret-key"}, http.StatusOK},
		{"bearer token", map[string]string{"Authorization": "Bearer secret-key"}, http.StatusOK},
		{"bearer scheme case", map[string]string{"Authorization": "bearer secret-key"}, http.StatusOK},
		{"api key wins over bearer", map[string]string{"X-API-Key": "wrong", "Authorization": "Bearer secret-key"}, http.StatusUnauthorized},
		{"wrong key", map[string]string{"X-API-Key": "wrong-key"}, http.StatusUnauthorized},
		{"basic auth", map[string]string{"Authorization": "Basic c2VjcmV0LWtleQ=="}, http.StatusUnauthorized},
		{"empty bearer", map[string]string{"Authorization": "Bearer "}, http.StatusUnauthorized},
		{"no credentials", nil, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/requests", nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			w := httptest.NewRecorder()
			APIKeyAuth("secret-key")(okHandler()).ServeHTTP(w, req)

			if w.Code != tt.want {
				t.Errorf("expected %d, got %d", tt.want, w.Code)
			}
		})
	}
}

func TestAPIKeyAuth_Disabled(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/operations", nil)
	w := httptest.NewRecorder()
	APIKeyAuth("")(okHandler()).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200 when auth disabled, got %d", w.Code)
	}
}

func TestAPIKeyAuth_ErrorBody(t *testing.T) {
	wrapped := APIKeyAuth("secret-key")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler must not run without a valid key")
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/requests", nil)
	w := httptest.NewRecorder()
	wrapped.ServeHTTP(w, req)

	var resp response.ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if resp.Error.Code != "UNAUTHORIZED" {
		t.Errorf("expected UNAUTHORIZED, got %s", resp.Error.Code)
	}
	if !strings.Contains(resp.Error.Cause, "Bearer") {
		t.Errorf("expected the cause to name the accepted headers, got %q", resp.Error.Cause)
	}
}
