package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func instrumentedMux(reg *Registry, h http.HandlerFunc) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("POST /api/v1/requests", h)
	mux.Handle("GET /api/v1/objects/{id}/verify", h)
	return HTTPMiddleware(reg)(mux)
}

func TestHTTPMiddleware_LabelsByRoute(t *testing.T) {
	reg := NewRegistry()
	h := instrumentedMux(reg, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	for _, id := range []string{"a", "b", "c"} {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/objects/"+id+"/verify", nil))
	}

	assert.Equal(t, 1, testutil.CollectAndCount(reg.httpRequests))
	assert.Equal(t, 3.0, testutil.ToFloat64(reg.httpRequests.WithLabelValues("GET", "/api/v1/objects/{id}/verify", "2xx")))
}

func TestHTTPMiddleware_StatusCapture(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		class   string
	}{
		{"explicit status", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusConflict)
		}, "4xx"},
		{"implicit ok", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("{}"))
		}, "2xx"},
		{"first header wins", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
			w.WriteHeader(http.StatusOK)
		}, "5xx"},
		{"nothing written", func(w http.ResponseWriter, r *http.Request) {}, "2xx"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := NewRegistry()
			instrumentedMux(reg, tt.handler).ServeHTTP(httptest.NewRecorder(),
				httptest.NewRequest(http.MethodPost, "/api/v1/requests", nil))

			assert.Equal(t, 1.0, testutil.ToFloat64(reg.httpRequests.WithLabelValues("POST", "/api/v1/requests", tt.class)))
		})
	}
}

func TestHTTPMiddleware_Unmatched(t *testing.T) {
	reg := NewRegistry()
	h := instrumentedMux(reg, func(w http.ResponseWriter, r *http.Request) {})

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/objects/a/other", nil))

	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.httpRequests.WithLabelValues("GET", "unmatched", "4xx")))
}

func TestHTTPMiddleware_InFlight(t *testing.T) {
	reg := NewRegistry()

	var during float64
	h := instrumentedMux(reg, func(w http.ResponseWriter, r *http.Request) {
		during = testutil.ToFloat64(reg.httpInFlight)
	})
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/v1/requests", nil))

	assert.Equal(t, 1.0, during)
	assert.Equal(t, 0.0, testutil.ToFloat64(reg.httpInFlight))
}

func TestStatusRecorder_SharedAcrossMiddleware(t *testing.T) {
	reg := NewRegistry()
	h := LoggingMiddleware(zap.NewNop())(instrumentedMux(reg, func(w http.ResponseWriter, r *http.Request) {
		_, ok := w.(*statusRecorder)
		assert.True(t, ok)
		w.Write([]byte("body"))
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/requests", nil))

	assert.Equal(t, "body", w.Body.String())
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.httpRequests.WithLabelValues("POST", "/api/v1/requests", "2xx")))
}
