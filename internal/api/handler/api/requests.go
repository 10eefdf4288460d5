// internal/api/handler/api/requests.go
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/newthinker/archivist/internal/api/response"
	"github.com/newthinker/archivist/internal/coordinator"
	"github.com/newthinker/archivist/internal/core"
)

const maxRequestBody = 64 << 10

// Router is implemented by *router.Router.
type Router interface {
	Route(ctx context.Context, req core.OperationRequest) (coordinator.Result, error)
}

// RequestsHandler accepts archive/unarchive requests.
type RequestsHandler struct {
	router Router
}

// NewRequestsHandler creates a new requests handler.
func NewRequestsHandler(router Router) *RequestsHandler {
	return &RequestsHandler{router: router}
}

// Submit decodes one operation request and runs it to completion.
func (h *RequestsHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req core.OperationRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err := dec.Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest,
			core.WrapError(core.ErrInvalidRequest, fmt.Errorf("decoding body: %w", err)))
		return
	}

	res, err := h.router.Route(r.Context(), req)
	if err != nil {
		response.Fail(w, err)
		return
	}

	response.JSON(w, http.StatusOK, res)
}
