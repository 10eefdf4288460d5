// internal/api/handler/api/objects.go
package api

import (
	"context"
	"net/http"

	"github.com/newthinker/archivist/internal/api/response"
	"github.com/newthinker/archivist/internal/coordinator"
)

// Verifier is implemented by *coordinator.Coordinator.
type Verifier interface {
	Verify(ctx context.Context, objectID string) (coordinator.Report, error)
}

// ObjectsHandler serves per-object checks.
type ObjectsHandler struct {
	verifier Verifier
}

// NewObjectsHandler creates a new objects handler.
func NewObjectsHandler(v Verifier) *ObjectsHandler {
	return &ObjectsHandler{verifier: v}
}

// Verify compares the tracked status of an object with its physical tier.
func (h *ObjectsHandler) Verify(w http.ResponseWriter, r *http.Request) {
	rep, err := h.verifier.Verify(r.Context(), r.PathValue("id"))
	if err != nil {
		response.Fail(w, err)
		return
	}

	response.JSON(w, http.StatusOK, rep)
}
