// internal/api/handler/api/operations.go
package api

import (
	"net/http"
	"strconv"

	"github.com/newthinker/archivist/internal/api/response"
	"github.com/newthinker/archivist/internal/journal"
)

// OperationsHandler exposes the operation journal.
type OperationsHandler struct {
	journal *journal.Store
}

// NewOperationsHandler creates a new operations handler.
func NewOperationsHandler(j *journal.Store) *OperationsHandler {
	return &OperationsHandler{journal: j}
}

// List returns journaled runs, newest first. reconcile=true keeps only the
// runs whose status report failed.
func (h *OperationsHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := journal.Filter{ObjectID: q.Get("object_id")}
	if reconcile := q.Get("reconcile"); reconcile != "" {
		if b, err := strconv.ParseBool(reconcile); err == nil {
			filter.ReconciliationOnly = b
		}
	}

	limit := 50
	if l := q.Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 {
			limit = n
		}
	}

	records := h.journal.List(filter)
	total := len(records)
	if len(records) > limit {
		records = records[:limit]
	}

	response.JSON(w, http.StatusOK, map[string]any{
		"operations": records,
		"total":      total,
		"limit":      limit,
	})
}

// Get returns a single journaled run.
func (h *OperationsHandler) Get(w http.ResponseWriter, r *http.Request) {
	rec, err := h.journal.Get(r.PathValue("id"))
	if err != nil {
		response.Fail(w, err)
		return
	}

	response.JSON(w, http.StatusOK, rec)
}
