// internal/api/response/response.go
package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/newthinker/archivist/internal/coordinator"
	"github.com/newthinker/archivist/internal/core"
)

// Meta contains response metadata.
type Meta struct {
	Timestamp time.Time `json:"timestamp"`
}

// SuccessResponse is the standard success response format.
type SuccessResponse struct {
	Data any  `json:"data"`
	Meta Meta `json:"meta"`
}

// ErrorDetail contains error information.
type ErrorDetail struct {
	Code                   string `json:"code"`
	Message                string `json:"message"`
	Cause                  string `json:"cause,omitempty"`
	ObjectID               string `json:"object_id,omitempty"`
	Stage                  string `json:"stage,omitempty"`
	ReconciliationRequired bool   `json:"reconciliation_required,omitempty"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// JSON writes a success response with data.
func JSON(w http.ResponseWriter, status int, data any) {
	resp := SuccessResponse{
		Data: data,
		Meta: Meta{Timestamp: time.Now().UTC()},
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}

// Error writes an error response.
func Error(w http.ResponseWriter, status int, err error) {
	detail := ErrorDetail{
		Code:    "INTERNAL_ERROR",
		Message: "an internal error occurred",
	}

	var coreErr *core.Error
	if errors.As(err, &coreErr) {
		detail.Code = coreErr.Code
		detail.Message = coreErr.Message
		if coreErr.Cause != nil {
			detail.Cause = coreErr.Cause.Error()
		}
	}

	var opErr *coordinator.OpError
	if errors.As(err, &opErr) {
		detail.ObjectID = opErr.ObjectID
		detail.Stage = string(opErr.Stage)
		detail.ReconciliationRequired = opErr.ReconciliationRequired()
	}

	resp := ErrorResponse{Error: detail}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}

// statusByCode is checked in order; the first code found in the chain wins.
var statusByCode = []struct {
	err    *core.Error
	status int
}{
	{core.ErrUnauthorized, http.StatusUnauthorized},
	{core.ErrStatusReportFailed, http.StatusInternalServerError},
	{core.ErrUnsupportedResourceKind, http.StatusBadRequest},
	{core.ErrUnrecognizedOperation, http.StatusBadRequest},
	{core.ErrInvalidRequest, http.StatusBadRequest},
	{core.ErrRecordNotFound, http.StatusNotFound},
	{core.ErrObjectUnknown, http.StatusNotFound},
	{core.ErrObjectBusy, http.StatusConflict},
	{core.ErrLocatorDerivationFailed, http.StatusUnprocessableEntity},
	{core.ErrLeaseFailed, http.StatusServiceUnavailable},
	{core.ErrDriverFailed, http.StatusBadGateway},
	{core.ErrStatusFetchFailed, http.StatusBadGateway},
	{core.ErrInspectFailed, http.StatusBadGateway},
}

// StatusFor maps an error to an HTTP status.
func StatusFor(err error) int {
	for _, m := range statusByCode {
		if errors.Is(err, m.err) {
			return m.status
		}
	}
	return http.StatusInternalServerError
}

// Fail writes err with the status StatusFor picks.
func Fail(w http.ResponseWriter, err error) {
	Error(w, StatusFor(err), err)
}
