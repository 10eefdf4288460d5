// internal/core/errors.go
package core

import "fmt"

// Error represents a structured error with code and optional cause.
type Error struct {
	Code    string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is matching by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// WrapError creates a new error with the same code but with a cause.
func WrapError(base *Error, cause error) *Error {
	return &Error{
		Code:    base.Code,
		Message: base.Message,
		Cause:   cause,
	}
}

// Predefined errors
var (
	// Request validation errors
	ErrUnsupportedResourceKind = &Error{Code: "UNSUPPORTED_RESOURCE_KIND", Message: "unsupported resource kind"}
	ErrUnrecognizedOperation   = &Error{Code: "UNRECOGNIZED_OPERATION", Message: "unrecognized operation"}
	ErrInvalidRequest          = &Error{Code: "INVALID_REQUEST", Message: "invalid request"}

	// Locator errors
	ErrLocatorDerivationFailed = &Error{Code: "LOCATOR_DERIVATION_FAILED", Message: "locator derivation failed"}

	// Driver errors
	ErrDriverFailed             = &Error{Code: "DRIVER_FAILED", Message: "backend driver failed"}
	ErrPathNotUnderRoot         = &Error{Code: "PATH_NOT_UNDER_ROOT", Message: "path not under expected root"}
	ErrMoveFailed               = &Error{Code: "MOVE_FAILED", Message: "move failed"}
	ErrObjectNotFound           = &Error{Code: "OBJECT_NOT_FOUND", Message: "object not found"}
	ErrStorageClassChangeFailed = &Error{Code: "STORAGE_CLASS_CHANGE_FAILED", Message: "storage class change failed"}
	ErrInspectFailed            = &Error{Code: "INSPECT_FAILED", Message: "physical tier could not be determined"}

	// Status tracker errors
	ErrStatusFetchFailed    = &Error{Code: "STATUS_FETCH_FAILED", Message: "status fetch failed"}
	ErrStatusReportFailed   = &Error{Code: "STATUS_REPORT_FAILED", Message: "status report failed after storage mutation"}
	ErrUnknownStatus        = &Error{Code: "UNKNOWN_STATUS", Message: "unknown object status"}
	ErrTrackerRequestFailed = &Error{Code: "TRACKER_REQUEST_FAILED", Message: "tracker request failed"}
	ErrTrackerBadResponse   = &Error{Code: "TRACKER_BAD_RESPONSE", Message: "tracker response malformed"}
	ErrObjectUnknown        = &Error{Code: "OBJECT_UNKNOWN", Message: "object not known to tracker"}

	// Concurrency errors
	ErrObjectBusy  = &Error{Code: "OBJECT_BUSY", Message: "object has an operation in progress"}
	ErrLeaseFailed = &Error{Code: "LEASE_FAILED", Message: "lease backend failed"}

	// Journal errors
	ErrRecordNotFound = &Error{Code: "RECORD_NOT_FOUND", Message: "operation record not found"}

	// API errors
	ErrUnauthorized = &Error{Code: "UNAUTHORIZED", Message: "missing or invalid api key"}

	// Config errors
	ErrConfigInvalid = &Error{Code: "CONFIG_INVALID", Message: "configuration invalid"}
	ErrConfigMissing = &Error{Code: "CONFIG_MISSING", Message: "required configuration missing"}
)
