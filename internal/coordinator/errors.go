package coordinator

import (
	"errors"
	"fmt"

	"github.com/newthinker/archivist/internal/core"
)

// Stage names the step of a run where it stopped.
type Stage string

const (
	StageValidate Stage = "validate"
	StageLease    Stage = "lease"
	StageFetch    Stage = "fetch"
	StageLocate   Stage = "locate"
	StageMutate   Stage = "mutate"
	StageReport   Stage = "report"
	StageInspect  Stage = "inspect"
)

// OpError is returned by every failed run. It carries the object, operation and
// stage so callers can alert on it and reconcile by hand.
type OpError struct {
	ObjectID  string
	Operation core.Operation
	Stage     Stage
	Err       error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("%s %s failed at %s: %v", e.Operation, e.ObjectID, e.Stage, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}

// ReconciliationRequired reports whether storage was changed but the tracked
// status was not. Only a failed status report leaves the two apart.
func (e *OpError) ReconciliationRequired() bool {
	return e.Stage == StageReport
}

// ErrorCode returns the code of the outermost *core.Error in err's chain.
func ErrorCode(err error) string {
	var coreErr *core.Error
	if errors.As(err, &coreErr) {
		return coreErr.Code
	}
	return "INTERNAL_ERROR"
}
