package core

import (
	"fmt"
	"strings"
)

// Status is the tracked tier of a managed object
type Status string

const (
	StatusProcessed Status = "PROCESSED"
	StatusArchived  Status = "ARCHIVED"
)

// ParseStatus converts a tracker status string into a Status.
// Anything other than PROCESSED or ARCHIVED is rejected.
func ParseStatus(s string) (Status, error) {
	switch Status(strings.ToUpper(strings.TrimSpace(s))) {
	case StatusProcessed:
		return StatusProcessed, nil
	case StatusArchived:
		return StatusArchived, nil
	}
	return "", WrapError(ErrUnknownStatus, fmt.Errorf("status %q", s))
}

// Operation is a requested tier transition
type Operation string

const (
	OperationArchive   Operation = "archive"
	OperationUnarchive Operation = "unarchive"
)

// ParseOperation validates an inbound operation name
func ParseOperation(s string) (Operation, error) {
	switch op := Operation(s); op {
	case OperationArchive, OperationUnarchive:
		return op, nil
	}
	return "", WrapError(ErrUnrecognizedOperation, fmt.Errorf("operation %q", s))
}

// Target returns the status the operation drives an object to.
func (o Operation) Target() Status {
	if o == OperationArchive {
		return StatusArchived
	}
	return StatusProcessed
}

// ResourceKindFile is the only resource kind the router accepts.
const ResourceKindFile = "file"

// Location holds the backend-relevant fields of a tracked object.
// FilePath is the absolute active-tier path, ObjectKey the stored object key.
type Location struct {
	FilePath  string
	ObjectKey string
}

// IsZero reports whether no location field is set
func (l Location) IsZero() bool {
	return l.FilePath == "" && l.ObjectKey == ""
}

// ManagedObject is an object as recorded by the status tracker
type ManagedObject struct {
	ID       string
	Status   Status
	Location Location
}

// OperationRequest is one inbound archive/unarchive request
type OperationRequest struct {
	ObjectID     string    `json:"object_id"`
	ResourceKind string    `json:"resource_kind"`
	Operation    Operation `json:"operation"`
	LocationHint string    `json:"location_hint,omitempty"`
	Action       string    `json:"action,omitempty"`
}

// Outcome describes how a request finished without error
type Outcome string

const (
	OutcomeTransitioned         Outcome = "transitioned"
	OutcomeAlreadyInTargetState Outcome = "already_in_target_state"
	OutcomeIgnored              Outcome = "ignored"
)
