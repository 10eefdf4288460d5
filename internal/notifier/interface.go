package notifier

import (
	"context"
	"time"

	"github.com/newthinker/archivist/internal/core"
)

// Alert describes a run that left storage and tracked status apart and needs
// out-of-band reconciliation.
type Alert struct {
	ObjectID   string         `json:"object_id"`
	Operation  core.Operation `json:"operation"`
	Backend    string         `json:"backend"`
	Stage      string         `json:"stage"`
	Code       string         `json:"code"`
	Error      string         `json:"error"`
	Locator    string         `json:"locator,omitempty"`
	RecordID   string         `json:"record_id,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// Notifier delivers alerts to operators
type Notifier interface {
	// Name returns the unique identifier for this notifier
	Name() string

	// Send delivers one alert
	Send(ctx context.Context, alert Alert) error
}
