// Package tracker talks to the metadata service that owns each object's tracked status.
package tracker

import (
	"context"

	"github.com/newthinker/archivist/internal/core"
)

// Tracker reads and reports the tracked status of managed objects.
// Both calls are remote and may fail; neither is retried here.
type Tracker interface {
	// GetObject returns the current record, including the locator-relevant fields
	GetObject(ctx context.Context, id string) (core.ManagedObject, error)

	// SetStatus reports a completed transition
	SetStatus(ctx context.Context, id string, status core.Status) error
}
