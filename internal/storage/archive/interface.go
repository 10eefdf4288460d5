// internal/storage/archive/interface.go
package archive

import (
	"context"

	"github.com/newthinker/archivist/internal/core"
)

// Driver moves one object between the active and the archive tier of a backend.
// Mutations are not assumed idempotent; callers check the tracked status first.
type Driver interface {
	// Name identifies the backend kind ("filesystem", "s3")
	Name() string

	// Locate derives the backend addressing for obj ahead of op
	Locate(obj core.ManagedObject, op core.Operation) (Locator, error)

	// MoveToArchive puts the object in the archive tier
	MoveToArchive(ctx context.Context, loc Locator) error

	// MoveToActive puts the object back in the active tier
	MoveToActive(ctx context.Context, loc Locator) error

	// Inspect reports which tier the object physically sits in
	Inspect(ctx context.Context, loc Locator) (core.Status, error)
}

// Move dispatches op to the matching driver mutation.
func Move(ctx context.Context, d Driver, op core.Operation, loc Locator) error {
	if op == core.OperationArchive {
		return d.MoveToArchive(ctx, loc)
	}
	return d.MoveToActive(ctx, loc)
}
