// Package lease provides per-object mutual exclusion around a coordinator run.
// Acquisition never waits: a held lease fails fast with core.ErrObjectBusy.
package lease

import "context"

// Locker hands out exclusive leases keyed by object id
type Locker interface {
	Acquire(ctx context.Context, key string) (Lease, error)
}

// Lease is a held lock; Release is safe to call once the holder is done
type Lease interface {
	Release(ctx context.Context) error
}
