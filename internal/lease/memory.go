package lease

import (
	"context"
	"fmt"
	"sync"

	"github.com/newthinker/archivist/internal/core"
)

// MemoryLocker serializes operations within one process
type MemoryLocker struct {
	mu   sync.Mutex
	held map[string]struct{}
}

// NewMemory creates an in-process locker
func NewMemory() *MemoryLocker {
	return &MemoryLocker{held: make(map[string]struct{})}
}

func (m *MemoryLocker) Acquire(ctx context.Context, key string) (Lease, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, busy := m.held[key]; busy {
		return nil, core.WrapError(core.ErrObjectBusy, fmt.Errorf("object %s", key))
	}
	m.held[key] = struct{}{}
	return &memoryLease{owner: m, key: key}, nil
}

type memoryLease struct {
	owner *MemoryLocker
	key   string
	once  sync.Once
}

func (l *memoryLease) Release(ctx context.Context) error {
	l.once.Do(func() {
		l.owner.mu.Lock()
		delete(l.owner.held, l.key)
		l.owner.mu.Unlock()
	})
	return nil
}
