package tracker

import (
	"context"
	"fmt"
	"sync"

	"github.com/newthinker/archivist/internal/core"
)

// MemoryTracker is an in-memory Tracker. It counts calls and can be told to
// fail, which makes it the tracker of choice for tests and dry runs.
type MemoryTracker struct {
	mu      sync.RWMutex
	objects map[string]core.ManagedObject

	getCalls int
	setCalls int

	// GetErr and SetErr, when set, are returned instead of doing the call.
	GetErr error
	SetErr error
}

// NewMemory creates an empty in-memory tracker
func NewMemory() *MemoryTracker {
	return &MemoryTracker{objects: make(map[string]core.ManagedObject)}
}

// Put adds or replaces an object record
func (m *MemoryTracker) Put(obj core.ManagedObject) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[obj.ID] = obj
}

func (m *MemoryTracker) GetObject(ctx context.Context, id string) (core.ManagedObject, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.getCalls++
	if m.GetErr != nil {
		return core.ManagedObject{}, m.GetErr
	}
	obj, ok := m.objects[id]
	if !ok {
		return core.ManagedObject{}, core.WrapError(core.ErrObjectUnknown, fmt.Errorf("object %s", id))
	}
	return obj, nil
}

func (m *MemoryTracker) SetStatus(ctx context.Context, id string, status core.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.setCalls++
	if m.SetErr != nil {
		return m.SetErr
	}
	obj, ok := m.objects[id]
	if !ok {
		return core.WrapError(core.ErrObjectUnknown, fmt.Errorf("object %s", id))
	}
	obj.Status = status
	m.objects[id] = obj
	return nil
}

// Status returns the tracked status of id, or "" if unknown
func (m *MemoryTracker) Status(id string) core.Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.objects[id].Status
}

// Calls returns how many GetObject and SetStatus calls were made
func (m *MemoryTracker) Calls() (get, set int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getCalls, m.setCalls
}
