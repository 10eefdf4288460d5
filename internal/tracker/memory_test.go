package tracker

import (
	"context"
	"errors"
	"testing"

	"github.com/newthinker/archivist/internal/core"
)

func TestMemoryTracker_ImplementsTracker(t *testing.T) {
	var _ Tracker = (*MemoryTracker)(nil)
}

func TestMemoryTracker_GetAndSet(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	m.Put(core.ManagedObject{ID: "a", Status: core.StatusProcessed})

	obj, err := m.GetObject(ctx, "a")
	if err != nil {
		t.Fatalf("GetObject: %v", err)
	}
	if obj.Status != core.StatusProcessed {
		t.Errorf("status = %s", obj.Status)
	}

	if err := m.SetStatus(ctx, "a", core.StatusArchived); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}
	if m.Status("a") != core.StatusArchived {
		t.Errorf("status after set = %s", m.Status("a"))
	}

	get, set := m.Calls()
	if get != 1 || set != 1 {
		t.Errorf("calls = %d/%d, want 1/1", get, set)
	}
}

func TestMemoryTracker_Unknown(t *testing.T) {
	m := NewMemory()
	if _, err := m.GetObject(context.Background(), "nope"); !errors.Is(err, core.ErrObjectUnknown) {
		t.Errorf("expected OBJECT_UNKNOWN, got %v", err)
	}
}

func TestMemoryTracker_InjectedErrors(t *testing.T) {
	m := NewMemory()
	m.Put(core.ManagedObject{ID: "a", Status: core.StatusProcessed})
	m.SetErr = errors.New("api down")

	if err := m.SetStatus(context.Background(), "a", core.StatusArchived); err == nil {
		t.Error("expected injected error")
	}
	if m.Status("a") != core.StatusProcessed {
		t.Error("status must not change when SetStatus fails")
	}
}
