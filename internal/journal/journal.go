// Package journal keeps a bounded in-memory record of recent coordinator runs,
// so runs that left status and storage apart can be found and reconciled.
package journal

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/newthinker/archivist/internal/core"
)

// Record describes one finished coordinator run.
type Record struct {
	ID                     string         `json:"id"`
	ObjectID               string         `json:"object_id"`
	Operation              core.Operation `json:"operation"`
	Backend                string         `json:"backend"`
	Outcome                core.Outcome   `json:"outcome,omitempty"`
	Stage                  string         `json:"stage,omitempty"`
	ErrorCode              string         `json:"error_code,omitempty"`
	Error                  string         `json:"error,omitempty"`
	ReconciliationRequired bool           `json:"reconciliation_required"`
	StartedAt              time.Time      `json:"started_at"`
	FinishedAt             time.Time      `json:"finished_at"`
}

// Filter narrows List results. Zero value matches everything.
// ReconciliationOnly keeps runs that need reconciliation and have not been
// resolved by a later run on the same object.
type Filter struct {
	ObjectID           string
	ReconciliationOnly bool
}

// resolves reports whether r, a later run, brought tracked status and storage
// back together after failed. Any later transition reports the status it
// produced. A later no-op only counts for the same operation, since it means
// the tracker now holds that operation's target.
func (r *Record) resolves(failed *Record) bool {
	if r.ObjectID != failed.ObjectID || r.ErrorCode != "" {
		return false
	}
	switch r.Outcome {
	case core.OutcomeTransitioned:
		return true
	case core.OutcomeAlreadyInTargetState:
		return r.Operation == failed.Operation
	}
	return false
}

func (f Filter) match(r *Record) bool {
	if f.ObjectID != "" && r.ObjectID != f.ObjectID {
		return false
	}
	if f.ReconciliationOnly && !r.ReconciliationRequired {
		return false
	}
	return true
}

// Store holds records in insertion order, evicting the oldest past maxSize or ttl.
type Store struct {
	records map[string]*Record
	order   []string
	maxSize int
	ttl     time.Duration
	mu      sync.RWMutex

	now func() time.Time
}

// NewStore creates a new journal.
func NewStore(maxSize int, ttl time.Duration) *Store {
	if maxSize < 1 {
		maxSize = 1
	}
	return &Store{
		records: make(map[string]*Record),
		order:   make([]string, 0, maxSize),
		maxSize: maxSize,
		ttl:     ttl,
		now:     time.Now,
	}
}

// Add stores rec, assigning an ID if it has none, and returns the stored copy.
func (s *Store) Add(rec Record) Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.FinishedAt.IsZero() {
		rec.FinishedAt = s.now()
	}

	s.expire()
	for len(s.order) >= s.maxSize {
		s.evictOldest()
	}

	s.records[rec.ID] = &rec
	s.order = append(s.order, rec.ID)
	return rec
}

// Get retrieves a record by ID.
func (s *Store) Get(id string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	if !ok || s.expired(rec) {
		return nil, core.WrapError(core.ErrRecordNotFound, fmt.Errorf("record %s", id))
	}

	recCopy := *rec
	return &recCopy, nil
}

// List returns matching records, newest first.
func (s *Store) List(f Filter) []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]Record, 0, len(s.order))
	var newer []*Record
	for i := len(s.order) - 1; i >= 0; i-- {
		rec := s.records[s.order[i]]
		if s.expired(rec) {
			break
		}
		if f.match(rec) && !(f.ReconciliationOnly && resolved(rec, newer)) {
			result = append(result, *rec)
		}
		if f.ReconciliationOnly && rec.ErrorCode == "" {
			newer = append(newer, rec)
		}
	}
	return result
}

// Len returns the number of stored records, expired ones included.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

func resolved(failed *Record, newer []*Record) bool {
	for _, r := range newer {
		if r.resolves(failed) {
			return true
		}
	}
	return false
}

func (s *Store) expired(rec *Record) bool {
	return s.ttl > 0 && s.now().Sub(rec.FinishedAt) > s.ttl
}

// expire drops records past ttl. Records are finish-ordered, so it stops at the first live one.
func (s *Store) expire() {
	for len(s.order) > 0 && s.expired(s.records[s.order[0]]) {
		s.evictOldest()
	}
}

func (s *Store) evictOldest() {
	oldest := s.order[0]
	delete(s.records, oldest)
	s.order = s.order[1:]
}
