package notifier

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// DefaultSendTimeout bounds a single notifier's delivery attempt.
const DefaultSendTimeout = 10 * time.Second

// Registry fans an alert out to every registered notifier.
type Registry struct {
	mu        sync.RWMutex
	notifiers map[string]Notifier
	timeout   time.Duration
}

// NewRegistry creates an empty registry using DefaultSendTimeout.
func NewRegistry() *Registry {
	return &Registry{
		notifiers: make(map[string]Notifier),
		timeout:   DefaultSendTimeout,
	}
}

// SetTimeout overrides the per-notifier send timeout. Zero disables it.
func (r *Registry) SetTimeout(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.timeout = d
}

// Register adds n. Names must be non-empty and unique.
func (r *Registry) Register(n Notifier) error {
	name := n.Name()
	if name == "" {
		return fmt.Errorf("notifier %T has no name", n)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.notifiers[name]; dup {
		return fmt.Errorf("notifier %s already registered", name)
	}
	r.notifiers[name] = n
	return nil
}

// Names lists registered notifiers in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.notifiers))
	for name := range r.notifiers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.notifiers)
}

// NotifyAll sends alert to every notifier concurrently and waits for all of
// them. Failures are returned keyed by notifier name; a slow notifier does
// not hold up the others past its own timeout.
func (r *Registry) NotifyAll(ctx context.Context, alert Alert) map[string]error {
	r.mu.RLock()
	targets := make(map[string]Notifier, len(r.notifiers))
	for name, n := range r.notifiers {
		targets[name] = n
	}
	timeout := r.timeout
	r.mu.RUnlock()

	var (
		mu   sync.Mutex
		wg   sync.WaitGroup
		errs = make(map[string]error)
	)
	for name, n := range targets {
		wg.Add(1)
		go func() {
			defer wg.Done()

			sendCtx := ctx
			if timeout > 0 {
				var cancel context.CancelFunc
				sendCtx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}
			if err := n.Send(sendCtx, alert); err != nil {
				mu.Lock()
				errs[name] = err
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	return errs
}
