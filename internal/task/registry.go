// Package task tracks in-flight backend operations so they can be cancelled
// by request identity.
package task

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Key identifies an operation, conventionally "<session>/<operation>".
func Key(session, operation string) string {
	return session + "/" + operation
}

type entry struct {
	id     uuid.UUID
	cancel context.CancelFunc
}

// Registry holds the cancel functions of running operations. Safe for
// concurrent use.
type Registry struct {
	mu      sync.Mutex
	running map[string]entry
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{running: map[string]entry{}}
}

// Start derives a cancellable context for the operation key. A running
// operation with the same key is cancelled first. The returned done
// function must be called when the operation finishes.
func (r *Registry) Start(parent context.Context, key string) (ctx context.Context, done func()) {
	ctx, cancel := context.WithCancel(parent)
	id := uuid.New()

	r.mu.Lock()
	if prev, ok := r.running[key]; ok {
		prev.cancel()
	}
	r.running[key] = entry{id: id, cancel: cancel}
	r.mu.Unlock()

	return ctx, func() {
		r.mu.Lock()
		if cur, ok := r.running[key]; ok && cur.id == id {
			delete(r.running, key)
		}
		r.mu.Unlock()
		cancel()
	}
}

// Cancel cancels the operation running under key. It reports whether one
// was running.
func (r *Registry) Cancel(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.running[key]
	if ok {
		e.cancel()
		delete(r.running, key)
	}
	return ok
}

// CancelPrefix cancels every operation whose key starts with prefix and
// returns how many were cancelled.
func (r *Registry) CancelPrefix(prefix string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for key, e := range r.running {
		if strings.HasPrefix(key, prefix) {
			e.cancel()
			delete(r.running, key)
			n++
		}
	}
	return n
}

// Len returns the number of running operations.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.running)
}
