package core

// guard.go serializes transfer operations.
//
// Only one import, export or clear may run at a time. The guard is a one-slot
// semaphore that is tried once: a second operation is rejected with
// ErrOperationInProgress immediately instead of queueing behind the first.
//
// WaitForDrain lets shutdown block until the running operation finishes.

import (
	"context"
	"sync"
	"time"
)

// OperationGuard is a fail-fast single-slot lock.
type OperationGuard struct {
	slot chan struct{}

	mu     sync.RWMutex
	holder OperationKind
	since  time.Time
}

// NewOperationGuard creates an unheld guard.
func NewOperationGuard() *OperationGuard {
	return &OperationGuard{slot: make(chan struct{}, 1)}
}

// TryAcquire takes the slot for kind without blocking. It returns
// ErrOperationInProgress if another operation holds it.
// The caller MUST call Release when done (use defer).
func (g *OperationGuard) TryAcquire(kind OperationKind) error {
	select {
	case g.slot <- struct{}{}:
		g.mu.Lock()
		g.holder = kind
		g.since = time.Now()
		g.mu.Unlock()
		return nil
	default:
		return ErrOperationInProgress
	}
}

// Release frees the slot. Must be called exactly once per successful TryAcquire.
func (g *OperationGuard) Release() {
	g.mu.Lock()
	g.holder = ""
	g.since = time.Time{}
	g.mu.Unlock()

	<-g.slot
}

// Busy reports whether an operation holds the slot.
func (g *OperationGuard) Busy() bool {
	return len(g.slot) > 0
}

// WaitForDrain blocks until the slot is free or ctx is done.
func (g *OperationGuard) WaitForDrain(ctx context.Context) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		if !g.Busy() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// GuardStatus is a snapshot of the guard.
type GuardStatus struct {
	Busy   bool          `json:"busy"`
	Holder OperationKind `json:"holder,omitempty"`
	Since  *time.Time    `json:"since,omitempty"`
}

// Status returns the current guard state for monitoring.
func (g *OperationGuard) Status() GuardStatus {
	g.mu.RLock()
	defer g.mu.RUnlock()

	st := GuardStatus{Busy: g.Busy(), Holder: g.holder}
	if !g.since.IsZero() {
		since := g.since
		st.Since = &since
	}
	return st
}
