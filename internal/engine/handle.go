package engine

import (
	"sync"
	"sync/atomic"

	"github.com/sells-group/peoplesearch-cli/internal/pool"
)

// taskHandle tracks the live state of one running task: its current pool
// (search phase, then detail phase) and the cooperative stop flags.
type taskHandle struct {
	mu        sync.Mutex
	current   *pool.Pool
	cancelled atomic.Bool
	budgetOut atomic.Bool
}

func (h *taskHandle) setPool(p *pool.Pool) {
	h.mu.Lock()
	h.current = p
	h.mu.Unlock()
	// A cancel that raced pool creation still lands.
	if h.cancelled.Load() {
		p.Stop()
	}
}

// cancel requests a graceful stop: no new units are dispatched, in-flight
// fetches finish under their own timeouts.
func (h *taskHandle) cancel() {
	h.cancelled.Store(true)
	h.mu.Lock()
	p := h.current
	h.mu.Unlock()
	if p != nil {
		p.Stop()
	}
}

// stopForBudget flags budget exhaustion and stops dispatch.
func (h *taskHandle) stopForBudget() {
	h.budgetOut.Store(true)
	h.mu.Lock()
	p := h.current
	h.mu.Unlock()
	if p != nil {
		p.Stop()
	}
}
