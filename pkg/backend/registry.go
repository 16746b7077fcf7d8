package backend

import (
	"context"
	"sync"
	"time"
)

// Registry is the housekeeping task from spec.md §3 ("a weak-reference
// list allows a housekeeping task to evict idle handles across threads").
// Go has no GC weak pointer before the 1.24 `weak` package and the
// teacher corpus never imports it, so "weak" is modeled behaviorally
// here: the Registry holds ordinary (strong) pointers to every
// WorkerCache it was asked to track, and its own ticker is the only thing
// ever allowed to close and evict their idle entries. There is no
// unregister: every WorkerCache stays referenced by the Registry for the
// Registry's own lifetime.
type Registry struct {
	mu      sync.Mutex
	workers []*WorkerCache
}

// NewRegistry creates an empty Registry. One Registry is shared by every
// backend opened against the same map server.
func NewRegistry() *Registry {
	return &Registry{}
}

// NewWorkerCache creates a WorkerCache and registers it for housekeeping.
func (r *Registry) NewWorkerCache() *WorkerCache {
	wc := newWorkerCache()
	r.mu.Lock()
	r.workers = append(r.workers, wc)
	r.mu.Unlock()
	return wc
}

// Run ticks every recheckInterval, reaping idle handles from every
// registered WorkerCache, until ctx is canceled.
func (r *Registry) Run(ctx context.Context) {
	ticker := time.NewTicker(recheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			r.mu.Lock()
			workers := append([]*WorkerCache(nil), r.workers...)
			r.mu.Unlock()
			for _, wc := range workers {
				wc.reapIdle(now)
			}
		}
	}
}
