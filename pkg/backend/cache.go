package backend

import (
	"io"
	"os"
	"sync"
	"time"
)

// recheckInterval and idleTimeout implement spec.md §3's map-handle-cache
// invariants: "if now - last_check_time > 5s, the file's mtime is
// rechecked and the handle is dropped on mismatch; if now - last_used_time
// > 5s, the handle is reaped."
const (
	recheckInterval = 5 * time.Second
	idleTimeout     = 5 * time.Second
)

type cachedHandle struct {
	handle    io.Closer
	mtime     time.Time
	lastCheck time.Time
	lastUsed  time.Time
}

// WorkerCache is a per-goroutine-worker handle cache (spec.md §3
// "Map-handle cache... mutates per-thread (backend handles are not
// shareable)"). Each backend worker goroutine owns exactly one
// WorkerCache; the mutex only exists because the background Registry
// reaper also touches it from a different goroutine.
type WorkerCache struct {
	mu      sync.Mutex
	entries map[string]*cachedHandle
}

func newWorkerCache() *WorkerCache {
	return &WorkerCache{entries: make(map[string]*cachedHandle)}
}

// GetOrOpen returns the cached handle for path, rechecking its mtime and
// reopening via open if the recheck interval has elapsed and the file has
// changed on disk.
func (wc *WorkerCache) GetOrOpen(path string, open func() (io.Closer, error)) (io.Closer, error) {
	now := time.Now()
	wc.mu.Lock()
	defer wc.mu.Unlock()

	if e, ok := wc.entries[path]; ok {
		if now.Sub(e.lastCheck) > recheckInterval {
			if mtime, err := fileMTime(path); err == nil && !mtime.Equal(e.mtime) {
				e.handle.Close()
				delete(wc.entries, path)
			} else {
				e.lastCheck = now
			}
		}
		if e, ok := wc.entries[path]; ok {
			e.lastUsed = now
			return e.handle, nil
		}
	}

	h, err := open()
	if err != nil {
		return nil, err
	}
	mtime, _ := fileMTime(path)
	wc.entries[path] = &cachedHandle{handle: h, mtime: mtime, lastCheck: now, lastUsed: now}
	return h, nil
}

// reapIdle closes and evicts every handle unused for longer than
// idleTimeout, called by the Registry's background ticker.
func (wc *WorkerCache) reapIdle(now time.Time) {
	wc.mu.Lock()
	defer wc.mu.Unlock()
	for path, e := range wc.entries {
		if now.Sub(e.lastUsed) > idleTimeout {
			e.handle.Close()
			delete(wc.entries, path)
		}
	}
}

// Close releases every handle currently held by this cache.
func (wc *WorkerCache) Close() error {
	wc.mu.Lock()
	defer wc.mu.Unlock()
	var firstErr error
	for path, e := range wc.entries {
		if err := e.handle.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(wc.entries, path)
	}
	return firstErr
}

func fileMTime(path string) (time.Time, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return time.Time{}, err
	}
	return fi.ModTime(), nil
}
