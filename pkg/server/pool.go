package server

import (
	"github.com/miquels/webnis/pkg/backend"
	"github.com/miquels/webnis/pkg/domain"
)

// workerPool is the server-side analogue of the per-thread backend-handle
// caches spec.md §3/§4.3 describe: a fixed-size set of workers, each
// owning its own WorkerCache and lazily-opened Backend instances, sized
// by the "[server] concurrency" config value (spec.md §6) -- the Go
// rendition of "a small pool of OS threads runs a large number of tasks"
// (spec.md §5 "Scheduling model"). HTTP handlers check a worker out for
// the duration of one request and check it back in when done.
type workerPool struct {
	slots chan *worker
}

type worker struct {
	cache    *backend.WorkerCache
	backends map[*domain.Map]backend.Backend
}

// newWorkerPool creates size workers, each registered with registry so
// the background reaper can evict their idle handles.
func newWorkerPool(size int, registry *backend.Registry) *workerPool {
	if size < 1 {
		size = 1
	}
	p := &workerPool{slots: make(chan *worker, size)}
	for i := 0; i < size; i++ {
		p.slots <- &worker{
			cache:    registry.NewWorkerCache(),
			backends: make(map[*domain.Map]backend.Backend),
		}
	}
	return p
}

func (p *workerPool) checkout() *worker {
	return <-p.slots
}

func (p *workerPool) checkin(w *worker) {
	p.slots <- w
}

// backendFor returns w's cached Backend for m, opening it on first use.
func (w *worker) backendFor(m *domain.Map, lua *backend.ScriptEngine) (backend.Backend, error) {
	if b, ok := w.backends[m]; ok {
		return b, nil
	}
	b, err := backend.Open(m, w.cache, lua)
	if err != nil {
		return nil, err
	}
	w.backends[m] = b
	return b, nil
}
