package bind

import (
	"net/http"
	"sync"
	"time"

	"github.com/miquels/webnis/pkg/wnclient"
)

// pool is the mutex-guarded server pool state shared by every session on
// this daemon (spec.md §3 "Server pool state"). The mutex is only ever
// held across O(1) field reads/increments, never across network I/O.
type pool struct {
	mu       sync.Mutex
	servers  []string
	client   *http.Client
	seqno    int
	creds    wnclient.Credentials
	timeout  time.Duration
}

func newPool(servers []string, creds wnclient.Credentials, requestTimeout time.Duration) *pool {
	return &pool{
		servers: servers,
		creds:   creds,
		timeout: requestTimeout,
	}
}

// activeClient returns the currently active server name, the client to
// use for this attempt, and the seqno it was issued from. If no client
// exists yet, one is created and the seqno is bumped (mirrors the
// original's "get_or_insert_with" + seqno += 1 on first use).
func (p *pool) activeClient() (server string, client *http.Client, seqno int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.client == nil {
		p.client = wnclient.NewHTTPSClient(p.timeout)
		p.seqno++
	}
	seqno = p.seqno
	server = p.servers[seqno%len(p.servers)]
	client = p.client
	return
}

// discardClient drops the pool's HTTPS client, but only if no one else
// has already acted on this seqno (another goroutine's retry may have
// beaten us to it). Used when an attempt fails with a synthesized 550.
func (p *pool) discardClient(seenSeqno int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.seqno == seenSeqno {
		p.client = nil
	}
}

// advance cycles to the next server in the pool, again only if no one
// else has already moved on. Used on any other retryable failure.
func (p *pool) advance(seenSeqno int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.seqno == seenSeqno {
		p.seqno++
	}
}

// snapshot reports the active server (or none, if no client has been
// created yet) and the current seqno, for the "servers" verb.
func (p *pool) snapshot() (active string, hasActive bool, seqno int, servers []string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	seqno = p.seqno
	servers = append([]string(nil), p.servers...)
	if p.client != nil {
		hasActive = true
		active = p.servers[seqno%len(p.servers)]
	}
	return
}
