package bind

import (
	"context"
	"net/http"
	"time"

	"github.com/miquels/webnis/pkg/metrics"
	"github.com/miquels/webnis/pkg/wnclient"
	"github.com/miquels/webnis/pkg/wnerrors"
)

// Retry and failover engine parameters (spec.md §4.1 "Retry and failover
// engine").
const (
	MaxTries       = 8
	RetryDelay     = 250 * time.Millisecond
	RequestTimeout = 1000 * time.Millisecond
)

// retrier drives one request through the pool's retry-and-failover
// algorithm, cycling servers on transient failures and recycling the
// HTTPS client on synthesized 550s.
type retrier struct {
	pool    *pool
	domain  string
	metrics *metrics.BindMetrics
}

func newRetrier(p *pool, domain string, m *metrics.BindMetrics) *retrier {
	return &retrier{pool: p, domain: domain, metrics: m}
}

// buildRequest constructs the one HTTPS request this verb maps to.
func (r *retrier) buildRequest(server string, req Request, peerUID uint32) (*http.Request, error) {
	creds := r.pool.creds

	if req.Cmd == CmdAuth {
		username, password := req.Args[0], req.Args[1]
		var service, remote string
		if len(req.Args) > 2 {
			service = req.Args[2]
		}
		if len(req.Args) > 3 {
			remote = req.Args[3]
		}
		return wnclient.NewAuthRequest(server, r.domain, username, password, service, remote, creds)
	}

	lk, ok := req.Cmd.mapLookup()
	if !ok {
		return nil, wnerrors.New(wnerrors.Unavailable, "no HTTPS request for this command")
	}
	return wnclient.NewMapRequest(server, r.domain, lk.mapName, lk.keyName, req.Args[0], peerUID, creds)
}

// run executes req with the retry/failover algorithm, returning the final
// daemon wire line ("CODE text"). eofFlag short-circuits the loop as soon
// as the session's reader observes a socket error.
func (r *retrier) run(ctx context.Context, req Request, peerUID uint32, eofFlag *eofFlag) string {
	var lastLine string

	for tryNo := 1; tryNo <= MaxTries; tryNo++ {
		if eofFlag.isSet() {
			return lastLine
		}
		if tryNo >= 2 {
			select {
			case <-time.After(RetryDelay):
			case <-ctx.Done():
				return formatLine(wnerrors.ToDaemonStatus(wnerrors.TimedOut), "session cancelled")
			}
		}

		line, final := r.attempt(ctx, req, peerUID)
		r.recordOutcome(req.Cmd, final)
		if final {
			return line
		}
		lastLine = line
	}

	return lastLine
}

// attempt performs exactly one HTTPS round trip and classifies the
// outcome. final reports whether the retry loop should stop (success,
// or one of the 401/403/404 final-failure statuses).
func (r *retrier) attempt(ctx context.Context, req Request, peerUID uint32) (line string, final bool) {
	server, client, seqno := r.pool.activeClient()

	httpReq, err := r.buildRequest(server, req, peerUID)
	if err != nil {
		return formatLine(400, err.Error()), true
	}

	attemptCtx, cancel := context.WithTimeout(ctx, RequestTimeout)
	defer cancel()

	start := time.Now()
	resp, err := wnclient.Execute(attemptCtx, client, httpReq)
	r.metrics.RecordRequestDuration(req.Cmd.String(), time.Since(start))

	if err != nil {
		code := wnerrors.CodeOf(err)
		status := wnerrors.ToDaemonStatus(code)
		if code == wnerrors.TryAgainLater {
			// A response body read failure, not a non-2xx status (spec.md
			// §4.1 step 3: a body-read error renders as daemon status 400).
			status = 400
		}
		if status == wnerrors.ToDaemonStatus(wnerrors.TryAgainNow) {
			// deep protocol fault: drop the client so the next attempt
			// recreates it (spec.md §4.1 step 3, "synthesize 550").
			r.pool.discardClient(seqno)
			r.metrics.RecordClientRecycle()
		} else {
			r.pool.advance(seqno)
			r.metrics.RecordFailover()
		}
		return formatLine(status, err.Error()), false
	}

	if !resp.ValidJSONContentType() {
		if resp.Status >= 200 && resp.Status < 300 {
			r.pool.advance(seqno)
			r.metrics.RecordFailover()
			return formatLine(416, "expected application/json"), false
		}
		if resp.Status == 401 || resp.Status == 403 || resp.Status == 404 {
			return formatLine(resp.Status, "HTTP error"), true
		}
		r.pool.advance(seqno)
		r.metrics.RecordFailover()
		return formatLine(resp.Status, "HTTP error"), false
	}

	// A well-formed JSON body is always the final answer, whatever the
	// HTTP status: the envelope's own "error" object (if any) carries the
	// outcome the daemon reports, and the retry loop never second-guesses
	// a server that replied in the expected shape.
	return reshape(req.Cmd, resp.Body), true
}

func (r *retrier) recordOutcome(cmd Cmd, final bool) {
	outcome := "retry"
	if final {
		outcome = "final"
	}
	r.metrics.RecordAttempt(cmd.String(), outcome)
}
