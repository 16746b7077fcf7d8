package bind

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// InactivityTimeout is the hard per-session idle deadline (spec.md §5
// "Session lifetime and EOF").
const InactivityTimeout = 10 * time.Second

// eofFlag is the session's lock-free cancellation signal: the reader
// goroutine sets it on any read error, and any in-flight retry loop
// checks it between attempts.
type eofFlag struct {
	v atomic.Bool
}

func (f *eofFlag) set()        { f.v.Store(true) }
func (f *eofFlag) isSet() bool { return f.v.Load() }

// peerCreds is the UNIX socket peer identity captured at accept time
// (spec.md §4.1 "peer credential capture").
type peerCreds struct {
	UID uint32
	GID uint32
}

// Session runs one UNIX-socket client connection: a reader goroutine
// drains lines off the wire, a processor goroutine resolves each line
// into a reply, and a writer goroutine drains replies back onto the wire
// — three independent cooperative tasks joined by bounded channels
// (spec.md §4.1 "Concurrency surface", §5).
type Session struct {
	conn   net.Conn
	creds  peerCreds
	table  *resolver
	id     string
	log    *slog.Logger
	eof    eofFlag
}

// resolver is the subset of daemon state a session needs to answer a
// request: the domain name, its retry engine, restriction flags, and the
// server-pool snapshot for the "servers" verb.
type resolver struct {
	domain            string
	retrier           *retrier
	pool              *pool
	restrictGetPwUid  bool
	restrictGetGrGid  bool
}

// NewSession wraps conn with the resolver that answers its requests.
func NewSession(conn net.Conn, creds peerCreds, r *resolver, log *slog.Logger) *Session {
	return &Session{
		conn:  conn,
		creds: creds,
		table: r,
		id:    uuid.NewString(),
		log:   log,
	}
}

// Run drives the session to completion: it blocks until the connection
// is closed, the client disconnects, or the inactivity timeout fires.
func (s *Session) Run(ctx context.Context) {
	defer s.conn.Close()

	log := s.log.With("session", s.id, "uid", s.creds.UID, "gid", s.creds.GID)
	log.Debug("session started")

	lines := make(chan string, 16)
	replies := make(chan string, 16)

	sessionCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go s.readLoop(sessionCtx, lines)
	go s.processLoop(sessionCtx, lines, replies, log)
	s.writeLoop(sessionCtx, cancel, replies, log)

	log.Debug("session ended")
}

func (s *Session) readLoop(ctx context.Context, lines chan<- string) {
	defer close(lines)
	scanner := bufio.NewScanner(s.conn)
	for scanner.Scan() {
		select {
		case lines <- scanner.Text():
		case <-ctx.Done():
			return
		}
	}
	// EOF or read error: cancel any in-flight retry loop immediately.
	s.eof.set()
}

func (s *Session) processLoop(ctx context.Context, lines <-chan string, replies chan<- string, log *slog.Logger) {
	defer close(replies)
	for {
		select {
		case line, ok := <-lines:
			if !ok {
				return
			}
			reply := s.process(ctx, line, log)
			select {
			case replies <- reply:
			case <-ctx.Done():
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func (s *Session) writeLoop(ctx context.Context, cancel context.CancelFunc, replies <-chan string, log *slog.Logger) {
	timer := time.NewTimer(InactivityTimeout)
	defer timer.Stop()

	w := bufio.NewWriter(s.conn)
	for {
		select {
		case reply, ok := <-replies:
			if !ok {
				return
			}
			if _, err := fmt.Fprintf(w, "%s\n", reply); err != nil {
				log.Debug("write error", "error", err)
				cancel()
				return
			}
			if err := w.Flush(); err != nil {
				log.Debug("flush error", "error", err)
				cancel()
				return
			}
			if !timer.Stop() {
				<-timer.C
			}
			timer.Reset(InactivityTimeout)
		case <-timer.C:
			log.Debug("session inactivity timeout")
			cancel()
			return
		case <-ctx.Done():
			return
		}
	}
}

// process resolves one request line into its final wire reply.
func (s *Session) process(ctx context.Context, line string, log *slog.Logger) string {
	req, err := ParseRequest(line)
	if err != nil {
		return formatLine(400, err.Error())
	}

	if s.table.restrictGetPwUid && req.Cmd == CmdGetPwUid {
		if s.creds.UID > 0 && req.Arg0 != s.creds.UID {
			return formatLine(403, "Forbidden")
		}
	}
	if s.table.restrictGetGrGid && req.Cmd == CmdGetGrGid {
		if s.creds.UID > 0 && req.Arg0 >= 1000 && req.Arg0 != s.creds.GID {
			return formatLine(403, "Forbidden")
		}
	}

	if req.Cmd == CmdServers {
		return s.serversReply()
	}

	return s.table.retrier.run(ctx, req, s.creds.UID, &s.eof)
}

func (s *Session) serversReply() string {
	active, hasActive, seqno, servers := s.table.pool.snapshot()
	payload := struct {
		Seqno   int      `json:"seqno"`
		Active  *string  `json:"active"`
		Servers []string `json:"servers"`
	}{
		Seqno:   seqno,
		Servers: servers,
	}
	if hasActive {
		payload.Active = &active
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return formatLine(500, "internal error")
	}
	return "200 " + string(body)
}
