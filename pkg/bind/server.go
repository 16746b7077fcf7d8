// Package bind implements the binding daemon: a UNIX-socket line server
// that translates NSS/PAM adapter requests into HTTPS lookups against a
// pool of map servers, applying the retry-and-failover engine and
// reshaping JSON replies back into the colon-delimited wire lines the
// adapters expect.
package bind

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"
	"syscall"

	"github.com/miquels/webnis/pkg/metrics"
	"github.com/miquels/webnis/pkg/wnclient"
)

// DomainConfig is the daemon's bind-side configuration, built from the
// [bind] table and its [[upstream]] entries: the upstream server pool and
// the credentials the daemon presents to it.
type DomainConfig struct {
	Name             string
	Servers          []string
	Creds            wnclient.Credentials
	RestrictGetPwUid bool
	RestrictGetGrGid bool
}

// Server is the binding daemon's UNIX-socket listener.
type Server struct {
	socketPath string
	resolver   *resolver
	log        *slog.Logger
	metrics    *metrics.BindMetrics

	listener net.Listener
	shutdown chan struct{}
	once     sync.Once
	wg       sync.WaitGroup
}

// NewServer builds a daemon server for one domain (spec.md §3 "Domain":
// the daemon is configured against exactly one domain's server pool per
// running instance).
func NewServer(socketPath string, cfg DomainConfig, log *slog.Logger, m *metrics.BindMetrics) *Server {
	p := newPool(cfg.Servers, cfg.Creds, RequestTimeout)
	r := &resolver{
		domain:           cfg.Name,
		retrier:          newRetrier(p, cfg.Name, m),
		pool:             p,
		restrictGetPwUid: cfg.RestrictGetPwUid,
		restrictGetGrGid: cfg.RestrictGetGrGid,
	}
	return &Server{
		socketPath: socketPath,
		resolver:   r,
		log:        log,
		metrics:    m,
		shutdown:   make(chan struct{}),
	}
}

// Serve binds the UNIX socket and accepts connections until ctx is
// cancelled or Stop is called. Removes a stale socket file left over
// from an unclean shutdown before binding, mirroring the teacher's
// AddrInUse recovery.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("unix", s.socketPath)
	if err != nil {
		if errors.Is(err, syscall.EADDRINUSE) {
			_ = os.Remove(s.socketPath)
			ln, err = net.Listen("unix", s.socketPath)
		}
		if err != nil {
			return fmt.Errorf("listen on %s: %w", s.socketPath, err)
		}
	}
	s.listener = ln
	s.log.Info("binding daemon listening", "socket", s.socketPath)

	go func() {
		select {
		case <-ctx.Done():
			s.Stop()
		case <-s.shutdown:
		}
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-s.shutdown:
				s.wg.Wait()
				return nil
			default:
				return fmt.Errorf("accept: %w", err)
			}
		}

		creds, err := peerCredsFromConn(conn)
		if err != nil {
			s.log.Warn("failed to read peer credentials", "error", err)
			conn.Close()
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			sess := NewSession(conn, creds, s.resolver, s.log)
			sess.Run(ctx)
		}()
	}
}

// Stop closes the listener, causing Serve to return once in-flight
// sessions drain.
func (s *Server) Stop() {
	s.once.Do(func() {
		close(s.shutdown)
		if s.listener != nil {
			_ = s.listener.Close()
		}
	})
}
