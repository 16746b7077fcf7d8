package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/miquels/webnis/internal/logger"
	"github.com/miquels/webnis/pkg/backend"
	"github.com/miquels/webnis/pkg/domain"
	"github.com/miquels/webnis/pkg/securenets"
	"github.com/miquels/webnis/pkg/server/datalog"
)

// Config collects the map server's runtime settings, decoded from the
// TOML "[server]" block (spec.md §6).
type Config struct {
	Listen      []string
	TLS         bool
	CrtFile     string
	KeyFile     string
	Concurrency int
	Securenets  *securenets.List
	Datalog     *datalog.Log
}

// Server runs one HTTPS listener per configured address, all serving the
// same route tree, plus the background handle-cache reaper.
type Server struct {
	httpServers []*http.Server
	registry    *backend.Registry
	cfg         Config

	shutdownOnce sync.Once
}

// NewServer builds a Server for table, wiring the worker pool, optional
// Lua script engine, securenets list, and data log into the route tree
// (spec.md §4.2, §4.3). luaScriptPath may be empty, disabling scripted
// maps and auth entirely.
//
// Building the script engine needs a backend.Host to hand scripted
// callbacks back into (map_lookup/map_auth), but the Host is itself a
// *lookupEngine that doesn't exist until the route tree is built. This
// constructs a throwaway lookupEngine purely to serve as that Host,
// shares the resulting ScriptEngine with NewRouter's own lookupEngine, and
// discards the throwaway -- the two instances share the same table and
// pool, so they behave identically for every Host call.
func NewServer(table *domain.Table, cfg Config, luaScriptPath string) (*Server, error) {
	registry := backend.NewRegistry()
	pool := newWorkerPool(cfg.Concurrency, registry)

	var lua *backend.ScriptEngine
	if luaScriptPath != "" {
		host := &lookupEngine{table: table, pool: pool}
		se, err := backend.NewScriptEngine(luaScriptPath, host)
		if err != nil {
			return nil, fmt.Errorf("failed to load lua script: %w", err)
		}
		host.lua = se
		lua = se
	}

	handler := NewRouter(table, cfg.Securenets, pool, lua, datalogger{log: cfg.Datalog})

	servers := make([]*http.Server, 0, len(cfg.Listen))
	for _, addr := range cfg.Listen {
		servers = append(servers, &http.Server{
			Addr:         addr,
			Handler:      handler,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		})
	}

	return &Server{httpServers: servers, registry: registry, cfg: cfg}, nil
}

// Start runs every configured listener and the background reaper,
// blocking until ctx is cancelled or a listener fails. On return, every
// listener has been gracefully shut down.
func (s *Server) Start(ctx context.Context) error {
	reaperCtx, cancelReaper := context.WithCancel(ctx)
	defer cancelReaper()
	go s.registry.Run(reaperCtx)

	errCh := make(chan error, len(s.httpServers))
	for _, srv := range s.httpServers {
		srv := srv
		go func() {
			logger.Info("map server listening", "addr", srv.Addr, "tls", s.cfg.TLS)
			var err error
			if s.cfg.TLS {
				err = srv.ListenAndServeTLS(s.cfg.CrtFile, s.cfg.KeyFile)
			} else {
				err = srv.ListenAndServe()
			}
			if err != nil && err != http.ErrServerClosed {
				select {
				case errCh <- err:
				default:
				}
			}
		}()
	}

	select {
	case <-ctx.Done():
		logger.Info("map server shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.Stop(shutdownCtx)
	case err := <-errCh:
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.Stop(stopCtx)
		return fmt.Errorf("map server failed: %w", err)
	}
}

// Stop gracefully shuts down every listener. Safe to call more than once.
func (s *Server) Stop(ctx context.Context) error {
	var firstErr error
	s.shutdownOnce.Do(func() {
		for _, srv := range s.httpServers {
			if err := srv.Shutdown(ctx); err != nil && firstErr == nil {
				firstErr = fmt.Errorf("map server shutdown error: %w", err)
			}
		}
		logger.Info("map server stopped")
	})
	return firstErr
}
