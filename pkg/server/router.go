package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/miquels/webnis/internal/logger"
	"github.com/miquels/webnis/pkg/backend"
	"github.com/miquels/webnis/pkg/domain"
	"github.com/miquels/webnis/pkg/securenets"
)

// Routes, mounted under both prefixes spec.md §4.2 names ("/webnis/…" and
// "/.well-known/webnis/…" -- the latter is what pkg/wnclient actually
// builds, the former is kept for compatibility with the legacy path):
//   - GET  /{prefix}/{domain}/map/{mapname} - map lookup
//   - POST /{prefix}/{domain}/auth          - authentication
//   - GET  /{prefix}/{domain}/info           - allowed maps/keys
//
// NewRouter wires the chi middleware stack and route tree for the map
// server (spec.md §4.2).
func NewRouter(table *domain.Table, nets *securenets.List, pool *workerPool, lua *backend.ScriptEngine, dlog datalogger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(securenetsMiddleware(nets))

	h := &handlers{
		engine:  &lookupEngine{table: table, pool: pool, lua: lua},
		datalog: dlog,
	}

	mount := func(r chi.Router) {
		r.Use(httpAuthMiddleware(table))

		r.Get("/map/{mapname}", h.handleMapLookup)
		r.Post("/auth", h.handleAuth)
		r.Get("/info", h.handleInfo)
	}

	r.Route("/.well-known/webnis/{domain}", mount)
	r.Route("/webnis/{domain}", mount)

	return r
}

// requestLogger logs request start/completion via the shared package
// logger, mirroring the teacher's chi middleware texture.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := middleware.GetReqID(r.Context())

		logger.Debug("server request started",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr,
		)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		logger.Info("server request completed",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start).String(),
		)
	})
}
