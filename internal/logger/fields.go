package logger

import (
	"fmt"
	"log/slog"
)

// Standard field keys for structured logging across the daemon, the map
// server and the backend/format layers. Use these consistently so log
// aggregation queries don't have to guess at key spelling.
const (
	// ========================================================================
	// Correlation
	// ========================================================================
	KeyTraceID   = "trace_id"   // request-correlation ID
	KeySessionID = "session_id" // daemon session ID / server connection ID

	// ========================================================================
	// Protocol & routing
	// ========================================================================
	KeyVerb   = "verb"   // daemon command verb or HTTP route
	KeyDomain = "domain" // webnis domain name
	KeyMap    = "map"    // map name
	KeyKey    = "key"    // lookup key name
	KeyStatus = "status" // daemon numeric status or HTTP status code

	// ========================================================================
	// Peer / client identification
	// ========================================================================
	KeyClientIP = "client_ip"
	KeyUID      = "uid"
	KeyGID      = "gid"
	KeyUsername = "username"

	// ========================================================================
	// Server pool / retry engine
	// ========================================================================
	KeyServer  = "server"  // target HTTPS server
	KeySeqno   = "seqno"   // pool sequence number
	KeyAttempt = "attempt" // retry attempt number

	// ========================================================================
	// Backend
	// ========================================================================
	KeyBackend = "backend" // gdbm, json, lua
	KeyFile    = "file"    // backend file path

	// ========================================================================
	// Operation metadata
	// ========================================================================
	KeyDurationMs = "duration_ms"
	KeyError      = "error"
	KeyErrorCode  = "error_code"
)

// Field constructs a slog.Attr, kept for call sites that prefer an explicit
// constructor over bare key/value pairs.
func Field(key string, value any) slog.Attr {
	return slog.Any(key, value)
}

// ErrAttr formats an error for structured logging, tolerating nil.
func ErrAttr(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}

// DurationMsAttr formats a float64 millisecond duration consistently.
func DurationMsAttr(ms float64) slog.Attr {
	return slog.String(KeyDurationMs, fmt.Sprintf("%.3f", ms))
}
