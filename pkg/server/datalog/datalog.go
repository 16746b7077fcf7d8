// Package datalog implements the map server's optional append-only audit
// log: one JSON-lines record per lookup or auth request, gated by the
// "[server] datalog" config path (SPEC_FULL.md "Supplemented features",
// recovered from the original implementation's datalog.rs; rotation or
// shipping is explicitly out of scope).
package datalog

import (
	"encoding/json"
	"os"
	"sync"
	"time"
)

// Record is one logged lookup or auth event.
type Record struct {
	Time    time.Time `json:"time"`
	Kind    string    `json:"kind"` // "lookup" or "auth"
	Domain  string    `json:"domain"`
	Map     string    `json:"map,omitempty"`
	Key     string    `json:"key,omitempty"`
	Outcome string    `json:"outcome"` // "ok" or an error message
}

// Log appends Records to a file as newline-delimited JSON. A nil *Log is
// valid and a no-op, matching the nil-safe collector pattern pkg/metrics
// uses for its own optional instrumentation.
type Log struct {
	mu   sync.Mutex
	file *os.File
}

// Open opens (creating if needed) the append-only log file at path. An
// empty path yields a nil *Log, disabling logging entirely.
func Open(path string) (*Log, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}
	return &Log{file: f}, nil
}

// Write appends r as one JSON line. Errors are swallowed beyond this
// point: a broken audit log must never fail the request it is logging.
func (l *Log) Write(r Record) {
	if l == nil {
		return
	}
	data, err := json.Marshal(r)
	if err != nil {
		return
	}
	data = append(data, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = l.file.Write(data)
}

// Close closes the underlying file. Safe to call on a nil *Log.
func (l *Log) Close() error {
	if l == nil {
		return nil
	}
	return l.file.Close()
}
