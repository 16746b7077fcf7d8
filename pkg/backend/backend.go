// Package backend dispatches a map lookup to one of the three backend
// kinds named in spec.md §4.3: keyed-hash ("gdbmlike", badger-backed),
// json-array, and scripted (Lua). Dispatch is a tagged variant on
// domain.MapType, never open polymorphism (spec.md §9 "Dynamic dispatch
// on map type").
package backend

import (
	"context"

	"github.com/miquels/webnis/pkg/domain"
	"github.com/miquels/webnis/pkg/wnerrors"
)

// Result is what a backend yields for one lookup. Exactly one of Line or
// Object is set: keyed-hash backends yield a raw text Line that the
// caller still has to run through pkg/format; json-array and scripted
// backends already yield a structured Object.
type Result struct {
	Line   string
	Object any
}

// Backend looks up a single key/value pair within one Map instance.
type Backend interface {
	// Lookup returns wnerrors.NotFound (via *wnerrors.WnError) when the
	// key is absent, matching spec.md §4.3 "key-not-found". domainName
	// is only meaningful to scripted backends, which expose it to their
	// handler as Request.domain; file-backed backends ignore it.
	Lookup(ctx context.Context, domainName, keyName, keyValue string) (Result, error)
	Close() error
}

// AuthBackend is implemented by backends that can also answer the
// scripted-auth callable `map_auth` (spec.md §4.3 "Scripted backend").
type AuthBackend interface {
	Authenticate(ctx context.Context, keyName, username, password string) (bool, error)
}

// Open constructs the Backend for m, using cache to share/reuse
// file-backed handles across calls from the same worker.
func Open(m *domain.Map, cache *WorkerCache, lua *ScriptEngine) (Backend, error) {
	switch m.Type {
	case domain.MapGDBM:
		return newGDBMLikeBackend(m, cache)
	case domain.MapJSON:
		return newJSONArrayBackend(m, cache)
	case domain.MapScript:
		if lua == nil {
			return nil, wnerrors.New(wnerrors.Unavailable, "scripted map configured without a script engine")
		}
		return newScriptBackend(m, lua), nil
	default:
		return nil, wnerrors.New(wnerrors.Unavailable, "unrecognized map type")
	}
}
