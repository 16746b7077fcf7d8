package server

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/miquels/webnis/pkg/backend"
	"github.com/miquels/webnis/pkg/domain"
	"github.com/miquels/webnis/pkg/format"
	"github.com/miquels/webnis/pkg/wnerrors"
)

// lookupEngine implements spec.md §4.2's map-lookup algorithm (steps 2-6)
// and doubles as the backend.Host scripted backends call back into for
// map_lookup/map_auth (spec.md §4.3 "Scripted backend"). It is shared by
// the HTTP handlers and by every scripted map/auth in the table.
type lookupEngine struct {
	table *domain.Table
	pool  *workerPool
	lua   *backend.ScriptEngine

	authMapsMu sync.Mutex
	authMaps   map[string]*domain.Map
}

// virtualAuthMap returns the stable *domain.Map standing in for a's
// scripted handler, so every caller across every request shares the same
// Backend instance (and therefore the same cached Lua state) for a given
// Auth descriptor, instead of reparsing the script on every call.
func (e *lookupEngine) virtualAuthMap(a *domain.Auth) *domain.Map {
	e.authMapsMu.Lock()
	defer e.authMapsMu.Unlock()
	if e.authMaps == nil {
		e.authMaps = make(map[string]*domain.Map)
	}
	if m, ok := e.authMaps[a.Name]; ok {
		return m
	}
	m := &domain.Map{Type: domain.MapScript, LuaFunction: a.LuaFunction}
	e.authMaps[a.Name] = m
	return m
}

// lookup runs steps 2-6 of the map lookup algorithm for a domain already
// confirmed to exist. mapName must be in d.Maps.
func (e *lookupEngine) lookup(ctx context.Context, d *domain.Domain, mapName, keyName, keyValue string) (any, error) {
	if !d.AllowsMap(mapName) {
		return nil, wnerrors.New(wnerrors.NotFound, "map not found")
	}
	m, canonKey, ok := e.table.ResolveMap(mapName, keyName)
	if !ok {
		return nil, wnerrors.New(wnerrors.NotFound, "key not found")
	}

	w := e.pool.checkout()
	defer e.pool.checkin(w)

	b, err := w.backendFor(m, e.lua)
	if err != nil {
		return nil, err
	}

	res, err := b.Lookup(ctx, d.Name, canonKey, keyValue)
	if err != nil {
		return nil, err
	}
	if res.Line != "" {
		return format.Decode(format.Format(m.Format), res.Line, m.Output)
	}
	return res.Object, nil
}

// MapLookup implements backend.Host for scripted maps: it re-enters the
// lookup algorithm against a (possibly different) map within domainName.
func (e *lookupEngine) MapLookup(domainName, mapName, key, value string) (any, bool, error) {
	d, ok := e.table.Domain(domainName)
	if !ok {
		return nil, false, wnerrors.New(wnerrors.NotFound, "domain not found")
	}
	obj, err := e.lookup(context.Background(), d, mapName, key, value)
	if err != nil {
		if wnerrors.CodeOf(err) == wnerrors.NotFound {
			return nil, false, nil
		}
		return nil, false, err
	}
	return obj, true, nil
}

// MapAuth implements backend.Host for scripted auth/maps: it looks up
// key=username in mapName and verifies password against the record's
// "passwd" field, reusing the same password-hash verifier as map-based
// auth (spec.md §4.3 "map_auth(req, mapname, key, username) -> boolean
// (reuses the password already on the request)").
func (e *lookupEngine) MapAuth(domainName, mapName, key, username, password string) (bool, error) {
	d, ok := e.table.Domain(domainName)
	if !ok {
		return false, wnerrors.New(wnerrors.NotFound, "domain not found")
	}
	obj, err := e.lookup(context.Background(), d, mapName, key, username)
	if err != nil {
		if wnerrors.CodeOf(err) == wnerrors.NotFound {
			return false, nil
		}
		return false, err
	}
	passwd, err := passwdField(obj)
	if err != nil {
		return false, err
	}
	if err := verifyPassword(password, passwd); err != nil {
		return false, nil
	}
	return true, nil
}

// passwdField extracts the "passwd" property from a decoded map record,
// however it was shaped by the format codec (spec.md §4.2 "read the
// resulting record's passwd field").
func passwdField(obj any) (string, error) {
	switch v := obj.(type) {
	case map[string]any:
		s, _ := v["passwd"].(string)
		return s, nil
	default:
		data, err := json.Marshal(obj)
		if err != nil {
			return "", wnerrors.Wrap(wnerrors.Unavailable, "auth record not serializable", err)
		}
		var m map[string]any
		if err := json.Unmarshal(data, &m); err != nil {
			return "", wnerrors.Wrap(wnerrors.Unavailable, "auth record is not an object", err)
		}
		s, _ := m["passwd"].(string)
		return s, nil
	}
}
