package backend

import (
	"context"
	"fmt"
	"os"
	"sync"

	lua "github.com/yuin/gopher-lua"

	"github.com/miquels/webnis/pkg/domain"
	"github.com/miquels/webnis/pkg/wnerrors"
)

// Host is implemented by the map server and gives scripted backends
// access to the two callables spec.md §4.3 "Scripted backend" exposes to
// Lua handlers: map_lookup and map_auth, both of which re-enter the
// ordinary map-lookup/auth machinery for a (possibly different) map.
type Host interface {
	MapLookup(domainName, mapName, key, value string) (any, bool, error)
	MapAuth(domainName, mapName, key, username, password string) (bool, error)
}

// ScriptEngine holds one Lua script's source, compiled and validated once
// at startup (spec.md §4.3 "Script engine discipline": "The script source
// is parsed and compiled once at startup; each worker thread lazily
// constructs its own interpreter instance by re-running the source").
type ScriptEngine struct {
	source string
	host   Host
}

// NewScriptEngine reads and syntax-checks the Lua script at path.
func NewScriptEngine(path string, host Host) (*ScriptEngine, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read lua script %q: %w", path, err)
	}
	source := string(data)

	// Syntax-check once at startup without running anything stateful
	// beyond top-level function definitions.
	L := lua.NewState()
	defer L.Close()
	if err := L.DoString(source); err != nil {
		return nil, fmt.Errorf("lua script %q failed to load: %w", path, err)
	}

	return &ScriptEngine{source: source, host: host}, nil
}

func (e *ScriptEngine) newState(domainName string) (*lua.LState, error) {
	L := lua.NewState()
	if err := L.DoString(e.source); err != nil {
		L.Close()
		return nil, fmt.Errorf("lua script failed to (re)load: %w", err)
	}
	registerCallables(L, e.host, domainName)
	return L, nil
}

// registerCallables exposes map_lookup and map_auth as Lua globals bound
// to host, scoped to domainName (the calling request's domain -- spec.md
// §4.3 describes the Request exposing "domain" to the handler).
func registerCallables(L *lua.LState, host Host, domainName string) {
	L.SetGlobal("map_lookup", L.NewFunction(func(L *lua.LState) int {
		mapName := L.CheckString(2)
		key := L.CheckString(3)
		value := L.CheckString(4)
		obj, found, err := host.MapLookup(domainName, mapName, key, value)
		if err != nil {
			L.RaiseError("map_lookup: %v", err)
			return 0
		}
		if !found {
			L.Push(lua.LNil)
			return 1
		}
		L.Push(toLuaValue(L, obj))
		return 1
	}))

	L.SetGlobal("map_auth", L.NewFunction(func(L *lua.LState) int {
		mapName := L.CheckString(2)
		key := L.CheckString(3)
		username := L.CheckString(4)
		req := L.CheckTable(1)
		password := lua.LVAsString(req.RawGetString("password"))
		ok, err := host.MapAuth(domainName, mapName, key, username, password)
		if err != nil {
			L.RaiseError("map_auth: %v", err)
			return 0
		}
		L.Push(lua.LBool(ok))
		return 1
	}))
}

func newRequestTable(L *lua.LState, domainName, keyName, keyValue, password string) *lua.LTable {
	req := L.NewTable()
	req.RawSetString("domain", lua.LString(domainName))
	req.RawSetString("keyname", lua.LString(keyName))
	req.RawSetString("keyvalue", lua.LString(keyValue))
	if password != "" {
		req.RawSetString("password", lua.LString(password))
	}
	return req
}

// toLuaValue converts a Go value (string, number, map[string]any,
// []string, []uint32 etc.) into the equivalent lua.LValue.
func toLuaValue(L *lua.LState, v any) lua.LValue {
	switch val := v.(type) {
	case nil:
		return lua.LNil
	case string:
		return lua.LString(val)
	case bool:
		return lua.LBool(val)
	case int:
		return lua.LNumber(val)
	case int64:
		return lua.LNumber(val)
	case uint32:
		return lua.LNumber(val)
	case float64:
		return lua.LNumber(val)
	case []string:
		t := L.NewTable()
		for i, s := range val {
			t.RawSetInt(i+1, lua.LString(s))
		}
		return t
	case map[string]any:
		t := L.NewTable()
		for k, v := range val {
			t.RawSetString(k, toLuaValue(L, v))
		}
		return t
	default:
		return lua.LNil
	}
}

// fromLuaValue converts a lua.LValue result back into a plain Go value
// suitable for JSON serialization by the map server.
func fromLuaValue(lv lua.LValue) any {
	switch v := lv.(type) {
	case *lua.LNilType:
		return nil
	case lua.LBool:
		return bool(v)
	case lua.LNumber:
		return float64(v)
	case lua.LString:
		return string(v)
	case *lua.LTable:
		out := make(map[string]any)
		v.ForEach(func(key, val lua.LValue) {
			out[key.String()] = fromLuaValue(val)
		})
		return out
	default:
		return nil
	}
}

// scriptBackend is the Backend implementation for domain.MapScript. Per
// spec.md's script-engine discipline, it lazily constructs exactly one
// Lua interpreter for its own lifetime (one scriptBackend per worker,
// mirroring the per-worker discipline of WorkerCache for the file-backed
// backends) and never shares it across goroutines.
type scriptBackend struct {
	m      *domain.Map
	engine *ScriptEngine

	mu sync.Mutex
	L  *lua.LState
}

func newScriptBackend(m *domain.Map, engine *ScriptEngine) Backend {
	return &scriptBackend{m: m, engine: engine}
}

func (b *scriptBackend) state(domainName string) (*lua.LState, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.L == nil {
		L, err := b.engine.newState(domainName)
		if err != nil {
			return nil, err
		}
		b.L = L
	}
	return b.L, nil
}

func (b *scriptBackend) Lookup(ctx context.Context, domainName, keyName, keyValue string) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	L, err := b.state(domainName)
	if err != nil {
		return Result{}, wnerrors.Wrap(wnerrors.Unavailable, "script engine failed to start", err)
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	fn := L.GetGlobal(b.m.LuaFunction)
	if fn == lua.LNil {
		return Result{}, wnerrors.New(wnerrors.Unavailable, "lua function "+b.m.LuaFunction+" not defined")
	}

	req := newRequestTable(L, domainName, keyName, keyValue, "")
	if err := L.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}, req); err != nil {
		return Result{}, wnerrors.Wrap(wnerrors.Unavailable, "scripted handler failed", err)
	}
	ret := L.Get(-1)
	L.Pop(1)

	if ret == lua.LNil {
		return Result{}, wnerrors.New(wnerrors.NotFound, "key not found")
	}
	return Result{Object: fromLuaValue(ret)}, nil
}

func (b *scriptBackend) Authenticate(ctx context.Context, keyName, username, password string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	L, err := b.state("")
	if err != nil {
		return false, wnerrors.Wrap(wnerrors.Unavailable, "script engine failed to start", err)
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	fn := L.GetGlobal(b.m.LuaFunction)
	if fn == lua.LNil {
		return false, wnerrors.New(wnerrors.Unavailable, "lua function "+b.m.LuaFunction+" not defined")
	}

	req := newRequestTable(L, "", keyName, username, password)
	if err := L.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}, req); err != nil {
		return false, wnerrors.Wrap(wnerrors.Unavailable, "scripted auth handler failed", err)
	}
	ret := L.Get(-1)
	L.Pop(1)
	return lua.LVAsBool(ret), nil
}

func (b *scriptBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.L != nil {
		b.L.Close()
		b.L = nil
	}
	return nil
}
