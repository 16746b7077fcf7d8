package server

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miquels/webnis/pkg/backend"
	"github.com/miquels/webnis/pkg/domain"
	"github.com/miquels/webnis/pkg/wnerrors"
)

func writeJSONArray(t *testing.T, records []map[string]any) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "users.json")
	data, err := json.Marshal(records)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func newTestEngine(t *testing.T, file string, keys []string) (*lookupEngine, *domain.Table, *domain.Domain) {
	t.Helper()
	table, err := domain.Build(
		[]domain.RawDomain{{Name: "example", Maps: []string{"passwd"}, Auth: "passwd-auth"}},
		[]domain.RawMap{{Name: "passwd", Type: "json", Keys: keys, File: file}},
		[]domain.RawAuth{{Name: "passwd-auth", Map: "passwd", Key: "name"}},
		"",
	)
	require.NoError(t, err)
	d, _ := table.Domain("example")
	registry := backend.NewRegistry()
	pool := newWorkerPool(1, registry)
	return &lookupEngine{table: table, pool: pool}, table, d
}

func TestLookupEngine_Lookup_Found(t *testing.T) {
	file := writeJSONArray(t, []map[string]any{
		{"name": "alice", "uid": 1001, "passwd": "$5$saltstring$5B8vYYiY.CVt1RlTTf8KbXBH3hsxY/GNooZaBBGWEc5"},
	})
	e, _, d := newTestEngine(t, file, []string{"name"})

	obj, err := e.lookup(context.Background(), d, "passwd", "name", "alice")
	require.NoError(t, err)
	rec, ok := obj.(map[string]any)
	require.True(t, ok, "expected map[string]any, got %T", obj)
	assert.Equal(t, "alice", rec["name"])
}

func TestLookupEngine_Lookup_KeyNotFound(t *testing.T) {
	file := writeJSONArray(t, []map[string]any{{"name": "alice"}})
	e, _, d := newTestEngine(t, file, []string{"name"})

	_, err := e.lookup(context.Background(), d, "passwd", "name", "bob")
	assert.Equal(t, wnerrors.NotFound, wnerrors.CodeOf(err))
}

func TestLookupEngine_Lookup_MapNotAllowed(t *testing.T) {
	file := writeJSONArray(t, []map[string]any{{"name": "alice"}})
	e, _, d := newTestEngine(t, file, []string{"name"})

	_, err := e.lookup(context.Background(), d, "nosuchmap", "name", "alice")
	assert.Equal(t, wnerrors.NotFound, wnerrors.CodeOf(err))
}

func TestLookupEngine_MapAuth(t *testing.T) {
	file := writeJSONArray(t, []map[string]any{
		{"name": "alice", "passwd": "$5$saltstring$5B8vYYiY.CVt1RlTTf8KbXBH3hsxY/GNooZaBBGWEc5"},
	})
	e, _, _ := newTestEngine(t, file, []string{"name"})

	ok, err := e.MapAuth("example", "passwd", "name", "alice", "Hello world!")
	require.NoError(t, err)
	assert.True(t, ok, "expected MapAuth to succeed with the right password")

	ok, err = e.MapAuth("example", "passwd", "name", "alice", "wrong password")
	require.NoError(t, err)
	assert.False(t, ok, "expected MapAuth to fail with the wrong password")
}

func TestLookupEngine_MapAuth_UnknownUser(t *testing.T) {
	file := writeJSONArray(t, []map[string]any{{"name": "alice"}})
	e, _, _ := newTestEngine(t, file, []string{"name"})

	ok, err := e.MapAuth("example", "passwd", "name", "nobody", "whatever")
	require.NoError(t, err, "an unknown user is reported as a failed auth, not an error")
	assert.False(t, ok)
}

func TestLookupEngine_VirtualAuthMap_Stable(t *testing.T) {
	e := &lookupEngine{}
	a := &domain.Auth{Name: "scripted-auth", LuaFunction: "do_auth"}

	m1 := e.virtualAuthMap(a)
	m2 := e.virtualAuthMap(a)
	assert.Same(t, m1, m2, "virtualAuthMap must return the same *domain.Map pointer across calls for the same Auth")

	other := &domain.Auth{Name: "other-auth", LuaFunction: "do_other"}
	m3 := e.virtualAuthMap(other)
	assert.NotSame(t, m1, m3, "virtualAuthMap must not share a pointer between distinct Auth descriptors")
}

func TestPasswdField(t *testing.T) {
	s, err := passwdField(map[string]any{"passwd": "secret"})
	require.NoError(t, err)
	assert.Equal(t, "secret", s)

	type record struct {
		Passwd string `json:"passwd"`
	}
	s, err = passwdField(record{Passwd: "other"})
	require.NoError(t, err)
	assert.Equal(t, "other", s)
}
