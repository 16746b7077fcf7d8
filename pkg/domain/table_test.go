package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRaw() ([]RawDomain, []RawMap, []RawAuth) {
	maps := []RawMap{
		{
			Name:   "passwd",
			Type:   "gdbm",
			Format: "passwd",
			Keys:   []string{"username"},
			File:   "/var/db/webnis/default/passwd.by.name",
		},
		{
			Name:     "passwd",
			Type:     "gdbm",
			Format:   "passwd",
			Keys:     []string{"uid"},
			KeyAlias: map[string]string{"userid": "uid"},
			File:     "/var/db/webnis/default/passwd.by.uid",
		},
	}
	auths := []RawAuth{
		{Name: "default", Map: "passwd", Key: "username"},
	}
	domains := []RawDomain{
		{
			Name:           "default",
			DBDir:          "/var/db/webnis/default",
			Maps:           []string{"passwd"},
			Auth:           "default",
			HTTPAuthSchema: "Bearer",
			HTTPAuthToken:  "secret-token",
		},
	}
	return domains, maps, auths
}

func TestBuildAndResolve(t *testing.T) {
	domains, maps, auths := sampleRaw()
	tbl, err := Build(domains, maps, auths, "")
	require.NoError(t, err)

	d, ok := tbl.Domain("default")
	require.True(t, ok)
	assert.True(t, d.AllowsMap("passwd"))
	assert.False(t, d.AllowsMap("group"))

	m, canon, ok := tbl.ResolveMap("passwd", "username")
	require.True(t, ok)
	assert.Equal(t, "username", canon)
	assert.Equal(t, "/var/db/webnis/default/passwd.by.name", m.File)

	m, canon, ok = tbl.ResolveMap("passwd", "userid")
	require.True(t, ok)
	assert.Equal(t, "uid", canon)
	assert.Equal(t, "/var/db/webnis/default/passwd.by.uid", m.File)

	_, _, ok = tbl.ResolveMap("passwd", "nosuchkey")
	assert.False(t, ok)

	a, ok := tbl.Auth("default")
	require.True(t, ok)
	assert.False(t, a.Scripted())
	assert.Equal(t, "passwd", a.Map)
}

func TestBuildRejectsUnknownMapReference(t *testing.T) {
	domains, maps, _ := sampleRaw()
	domains[0].Maps = []string{"nosuchmap"}
	_, err := Build(domains, maps, nil, "")
	require.Error(t, err)
}

func TestBuildRejectsUnknownAuthReference(t *testing.T) {
	domains, maps, _ := sampleRaw()
	domains[0].Auth = "nosuchauth"
	_, err := Build(domains, maps, nil, "")
	require.Error(t, err)
}

func TestBuildRejectsDuplicateDomain(t *testing.T) {
	domains, maps, auths := sampleRaw()
	domains = append(domains, domains[0])
	_, err := Build(domains, maps, auths, "")
	require.Error(t, err)
}

func TestBuildRejectsInvalidMapType(t *testing.T) {
	_, maps, _ := sampleRaw()
	maps[0].Type = "bogus"
	_, err := Build(nil, maps, nil, "")
	require.Error(t, err)
}

func TestBuildScriptedMapRequiresLuaFunction(t *testing.T) {
	maps := []RawMap{{Name: "scripted", Type: "lua"}}
	_, err := Build(nil, maps, nil, "")
	require.Error(t, err)
}

func TestBuildScriptedAuth(t *testing.T) {
	auths := []RawAuth{{Name: "scripted", LuaFunction: "check_auth"}}
	tbl, err := Build(nil, nil, auths, "/etc/webnis/scripts.lua")
	require.NoError(t, err)
	a, ok := tbl.Auth("scripted")
	require.True(t, ok)
	assert.True(t, a.Scripted())
}

func TestBuildRejectsAuthWithBothMapAndLua(t *testing.T) {
	auths := []RawAuth{{Name: "bad", Map: "passwd", Key: "username", LuaFunction: "fn"}}
	_, err := Build(nil, []RawMap{{Name: "passwd", Type: "gdbm", Keys: []string{"username"}, File: "x"}}, auths, "")
	require.Error(t, err)
}
