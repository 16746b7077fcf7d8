package bind

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRequestVerbs(t *testing.T) {
	cases := []struct {
		line string
		cmd  Cmd
		args []string
	}{
		{"getpwnam truus", CmdGetPwNam, []string{"truus"}},
		{"GETPWUID 1000", CmdGetPwUid, []string{"1000"}},
		{"getgrnam wheel", CmdGetGrNam, []string{"wheel"}},
		{"getgrgid 10", CmdGetGrGid, []string{"10"}},
		{"getgidlist truus", CmdGetGidList, []string{"truus"}},
		{"servers", CmdServers, []string{}},
		{"auth truus s3cr3t", CmdAuth, []string{"truus", "s3cr3t"}},
		{"auth truus s3cr3t login 10.0.0.1", CmdAuth, []string{"truus", "s3cr3t", "login", "10.0.0.1"}},
	}
	for _, c := range cases {
		req, err := ParseRequest(c.line)
		require.NoError(t, err, c.line)
		assert.Equal(t, c.cmd, req.Cmd, c.line)
		assert.Equal(t, c.args, req.Args, c.line)
	}
}

func TestParseRequestArg0ForNumericVerbs(t *testing.T) {
	req, err := ParseRequest("getpwuid 1000")
	require.NoError(t, err)
	assert.Equal(t, uint32(1000), req.Arg0)

	_, err = ParseRequest("getpwuid notanumber")
	assert.Error(t, err)
}

func TestParseRequestRejectsUnknownVerb(t *testing.T) {
	_, err := ParseRequest("bogus foo")
	assert.Error(t, err)
}

func TestParseRequestRejectsWrongArgCount(t *testing.T) {
	_, err := ParseRequest("getpwnam")
	assert.Error(t, err)

	_, err = ParseRequest("auth onlyuser")
	assert.Error(t, err)
}

func TestCmdMapLookup(t *testing.T) {
	lk, ok := CmdGetPwNam.mapLookup()
	require.True(t, ok)
	assert.Equal(t, "passwd", lk.mapName)
	assert.Equal(t, "username", lk.keyName)

	_, ok = CmdAuth.mapLookup()
	assert.False(t, ok)
}
