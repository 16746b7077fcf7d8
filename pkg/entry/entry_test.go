package entry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPasswdLineRoundTrip(t *testing.T) {
	line := "truus:x:1042:42:Truus:/home/truus:"
	p, err := PasswdFromLine(line)
	require.NoError(t, err)
	assert.Equal(t, "truus", p.Username)
	assert.Equal(t, uint32(1042), p.UID)
	assert.Equal(t, uint32(42), p.GID)

	out, err := p.ToLine()
	require.NoError(t, err)
	assert.Equal(t, line, out)
}

func TestPasswdFromLineWrongFieldCount(t *testing.T) {
	_, err := PasswdFromLine("truus:x:1042:42:Truus")
	require.Error(t, err)
}

func TestPasswdFromLineBadUID(t *testing.T) {
	_, err := PasswdFromLine("truus:x:notanumber:42:Truus:/home/truus:")
	require.Error(t, err)
}

func TestGroupLineRoundTrip(t *testing.T) {
	line := "staff:x:50:alice,bob,carol"
	g, err := GroupFromLine(line)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob", "carol"}, g.Mem)

	out, err := g.ToLine()
	require.NoError(t, err)
	assert.Equal(t, line, out)
}

func TestGroupLineEmptyMembers(t *testing.T) {
	g, err := GroupFromLine("empty:x:99:")
	require.NoError(t, err)
	assert.Empty(t, g.Mem)
}

func TestGidListRoundTrip(t *testing.T) {
	line := "truus:42,100,200"
	gl, err := GidListFromLine(line)
	require.NoError(t, err)
	assert.Equal(t, []uint32{42, 100, 200}, gl.GidList)

	out, err := gl.ToLine()
	require.NoError(t, err)
	assert.Equal(t, line, out)
}

func TestEntryRejectsEmbeddedNUL(t *testing.T) {
	p := &Passwd{Username: "bad\x00name", Passwd: "x", Gecos: "g", Dir: "/", Shell: "/bin/sh"}
	_, err := p.ToLine()
	require.Error(t, err)
}

func TestEntryRejectsEmbeddedColon(t *testing.T) {
	p := &Passwd{Username: "bad:name", Passwd: "x", Gecos: "g", Dir: "/", Shell: "/bin/sh"}
	_, err := p.ToLine()
	require.Error(t, err)
}

func TestPercentEncodeDecodeRoundTrip(t *testing.T) {
	cases := []string{
		"s3cret",
		"has a space",
		"has%percent",
		"has:colon",
		"",
		"unicode-é",
	}
	for _, c := range cases {
		encoded := PercentEncode(c)
		decoded := PercentDecode(encoded)
		assert.Equal(t, c, decoded, "round trip for %q", c)
	}
}

func TestPercentEncodeLeavesSimpleStringsAlone(t *testing.T) {
	assert.Equal(t, "abcXYZ123-_.~", PercentEncode("abcXYZ123-_.~"))
}
