package nssproto

import (
	"bufio"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/miquels/webnis/pkg/wnerrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDaemon runs a tiny line-protocol responder over one side of a
// net.Pipe, driven by a script of verb -> response lookup. Unscripted
// verbs get a 404.
type fakeDaemon struct {
	responses map[string]string
	hangup    bool
}

func (d *fakeDaemon) serve(conn net.Conn) {
	defer conn.Close()
	r := bufio.NewReader(conn)
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		line = strings.TrimRight(line, "\r\n")
		if d.hangup {
			return
		}
		resp, ok := d.responses[line]
		if !ok {
			resp = "404 not found"
		}
		if _, err := conn.Write([]byte(resp + "\n")); err != nil {
			return
		}
	}
}

func newTestClient(t *testing.T, d *fakeDaemon) (*Client, net.Conn) {
	t.Helper()
	client, server := net.Pipe()
	go d.serve(server)
	conn := &Conn{c: client, r: bufio.NewReader(client)}
	t.Cleanup(func() { conn.Close() })
	return NewClient(conn), client
}

func TestClient_GetPwNam_Found(t *testing.T) {
	d := &fakeDaemon{responses: map[string]string{
		"getpwnam alice": "200 alice:x:1000:1000:Alice:/home/alice:/bin/bash",
	}}
	c, _ := newTestClient(t, d)

	p, err := c.GetPwNam("alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", p.Username)
	assert.Equal(t, uint32(1000), p.UID)
	assert.True(t, c.haveLast)
	assert.Equal(t, "alice", c.lastUser)
}

func TestClient_GetPwNam_NotFound(t *testing.T) {
	d := &fakeDaemon{responses: map[string]string{}}
	c, _ := newTestClient(t, d)

	_, err := c.GetPwNam("nobody")
	require.Error(t, err)
	assert.Equal(t, wnerrors.NotFound, wnerrors.CodeOf(err))
}

func TestClient_GetPwUid_FallsBackToRememberedName(t *testing.T) {
	d := &fakeDaemon{responses: map[string]string{
		"getpwnam alice": "200 alice:x:1000:1000:Alice:/home/alice:/bin/bash",
		// getpwuid 1000 deliberately unscripted -> 404, forcing the fallback.
	}}
	c, _ := newTestClient(t, d)

	_, err := c.GetPwNam("alice")
	require.NoError(t, err)

	p, err := c.GetPwUid(1000)
	require.NoError(t, err)
	assert.Equal(t, "alice", p.Username)
}

func TestClient_GetPwUid_NoFallbackWithoutPriorLookup(t *testing.T) {
	d := &fakeDaemon{responses: map[string]string{}}
	c, _ := newTestClient(t, d)

	_, err := c.GetPwUid(1000)
	require.Error(t, err)
	assert.Equal(t, wnerrors.NotFound, wnerrors.CodeOf(err))
}

func TestClient_GetGrNam_Found(t *testing.T) {
	d := &fakeDaemon{responses: map[string]string{
		"getgrnam wheel": "200 wheel:x:10:alice,bob",
	}}
	c, _ := newTestClient(t, d)

	g, err := c.GetGrNam("wheel")
	require.NoError(t, err)
	assert.Equal(t, "wheel", g.Name)
	assert.Equal(t, []string{"alice", "bob"}, g.Mem)
}

func TestClient_GetGidList_And_Initgroups(t *testing.T) {
	d := &fakeDaemon{responses: map[string]string{
		"getgidlist alice": "200 alice:10,20,30,1000",
	}}
	c, _ := newTestClient(t, d)

	arr := NewGidArray(3, 1000, true)
	err := c.Initgroups("alice", arr)
	require.NoError(t, err)
	assert.Equal(t, []uint32{10, 20, 30}, arr.Gids)
}

func TestClient_RetryExhaustsOnTransientFailure(t *testing.T) {
	d := &fakeDaemon{hangup: true}
	c, _ := newTestClient(t, d)

	start := time.Now()
	_, err := c.GetPwNam("alice")
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.GreaterOrEqual(t, elapsed, RetryInterval)
	assert.LessOrEqual(t, elapsed, RetryBudget+RetryInterval*2)
}

func TestGidArray_SkipsDuplicatesAndStopsAtLimit(t *testing.T) {
	a := NewGidArray(2, 99, true)
	assert.False(t, a.Append(10))
	assert.False(t, a.Append(10))
	assert.False(t, a.Append(99))
	assert.True(t, a.Append(20))
	assert.Equal(t, []uint32{10, 20}, a.Gids)
}

func TestGidArray_ZeroLimitIsUnbounded(t *testing.T) {
	a := NewGidArray(0, 0, false)
	for gid := uint32(1); gid <= 14; gid++ {
		assert.False(t, a.Append(gid))
	}
	assert.Len(t, a.Gids, 14)
}

func TestBuffer_AddString_StickyOverflow(t *testing.T) {
	buf, err := NewBuffer(minBufferLen)
	require.NoError(t, err)

	_, err = buf.AddString(strings.Repeat("x", 100))
	require.Error(t, err)
	assert.Equal(t, wnerrors.InsufficientBuffer, wnerrors.CodeOf(err))

	_, err = buf.AddString("a")
	require.Error(t, err, "buffer should stay sticky-full after first overflow")
}

func TestNewBuffer_RejectsTooSmall(t *testing.T) {
	_, err := NewBuffer(8)
	require.Error(t, err)
	assert.Equal(t, wnerrors.InsufficientBuffer, wnerrors.CodeOf(err))
}
