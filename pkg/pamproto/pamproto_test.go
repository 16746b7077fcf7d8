package pamproto

import (
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/miquels/webnis/pkg/wnerrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// listenUnix starts a one-shot UNIX listener at a fresh temp path and
// returns the path plus a function to drive its next accepted connection
// with a scripted response.
func listenUnix(t *testing.T) (string, *net.UnixListener) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "webnis-bind.sock")
	l, err := net.ListenUnix("unix", &net.UnixAddr{Name: path, Net: "unix"})
	require.NoError(t, err)
	t.Cleanup(func() { l.Close(); os.Remove(path) })
	return path, l
}

func respondOnce(t *testing.T, l *net.UnixListener, response string) {
	t.Helper()
	go func() {
		conn, err := l.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		buf := make([]byte, 4096)
		_, _ = conn.Read(buf)
		_, _ = conn.Write([]byte(response + "\n"))
	}()
}

func TestAuthenticate_Success(t *testing.T) {
	path, l := listenUnix(t)
	respondOnce(t, l, "200 ok")

	c := NewClient(path)
	outcome, err := c.Authenticate("alice", "hunter2", "login", "")
	require.NoError(t, err)
	assert.Equal(t, Success, outcome)
}

func TestAuthenticate_RejectedIsFinal(t *testing.T) {
	path, l := listenUnix(t)
	respondOnce(t, l, "401 bad password")

	start := time.Now()
	c := NewClient(path)
	outcome, err := c.Authenticate("alice", "wrong", "login", "")
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.Equal(t, AuthErr, outcome)
	assert.Equal(t, wnerrors.BadAuth, wnerrors.CodeOf(err))
	assert.Less(t, elapsed, RetryDelay, "a final auth rejection must not sleep/retry")
}

func TestAuthenticate_RetriesOnceThenUnavailable(t *testing.T) {
	path, l := listenUnix(t)
	l.Close() // nothing is listening; every dial fails.

	start := time.Now()
	c := NewClient(path)
	outcome, err := c.Authenticate("alice", "hunter2", "login", "")
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.Equal(t, AuthinfoUnavail, outcome)
	assert.GreaterOrEqual(t, elapsed, RetryDelay)
}

func TestAuthenticate_RejectsWhitespaceInUser(t *testing.T) {
	c := NewClient("/nonexistent")
	_, err := c.Authenticate("al ice", "pw", "login", "")
	require.Error(t, err)
	assert.Equal(t, wnerrors.BadAuth, wnerrors.CodeOf(err))
}

func TestAuthenticate_PercentEncodesPassword(t *testing.T) {
	path, l := listenUnix(t)
	received := make(chan string, 1)
	go func() {
		conn, err := l.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		buf := make([]byte, 4096)
		n, _ := conn.Read(buf)
		received <- string(buf[:n])
		_, _ = conn.Write([]byte("200 ok\n"))
	}()

	c := NewClient(path)
	_, err := c.Authenticate("alice", "p@ss w0rd!", "login", "")
	require.NoError(t, err)

	line := <-received
	assert.NotContains(t, line, " w0rd") // the raw space must not survive encoding
	assert.Contains(t, line, "%20")
}

func TestParseArgs(t *testing.T) {
	a := ParseArgs([]string{"debug", "use_first_pass", "unknown"})
	assert.True(t, a.Debug)
	assert.True(t, a.UseFirstPass)
}

func TestOutcome_String(t *testing.T) {
	assert.Equal(t, "Success", Success.String())
	assert.Equal(t, "AuthErr", AuthErr.String())
	assert.Equal(t, "AuthinfoUnavail", AuthinfoUnavail.String())
}
