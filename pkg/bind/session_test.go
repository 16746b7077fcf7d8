package bind

import (
	"bufio"
	"context"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/miquels/webnis/pkg/wnclient"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(nopWriter{}, nil))
}

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }

func newTestResolver(t *testing.T, ts *httptest.Server) *resolver {
	t.Helper()
	server := serverAddr(ts)
	p := newPool([]string{server}, wnclient.Credentials{Schema: "Bearer", Token: "secret"}, RequestTimeout)
	return &resolver{
		domain:  "corp",
		retrier: newRetrier(p, "corp", nil),
		pool:    p,
	}
}

func TestSessionRunHandlesLookup(t *testing.T) {
	ts := newTLSTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"result":{"username":"truus","passwd":"x","uid":1000,"gid":100,"gecos":"Truus","dir":"/home/truus","shell":"/bin/sh"}}`))
	}))
	defer ts.Close()

	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	sess := NewSession(server, peerCreds{UID: 1000, GID: 100}, newTestResolver(t, ts), newTestLogger())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	go sess.Run(ctx)

	_, err := client.Write([]byte("getpwnam truus\n"))
	require.NoError(t, err)

	reader := bufio.NewReader(client)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	require.Equal(t, "200 truus:x:1000:100:Truus:/home/truus:/bin/sh\n", line)
}

func TestSessionRestrictsGetPwUidToOwnUID(t *testing.T) {
	ts := newTLSTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("HTTPS request should not have been made")
	}))
	defer ts.Close()

	r := newTestResolver(t, ts)
	r.restrictGetPwUid = true

	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	sess := NewSession(server, peerCreds{UID: 1000, GID: 100}, r, newTestLogger())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	go sess.Run(ctx)

	_, err := client.Write([]byte("getpwuid 999\n"))
	require.NoError(t, err)

	reader := bufio.NewReader(client)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	require.Equal(t, "403 Forbidden\n", line)
}

func TestSessionServersVerb(t *testing.T) {
	ts := newTLSTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer ts.Close()

	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	sess := NewSession(server, peerCreds{UID: 0, GID: 0}, newTestResolver(t, ts), newTestLogger())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	go sess.Run(ctx)

	_, err := client.Write([]byte("servers\n"))
	require.NoError(t, err)

	reader := bufio.NewReader(client)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(line, "200 "))
	require.Contains(t, line, "\"servers\"")
}
