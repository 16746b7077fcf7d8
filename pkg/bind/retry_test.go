package bind

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miquels/webnis/pkg/wnclient"
)

func serverAddr(ts *httptest.Server) string {
	return strings.TrimPrefix(ts.URL, "https://")
}

// newTLSTestServer starts an HTTPS test server and, for the duration of
// the test, makes http.DefaultTransport (used by the pool's clients)
// trust its certificate, since wnclient always builds https:// URLs.
func newTLSTestServer(t *testing.T, h http.Handler) *httptest.Server {
	t.Helper()
	ts := httptest.NewTLSServer(h)
	prev := http.DefaultTransport
	http.DefaultTransport = ts.Client().Transport
	t.Cleanup(func() { http.DefaultTransport = prev })
	return ts
}

func TestRetrierSucceedsOnFirstAttempt(t *testing.T) {
	ts := newTLSTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"result":{"username":"truus","gidlist":[100,10]}}`))
	}))
	defer ts.Close()

	p := newPool([]string{serverAddr(ts)}, wnclient.Credentials{Schema: "Bearer", Token: "t"}, RequestTimeout)
	r := newRetrier(p, "corp", nil)

	req := Request{Cmd: CmdGetGidList, Args: []string{"truus"}}
	var ef eofFlag
	line := r.run(context.Background(), req, 1000, &ef)
	assert.Equal(t, "200 truus:100,10", line)
}

func TestRetrierFinalFailureOn404(t *testing.T) {
	ts := newTLSTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":{"code":404,"message":"no such user"}}`))
	}))
	defer ts.Close()

	p := newPool([]string{serverAddr(ts)}, wnclient.Credentials{}, RequestTimeout)
	r := newRetrier(p, "corp", nil)

	req := Request{Cmd: CmdGetPwNam, Args: []string{"nobody"}}
	var ef eofFlag
	line := r.run(context.Background(), req, 1000, &ef)
	assert.Equal(t, "404 no such user", line)
}

func TestRetrierCyclesServersOnTransientFailure(t *testing.T) {
	var calls int32
	bad := newTLSTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer bad.Close()

	good := newTLSTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"result":{"username":"truus","passwd":"x","uid":1000,"gid":100,"gecos":"","dir":"/home/truus","shell":"/bin/sh"}}`))
	}))
	defer good.Close()

	// The first activeClient call bumps seqno to 1, so servers[1] (bad) is
	// tried first and the failover then lands on servers[0] (good).
	p := newPool([]string{serverAddr(good), serverAddr(bad)}, wnclient.Credentials{}, RequestTimeout)
	r := newRetrier(p, "corp", nil)

	req := Request{Cmd: CmdGetPwNam, Args: []string{"truus"}}
	var ef eofFlag
	line := r.run(context.Background(), req, 1000, &ef)
	assert.Equal(t, "200 truus:x:1000:100::/home/truus:/bin/sh", line)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestRetrierSynthesizes550OnConnectError(t *testing.T) {
	p := newPool([]string{"127.0.0.1:1"}, wnclient.Credentials{}, 200*time.Millisecond)
	r := newRetrier(p, "corp", nil)

	_, client1, _ := p.activeClient()
	require.NotNil(t, client1)

	req := Request{Cmd: CmdGetPwNam, Args: []string{"truus"}}
	var ef eofFlag
	line := r.run(context.Background(), req, 1000, &ef)
	assert.Contains(t, line, "550")

	// every failed attempt synthesized a 550 and discarded the client, so
	// the pool must have built a fresh one by the time the loop gave up.
	_, client2, _ := p.activeClient()
	assert.NotSame(t, client1, client2)
}

func TestRetrierRendersBodyReadFailureAs400(t *testing.T) {
	ts := newTLSTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hj, ok := w.(http.Hijacker)
		require.True(t, ok)
		conn, bufrw, err := hj.Hijack()
		require.NoError(t, err)
		defer conn.Close()
		// Promise more body than is actually sent, then close the
		// connection mid-stream so io.ReadAll fails with an unexpected EOF.
		bufrw.WriteString("HTTP/1.1 200 OK\r\nContent-Type: application/json\r\nContent-Length: 100\r\n\r\n{\"result\":")
		bufrw.Flush()
	}))
	defer ts.Close()

	p := newPool([]string{serverAddr(ts)}, wnclient.Credentials{}, RequestTimeout)
	r := newRetrier(p, "corp", nil)

	req := Request{Cmd: CmdGetPwNam, Args: []string{"truus"}}
	var ef eofFlag
	line := r.run(context.Background(), req, 1000, &ef)
	assert.Equal(t, "400 ", line[:4])
}

func TestRetrierStopsOnEOFBetweenAttempts(t *testing.T) {
	var calls int32
	ts := newTLSTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer ts.Close()

	p := newPool([]string{serverAddr(ts)}, wnclient.Credentials{}, RequestTimeout)
	r := newRetrier(p, "corp", nil)

	req := Request{Cmd: CmdGetPwNam, Args: []string{"truus"}}
	var ef eofFlag

	go func() {
		time.Sleep(5 * time.Millisecond)
		ef.set()
	}()

	r.run(context.Background(), req, 1000, &ef)
	assert.Less(t, int(atomic.LoadInt32(&calls)), MaxTries)
}
