// Package nssproto is a pure-Go emulation of the NSS adapter's wire-level
// contract (spec.md §4.5): the real webnis-nss is a cgo shared library
// loaded into glibc, which is out of scope for this module. This package
// implements the identical retry/parsing semantics against the binding
// daemon's UNIX socket so any Go test harness or simulation tool can drive
// them without cgo.
package nssproto

import (
	"bufio"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/miquels/webnis/pkg/wnerrors"
)

// Adapter-side timeouts (spec.md §5 "Timeouts": "Adapter: read 1.5 s,
// write 1 s, total budget 2 s") and the daemon retry policy (spec.md §4.5
// "Daemon retry policy (adapter side)").
const (
	ReadTimeout   = 1500 * time.Millisecond
	WriteTimeout  = 1 * time.Second
	RetryBudget   = 2000 * time.Millisecond
	RetryInterval = 500 * time.Millisecond
	DialTimeout   = 1 * time.Second
)

// Conn is one connection to the binding daemon's UNIX socket.
type Conn struct {
	c net.Conn
	r *bufio.Reader
}

// Dial opens a new daemon connection at path.
func Dial(path string) (*Conn, error) {
	c, err := net.DialTimeout("unix", path, DialTimeout)
	if err != nil {
		return nil, wnerrors.Wrap(wnerrors.Unavailable, "failed to connect to webnis-bind", err)
	}
	return &Conn{c: c, r: bufio.NewReader(c)}, nil
}

// Close closes the underlying connection.
func (c *Conn) Close() error {
	return c.c.Close()
}

// call sends one wire-protocol request line and reads back the single
// "CODE text" response line (spec.md §4.1 "Protocol").
func (c *Conn) call(verb string, args ...string) (code int, text string, err error) {
	_ = c.c.SetWriteDeadline(time.Now().Add(WriteTimeout))
	line := verb
	if len(args) > 0 {
		line = verb + " " + strings.Join(args, " ")
	}
	if _, err := c.c.Write([]byte(line + "\n")); err != nil {
		return 0, "", wnerrors.Wrap(wnerrors.TryAgainNow, "failed to write request", err)
	}

	_ = c.c.SetReadDeadline(time.Now().Add(ReadTimeout))
	resp, err := c.r.ReadString('\n')
	if err != nil {
		return 0, "", wnerrors.Wrap(wnerrors.TryAgainNow, "failed to read response", err)
	}
	resp = strings.TrimRight(resp, "\r\n")

	parts := strings.SplitN(resp, " ", 2)
	n, cerr := strconv.Atoi(parts[0])
	if cerr != nil {
		return 0, "", wnerrors.New(wnerrors.Unavailable, "malformed daemon response: "+resp)
	}
	if len(parts) > 1 {
		text = parts[1]
	}
	return n, text, nil
}

// codeOf classifies a daemon status code into the shared error taxonomy,
// mirroring the status ranges spec.md §4.1 defines.
func codeOf(status int) wnerrors.Code {
	switch {
	case status >= 200 && status < 300:
		return 0
	case status == 401:
		return wnerrors.BadAuth
	case status == 403:
		return wnerrors.Forbidden
	case status == 404:
		return wnerrors.NotFound
	case status >= 500:
		return wnerrors.TryAgainLater
	default:
		return wnerrors.TryAgainLater
	}
}

func statusError(status int, text string) error {
	code := codeOf(status)
	if code == 0 {
		return nil
	}
	return wnerrors.New(code, fmt.Sprintf("%d %s", status, text))
}
