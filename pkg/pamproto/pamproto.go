// Package pamproto is a pure-Go emulation of the PAM adapter's wire-level
// contract (spec.md §4.6): the real webnis-pam is a cgo/PAM shared library,
// out of scope for this module. This package drives the identical
// request/retry/response-mapping semantics against the binding daemon so
// Go callers and tests can exercise them without cgo or libpam.
package pamproto

import (
	"bufio"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/miquels/webnis/pkg/entry"
	"github.com/miquels/webnis/pkg/wnerrors"
)

// Request/response timeouts and the retry policy (spec.md §4.6 "PAM
// adapter"): a single retry after a fixed delay, never more.
const (
	DialTimeout  = 1 * time.Second
	ReadTimeout  = 2500 * time.Millisecond
	WriteTimeout = 1 * time.Second
	RetryDelay   = 2500 * time.Millisecond
	MaxTries     = 2
)

// Outcome classifies a daemon response the way the adapter's caller
// (a real PAM stack would map this to PAM_SUCCESS/PAM_AUTH_ERR/
// PAM_AUTHINFO_UNAVAIL) needs to see it.
type Outcome int

const (
	// Success: credentials accepted.
	Success Outcome = iota
	// AuthErr: credentials rejected. Final -- never retried.
	AuthErr
	// AuthinfoUnavail: the daemon could not be reached or gave a
	// non-authentication error, after the retry budget was exhausted.
	AuthinfoUnavail
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "Success"
	case AuthErr:
		return "AuthErr"
	case AuthinfoUnavail:
		return "AuthinfoUnavail"
	default:
		return "Unknown"
	}
}

// Args are the PAM config-file arguments recognized in /etc/pam.d/ lines
// (spec.md §4.6): "debug" and "use_first_pass" (the latter is accepted for
// compatibility but is already this adapter's only mode, since it never
// independently prompts for a password).
type Args struct {
	Debug        bool
	UseFirstPass bool
}

// ParseArgs parses the raw config-file argument tokens.
func ParseArgs(tokens []string) Args {
	var a Args
	for _, t := range tokens {
		switch t {
		case "debug":
			a.Debug = true
		case "use_first_pass":
			a.UseFirstPass = true
		}
	}
	return a
}

// Client authenticates against the binding daemon over its UNIX socket.
type Client struct {
	SockPath string
}

// NewClient returns a Client that dials sockPath for each authentication
// attempt, matching the real adapter's connect-once-per-attempt shape.
func NewClient(sockPath string) *Client {
	return &Client{SockPath: sockPath}
}

// Authenticate validates the request fields, then runs the daemon
// auth verb with the adapter's retry policy: any outcome other than
// success or an explicit auth rejection is retried once after RetryDelay.
func (c *Client) Authenticate(user, pass, service, rhost string) (Outcome, error) {
	if err := validateField(user); err != nil {
		return AuthErr, err
	}
	if err := validateField(service); err != nil {
		return AuthErr, err
	}
	if rhost != "" {
		if err := validateField(rhost); err != nil {
			return AuthErr, err
		}
	}

	encodedPass := entry.PercentEncode(pass)

	var lastErr error
	for tries := 0; tries < MaxTries; tries++ {
		outcome, err := c.attempt(user, encodedPass, service, rhost)
		if outcome == Success || outcome == AuthErr {
			return outcome, err
		}
		lastErr = err
		if tries < MaxTries-1 {
			time.Sleep(RetryDelay)
		}
	}
	return AuthinfoUnavail, lastErr
}

// validateField rejects whitespace in any request field, matching the
// daemon wire protocol's space-delimited request line (spec.md §4.6).
func validateField(s string) error {
	if strings.ContainsAny(s, " \t\r\n") {
		return wnerrors.New(wnerrors.BadAuth, "field must not contain whitespace")
	}
	return nil
}

func (c *Client) attempt(user, encodedPass, service, rhost string) (Outcome, error) {
	conn, err := net.DialTimeout("unix", c.SockPath, DialTimeout)
	if err != nil {
		return AuthinfoUnavail, wnerrors.Wrap(wnerrors.Unavailable, "failed to connect to webnis-bind", err)
	}
	defer conn.Close()

	_ = conn.SetWriteDeadline(time.Now().Add(WriteTimeout))
	line := "auth " + user + " " + encodedPass
	if service != "" {
		line += " " + service
		if rhost != "" {
			line += " " + rhost
		}
	}
	if _, err := conn.Write([]byte(line + "\n")); err != nil {
		return AuthinfoUnavail, wnerrors.Wrap(wnerrors.TryAgainNow, "failed to write auth request", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(ReadTimeout))
	resp, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		return AuthinfoUnavail, wnerrors.Wrap(wnerrors.TryAgainNow, "failed to read auth response", err)
	}
	resp = strings.TrimRight(resp, "\r\n")

	parts := strings.SplitN(resp, " ", 2)
	status, perr := strconv.Atoi(parts[0])
	if perr != nil {
		return AuthinfoUnavail, wnerrors.New(wnerrors.Unavailable, "malformed daemon response: "+resp)
	}

	switch {
	case status >= 200 && status < 300:
		return Success, nil
	case status == 401, status == 403, status == 404:
		return AuthErr, wnerrors.New(wnerrors.BadAuth, resp)
	default:
		return AuthinfoUnavail, wnerrors.New(wnerrors.TryAgainLater, resp)
	}
}
