package nssproto

import (
	"strconv"
	"time"

	"github.com/miquels/webnis/pkg/entry"
	"github.com/miquels/webnis/pkg/wnerrors"
)

// Client is the per-thread singleton state spec.md §4.5 describes: a
// connection to the daemon plus a one-element "last username<->uid seen"
// cache. It is not safe for concurrent use from multiple goroutines at
// once -- the real adapter's state is genuinely thread-local, and callers
// simulating multiple "threads" should construct one Client per goroutine.
type Client struct {
	conn *Conn

	haveLast bool
	lastUser string
	lastUID  uint32
}

// NewClient wraps an already-dialed Conn.
func NewClient(conn *Conn) *Client {
	return &Client{conn: conn}
}

// withRetry implements spec.md §4.5's adapter-side daemon retry policy:
// NotFound, Unavailable, and InsufficientBuffer are returned immediately;
// transient connection errors sleep RetryInterval and retry until
// RetryBudget is exhausted.
func withRetry[T any](call func() (T, error)) (T, error) {
	deadline := time.Now().Add(RetryBudget)
	var zero T
	for {
		result, err := call()
		if err == nil {
			return result, nil
		}
		switch wnerrors.CodeOf(err) {
		case wnerrors.NotFound, wnerrors.Unavailable, wnerrors.InsufficientBuffer:
			return zero, err
		}
		if time.Now().After(deadline) {
			return zero, err
		}
		time.Sleep(RetryInterval)
	}
}

// GetPwNam looks up a passwd entry by username.
func (c *Client) GetPwNam(username string) (*entry.Passwd, error) {
	return withRetry(func() (*entry.Passwd, error) {
		return c.getPwNamOnce(username)
	})
}

func (c *Client) getPwNamOnce(username string) (*entry.Passwd, error) {
	status, text, err := c.conn.call("getpwnam", username)
	if err != nil {
		return nil, err
	}
	if err := statusError(status, text); err != nil {
		return nil, err
	}
	p, err := entry.PasswdFromLine(text)
	if err != nil {
		return nil, err
	}
	c.haveLast, c.lastUser, c.lastUID = true, p.Username, p.UID
	return p, nil
}

// GetPwUid looks up a passwd entry by uid, falling back to a remembered
// getpwnam username on a direct miss (spec.md §4.5 "uid<->name fallback":
// "a subsequent getpwuid whose uid matches a prior getpwnam but whose
// direct lookup failed retries as a getpwnam with the remembered
// username").
func (c *Client) GetPwUid(uid uint32) (*entry.Passwd, error) {
	return withRetry(func() (*entry.Passwd, error) {
		status, text, err := c.conn.call("getpwuid", strconv.FormatUint(uint64(uid), 10))
		if err != nil {
			return nil, err
		}
		if serr := statusError(status, text); serr != nil {
			if wnerrors.CodeOf(serr) == wnerrors.NotFound && c.haveLast && c.lastUID == uid {
				return c.getPwNamOnce(c.lastUser)
			}
			return nil, serr
		}
		p, err := entry.PasswdFromLine(text)
		if err != nil {
			return nil, err
		}
		c.haveLast, c.lastUser, c.lastUID = true, p.Username, p.UID
		return p, nil
	})
}

// GetGrNam looks up a group entry by name.
func (c *Client) GetGrNam(name string) (*entry.Group, error) {
	return withRetry(func() (*entry.Group, error) {
		status, text, err := c.conn.call("getgrnam", name)
		if err != nil {
			return nil, err
		}
		if err := statusError(status, text); err != nil {
			return nil, err
		}
		return entry.GroupFromLine(text)
	})
}

// GetGrGid looks up a group entry by gid.
func (c *Client) GetGrGid(gid uint32) (*entry.Group, error) {
	return withRetry(func() (*entry.Group, error) {
		status, text, err := c.conn.call("getgrgid", strconv.FormatUint(uint64(gid), 10))
		if err != nil {
			return nil, err
		}
		if err := statusError(status, text); err != nil {
			return nil, err
		}
		return entry.GroupFromLine(text)
	})
}

// GetGidList looks up the supplementary group list for username, the
// payload the initgroups protocol (GidArray) ultimately drains into.
func (c *Client) GetGidList(username string) (*entry.GidList, error) {
	return withRetry(func() (*entry.GidList, error) {
		status, text, err := c.conn.call("getgidlist", username)
		if err != nil {
			return nil, err
		}
		if err := statusError(status, text); err != nil {
			return nil, err
		}
		return entry.GidListFromLine(text)
	})
}

// Initgroups fills dst (an already-sized GidArray) from the daemon's
// gidlist response, matching the real adapter's growable-array protocol:
// entries beyond the hard limit are silently dropped rather than erroring.
func (c *Client) Initgroups(username string, dst *GidArray) error {
	gl, err := c.GetGidList(username)
	if err != nil {
		return err
	}
	for _, gid := range gl.GidList {
		if dst.Append(gid) {
			break
		}
	}
	return nil
}
