// Package entry implements the Entry shapes returned by map backends and
// their conversion to and from the colon-delimited line form used on the
// daemon<->adapter wire (spec.md §3 "Entry", "Line form").
package entry

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/miquels/webnis/pkg/wnerrors"
)

// Kind identifies which wire shape an Entry decodes to.
type Kind int

const (
	KindPasswd Kind = iota
	KindGroup
	KindGidList
)

// Passwd is the passwd-record shape (spec.md §3).
type Passwd struct {
	Username string `json:"username"`
	Passwd   string `json:"passwd"`
	UID      uint32 `json:"uid"`
	GID      uint32 `json:"gid"`
	Gecos    string `json:"gecos"`
	Dir      string `json:"dir"`
	Shell    string `json:"shell"`
}

// Group is the group-record shape.
type Group struct {
	Name   string   `json:"name"`
	Passwd string   `json:"passwd"`
	GID    uint32   `json:"gid"`
	Mem    []string `json:"mem"`
}

// GidList is the gidlist-record shape.
type GidList struct {
	Username string   `json:"username"`
	GidList  []uint32 `json:"gidlist"`
}

// noLineBreakingBytes reports whether s contains a NUL byte, colon, or
// newline -- any of which make a field unsafe to carry on the line-form
// wire (spec.md §3 "Line form").
func noLineBreakingBytes(s string) bool {
	return !strings.ContainsAny(s, "\x00:\n")
}

// Validate checks the line-form invariants for a Passwd record.
func (p *Passwd) Validate() error {
	for _, f := range []string{p.Username, p.Passwd, p.Gecos, p.Dir, p.Shell} {
		if !noLineBreakingBytes(f) {
			return wnerrors.New(wnerrors.Unavailable, "passwd field contains NUL, colon or newline")
		}
	}
	return nil
}

// Validate checks the line-form invariants for a Group record.
func (g *Group) Validate() error {
	for _, f := range []string{g.Name, g.Passwd} {
		if !noLineBreakingBytes(f) {
			return wnerrors.New(wnerrors.Unavailable, "group field contains NUL, colon or newline")
		}
	}
	for _, m := range g.Mem {
		if strings.ContainsAny(m, "\x00:,\n") {
			return wnerrors.New(wnerrors.Unavailable, "group member contains NUL, colon, comma or newline")
		}
	}
	return nil
}

// Validate checks the line-form invariants for a GidList record.
func (gl *GidList) Validate() error {
	if !noLineBreakingBytes(gl.Username) {
		return wnerrors.New(wnerrors.Unavailable, "gidlist username contains NUL, colon or newline")
	}
	return nil
}

// ToLine renders a Passwd record as "name:passwd:uid:gid:gecos:dir:shell".
func (p *Passwd) ToLine() (string, error) {
	if err := p.Validate(); err != nil {
		return "", err
	}
	return strings.Join([]string{
		p.Username, p.Passwd,
		strconv.FormatUint(uint64(p.UID), 10),
		strconv.FormatUint(uint64(p.GID), 10),
		p.Gecos, p.Dir, p.Shell,
	}, ":"), nil
}

// PasswdFromLine parses "name:passwd:uid:gid:gecos:dir:shell".
func PasswdFromLine(line string) (*Passwd, error) {
	fields := strings.Split(line, ":")
	if len(fields) != 7 {
		return nil, wnerrors.New(wnerrors.Unavailable, "passwd line must have 7 fields")
	}
	uid, err := strconv.ParseUint(fields[2], 10, 32)
	if err != nil {
		return nil, wnerrors.Wrap(wnerrors.Unavailable, "passwd uid must be an unsigned integer", err)
	}
	gid, err := strconv.ParseUint(fields[3], 10, 32)
	if err != nil {
		return nil, wnerrors.Wrap(wnerrors.Unavailable, "passwd gid must be an unsigned integer", err)
	}
	p := &Passwd{
		Username: fields[0],
		Passwd:   fields[1],
		UID:      uint32(uid),
		GID:      uint32(gid),
		Gecos:    fields[4],
		Dir:      fields[5],
		Shell:    fields[6],
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// ToLine renders a Group record as "name:passwd:gid:mem1,mem2,...".
func (g *Group) ToLine() (string, error) {
	if err := g.Validate(); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s:%s:%d:%s", g.Name, g.Passwd, g.GID, strings.Join(g.Mem, ",")), nil
}

// GroupFromLine parses "name:passwd:gid:mem1,mem2,...".
func GroupFromLine(line string) (*Group, error) {
	fields := strings.Split(line, ":")
	if len(fields) != 4 {
		return nil, wnerrors.New(wnerrors.Unavailable, "group line must have 4 fields")
	}
	gid, err := strconv.ParseUint(fields[2], 10, 32)
	if err != nil {
		return nil, wnerrors.Wrap(wnerrors.Unavailable, "group gid must be an unsigned integer", err)
	}
	var mem []string
	if fields[3] != "" {
		mem = strings.Split(fields[3], ",")
	}
	g := &Group{
		Name:   fields[0],
		Passwd: fields[1],
		GID:    uint32(gid),
		Mem:    mem,
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}

// ToLine renders a GidList record as "name:gid1,gid2,...".
func (gl *GidList) ToLine() (string, error) {
	if err := gl.Validate(); err != nil {
		return "", err
	}
	parts := make([]string, len(gl.GidList))
	for i, gid := range gl.GidList {
		parts[i] = strconv.FormatUint(uint64(gid), 10)
	}
	return fmt.Sprintf("%s:%s", gl.Username, strings.Join(parts, ",")), nil
}

// GidListFromLine parses "name:gid1,gid2,...".
func GidListFromLine(line string) (*GidList, error) {
	idx := strings.IndexByte(line, ':')
	if idx < 0 {
		return nil, wnerrors.New(wnerrors.Unavailable, "gidlist line missing ':' separator")
	}
	username := line[:idx]
	rest := line[idx+1:]
	var gids []uint32
	if rest != "" {
		for _, s := range strings.Split(rest, ",") {
			n, err := strconv.ParseUint(s, 10, 32)
			if err != nil {
				return nil, wnerrors.Wrap(wnerrors.Unavailable, "gidlist entry must be an unsigned integer", err)
			}
			gids = append(gids, uint32(n))
		}
	}
	gl := &GidList{Username: username, GidList: gids}
	if err := gl.Validate(); err != nil {
		return nil, err
	}
	return gl, nil
}
