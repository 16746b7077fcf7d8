package nssproto

import "github.com/miquels/webnis/pkg/entry"

// PasswdRecord is the simulated "struct passwd" laid out into a caller
// buffer: each string field is an offset into Buffer.Data instead of a raw
// C pointer (spec.md §4.5 "Buffer protocol").
type PasswdRecord struct {
	NameOffset, PasswdOffset, GecosOffset, DirOffset, ShellOffset int
	UID, GID                                                     uint32
}

// BuildPasswd lays p out into buf, field by field, in the order the real
// adapter fills struct passwd.
func BuildPasswd(buf *Buffer, p *entry.Passwd) (*PasswdRecord, error) {
	r := &PasswdRecord{UID: p.UID, GID: p.GID}
	var err error
	if r.NameOffset, err = buf.AddString(p.Username); err != nil {
		return nil, err
	}
	if r.PasswdOffset, err = buf.AddString(p.Passwd); err != nil {
		return nil, err
	}
	if r.GecosOffset, err = buf.AddString(p.Gecos); err != nil {
		return nil, err
	}
	if r.DirOffset, err = buf.AddString(p.Dir); err != nil {
		return nil, err
	}
	if r.ShellOffset, err = buf.AddString(p.Shell); err != nil {
		return nil, err
	}
	return r, nil
}

// GroupRecord is the simulated "struct group".
type GroupRecord struct {
	NameOffset, PasswdOffset, MembersOffset int
	GID                                     uint32
}

// BuildGroup lays g out into buf.
func BuildGroup(buf *Buffer, g *entry.Group) (*GroupRecord, error) {
	r := &GroupRecord{GID: g.GID}
	var err error
	if r.NameOffset, err = buf.AddString(g.Name); err != nil {
		return nil, err
	}
	if r.PasswdOffset, err = buf.AddString(g.Passwd); err != nil {
		return nil, err
	}
	if r.MembersOffset, err = buf.AddMembers(g.Mem); err != nil {
		return nil, err
	}
	return r, nil
}
