package nssproto

import "github.com/miquels/webnis/pkg/wnerrors"

// minBufferLen mirrors the real adapter's "buffer size must be >= 24
// bytes" invariant (spec.md §4.5 "Buffer protocol"): small enough to hold
// an aligned pointer array header even with no string payload yet.
const minBufferLen = 24

// Buffer simulates the caller-owned fixed-size byte buffer the real NSS
// entry points lay C strings and pointer arrays into (spec.md §4.5 "Buffer
// protocol"). Since this module has no cgo boundary to honor, pointers
// become byte offsets into Data and ErrInsufficientBuffer stands in for
// the real adapter's ERANGE/TryAgain result -- the caller is expected to
// retry with a larger buffer exactly as the host runtime would.
type Buffer struct {
	Data []byte
	pos  int
	full bool
}

// NewBuffer allocates a Buffer of size bytes. size must be >= 24.
func NewBuffer(size int) (*Buffer, error) {
	if size < minBufferLen {
		return nil, wnerrors.New(wnerrors.InsufficientBuffer, "buffer must be at least 24 bytes")
	}
	return &Buffer{Data: make([]byte, size), pos: 0}, nil
}

// Reset clears the buffer for reuse, matching the real adapter's
// zero-and-rewind behavior between calls on the same thread-local buffer.
func (b *Buffer) Reset() {
	for i := range b.Data {
		b.Data[i] = 0
	}
	b.pos = 0
	b.full = false
}

// AddString appends a NUL-terminated copy of s and returns its offset into
// Data. Returns ErrInsufficientBuffer (and marks the buffer permanently
// failed, matching the real protocol's "sticky" overflow state) if s plus
// its terminator would not fit.
func (b *Buffer) AddString(s string) (offset int, err error) {
	if b.full {
		return 0, wnerrors.New(wnerrors.InsufficientBuffer, "buffer already overflowed")
	}
	need := len(s) + 1
	if b.pos+need > len(b.Data) {
		b.full = true
		return 0, wnerrors.New(wnerrors.InsufficientBuffer, "buffer too small")
	}
	offset = b.pos
	copy(b.Data[offset:], s)
	b.Data[offset+len(s)] = 0
	b.pos += need
	return offset, nil
}

// AddMembers lays out members as a NUL-terminated list of NUL-terminated
// strings, returning the offset of the first entry. An empty members
// slice still reserves one empty string.
func (b *Buffer) AddMembers(members []string) (offset int, err error) {
	if len(members) == 0 {
		return b.AddString("")
	}
	offset = b.pos
	for _, m := range members {
		if _, err := b.AddString(m); err != nil {
			return 0, err
		}
	}
	if _, err := b.AddString(""); err != nil {
		return 0, err
	}
	return offset, nil
}
