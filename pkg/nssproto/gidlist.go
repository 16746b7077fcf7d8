package nssproto

// GidArray simulates initgroups' distinct mutable-array protocol
// (spec.md §4.5 "initgroups has a distinct, mutable-array protocol"): a
// growable gid list with a hard limit, that skips one caller-designated
// "skip gid" and stops silently once the limit is reached rather than
// erroring (initgroups never fails on truncation, unlike the fixed-buffer
// protocol the other entry points use).
type GidArray struct {
	Gids    []uint32
	limit   int
	skip    uint32
	hasSkip bool
}

// NewGidArray creates a GidArray that will hold at most limit entries.
// If hasSkip is true, any gid equal to skip is silently omitted.
func NewGidArray(limit int, skip uint32, hasSkip bool) *GidArray {
	return &GidArray{limit: limit, skip: skip, hasSkip: hasSkip}
}

// Append adds gid unless it duplicates an existing entry, matches the
// configured skip gid, or the array has already reached its hard limit.
// Reports whether the array is now full (the caller should stop scanning).
// limit <= 0 means unbounded (spec.md §8: "initgroups with limit = 0 ->
// array grows without upper bound").
func (a *GidArray) Append(gid uint32) (full bool) {
	unbounded := a.limit <= 0
	if a.hasSkip && gid == a.skip {
		return !unbounded && len(a.Gids) >= a.limit
	}
	for _, g := range a.Gids {
		if g == gid {
			return !unbounded && len(a.Gids) >= a.limit
		}
	}
	if !unbounded && len(a.Gids) >= a.limit {
		return true
	}
	a.Gids = append(a.Gids, gid)
	return !unbounded && len(a.Gids) >= a.limit
}
