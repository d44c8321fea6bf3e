// Package model provides a deliberately simple, sequential state model of
// the slot engine's publicly observable behavior: join/release counters and
// the closed flag, without any of the real engine's CAS or concurrency
// mechanics. It mirrors pkg/slotcache/model's role for slotcache: a small,
// easy-to-audit reference to diff the real implementation against.
package model

// SlotModel is one slot's observable state: how many bytes have been
// joined and released so far, and whether it has been closed to new joins
// (the spec's JOINED/RELEASED/flags fields, without the packing).
type SlotModel struct {
	Joined   int64
	Released int64
	Closed   bool
}

// Done reports whether every joiner of a closed slot has released.
func (s SlotModel) Done() bool {
	return s.Closed && s.Joined == s.Released
}

// PoolModel tracks only the currently active slot. A property test that
// always fully releases a slot before switching away from it does not
// need this model to remember retired slots too: the only fact a caller
// can still observe about one is the SlotModel Switch hands back.
type PoolModel struct {
	Active SlotModel
}

// New returns a model with a fresh, open active slot, mirroring Init's
// bootstrap promotion.
func New() *PoolModel {
	return &PoolModel{}
}

// Join reserves size bytes in the active slot, returning the offset the
// reservation starts at. ok is false if the active slot is closed, the
// model's equivalent of the real engine retrying against a fresher slot.
func (p *PoolModel) Join(size int64) (offset int64, ok bool) {
	if p.Active.Closed {
		return 0, false
	}

	offset = p.Active.Joined
	p.Active.Joined += size

	return offset, true
}

// Release records size bytes copied in by a prior Join.
func (p *PoolModel) Release(size int64) {
	p.Active.Released += size
}

// Switch closes the active slot, returns its final state, and resets
// Active to an open slot representing the freshly promoted one.
func (p *PoolModel) Switch() SlotModel {
	p.Active.Closed = true
	final := p.Active
	p.Active = SlotModel{}

	return final
}
