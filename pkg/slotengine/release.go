package slotengine

// Release signals that the joiner identified by myslot has finished
// copying its payload into myslot.Bytes() (spec §4.4).
//
// Release holds neither the shared nor exclusive slot lock: it is pure
// atomic work on the slot the caller already has a reference to, and must
// stay lock-free to preserve group-commit throughput. size is usually
// myslot.EndOffset-myslot.Offset, but callers may release less if they
// wrote fewer bytes than reserved.
//
// The returned State lets the caller detect completion with [Done]: if
// Done reports true, every joiner of a now-closed slot has released, and
// the calling goroutine is the one responsible for writing the slot out
// and calling [Free].
func (p *Pool) Release(myslot MySlot, size int64) State {
	slot := myslot.Slot

	myStart := slot.startOffset + myslot.Offset
	for {
		cur := slot.lastOffset.Load()
		if cur >= myStart {
			break
		}

		if slot.lastOffset.CompareAndSwap(cur, myStart) {
			break
		}
	}

	delta := uint64(packState(0, size, 0))
	newState := slot.state.Add(delta)

	return State(newState)
}
