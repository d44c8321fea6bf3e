package slotengine

// Close retires slot: no more joins are accepted, and the slot's end LSN
// and the log's alloc_lsn are advanced to reflect its final extent (spec
// §4.5).
//
// Callers must hold the exclusive slot lock. Close is idempotent: closing
// an already-closed or already-reserved slot is a no-op that does not
// advance alloc_lsn. slot may be nil, in which case Close succeeds
// trivially.
//
// releaseNow reports whether every joiner of slot had already released by
// the time this call won the close CAS — i.e. whether the caller, having
// just closed the slot, is also immediately responsible for writing it out
// (spec §4.5 step 5).
func (p *Pool) Close(slot *Slot) (releaseNow bool, err error) {
	p.assertLockHeld("close")

	if slot == nil {
		return false, nil
	}

	var old State

	for {
		old = State(slot.state.Load())

		if closed(old) {
			return false, nil
		}

		if reserved(old) {
			return false, nil
		}

		newState := withClose(old)
		if slot.state.CompareAndSwap(uint64(old), uint64(newState)) {
			releaseNow = done(newState)

			break
		}
	}

	// Exactly one goroutine reaches here per slot: it won the close CAS,
	// so it alone advances alloc_lsn for this slot (spec §4.5's key invariant).
	endOffset := joinedOf(old)
	slot.endLSN = slot.startLSN.Add(endOffset)

	p.core.SetAllocLSN(slot.endLSN)

	allocLSN := p.core.AllocLSN()
	if allocLSN.FileID < p.core.WriteLSN().FileID {
		panic("slotengine: alloc_lsn moved behind write_lsn")
	}

	p.Stat.Closes.Add(1)
	p.Stat.Consolidated.Add(endOffset)

	return releaseNow, nil
}
