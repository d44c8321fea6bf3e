package slotengine

// Free returns a finished slot to the pool (spec §4.8).
//
// The caller must have already written the slot's buffer contents to disk
// and must not touch the buffer again after calling Free: storing
// state = free is the publication that makes the slot eligible for reuse
// by New.
func Free(slot *Slot) {
	slot.syncFlags.Store(uint32(initFlags))
	slot.err = nil
	slot.state.Store(uint64(free))
}
