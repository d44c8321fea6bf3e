package slotengine

import "runtime"

// Join reserves mysize bytes in the active slot (spec §4.3).
//
// The caller must hold the read side of the slot lock (many joiners may
// run concurrently) and must NOT hold the exclusive side. mysize must be
// strictly less than SlotMax; larger records bypass the slot engine
// entirely and take a direct-write path the engine does not implement.
//
// If there is no active slot and mysize is zero, Join returns a zero
// MySlot and a nil error immediately: this is the background-writer probe
// path (spec §4.3). A null active slot with nonzero mysize is a caller bug.
func (p *Pool) Join(mysize int64, commit CommitFlags) (MySlot, error) {
	if mysize >= SlotMax {
		return MySlot{}, ErrSlotMisuse
	}

	active := p.active.Load()
	if active == nil {
		if mysize != 0 {
			return MySlot{}, ErrSlotMisuse
		}

		return MySlot{}, nil
	}

	for {
		slot := p.active.Load()

		old := State(slot.state.Load())
		newJoin := joinedOf(old) + mysize
		newState := packState(newJoin, releasedOf(old), flagsOf(old))

		if open(old) && slot.state.CompareAndSwap(uint64(old), uint64(newState)) {
			if mysize != 0 {
				p.Stat.Joins.Add(1)
			}

			for {
				cur := SyncFlags(slot.syncFlags.Load())
				next := cur.fold(commit)

				if next == cur || slot.syncFlags.CompareAndSwap(uint32(cur), uint32(next)) {
					break
				}
			}

			return MySlot{Slot: slot, Offset: joinedOf(old), EndOffset: joinedOf(old) + mysize}, nil
		}

		p.Stat.Races.Add(1)
		runtime.Gosched()
	}
}
