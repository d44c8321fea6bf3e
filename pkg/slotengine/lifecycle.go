package slotengine

import "errors"

// Init allocates the pool's buffers, enables consolidation on core, and
// bootstraps pool[0] as the initial active slot (spec §4.1).
//
// Init must be called once at log startup, under the slot lock. The
// bootstrap slot's file space is reserved through core.Acquire like every
// later activation; an error from that call is returned.
func Init(core Core) (*Pool, error) {
	p := &Pool{core: core}

	for i := range p.slots {
		p.slots[i].state.Store(uint64(free))
	}

	p.slotBufSize = min(core.LogFileMax()/logFileMaxDivisor, int64(DefaultSlotBufSize))
	if p.slotBufSize <= 0 {
		p.slotBufSize = DefaultSlotBufSize
	}

	for i := range p.slots {
		buf := make([]byte, p.slotBufSize)
		if int64(len(buf)) != p.slotBufSize {
			// Free everything allocated so far before returning.
			for j := 0; j < i; j++ {
				p.slots[j].buf = nil
			}

			return nil, ErrOOM
		}

		p.slots[i].buf = buf
		p.slots[i].syncFlags.Store(uint32(initFlags))
	}

	core.SetForceConsolidate(true)

	bootstrap := &p.slots[0]
	bootstrap.releaseLSN = core.AllocLSN()

	if err := core.Acquire(bootstrap, p.slotBufSize); err != nil {
		return nil, err
	}

	activate(bootstrap)
	p.active.Store(bootstrap)

	return p, nil
}

// activate finishes promoting slot to active by resetting its state word
// and per-activation bookkeeping (spec §4.2). Callers must hold the slot
// lock and must have already installed this activation's LSN, offset, and
// file handle via [Slot.Reset], which core.Acquire does (called from New,
// and from Init for the bootstrap slot).
func activate(slot *Slot) {
	slot.state.Store(0) // open, joined=0, released=0, no flags
	slot.err = nil
	slot.unbuffered = 0
	// releaseLSN is deliberately left untouched: Activate runs after a
	// file switch during which alloc_lsn may have already moved on
	// (spec §4.2 note).
}

// Destroy flushes any residual buffered bytes in every slot that is
// neither free nor reserved to its file handle and releases the pool's
// buffers (spec §4.9).
//
// write is the caller-supplied function that performs the actual write;
// it is handed the slot's file handle, the start offset, and the bytes to
// write. Destroy does not know how to write to a FileHandle itself — that
// belongs to the out-of-scope log file abstraction.
func Destroy(p *Pool, write func(fh FileHandle, offset int64, data []byte) error) error {
	var errs []error

	for i := range p.slots {
		slot := &p.slots[i]

		st := State(slot.state.Load())
		if st != free && !reserved(st) {
			writeSize := releasedOf(st) - slot.unbuffered
			if writeSize > 0 {
				if err := write(slot.fh, slot.startOffset, slot.buf[:writeSize]); err != nil {
					slot.err = err
					errs = append(errs, err)
				}
			}
		}

		slot.buf = nil
	}

	return errors.Join(errs...)
}
