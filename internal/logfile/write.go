package logfile

import (
	"fmt"

	"github.com/waldb/slotwal/pkg/slotengine"
)

// Write appends payload as a single record through the slot engine,
// consolidating with concurrent callers into a shared slot wherever
// possible, and returns the LSN at which the record begins.
//
// This is the bounds check spec §3.3 leaves to "the caller": Write holds
// the slot lock's read side only long enough to Join, and preemptively
// Switches the active slot under the write side when a reservation would
// overflow its buffer, since Join itself never checks slot_buf_size (spec
// §3.3, "enforced by caller's bounds check").
func (c *Core) Write(payload []byte, commit slotengine.CommitFlags) (slotengine.LSN, error) {
	if int64(len(payload)) >= slotengine.SlotMax {
		return slotengine.LSN{}, slotengine.ErrSlotMisuse
	}

	for {
		if err := c.ensureCapacity(int64(len(payload))); err != nil {
			return slotengine.LSN{}, err
		}

		c.mu.RLock()
		myslot, err := c.pool.Join(int64(len(payload)), commit)
		c.mu.RUnlock()

		if err != nil {
			return slotengine.LSN{}, err
		}

		if myslot.Slot == nil {
			// No active slot yet (spec §4.3's background-writer probe path
			// reused here): promote one and retry.
			c.mu.Lock()
			c.pool.DebugMarkLockHeld()
			err := c.pool.New()
			c.pool.DebugMarkLockReleased()
			c.mu.Unlock()

			if err != nil {
				return slotengine.LSN{}, err
			}

			continue
		}

		copy(myslot.Bytes(), payload)
		lsn := myslot.Slot.StartLSN().Add(myslot.Offset)

		state := c.pool.Release(myslot, int64(len(payload)))
		if slotengine.Done(state) {
			c.flushDone(myslot.Slot)
		}

		return lsn, nil
	}
}

// ensureCapacity switches out the active slot if payload would overflow
// its buffer, so the next Join always lands in a slot with room.
func (c *Core) ensureCapacity(payloadSize int64) error {
	c.mu.RLock()
	active := c.pool.Active()
	full := active != nil && !active.Closed() &&
		wouldOverflow(active, payloadSize, c.pool.SlotBufSize())
	c.mu.RUnlock()

	if active == nil || !full {
		return nil
	}

	c.mu.Lock()
	c.pool.DebugMarkLockHeld()

	var (
		releaseNow bool
		err        error
	)

	if active2 := c.pool.Active(); active2 == active && !active.Closed() {
		releaseNow, err = c.pool.Switch(active)
	}

	c.pool.DebugMarkLockReleased()
	c.mu.Unlock()

	if err != nil {
		return fmt.Errorf("logfile: switch on capacity: %w", err)
	}

	if releaseNow {
		c.flushDone(active)
	}

	return nil
}

func wouldOverflow(slot *slotengine.Slot, payloadSize, bufSize int64) bool {
	return slot.JoinedBytes()+payloadSize > bufSize
}

// flushDone writes out and frees a slot the caller just discovered is
// Done, inline rather than waiting for the background writer's next
// wake. Ordinary traffic is drained this way; the background writer
// exists for the case where nobody is around to notice DONE (spec §4.4's
// "the calling goroutine is the one responsible").
func (c *Core) flushDone(slot *slotengine.Slot) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if slot.Reserved() {
		return
	}

	if err := c.writeSlot(slot); err != nil {
		return
	}

	slotengine.Free(slot)
}
