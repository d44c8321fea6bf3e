package logfile

import (
	"fmt"
	"io"

	"github.com/waldb/slotwal/pkg/fs"
	"github.com/waldb/slotwal/pkg/slotengine"
)

// Run starts the background writer loop (spec §2, "a background writer
// drains completed slots") in its own goroutine and returns at once. The
// loop wakes only when SignalWriter is called (from Pool.New when the pool
// runs dry, or by any caller wanting a prompt flush), drains every slot
// the pool reports Done on each wake, and exits after a final drain once
// stop is closed.
//
// Run must be started exactly once, after AttachPool. The loop is not the
// only caller of Pool.Switch/Free: Write also switches out full slots and
// writes out and frees the slots it finds Done itself.
func (c *Core) Run(stop <-chan struct{}) {
	go func() {
		<-stop

		c.writerMu.Lock()
		c.signaled = true
		c.writerCond.Broadcast()
		c.writerMu.Unlock()
	}()

	go func() {
		for {
			c.writerMu.Lock()
			for !c.signaled {
				c.writerCond.Wait()
			}
			c.signaled = false
			c.writerMu.Unlock()

			select {
			case <-stop:
				c.drain()

				return
			default:
			}

			c.drain()
		}
	}()
}

// drain closes the active slot if one is open, then writes out and frees
// every slot the pool reports as Done (spec §4.5 step 5 and §4.8).
func (c *Core) drain() {
	c.mu.Lock()
	c.pool.DebugMarkLockHeld()
	if active := c.pool.Active(); active != nil && !active.Closed() {
		_, _ = c.pool.Switch(active)
	}
	c.pool.DebugMarkLockReleased()
	c.mu.Unlock()

	c.mu.RLock()
	slots := c.pool.Slots()
	c.mu.RUnlock()

	for i := range slots {
		slot := &slots[i]
		if slot.Reserved() || !slot.Done() {
			continue
		}

		if err := c.writeSlot(slot); err != nil {
			continue
		}

		c.mu.Lock()
		slotengine.Free(slot)
		c.mu.Unlock()
	}
}

// writeSlot flushes slot's buffered bytes to its file handle and advances
// write_lsn to the slot's end LSN once the write (and, for a slot carrying
// SyncFull, the file sync) has landed (spec §4.8, the LogCore side of
// Free). SyncDir is not acted on: no directory sync is issued.
func (c *Core) writeSlot(slot *slotengine.Slot) error {
	n := slot.ReleasedBytes() - slot.Unbuffered()
	if n <= 0 {
		c.advanceWriteLSN(slot.EndLSN())

		return nil
	}

	fh, ok := slot.FileHandle().(fs.File)
	if !ok {
		return fmt.Errorf("logfile: slot file handle has unexpected type %T", slot.FileHandle())
	}

	if _, err := fh.Seek(slot.StartOffset(), io.SeekStart); err != nil {
		return fmt.Errorf("logfile: seek before write: %w", err)
	}

	if _, err := fh.Write(slot.Buf()[:n]); err != nil {
		return fmt.Errorf("logfile: write slot: %w", err)
	}

	sync := slot.SyncFlags()
	if sync&slotengine.SyncFull != 0 {
		if err := fh.Sync(); err != nil {
			return fmt.Errorf("logfile: sync slot: %w", err)
		}
	}

	c.advanceWriteLSN(slot.EndLSN())

	return nil
}

func (c *Core) advanceWriteLSN(lsn slotengine.LSN) {
	for {
		cur := c.writeLSN.Load()
		if (*cur).Compare(lsn) >= 0 {
			return
		}

		if c.writeLSN.CompareAndSwap(cur, &lsn) {
			return
		}
	}
}
