// Package testcore provides a minimal in-memory [slotengine.Core] double
// for exercising the slot engine without a real log file, grounded on the
// same idea as pkg/slotcache's behavior test harness: a small fake that
// implements exactly the collaborator interface under test, nothing more.
package testcore

import (
	"sync"
	"sync/atomic"

	"github.com/waldb/slotwal/pkg/slotengine"
)

// Core is a fake LogCore: file identity is tracked only as a counter, and
// Acquire "rotates" by bumping that counter when a reservation would cross
// fileMax; no real file is ever opened.
type Core struct {
	mu sync.Mutex

	allocLSN slotengine.LSN
	writeLSN slotengine.LSN
	fileMax  int64
	fh       slotengine.FileHandle

	forceConsolidate atomic.Bool

	Signals atomic.Int64
}

// New returns a ready-to-use fake Core with the given file-size budget.
func New(fileMax int64) *Core {
	return &Core{fileMax: fileMax, fh: "file-0"}
}

func (c *Core) AllocLSN() slotengine.LSN {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.allocLSN
}

func (c *Core) SetAllocLSN(lsn slotengine.LSN) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.allocLSN = lsn
}

func (c *Core) WriteLSN() slotengine.LSN {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.writeLSN
}

// SetWriteLSN lets a test simulate the background writer advancing durability.
func (c *Core) SetWriteLSN(lsn slotengine.LSN) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.writeLSN = lsn
}

func (c *Core) CurrentFile() slotengine.FileHandle {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.fh
}

func (c *Core) LogFileMax() int64 {
	return c.fileMax
}

func (c *Core) ForceConsolidate() bool {
	return c.forceConsolidate.Load()
}

func (c *Core) SetForceConsolidate(v bool) {
	c.forceConsolidate.Store(v)
}

func (c *Core) SignalWriter() {
	c.Signals.Add(1)
}

// Acquire grants nbytes at the current alloc_lsn, rotating to the next
// file ID whenever the reservation would cross fileMax, mirroring
// internal/logfile's real rotation logic at a much smaller scale.
func (c *Core) Acquire(slot *slotengine.Slot, nbytes int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.allocLSN.Offset+nbytes > c.fileMax {
		c.allocLSN = slotengine.LSN{FileID: c.allocLSN.FileID + 1, Offset: 0}
		c.fh = rotatedHandle(c.allocLSN.FileID)
	}

	start := c.allocLSN
	slot.Reset(start, start.Offset, c.fh)
	c.allocLSN = c.allocLSN.Add(nbytes)

	return nil
}

func rotatedHandle(fileID uint32) slotengine.FileHandle {
	return []byte{byte('f'), byte('i'), byte('l'), byte('e'), byte(fileID)}
}
