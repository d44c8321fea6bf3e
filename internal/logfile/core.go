package logfile

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/waldb/slotwal/pkg/fs"
	"github.com/waldb/slotwal/pkg/slotengine"
)

// filePrefix names log files as "<prefix>.<fileID>" inside a log directory,
// mirroring the numbered-segment convention of real write-ahead logs.
const filePrefix = "wal"

// osCreateFlags opens a segment for read/write, creating it if absent
// without truncating an existing one (a crash-restarted process must be
// able to reopen its last segment without losing buffered-but-synced data).
const osCreateFlags = os.O_RDWR | os.O_CREATE

// Core implements [slotengine.Core]: it owns the current log file, hands
// out byte ranges within it, and tracks the two LSN watermarks the slot
// engine coordinates against (alloc_lsn, write_lsn).
//
// mu is the slot lock the package doc of pkg/slotengine refers to: Join
// takes the read side so many joiners proceed concurrently, and
// New/Close/Switch take the write side so only one goroutine at a time
// rotates files or retires a slot. Core, not Pool, owns this lock because
// only Core knows when a rotation needs exclusivity; Pool itself is
// lock-free by design (spec §4, "Release... lock-free").
type Core struct {
	mu sync.RWMutex

	fsys fs.FS
	dir  string

	fileMax int64

	curFileID uint32
	curFile   fs.File
	curOffset int64 // next unreserved byte offset within curFile

	allocLSN atomic.Pointer[slotengine.LSN]
	writeLSN atomic.Pointer[slotengine.LSN]

	forceConsolidate atomic.Bool

	writerMu   sync.Mutex
	writerCond *sync.Cond
	signaled   bool

	pool *slotengine.Pool
}

// NewCore creates a Core rooted at dir, creating the directory and the
// first log file (ID 0) if they do not already exist.
func NewCore(fsys fs.FS, dir string, fileMax int64) (*Core, error) {
	if err := fsys.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("logfile: create log dir: %w", err)
	}

	c := &Core{
		fsys:    fsys,
		dir:     dir,
		fileMax: fileMax,
	}
	c.writerCond = sync.NewCond(&c.writerMu)

	f, err := fsys.OpenFile(c.pathFor(0), osCreateFlags, 0o644)
	if err != nil {
		return nil, fmt.Errorf("logfile: open initial segment: %w", err)
	}

	c.curFile = f
	c.curFileID = 0
	c.curOffset = 0

	zero := slotengine.LSN{FileID: 0, Offset: 0}
	c.allocLSN.Store(&zero)
	c.writeLSN.Store(&zero)

	return c, nil
}

// AttachPool binds the Pool this Core backs. Slot engine construction is
// two-phase (Init needs a Core before a Pool exists), so Core is built
// first and the Pool wired in afterward, before the first call to Join.
func (c *Core) AttachPool(p *slotengine.Pool) {
	c.pool = p
}

func (c *Core) pathFor(fileID uint32) string {
	return filepath.Join(c.dir, fmt.Sprintf("%s.%010d", filePrefix, fileID))
}

// --- slotengine.Core ---

func (c *Core) AllocLSN() slotengine.LSN {
	return *c.allocLSN.Load()
}

func (c *Core) SetAllocLSN(lsn slotengine.LSN) {
	c.allocLSN.Store(&lsn)
}

func (c *Core) WriteLSN() slotengine.LSN {
	return *c.writeLSN.Load()
}

func (c *Core) CurrentFile() slotengine.FileHandle {
	return c.curFile
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

// SignalWriter wakes the background writer goroutine started by Run. It is
// called by [slotengine.Pool.New] when the pool is fully exhausted (spec
// §4.7, "wake the writer thread so it can drain a slot back to FREE").
func (c *Core) SignalWriter() {
	c.writerMu.Lock()
	c.signaled = true
	c.writerCond.Signal()
	c.writerMu.Unlock()
}

// Acquire reserves nbytes of file space for slot, rotating to a new log
// file first if the reservation would overflow the current one (spec §6,
// LogCore.acquire). It captures the pre-reservation LSN and installs it on
// slot via [slotengine.Slot.Reset] before advancing alloc_lsn past the
// reservation, so the slot's recorded start is the beginning of its span
// rather than the end. Callers must hold the exclusive side of mu.
func (c *Core) Acquire(slot *slotengine.Slot, nbytes int64) error {
	if c.curOffset+nbytes > c.fileMax {
		if err := c.rotate(); err != nil {
			return err
		}
	}

	startLSN := slotengine.LSN{FileID: c.curFileID, Offset: c.curOffset}
	slot.Reset(startLSN, c.curOffset, c.curFile)

	c.curOffset += nbytes
	c.SetAllocLSN(slotengine.LSN{FileID: c.curFileID, Offset: c.curOffset})

	return nil
}

func (c *Core) rotate() error {
	if err := c.curFile.Sync(); err != nil {
		return fmt.Errorf("logfile: sync before rotate: %w", err)
	}

	nextID := c.curFileID + 1

	f, err := c.fsys.OpenFile(c.pathFor(nextID), osCreateFlags, 0o644)
	if err != nil {
		return fmt.Errorf("logfile: create segment %d: %w", nextID, err)
	}

	prev := c.curFile
	c.curFile = f
	c.curFileID = nextID
	c.curOffset = 0

	return prev.Close()
}

// Lock/RLock expose the slot lock to callers composing Join against
// New/Close/Switch, per the discipline documented on Core.
func (c *Core) Lock()    { c.mu.Lock() }
func (c *Core) Unlock()  { c.mu.Unlock() }
func (c *Core) RLock()   { c.mu.RLock() }
func (c *Core) RUnlock() { c.mu.RUnlock() }

// Pool returns the Pool this Core backs, for callers that want to drive
// Join/Release/Close/Switch directly (e.g. an interactive demo shell)
// rather than through Write. The caller is responsible for the same
// locking discipline Write itself follows.
func (c *Core) Pool() *slotengine.Pool {
	return c.pool
}
