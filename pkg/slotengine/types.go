package slotengine

import "cmp"

// LSN is a logical log sequence number: a file identifier plus a byte
// offset within that file, ordered lexicographically by (FileID, Offset).
// LSNs are monotonically non-decreasing across the system (spec §3.1).
type LSN struct {
	FileID uint32
	Offset int64
}

// Compare orders a before b (<0), equal (0), or after b (>0), comparing
// FileID first and Offset only when FileID matches.
func (a LSN) Compare(b LSN) int {
	if c := cmp.Compare(a.FileID, b.FileID); c != 0 {
		return c
	}

	return cmp.Compare(a.Offset, b.Offset)
}

// Add returns the LSN nbytes further into the same file.
func (a LSN) Add(nbytes int64) LSN {
	return LSN{FileID: a.FileID, Offset: a.Offset + nbytes}
}

// CommitFlags are the per-commit durability flags a joiner passes to
// [Pool.Join] (spec §4.3). They are advisory to the engine: the engine
// folds them into the slot's sync flags but does not itself decide
// durability policy.
type CommitFlags uint32

const (
	// FlagDSync requests that the slot's directory entry be durable
	// (data-sync semantics) once the slot is written.
	FlagDSync CommitFlags = 1 << 0
	// FlagFSync requests a full file sync once the slot is written; it
	// implies FlagDSync's directory-durability requirement too.
	FlagFSync CommitFlags = 1 << 1
)

// SyncFlags are the per-slot flags accumulated from every joiner's
// CommitFlags (spec §4.3: "these are OR-ed; any joiner requesting fsync
// upgrades the whole slot").
type SyncFlags uint32

const (
	// initFlags is the per-slot flag state restored on every Free (spec §4.8).
	initFlags SyncFlags = 0

	// SyncFull marks a slot that must be fsync'd before being considered durable.
	SyncFull SyncFlags = 1 << 0
	// SyncDir marks a slot whose containing directory entry must be synced.
	SyncDir SyncFlags = 1 << 1
)

// fold returns the SyncFlags produced by OR-ing in a joiner's CommitFlags,
// per spec §4.3's upgrade rule.
func (f SyncFlags) fold(commit CommitFlags) SyncFlags {
	if commit&FlagFSync != 0 {
		f |= SyncFull | SyncDir
	}

	if commit&(FlagDSync|FlagFSync) != 0 {
		f |= SyncDir
	}

	return f
}

// FileHandle is an opaque handle to the file a slot is writing into.
//
// slotengine never reads or writes through it; it only threads the value
// a [Core] hands back from Acquire through to whatever eventually writes
// the slot's buffer out (the background writer, out of scope here).
type FileHandle any

// Core is the collaborator the slot engine calls into for everything the
// spec marks as "out of scope": the log file abstraction, global LSN
// bookkeeping, and the background writer's wakeup signal (spec §6).
//
// Implementations must guard AllocLSN/SetAllocLSN and WriteLSN with the
// same exclusive slot lock the engine's Close/Switch/New require; the
// engine calls these only while already holding that lock.
type Core interface {
	// AllocLSN returns the next LSN to be allocated.
	AllocLSN() LSN
	// SetAllocLSN publishes a new allocation LSN. In this package only
	// Close calls it; Core implementations also move it from Acquire.
	SetAllocLSN(LSN)
	// WriteLSN returns the last durably written LSN, for the
	// alloc_lsn.file >= write_lsn.file assertion in Close.
	WriteLSN() LSN
	// CurrentFile returns the file handle newly-activated slots should record.
	CurrentFile() FileHandle
	// Acquire reserves nbytes of file space for slot, setting its
	// start/end LSN and start offset, and advances AllocLSN past the
	// reservation. May rotate to a new log file first.
	Acquire(slot *Slot, nbytes int64) error
	// SignalWriter wakes the background writer thread, e.g. when the
	// pool is exhausted and New must wait for a slot to be freed.
	SignalWriter()
	// LogFileMax returns the configured maximum size of one log file.
	LogFileMax() int64
	// ForceConsolidate reports whether the engine is active. When false,
	// New is a no-op and callers must bypass Join entirely (spec §9,
	// "Non-consolidated mode").
	ForceConsolidate() bool
	// SetForceConsolidate enables or disables consolidation mode. Init
	// calls this with true once the pool is ready to accept joins.
	SetForceConsolidate(bool)
}
