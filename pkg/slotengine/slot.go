package slotengine

import "sync/atomic"

// Slot is a reusable staging region: a fixed-size buffer, its packed state
// word, and the bookkeeping needed to write it out and retire it (spec §3.3).
//
// A Slot's buffer is allocated once at Init and reused across activations;
// its contents are not cleared between uses, only overwritten by the next
// generation of joiners (spec §4.2).
type Slot struct {
	state atomic.Uint64 // packed State, spec §3.2

	buf []byte // capacity slotBufSize, set at Init

	startLSN LSN // LSN at which this slot's bytes begin in the log
	endLSN   LSN // set only at Close: one past the last joined byte

	// releaseLSN is the alloc_lsn snapshot Init records for the bootstrap
	// slot. Free does not update it and activate never touches it (spec
	// §4.2's note), so every other slot keeps the zero LSN here.
	releaseLSN LSN

	startOffset int64        // file offset matching startLSN.Offset
	lastOffset  atomic.Int64 // monotonic high-water mark among joiners

	unbuffered int64 // bytes written directly, bypassing the buffer

	fh FileHandle // file handle active when the slot was activated

	err error // first error observed during the slot's lifetime

	syncFlags atomic.Uint32 // SyncFlags, accumulated from joiners' CommitFlags

	_ [cacheLineSize]byte // pad so neighboring Slots don't share a cache line
}

// State returns the slot's current packed state word.
func (s *Slot) State() State {
	return State(s.state.Load())
}

// Closed reports whether the slot no longer accepts joins.
func (s *Slot) Closed() bool {
	return closed(s.State())
}

// Reserved reports whether the slot has been fully processed and freed,
// and is therefore not a candidate for writing out again.
func (s *Slot) Reserved() bool {
	return reserved(s.State())
}

// Done reports whether the slot is closed and every joiner that reserved
// space in it has finished copying their payload: it is ready to be
// written out and returned to the pool via [Free].
func (s *Slot) Done() bool {
	return done(s.State())
}

// ReleasedBytes returns the cumulative bytes joiners have copied into the
// slot's buffer so far.
func (s *Slot) ReleasedBytes() int64 {
	return releasedOf(s.State())
}

// JoinedBytes returns the cumulative bytes joiners have reserved in the
// slot so far, including reservations still in flight (not yet released).
func (s *Slot) JoinedBytes() int64 {
	return joinedOf(s.State())
}

// StartLSN returns the LSN at which this slot's bytes begin in the log.
func (s *Slot) StartLSN() LSN { return s.startLSN }

// EndLSN returns the LSN one past the last joined byte. Valid only once
// the slot has been through Close.
func (s *Slot) EndLSN() LSN { return s.endLSN }

// ReleaseLSN returns the alloc_lsn snapshot Init recorded for the bootstrap
// slot, or the zero LSN for any other slot; Free does not update it.
func (s *Slot) ReleaseLSN() LSN { return s.releaseLSN }

// StartOffset returns the file offset matching StartLSN.Offset.
func (s *Slot) StartOffset() int64 { return s.startOffset }

// LastOffset returns the monotonic high-water file offset observed among joiners.
func (s *Slot) LastOffset() int64 { return s.lastOffset.Load() }

// Unbuffered returns the count of bytes written directly rather than
// copied into the slot's buffer.
func (s *Slot) Unbuffered() int64 { return s.unbuffered }

// FileHandle returns the file handle active when the slot was activated.
func (s *Slot) FileHandle() FileHandle { return s.fh }

// Err returns the first error observed during the slot's lifetime, if any.
func (s *Slot) Err() error { return s.err }

// SyncFlags returns the slot's accumulated per-commit sync flags.
func (s *Slot) SyncFlags() SyncFlags {
	return SyncFlags(s.syncFlags.Load())
}

// Buf returns the slot's full backing buffer. Callers must only read or
// write the byte ranges they were handed by Join/MySlot; the rest belongs
// to other joiners or is not yet valid.
func (s *Slot) Buf() []byte { return s.buf }

// Reset installs the file-space reservation a Core just granted this slot:
// the LSN and file offset its bytes begin at, and the file handle they
// belong to. A Core implementation calls this from Acquire, before
// advancing its own alloc_lsn past the reservation, so the values recorded
// here are the start of the reservation rather than its end (spec §6,
// LogCore.acquire). activate (package-private) finishes the job by
// resetting the slot's state word.
func (s *Slot) Reset(lsn LSN, offset int64, fh FileHandle) {
	s.startLSN = lsn
	s.endLSN = lsn
	s.startOffset = offset
	s.lastOffset.Store(offset)
	s.fh = fh
}

// MySlot is the caller handle returned by a successful [Pool.Join] (spec §3.5).
type MySlot struct {
	Slot      *Slot
	Offset    int64
	EndOffset int64
}

// Bytes returns the caller's exclusive span within the slot's buffer. The
// caller must copy exactly EndOffset-Offset bytes into it before Release.
func (m MySlot) Bytes() []byte {
	return m.Slot.buf[m.Offset:m.EndOffset]
}
