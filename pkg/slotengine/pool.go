package slotengine

import (
	"sync/atomic"
)

// Stats are the engine's running counters, the Go-shaped equivalent of the
// WT_STAT_FAST_CONN_INCR calls in the C log_slot.c: cheap atomic
// counters incremented on the hot paths, read by an operator tool, never
// used to drive control flow.
type Stats struct {
	Joins         atomic.Int64 // successful joins (mysize != 0)
	Races         atomic.Int64 // join CAS losses
	Closes        atomic.Int64 // slot_close calls that won the CAS
	Consolidated  atomic.Int64 // bytes consolidated across all closed slots
	Transitions   atomic.Int64 // slot_new promotions
	WriterWakeups atomic.Int64 // times New signaled the writer condition
}

// Pool is a fixed-size ring of slots plus the single active-slot pointer
// (spec §3.4). It is the top-level handle callers Join/Close/Switch/New
// against.
type Pool struct {
	slots [SlotPoolSize]Slot

	// active is the current active slot. Written only under the caller's
	// exclusive slot lock, per spec §5; Join re-verifies freshness via CAS
	// on the slot's own state word rather than relying on the pointer alone.
	active atomic.Pointer[Slot]

	// Stat holds the engine's running counters (exported for operator tools).
	Stat Stats

	slotBufSize int64
	core        Core
}

// SlotBufSize returns the per-slot buffer capacity computed at Init.
func (p *Pool) SlotBufSize() int64 { return p.slotBufSize }

// Active returns the current active slot.
func (p *Pool) Active() *Slot { return p.active.Load() }

// Slots returns the pool's fixed slot array for iteration (e.g. by Destroy
// or an operator tool enumerating slot state).
func (p *Pool) Slots() *[SlotPoolSize]Slot { return &p.slots }
