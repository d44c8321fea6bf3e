//go:build slotwal_debug

package slotengine

import (
	"fmt"
	"sync"
)

// lockFlags tracks, per [Pool], whether a caller currently asserts to hold
// the exclusive slot lock. The lock itself lives outside this package (the
// caller's own mutex, e.g. logfile.Core.mu); this is only the explicit
// flag a slotwal_debug caller sets around acquiring it, so Close/Switch/New
// can assert the precondition spec.md §4.5-§4.7 state in words ("callers
// must hold the exclusive slot lock") instead of only documenting it.
//
// Only compiled into slotwal_debug builds; see assert_release.go for the
// zero-cost counterpart every other build uses.
var lockFlags sync.Map // map[*Pool]bool

// DebugMarkLockHeld records that the caller now holds the exclusive slot
// lock for p. Callers of Close/Switch/New must call this immediately after
// acquiring their lock when built with slotwal_debug; outside that build
// tag it is a no-op and costs nothing.
func (p *Pool) DebugMarkLockHeld() {
	lockFlags.Store(p, true)
}

// DebugMarkLockReleased records that the caller is about to release the
// exclusive slot lock for p. Call this immediately before unlocking.
func (p *Pool) DebugMarkLockReleased() {
	lockFlags.Store(p, false)
}

// assertLockHeld panics with ErrSlotMisuse if the caller hasn't recorded
// holding the exclusive slot lock via [Pool.DebugMarkLockHeld]. op names the
// operation for the panic message.
func (p *Pool) assertLockHeld(op string) {
	held, _ := lockFlags.Load(p)
	if held != true {
		panic(fmt.Errorf("slotengine: %s: %w: exclusive slot lock not held", op, ErrSlotMisuse))
	}
}
