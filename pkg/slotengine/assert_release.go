//go:build !slotwal_debug

package slotengine

// DebugMarkLockHeld is a no-op outside slotwal_debug builds; see
// assert_debug.go for the real bookkeeping.
func (p *Pool) DebugMarkLockHeld() {}

// DebugMarkLockReleased is a no-op outside slotwal_debug builds.
func (p *Pool) DebugMarkLockReleased() {}

// assertLockHeld is a no-op outside slotwal_debug builds.
func (p *Pool) assertLockHeld(string) {}
