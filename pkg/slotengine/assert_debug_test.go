//go:build slotwal_debug

package slotengine_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/waldb/slotwal/pkg/slotengine"
	"github.com/waldb/slotwal/pkg/slotengine/internal/testcore"
)

// Test_Switch_PanicsWithErrSlotMisuse_WhenLockNotMarkedHeld exercises the
// slotwal_debug build's exclusive-lock assertion (spec.md §4.6's "callers
// must hold the exclusive slot lock" precondition): calling Switch without
// first calling DebugMarkLockHeld must panic with ErrSlotMisuse.
func Test_Switch_PanicsWithErrSlotMisuse_WhenLockNotMarkedHeld(t *testing.T) {
	t.Parallel()

	core := testcore.New(1 << 20)

	pool, err := slotengine.Init(core)
	require.NoError(t, err)

	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("expected Switch to panic without DebugMarkLockHeld")
		}

		err, ok := r.(error)
		if !ok || !errors.Is(err, slotengine.ErrSlotMisuse) {
			t.Fatalf("expected panic value wrapping ErrSlotMisuse, got: %v", r)
		}
	}()

	_, _ = pool.Switch(pool.Active())
}

// Test_Switch_Succeeds_WhenLockMarkedHeld is the positive counterpart: once
// the caller marks the lock held, Switch runs normally.
func Test_Switch_Succeeds_WhenLockMarkedHeld(t *testing.T) {
	t.Parallel()

	core := testcore.New(1 << 20)

	pool, err := slotengine.Init(core)
	require.NoError(t, err)

	pool.DebugMarkLockHeld()

	_, err = pool.Switch(pool.Active())
	require.NoError(t, err)
}
