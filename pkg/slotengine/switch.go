package slotengine

// Switch closes slot and immediately promotes a fresh active slot, but
// only if slot is still the pool's active slot (spec §4.6).
//
// Callers must hold the exclusive slot lock and pass the slot pointer they
// believe is active. If another goroutine already switched it out, Switch
// is a no-op.
//
// The returned releaseNow mirrors Close's: true means every byte reserved
// in slot had already been released by the time this call closed it (the
// common case when switching an otherwise-idle active slot), so the
// caller, not some joiner's Release, is the one responsible for writing
// slot out and calling [Free].
//
// spec §4.6 step 2 describes Switch's caller as one that is itself
// mid-join (its own reservation in slot hasn't been released yet), which
// would make Close's releaseNow always false there. logfile.Core's actual
// callers don't match that shape: one calls Switch preemptively, before
// joining, to pre-empt an overflowing reservation (see ensureCapacity),
// and the background writer calls it to close out a drained, idle active
// slot — in both cases the slot being closed can legitimately have no
// outstanding joiners, so releaseNow can legitimately be true. Asserting
// false here would assert an invariant this package's call pattern
// doesn't have; see DESIGN.md §8. Only the exclusive-lock precondition is
// asserted in slotwal_debug builds.
func (p *Pool) Switch(slot *Slot) (releaseNow bool, err error) {
	p.assertLockHeld("switch")

	if slot != p.active.Load() {
		return false, nil
	}

	releaseNow, err = p.Close(slot)
	if err != nil {
		return false, err
	}

	if err := p.New(); err != nil {
		return releaseNow, err
	}

	return releaseNow, nil
}
