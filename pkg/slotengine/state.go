package slotengine

// State is the packed 64-bit slot state word described by spec §3.2.
//
// Bit layout, high to low:
//
//	[63:48] flags     (16 bits: closeFlag, reservedFlag)
//	[47:24] released  (24 bits: cumulative bytes joiners have copied)
//	[23:0]  joined    (24 bits: cumulative bytes reserved by joiners)
//
// All mutation happens through atomic CAS on the whole word; the three
// fields are never touched independently, which is what lets a single
// load tell a joiner whether the slot is still open.
type State uint64

const (
	joinedBits    = 24
	releasedBits  = 24
	flagsBits     = 16
	joinedShift   = 0
	releasedShift = joinedBits
	flagsShift    = joinedBits + releasedBits

	joinedMask   = (uint64(1) << joinedBits) - 1
	releasedMask = (uint64(1) << releasedBits) - 1
	flagsMask    = (uint64(1) << flagsBits) - 1
)

// Flag bits, within the 16-bit flags field.
const (
	// closeFlag marks a slot that no longer accepts joins.
	closeFlag uint64 = 1 << 0
	// reservedFlag marks a slot that has been fully processed and freed;
	// it is not yet safe to reuse for a new activation.
	reservedFlag uint64 = 1 << 1
)

// free is the sentinel State value meaning "sits in the pool, available".
//
// It is all-ones, a bit pattern the join/release/close arithmetic can never
// produce (the flags field only ever carries closeFlag/reservedFlag), so
// comparing a loaded State against free by value is unambiguous.
const free State = ^State(0)

// packState composes a State from field values (spec's JOIN_REL).
func packState(joined, released int64, flags uint64) State {
	return State(
		(flags&flagsMask)<<flagsShift |
			(uint64(released)&releasedMask)<<releasedShift |
			(uint64(joined)&joinedMask)<<joinedShift,
	)
}

// joinedOf extracts the JOINED field.
func joinedOf(s State) int64 {
	return int64(uint64(s) >> joinedShift & joinedMask)
}

// releasedOf extracts the RELEASED field.
func releasedOf(s State) int64 {
	return int64(uint64(s) >> releasedShift & releasedMask)
}

// flagsOf extracts the FLAGS field.
func flagsOf(s State) uint64 {
	return uint64(s) >> flagsShift & flagsMask
}

// open reports whether s accepts joins: no flag bits set.
func open(s State) bool {
	return s != free && flagsOf(s) == 0
}

// closed reports whether the close flag is set.
func closed(s State) bool {
	return s != free && flagsOf(s)&closeFlag != 0
}

// reserved reports whether the slot has been fully processed and freed.
func reserved(s State) bool {
	return s != free && flagsOf(s)&reservedFlag != 0
}

// done reports closed ∧ joined == released: every joiner of a closed slot
// has finished copying its payload.
func done(s State) bool {
	return closed(s) && joinedOf(s) == releasedOf(s)
}

// Done reports whether state, as returned by [Pool.Release], indicates the
// releasing goroutine completed a closed slot. Exported so callers can act
// on the return value of Release without reaching into package internals.
func Done(s State) bool {
	return done(s)
}

// withClose returns s with the close flag set, leaving joined/released
// untouched. Used by Close's CAS loop.
func withClose(s State) State {
	return packState(joinedOf(s), releasedOf(s), flagsOf(s)|closeFlag)
}
