package slotengine

// Tunables (spec §6).
const (
	// SlotPoolSize is the number of slots in the pool.
	SlotPoolSize = 16

	// DefaultSlotBufSize is the default per-slot buffer capacity, capped
	// at Init time to a fraction of the configured log file size (spec §4.1).
	DefaultSlotBufSize = 256 << 10 // 256 KiB

	// SlotMax is the upper bound on a single join's byte count. It must
	// fit in the packed state word's JOINED field; callers whose record
	// is at or above SlotMax must bypass the slot engine with a direct
	// write (spec §4.3).
	SlotMax = 1 << 20 // 1 MiB

	// cacheLineSize is used to pad Slot so neighboring pool entries don't
	// share a cache line, matching the teacher's mmap layout discipline
	// in pkg/slotcache/format.go (fixed-size records, explicit offsets).
	cacheLineSize = 64
)

// logFileMaxDivisor is the "/10" in spec §4.1 rule 2: slot_buf_size =
// min(log_file_max/10, DEFAULT_SLOT_BUF).
const logFileMaxDivisor = 10

func init() {
	// A single join of up to SlotMax bytes must fit the 24-bit JOINED
	// field. This checks only that one join fits; the cumulative JOINED
	// total of a slot is kept in range by callers bounding joins to the
	// slot buffer size (DefaultSlotBufSize at most), not by this check.
	if SlotMax >= 1<<joinedBits {
		panic("slotengine: SlotMax does not fit the packed JOINED field")
	}
}
