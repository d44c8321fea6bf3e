package slotengine

import "errors"

// Error classification. Callers MUST classify with [errors.Is]; the engine
// may wrap these with additional context via fmt.Errorf's %w.
var (
	// ErrOOM indicates a buffer allocation failed during Init. Any buffers
	// already allocated for earlier slots are freed before Init returns.
	ErrOOM = errors.New("slotengine: out of memory")

	// ErrSlotMisuse indicates a caller-violated precondition: join size at
	// or above SlotMax, a join attempted with no active slot and nonzero
	// size, or an exclusive-lock-only operation invoked without the lock
	// held. These are programming errors, not recoverable conditions.
	ErrSlotMisuse = errors.New("slotengine: misuse")

	// ErrClosed names the error for operations on a destroyed Pool. No
	// function in this package returns it: a Pool used after Destroy is
	// not detected.
	ErrClosed = errors.New("slotengine: closed")
)
