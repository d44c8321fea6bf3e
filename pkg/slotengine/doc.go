// Package slotengine implements the group-commit slot engine of a
// write-ahead log: the lock-free reservation/join/release/close protocol
// that lets many concurrent writers consolidate into a shared staging
// buffer so a single writer thread can issue one large I/O covering all
// of them.
//
// slotengine owns the hard, delicate part of group commit: a packed atomic
// state word per slot, the CAS-based join/release protocol, and the
// close/switch/new handoff that retires a full slot and promotes a fresh
// one. It does not open files, encode records, or decide durability
// policy — those are the caller's job, reached through the [Core]
// interface.
//
// # Usage
//
//	pool, err := slotengine.Init(core)
//	...
//	myslot, err := pool.Join(sizeInBytes, slotengine.FlagFSync)
//	copy(myslot.Bytes(), payload)
//	state := pool.Release(myslot, int64(len(payload)))
//	if slotengine.Done(state) {
//	    // this goroutine observed DONE: write the slot out and free it.
//	}
//
// # Concurrency
//
// [Pool.Join] is lock-free and wait-free modulo CAS retries; callers hold
// only the read side of the caller-provided slot lock. [Pool.Close],
// [Pool.Switch], and [Pool.New] require the write (exclusive) side.
// [Pool.Release] holds neither lock.
package slotengine
