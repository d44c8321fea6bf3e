package slotengine

import (
	"context"
	"runtime"
)

// New ensures the pool's active slot refers to an OPEN slot ready to
// accept joins, promoting a free slot if necessary (spec §4.7).
//
// Callers must hold the exclusive slot lock. If consolidation is not
// forced, New is a no-op (spec §9, "Non-consolidated mode"). If the
// active slot already exists and is open, New is a no-op too — some other
// lock holder already promoted one.
//
// New has no upper bound on its spin when the whole pool is non-free, by
// spec design (starvation is prevented by the background writer draining
// completed slots back to FREE, not by a spin bound here).
func (p *Pool) New() error {
	return p.newWithContext(context.Background())
}

// NewContext is New with an escape hatch: if ctx is canceled while the
// pool is exhausted, NewContext returns ctx.Err() instead of spinning
// forever. This is not part of the spec's library-level contract (which
// permits unbounded spin) — it exists so driver programs like a CLI demo
// can shut down cleanly. The underlying library call remains New.
func (p *Pool) NewContext(ctx context.Context) error {
	return p.newWithContext(ctx)
}

func (p *Pool) newWithContext(ctx context.Context) error {
	p.assertLockHeld("new")

	if !p.core.ForceConsolidate() {
		return nil
	}

	if active := p.active.Load(); active != nil && open(State(active.state.Load())) {
		return nil
	}

	for {
		for i := range p.slots {
			slot := &p.slots[i]

			if State(slot.state.Load()) != free {
				continue
			}

			if err := p.core.Acquire(slot, p.slotBufSize); err != nil {
				return err
			}

			activate(slot)
			p.active.Store(slot)
			p.Stat.Transitions.Add(1)

			return nil
		}

		p.core.SignalWriter()
		p.Stat.WriterWakeups.Add(1)

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		runtime.Gosched()
	}
}
