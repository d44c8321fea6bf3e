package slotengine_test

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waldb/slotwal/pkg/slotengine"
	"github.com/waldb/slotwal/pkg/slotengine/internal/model"
	"github.com/waldb/slotwal/pkg/slotengine/internal/testcore"
)

// This file applies identical operation sequences to the real Pool and to
// the deliberately-simple model in pkg/slotengine/internal/model, and
// asserts their observable join/release/closed state matches at every
// step, the way state_model_property_test.go does for slotcache.
//
// Each sequence only switches once every join it has made so far has been
// released, so the model (which tracks a single active slot's state, not
// a full 16-slot ring) stays a faithful stand-in for the real Pool's
// currently-active slot throughout.

type pendingJoin struct {
	myslot slotengine.MySlot
	size   int64
}

func Test_Pool_Matches_Model_Property(t *testing.T) {
	t.Parallel()

	const seedCount = 25
	const opsPerSeed = 150

	for i := 0; i < seedCount; i++ {
		seed := int64(i + 1)

		t.Run(fmt.Sprintf("seed=%d", seed), func(t *testing.T) {
			t.Parallel()

			rng := rand.New(rand.NewSource(seed))

			core := testcore.New(1 << 30) // large enough that rotation never interferes

			pool, err := slotengine.Init(core)
			require.NoError(t, err)
			pool.DebugMarkLockHeld()

			m := model.New()

			var pending []pendingJoin

			for step := 0; step < opsPerSeed; step++ {
				switch {
				case len(pending) == 0 && rng.Intn(3) == 0:
					// Switch: only legal to compare once every join so far is released.
					active := pool.Active()

					releaseNow, err := pool.Switch(active)
					require.NoError(t, err)
					assert.True(t, releaseNow, "every join on this slot was already released before Switch")

					final := m.Switch()

					assert.True(t, active.Closed())
					assert.Equal(t, final.Joined, final.Released)

				case len(pending) > 0 && rng.Intn(4) == 0:
					idx := rng.Intn(len(pending))
					pj := pending[idx]
					pending = append(pending[:idx], pending[idx+1:]...)

					state := pool.Release(pj.myslot, pj.size)
					m.Release(pj.size)

					// The active slot is never closed at this point (Switch only
					// runs once pending is empty), so Done must always read false here.
					assert.False(t, slotengine.Done(state))

				default:
					size := int64(rng.Intn(64) + 1)

					myslot, err := pool.Join(size, 0)
					require.NoError(t, err)

					offset, ok := m.Join(size)
					require.True(t, ok)

					assert.Equal(t, offset, myslot.Offset)
					pending = append(pending, pendingJoin{myslot: myslot, size: size})
				}

				active := pool.Active()
				assert.Equal(t, m.Active.Joined, active.JoinedBytes())
				assert.Equal(t, m.Active.Released, active.ReleasedBytes())
				assert.Equal(t, m.Active.Closed, active.Closed())
			}
		})
	}
}
