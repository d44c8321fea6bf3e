package model_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waldb/slotwal/pkg/slotengine/internal/model"
)

func Test_PoolModel_Join_AccumulatesOffsets(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name  string
		sizes []int64
	}{
		{name: "SingleJoin", sizes: []int64{10}},
		{name: "ThreeJoins", sizes: []int64{4, 8, 2}},
		{name: "ZeroSizeJoin", sizes: []int64{0, 5}},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			p := model.New()

			var wantOffset int64

			for _, size := range testCase.sizes {
				offset, ok := p.Join(size)
				require.True(t, ok)
				assert.Equal(t, wantOffset, offset)

				wantOffset += size
			}

			assert.Equal(t, wantOffset, p.Active.Joined)
		})
	}
}

func Test_PoolModel_Join_FailsAgainstClosedSlot(t *testing.T) {
	t.Parallel()

	p := model.New()

	_, ok := p.Join(4)
	require.True(t, ok)

	p.Switch()

	_, ok = p.Join(4)
	assert.False(t, ok, "a join against a closed active slot must fail")
}

func Test_PoolModel_Done_OnlyWhenClosedAndFullyReleased(t *testing.T) {
	t.Parallel()

	p := model.New()

	_, ok := p.Join(10)
	require.True(t, ok)

	p.Release(6)
	assert.False(t, p.Active.Done(), "not closed yet")

	final := p.Switch()
	assert.True(t, final.Closed)
	assert.False(t, final.Done(), "closed but not fully released")

	p.Release(4)
	assert.False(t, p.Active.Done(), "release after Switch applies to the freshly promoted slot, which has no joins yet")
}

func Test_PoolModel_Switch_ResetsActiveToOpenSlot(t *testing.T) {
	t.Parallel()

	p := model.New()

	_, ok := p.Join(3)
	require.True(t, ok)

	p.Switch()

	assert.Equal(t, model.SlotModel{}, p.Active)
}
