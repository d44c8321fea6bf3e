package commitindex

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestIndex(t *testing.T, capacity uint64) (*Index, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.wci1")

	idx, err := Open(path, capacity)
	require.NoError(t, err)

	t.Cleanup(func() { _ = idx.Close() })

	return idx, path
}

func Test_Get_ReturnsNotFound_ForUnknownWriter(t *testing.T) {
	t.Parallel()

	idx, _ := openTestIndex(t, 4)

	_, found, err := idx.Get([]byte("ghost"))
	require.NoError(t, err)
	assert.False(t, found)
}

func Test_Put_Get_RoundTrips(t *testing.T) {
	t.Parallel()

	idx, _ := openTestIndex(t, 4)

	require.NoError(t, idx.Put([]byte("writer-a"), LSN{FileID: 2, Offset: 128}))

	got, found, err := idx.Get([]byte("writer-a"))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, LSN{FileID: 2, Offset: 128}, got)
}

func Test_Put_OverwritesExistingWriterSlot(t *testing.T) {
	t.Parallel()

	idx, _ := openTestIndex(t, 4)

	require.NoError(t, idx.Put([]byte("writer-a"), LSN{FileID: 0, Offset: 10}))
	require.NoError(t, idx.Put([]byte("writer-a"), LSN{FileID: 0, Offset: 20}))

	got, found, err := idx.Get([]byte("writer-a"))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, LSN{FileID: 0, Offset: 20}, got)
}

func Test_Put_ReturnsErrFull_WhenCapacityExhaustedByDistinctWriters(t *testing.T) {
	t.Parallel()

	idx, _ := openTestIndex(t, 2)

	require.NoError(t, idx.Put([]byte("writer-a"), LSN{FileID: 0, Offset: 1}))
	require.NoError(t, idx.Put([]byte("writer-b"), LSN{FileID: 0, Offset: 2}))

	err := idx.Put([]byte("writer-c"), LSN{FileID: 0, Offset: 3})
	assert.ErrorIs(t, err, ErrFull)
}

func Test_Put_RejectsWriterIDLongerThanField(t *testing.T) {
	t.Parallel()

	idx, _ := openTestIndex(t, 4)

	err := idx.Put([]byte("this-writer-id-is-far-too-long"), LSN{FileID: 0, Offset: 1})
	assert.ErrorIs(t, err, ErrWriterIDTooLong)
}

func Test_Open_Reopen_PersistsCommittedData(t *testing.T) {
	t.Parallel()

	idx, path := openTestIndex(t, 4)

	require.NoError(t, idx.Put([]byte("writer-a"), LSN{FileID: 3, Offset: 512}))
	require.NoError(t, idx.Close())

	reopened, err := Open(path, 4)
	require.NoError(t, err)

	defer reopened.Close()

	got, found, err := reopened.Get([]byte("writer-a"))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, LSN{FileID: 3, Offset: 512}, got)
}

func Test_Open_RejectsCapacityMismatch(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "test.wci1")

	idx, err := Open(path, 4)
	require.NoError(t, err)
	require.NoError(t, idx.Close())

	_, err = Open(path, 8)
	assert.ErrorContains(t, err, "does not match expected")
}
