package btree

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/slotdb/internal/types"
)

func openTestTree(t *testing.T) *BTree {
	t.Helper()
	path := filepath.Join(t.TempDir(), "idx.dat")
	tree, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { tree.Close() })
	return tree
}

func TestRangeScanOnFreshEmptyIndexTerminates(t *testing.T) {
	tree := openTestTree(t)
	out, err := tree.RangeScan(nil, nil)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestSearchOnFreshEmptyIndexTerminates(t *testing.T) {
	tree := openTestTree(t)
	out, err := tree.Search(KeyFromValues(types.IntValue(1)))
	require.NoError(t, err)
	assert.Empty(t, out)
}

// TestInsertPastLeafCapacitySurvivesRootSplit exercises a root split (more
// than maxLeafEntries keys) and checks every inserted key is still found
// afterward, guarding against the header and the post-split root/children
// ever sharing a page.
func TestInsertPastLeafCapacitySurvivesRootSplit(t *testing.T) {
	tree := openTestTree(t)

	const n = 500
	for i := 0; i < n; i++ {
		rid := types.RID{PageID: uint64(i), Slot: 0}
		require.NoError(t, tree.Insert(KeyFromValues(types.IntValue(int64(i))), rid))
	}

	for i := 0; i < n; i++ {
		out, err := tree.Search(KeyFromValues(types.IntValue(int64(i))))
		require.NoError(t, err)
		require.Lenf(t, out, 1, "key %d", i)
		assert.Equal(t, uint64(i), out[0].PageID)
	}

	all, err := tree.RangeScan(nil, nil)
	require.NoError(t, err)
	assert.Len(t, all, n)
}

func TestInsertPastLeafCapacitySurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "idx.dat")
	tree, err := Open(path)
	require.NoError(t, err)

	const n = 300
	for i := 0; i < n; i++ {
		require.NoError(t, tree.Insert(KeyFromValues(types.IntValue(int64(i))), types.RID{PageID: uint64(i)}))
	}
	require.NoError(t, tree.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	out, err := reopened.Search(KeyFromValues(types.IntValue(int64(n - 1))))
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, uint64(n-1), out[0].PageID)
}

func TestDeleteRemovesEntry(t *testing.T) {
	tree := openTestTree(t)
	key := KeyFromValues(types.IntValue(7))
	rid := types.RID{PageID: 7}
	require.NoError(t, tree.Insert(key, rid))

	ok, err := tree.Delete(key, rid)
	require.NoError(t, err)
	assert.True(t, ok)

	out, err := tree.Search(key)
	require.NoError(t, err)
	assert.Empty(t, out)
}
