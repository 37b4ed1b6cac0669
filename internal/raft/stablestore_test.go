package raft

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStableStoreSetGet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "raft_state.json")
	store, err := OpenStableStore(path)
	require.NoError(t, err)

	require.NoError(t, store.Set([]byte("CurrentTerm"), []byte("7")))
	val, err := store.Get([]byte("CurrentTerm"))
	require.NoError(t, err)
	assert.Equal(t, []byte("7"), val)

	require.NoError(t, store.SetUint64([]byte("committed"), 42))
	n, err := store.GetUint64([]byte("committed"))
	require.NoError(t, err)
	assert.Equal(t, uint64(42), n)
}

func TestFileStableStoreGetMissingKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "raft_state.json")
	store, err := OpenStableStore(path)
	require.NoError(t, err)

	_, err = store.Get([]byte("nope"))
	assert.Error(t, err)

	n, err := store.GetUint64([]byte("nope"))
	assert.NoError(t, err)
	assert.Equal(t, uint64(0), n)
}

func TestFileStableStorePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "raft_state.json")
	store, err := OpenStableStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Set([]byte("vote"), []byte("node-1")))
	require.NoError(t, store.SetUint64([]byte("last_applied"), 5))

	reopened, err := OpenStableStore(path)
	require.NoError(t, err)

	val, err := reopened.Get([]byte("vote"))
	require.NoError(t, err)
	assert.Equal(t, []byte("node-1"), val)

	n, err := reopened.GetUint64([]byte("last_applied"))
	require.NoError(t, err)
	assert.Equal(t, uint64(5), n)
}
