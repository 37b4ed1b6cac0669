package raft

import (
	"path/filepath"
	"testing"

	hraft "github.com/hashicorp/raft"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileLogStoreStoreAndGet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "raft.log")
	store, err := OpenLogStore(path)
	require.NoError(t, err)
	defer store.Close()

	logs := []*hraft.Log{
		{Index: 1, Term: 1, Type: hraft.LogCommand, Data: []byte("one")},
		{Index: 2, Term: 1, Type: hraft.LogCommand, Data: []byte("two")},
		{Index: 3, Term: 2, Type: hraft.LogCommand, Data: []byte("three")},
	}
	require.NoError(t, store.StoreLogs(logs))

	first, err := store.FirstIndex()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), first)

	last, err := store.LastIndex()
	require.NoError(t, err)
	assert.Equal(t, uint64(3), last)

	var got hraft.Log
	require.NoError(t, store.GetLog(2, &got))
	assert.Equal(t, uint64(2), got.Index)
	assert.Equal(t, uint64(1), got.Term)
	assert.Equal(t, []byte("two"), got.Data)
}

func TestFileLogStoreGetLogNotFound(t *testing.T) {
	path := filepath.Join(t.TempDir(), "raft.log")
	store, err := OpenLogStore(path)
	require.NoError(t, err)
	defer store.Close()

	var got hraft.Log
	assert.ErrorIs(t, store.GetLog(99, &got), hraft.ErrLogNotFound)
}

func TestFileLogStoreDeleteRange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "raft.log")
	store, err := OpenLogStore(path)
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.StoreLogs([]*hraft.Log{
		{Index: 1, Term: 1, Data: []byte("a")},
		{Index: 2, Term: 1, Data: []byte("b")},
		{Index: 3, Term: 1, Data: []byte("c")},
	}))
	require.NoError(t, store.DeleteRange(1, 2))

	var got hraft.Log
	assert.ErrorIs(t, store.GetLog(1, &got), hraft.ErrLogNotFound)
	assert.NoError(t, store.GetLog(3, &got))

	first, _ := store.FirstIndex()
	last, _ := store.LastIndex()
	assert.Equal(t, uint64(3), first)
	assert.Equal(t, uint64(3), last)
}

func TestFileLogStoreRecoversAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "raft.log")
	store, err := OpenLogStore(path)
	require.NoError(t, err)
	require.NoError(t, store.StoreLogs([]*hraft.Log{
		{Index: 1, Term: 1, Data: []byte("a")},
		{Index: 2, Term: 1, Data: []byte("b")},
	}))
	require.NoError(t, store.Close())

	reopened, err := OpenLogStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	last, err := reopened.LastIndex()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), last)

	var got hraft.Log
	require.NoError(t, reopened.GetLog(1, &got))
	assert.Equal(t, []byte("a"), got.Data)
}
