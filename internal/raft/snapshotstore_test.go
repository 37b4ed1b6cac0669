package raft

import (
	"io"
	"testing"

	hraft "github.com/hashicorp/raft"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileSnapshotStoreCreateListOpen(t *testing.T) {
	store, err := OpenSnapshotStore(t.TempDir())
	require.NoError(t, err)

	config := hraft.Configuration{Servers: []hraft.Server{{ID: "node-1", Address: "127.0.0.1:7000"}}}
	sink, err := store.Create(hraft.SnapshotVersionMax, 10, 2, config, 1, nil)
	require.NoError(t, err)

	_, err = sink.Write([]byte(`{"tables":[]}`))
	require.NoError(t, err)
	require.NoError(t, sink.Close())

	metas, err := store.List()
	require.NoError(t, err)
	require.Len(t, metas, 1)
	assert.Equal(t, uint64(10), metas[0].Index)
	assert.Equal(t, uint64(2), metas[0].Term)
	assert.Equal(t, sink.ID(), metas[0].ID)

	meta, rc, err := store.Open(sink.ID())
	require.NoError(t, err)
	defer rc.Close()
	assert.Equal(t, uint64(10), meta.Index)

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, `{"tables":[]}`, string(data))
}

func TestFileSnapshotStoreCancelLeavesNoFile(t *testing.T) {
	dir := t.TempDir()
	store, err := OpenSnapshotStore(dir)
	require.NoError(t, err)

	sink, err := store.Create(hraft.SnapshotVersionMax, 1, 1, hraft.Configuration{}, 0, nil)
	require.NoError(t, err)
	_, err = sink.Write([]byte("partial"))
	require.NoError(t, err)
	require.NoError(t, sink.Cancel())

	metas, err := store.List()
	require.NoError(t, err)
	assert.Empty(t, metas)
}

func TestFileSnapshotStoreListOrdersNewestFirst(t *testing.T) {
	store, err := OpenSnapshotStore(t.TempDir())
	require.NoError(t, err)

	for _, idx := range []uint64{5, 20, 10} {
		sink, err := store.Create(hraft.SnapshotVersionMax, idx, 1, hraft.Configuration{}, 0, nil)
		require.NoError(t, err)
		_, err = sink.Write([]byte("{}"))
		require.NoError(t, err)
		require.NoError(t, sink.Close())
	}

	metas, err := store.List()
	require.NoError(t, err)
	require.Len(t, metas, 3)
	assert.Equal(t, uint64(20), metas[0].Index)
	assert.Equal(t, uint64(10), metas[1].Index)
	assert.Equal(t, uint64(5), metas[2].Index)
}

