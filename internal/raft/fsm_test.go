package raft

import (
	"testing"

	hraft "github.com/hashicorp/raft"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/slotdb/internal/catalog"
	"github.com/cuemby/slotdb/internal/database"
	"github.com/cuemby/slotdb/internal/types"
)

func openTestDB(t *testing.T) *database.Database {
	t.Helper()
	dir := t.TempDir()
	db, err := database.Open(database.Config{
		DataDir:         dir,
		CatalogFileName: "catalog.json",
		WalFileName:     "wal.log",
		BufferPoolPages: 16,
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func applyCmd(t *testing.T, fsm *FSM, cmd Command, index uint64) CommandResponse {
	t.Helper()
	data, err := cmd.Marshal()
	require.NoError(t, err)
	resp := fsm.Apply(&hraft.Log{Index: index, Term: 1, Data: data})
	cr, ok := resp.(CommandResponse)
	require.True(t, ok)
	return cr
}

func TestFSMApplyDDLAndDML(t *testing.T) {
	db := openTestDB(t)
	fsm := NewFSM(db)

	createResp := applyCmd(t, fsm, CreateTableCommand("widgets", []catalog.Column{
		{Name: "id", SQLType: types.TypeInt},
		{Name: "name", SQLType: types.TypeText},
	}, []string{"id"}), 1)
	require.Equal(t, RespDDL, createResp.Kind)

	insertResp := applyCmd(t, fsm, InsertCommand("widgets", types.NewRow(types.IntValue(1), types.TextValue("a"))), 2)
	require.Equal(t, RespInsert, insertResp.Kind)
	rid := insertResp.RID

	result, err := db.Execute("SELECT * FROM widgets")
	require.NoError(t, err)
	rows := result.(database.RowsResult).Rows
	require.Len(t, rows, 1)
	assert.Equal(t, int64(1), rows[0].Values[0].Int())

	updateResp := applyCmd(t, fsm, UpdateCommand("widgets", rid, types.NewRow(types.IntValue(1), types.TextValue("b"))), 3)
	assert.Equal(t, RespUpdate, updateResp.Kind)

	result, err = db.Execute("SELECT * FROM widgets")
	require.NoError(t, err)
	rows = result.(database.RowsResult).Rows
	require.Len(t, rows, 1)
	assert.Equal(t, "b", rows[0].Values[1].Text())
}

func TestFSMApplyUnknownTableReturnsError(t *testing.T) {
	db := openTestDB(t)
	fsm := NewFSM(db)

	resp := applyCmd(t, fsm, InsertCommand("missing", types.NewRow(types.IntValue(1))), 1)
	assert.Equal(t, RespError, resp.Kind)
	assert.NotEmpty(t, resp.Message)
}

func TestFSMSnapshotAndRestore(t *testing.T) {
	db := openTestDB(t)
	fsm := NewFSM(db)

	applyCmd(t, fsm, CreateTableCommand("widgets", []catalog.Column{{Name: "id", SQLType: types.TypeInt}}, []string{"id"}), 1)
	applyCmd(t, fsm, InsertCommand("widgets", types.NewRow(types.IntValue(1))), 2)
	applyCmd(t, fsm, InsertCommand("widgets", types.NewRow(types.IntValue(2))), 3)

	snap, err := fsm.Snapshot()
	require.NoError(t, err)

	sinkDir := t.TempDir()
	store, err := OpenSnapshotStore(sinkDir)
	require.NoError(t, err)
	sink, err := store.Create(hraft.SnapshotVersionMax, 3, 1, hraft.Configuration{}, 0, nil)
	require.NoError(t, err)
	require.NoError(t, snap.Persist(sink))

	_, rc, err := store.Open(sink.ID())
	require.NoError(t, err)

	other := openTestDB(t)
	otherFSM := NewFSM(other)
	require.NoError(t, otherFSM.Restore(rc))

	result, err := other.Execute("SELECT * FROM widgets")
	require.NoError(t, err)
	rows := result.(database.RowsResult).Rows
	assert.Len(t, rows, 2)
}
