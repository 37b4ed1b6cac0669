package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/slotdb/internal/catalog"
	"github.com/cuemby/slotdb/internal/types"
)

func openTestDB(t *testing.T) *Database {
	t.Helper()
	db, err := Open(Config{
		DataDir:         t.TempDir(),
		CatalogFileName: "catalog.json",
		WalFileName:     "wal.log",
		BufferPoolPages: 16,
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	db := openTestDB(t)

	_, err := db.Execute("CREATE TABLE widgets (id INT, name TEXT, PRIMARY KEY (id))")
	require.NoError(t, err)
	_, err = db.Execute("INSERT INTO widgets VALUES (1, 'a')")
	require.NoError(t, err)
	_, err = db.Execute("INSERT INTO widgets VALUES (2, 'b')")
	require.NoError(t, err)

	snap, err := db.Snapshot()
	require.NoError(t, err)
	require.Len(t, snap.Tables, 1)
	assert.Equal(t, "widgets", snap.Tables[0].Name)
	assert.Len(t, snap.Tables[0].EncRows, 2)

	other := openTestDB(t)
	_, err = other.Execute("CREATE TABLE unrelated (x INT)")
	require.NoError(t, err)

	require.NoError(t, other.Restore(snap))

	result, err := other.Execute("SELECT * FROM widgets")
	require.NoError(t, err)
	rows := result.(RowsResult).Rows
	require.Len(t, rows, 2)

	_, err = other.Execute("SELECT * FROM unrelated")
	assert.Error(t, err)
}

func TestApplyInsertUpdateDelete(t *testing.T) {
	db := openTestDB(t)
	_, err := db.Execute("CREATE TABLE widgets (id INT, name TEXT, PRIMARY KEY (id))")
	require.NoError(t, err)

	rid, err := db.ApplyInsert("widgets", []types.Value{types.IntValue(1), types.TextValue("a")})
	require.NoError(t, err)

	newRID, err := db.ApplyUpdate("widgets", rid, []types.Value{types.IntValue(1), types.TextValue("b")})
	require.NoError(t, err)

	result, err := db.Execute("SELECT * FROM widgets")
	require.NoError(t, err)
	rows := result.(RowsResult).Rows
	require.Len(t, rows, 1)
	assert.Equal(t, "b", rows[0].Values[1].Text())

	require.NoError(t, db.ApplyDelete("widgets", newRID))
	result, err = db.Execute("SELECT * FROM widgets")
	require.NoError(t, err)
	assert.Empty(t, result.(RowsResult).Rows)
}

func TestApplyDDL(t *testing.T) {
	db := openTestDB(t)

	_, err := db.ApplyCreateTable("widgets", []catalog.Column{
		{Name: "id", SQLType: types.TypeInt},
		{Name: "name", SQLType: types.TypeText},
	}, []string{"id"})
	require.NoError(t, err)

	require.NoError(t, db.ApplyCreateIndex("idx_name", "widgets", "name"))
	require.NoError(t, db.ApplyDropIndex("idx_name"))
	require.NoError(t, db.ApplyDropTable("widgets"))

	_, err = db.Execute("SELECT * FROM widgets")
	assert.Error(t, err)
}
