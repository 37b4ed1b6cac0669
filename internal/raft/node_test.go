package raft

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/slotdb/internal/catalog"
	"github.com/cuemby/slotdb/internal/database"
	"github.com/cuemby/slotdb/internal/types"
)

func freeAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())
	return addr
}

func openTestNode(t *testing.T) (*Node, *database.Database) {
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

	node, err := Open(Config{
		DataDir:   dir,
		NodeID:    "node-1",
		BindAddr:  freeAddr(t),
		Bootstrap: true,
	}, db)
	require.NoError(t, err)
	t.Cleanup(func() { node.Shutdown() })
	return node, db
}

func waitForLeader(t *testing.T, node *Node) {
	t.Helper()
	require.Eventually(t, node.IsLeader, 5*time.Second, 20*time.Millisecond)
}

func TestNodeBootstrapBecomesLeader(t *testing.T) {
	node, _ := openTestNode(t)
	waitForLeader(t, node)
	assert.True(t, node.IsLeader())
}

func TestNodeApplyCommand(t *testing.T) {
	node, db := openTestNode(t)
	waitForLeader(t, node)

	_, err := db.Execute("CREATE TABLE widgets (id INT, name TEXT, PRIMARY KEY (id))")
	require.NoError(t, err)

	resp, err := node.Apply(InsertCommand("widgets", types.NewRow(types.IntValue(1), types.TextValue("a"))), 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, RespInsert, resp.Kind)

	result, err := db.Execute("SELECT * FROM widgets")
	require.NoError(t, err)
	rows := result.(database.RowsResult).Rows
	require.Len(t, rows, 1)
	assert.Equal(t, int64(1), rows[0].Values[0].Int())
}

func TestNodeApplyCreateTableCommand(t *testing.T) {
	node, db := openTestNode(t)
	waitForLeader(t, node)

	resp, err := node.Apply(CreateTableCommand("widgets", []catalog.Column{
		{Name: "id", SQLType: types.TypeInt},
	}, []string{"id"}), 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, RespDDL, resp.Kind)

	_, err = db.Execute("SELECT * FROM widgets")
	assert.NoError(t, err)
}

func TestNodeAddVoterFromLeader(t *testing.T) {
	node, _ := openTestNode(t)
	waitForLeader(t, node)
	assert.NoError(t, node.AddVoter("node-2", freeAddr(t)))
}
