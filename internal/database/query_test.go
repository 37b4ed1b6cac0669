package database

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderByOnNonSelectedColumn(t *testing.T) {
	db := openTestDB(t)
	_, err := db.Execute("CREATE TABLE widgets (id INT, value INT, PRIMARY KEY (id))")
	require.NoError(t, err)
	_, err = db.Execute("INSERT INTO widgets VALUES (1, 30)")
	require.NoError(t, err)
	_, err = db.Execute("INSERT INTO widgets VALUES (2, 10)")
	require.NoError(t, err)
	_, err = db.Execute("INSERT INTO widgets VALUES (3, 20)")
	require.NoError(t, err)

	result, err := db.Execute("SELECT id FROM widgets ORDER BY value")
	require.NoError(t, err)
	rows := result.(RowsResult).Rows
	require.Len(t, rows, 3)
	assert.Equal(t, int64(2), rows[0].Values[0].Int())
	assert.Equal(t, int64(3), rows[1].Values[0].Int())
	assert.Equal(t, int64(1), rows[2].Values[0].Int())
}

func TestExplainAnalyzeReportsStats(t *testing.T) {
	db := openTestDB(t)
	_, err := db.Execute("CREATE TABLE widgets (id INT, name TEXT, PRIMARY KEY (id))")
	require.NoError(t, err)
	_, err = db.Execute("INSERT INTO widgets VALUES (1, 'a')")
	require.NoError(t, err)
	_, err = db.Execute("INSERT INTO widgets VALUES (2, 'b')")
	require.NoError(t, err)

	plain, err := db.Execute("EXPLAIN SELECT * FROM widgets")
	require.NoError(t, err)
	plainText := plain.(RowsResult).Rows[0].Values[0].Text()
	assert.NotContains(t, plainText, "rows=")

	analyzed, err := db.Execute("EXPLAIN ANALYZE SELECT * FROM widgets")
	require.NoError(t, err)
	analyzedText := analyzed.(RowsResult).Rows[0].Values[0].Text()
	assert.True(t, strings.Contains(analyzedText, "rows=2"), analyzedText)
	assert.Contains(t, analyzedText, "time=")
}
