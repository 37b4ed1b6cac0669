package raft

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/slotdb/internal/catalog"
	"github.com/cuemby/slotdb/internal/types"
)

func TestCommandRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		cmd  Command
	}{
		{"insert", InsertCommand("widgets", types.NewRow(types.IntValue(1), types.TextValue("a")))},
		{"update", UpdateCommand("widgets", types.RID{PageID: 1, Slot: 2}, types.NewRow(types.IntValue(2), types.TextValue("b")))},
		{"delete", DeleteCommand("widgets", types.RID{PageID: 1, Slot: 2})},
		{"create_table", CreateTableCommand("widgets", []catalog.Column{{Name: "id", SQLType: types.TypeInt}}, []string{"id"})},
		{"drop_table", DropTableCommand("widgets")},
		{"create_index", CreateIndexCommand("idx_name", "widgets", "name")},
		{"drop_index", DropIndexCommand("idx_name")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := tt.cmd.Marshal()
			require.NoError(t, err)

			got, err := UnmarshalCommand(data)
			require.NoError(t, err)
			assert.Equal(t, tt.cmd, got)
		})
	}
}

func TestCommandDecodedAccessors(t *testing.T) {
	row := types.NewRow(types.IntValue(7), types.TextValue("x"), types.NullValue(), types.BoolValue(true))
	cmd := InsertCommand("widgets", row)

	decoded := cmd.DecodedRow()
	require.Len(t, decoded.Values, 4)
	assert.Equal(t, int64(7), decoded.Values[0].Int())
	assert.Equal(t, "x", decoded.Values[1].Text())
	assert.True(t, decoded.Values[2].IsNull())
	assert.True(t, decoded.Values[3].Bool())

	update := UpdateCommand("widgets", types.RID{PageID: 3, Slot: 9}, row)
	assert.Equal(t, types.RID{PageID: 3, Slot: 9}, update.DecodedRID())
}

func TestUnmarshalCommandInvalidJSON(t *testing.T) {
	_, err := UnmarshalCommand([]byte("not json"))
	assert.Error(t, err)
}

func TestCommandResponseConstructors(t *testing.T) {
	assert.Equal(t, RespInsert, InsertResponse(types.RID{PageID: 1}).Kind)
	assert.Equal(t, RespUpdate, UpdateResponse(2).Kind)
	assert.Equal(t, RespDelete, DeleteResponse(1).Kind)
	assert.Equal(t, RespDDL, DDLResponse().Kind)

	resp := ErrorResponse(assertError{"boom"})
	assert.Equal(t, RespError, resp.Kind)
	assert.Equal(t, "boom", resp.Message)
}

type assertError struct{ msg string }

func (e assertError) Error() string { return e.msg }
