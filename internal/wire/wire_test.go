package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/slotdb/internal/database"
	"github.com/cuemby/slotdb/internal/types"
)

func TestEncodeResultRows(t *testing.T) {
	result := database.RowsResult{
		Schema: []string{"id", "name"},
		Rows: []types.Row{
			types.NewRow(types.IntValue(1), types.TextValue("a")),
			types.NewRow(types.IntValue(2), types.NullValue()),
		},
	}

	resp := EncodeResult(result)
	require.Equal(t, RespRows, resp.Kind)
	assert.Equal(t, []string{"id", "name"}, resp.Schema)
	require.Len(t, resp.Rows, 2)

	row0 := DecodeRow(resp.Rows[0])
	assert.Equal(t, int64(1), row0.Values[0].Int())
	assert.Equal(t, "a", row0.Values[1].Text())

	row1 := DecodeRow(resp.Rows[1])
	assert.True(t, row1.Values[1].IsNull())
}

func TestEncodeResultCountAndEmpty(t *testing.T) {
	resp := EncodeResult(database.CountResult{Affected: 3})
	assert.Equal(t, RespCount, resp.Kind)
	assert.Equal(t, int64(3), resp.Count)

	resp = EncodeResult(database.EmptyResult{})
	assert.Equal(t, RespEmpty, resp.Kind)
}

func TestErrorResponseClassification(t *testing.T) {
	resp := ErrorResponse(types.ErrConstraintViolation)
	assert.Equal(t, ConstraintViolation, resp.Code)

	resp = ErrorResponse(types.ErrParser)
	assert.Equal(t, ParseError, resp.Code)

	resp = ErrorResponse(types.ErrIO)
	assert.Equal(t, IoError, resp.Code)

	resp = ErrorResponse(types.ErrExecutor)
	assert.Equal(t, ExecutionError, resp.Code)
}

func TestRequestConstructors(t *testing.T) {
	assert.Equal(t, Request{Kind: ReqExecute, SQL: "select 1"}, ExecuteRequest("select 1"))
	assert.Equal(t, Request{Kind: ReqClose}, CloseRequest())
}
