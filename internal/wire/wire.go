// Package wire defines the Request/Response envelope a client sends to
// and receives from a running engine, giving Database.Execute's
// QueryResult a typed wire boundary independent of the Go process
// hosting it.
package wire

import (
	"errors"
	"fmt"

	"github.com/cuemby/slotdb/internal/database"
	"github.com/cuemby/slotdb/internal/types"
)

// RequestKind tags a Request's variant.
type RequestKind string

const (
	ReqExecute RequestKind = "execute"
	ReqClose   RequestKind = "close"
)

// Request is one client call against an engine: either run a statement
// or close the connection.
type Request struct {
	Kind RequestKind `json:"kind"`
	SQL  string      `json:"sql,omitempty"`
}

func ExecuteRequest(sql string) Request { return Request{Kind: ReqExecute, SQL: sql} }

func CloseRequest() Request { return Request{Kind: ReqClose} }

// ErrorCode classifies a Response's error, letting a client branch on
// failure kind without parsing the message text.
type ErrorCode string

const (
	ExecutionError      ErrorCode = "execution_error"
	ConstraintViolation ErrorCode = "constraint_violation"
	ParseError          ErrorCode = "parse_error"
	IoError             ErrorCode = "io_error"
)

// ResponseKind tags a Response's variant, mirroring database.QueryResult's
// three shapes plus an error case the facade's Go error return doesn't have
// a wire representation for on its own.
type ResponseKind string

const (
	RespRows  ResponseKind = "rows"
	RespCount ResponseKind = "count"
	RespEmpty ResponseKind = "empty"
	RespError ResponseKind = "error"
)

// Response is the wire-level encoding of a database.QueryResult, or of
// an error classified by ErrorCode.
type Response struct {
	Kind ResponseKind `json:"kind"`

	Schema []string   `json:"schema,omitempty"`
	Rows   [][]Value  `json:"rows,omitempty"`
	Count  int64      `json:"count,omitempty"`

	Code    ErrorCode `json:"code,omitempty"`
	Message string    `json:"message,omitempty"`
}

// Value is the wire encoding of a types.Value: a JSON-friendly tagged
// union since types.Value itself has no JSON marshaling.
type Value struct {
	Null bool   `json:"null,omitempty"`
	Int  *int64 `json:"int,omitempty"`
	Text *string `json:"text,omitempty"`
	Bool *bool  `json:"bool,omitempty"`
}

func encodeValue(v types.Value) Value {
	switch v.Kind() {
	case types.KindInt:
		n := v.Int()
		return Value{Int: &n}
	case types.KindText:
		s := v.Text()
		return Value{Text: &s}
	case types.KindBool:
		b := v.Bool()
		return Value{Bool: &b}
	default:
		return Value{Null: true}
	}
}

func decodeValue(v Value) types.Value {
	switch {
	case v.Int != nil:
		return types.IntValue(*v.Int)
	case v.Text != nil:
		return types.TextValue(*v.Text)
	case v.Bool != nil:
		return types.BoolValue(*v.Bool)
	default:
		return types.NullValue()
	}
}

func encodeRow(row types.Row) []Value {
	out := make([]Value, len(row.Values))
	for i, v := range row.Values {
		out[i] = encodeValue(v)
	}
	return out
}

// DecodeRow converts one wire row back into a types.Row, for a client
// that wants to operate on results the way server-side code does.
func DecodeRow(vals []Value) types.Row {
	values := make([]types.Value, len(vals))
	for i, v := range vals {
		values[i] = decodeValue(v)
	}
	return types.NewRow(values...)
}

// EncodeResult converts a database.QueryResult into its wire Response.
func EncodeResult(result database.QueryResult) Response {
	switch r := result.(type) {
	case database.RowsResult:
		rows := make([][]Value, len(r.Rows))
		for i, row := range r.Rows {
			rows[i] = encodeRow(row)
		}
		return Response{Kind: RespRows, Schema: r.Schema, Rows: rows}
	case database.CountResult:
		return Response{Kind: RespCount, Count: r.Affected}
	case database.EmptyResult:
		return Response{Kind: RespEmpty}
	default:
		return ErrorResponse(fmt.Errorf("%w: unknown result type %T", types.ErrExecutor, result))
	}
}

// ErrorResponse classifies err against the sentinel errors internal
// packages wrap with fmt.Errorf("%w: ...", ...) and builds the matching
// wire Response.
func ErrorResponse(err error) Response {
	code := ExecutionError
	switch {
	case errors.Is(err, types.ErrConstraintViolation):
		code = ConstraintViolation
	case errors.Is(err, types.ErrParser):
		code = ParseError
	case errors.Is(err, types.ErrIO):
		code = IoError
	}
	return Response{Kind: RespError, Code: code, Message: err.Error()}
}
