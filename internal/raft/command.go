// Package raft wires hashicorp/raft around the Database facade: Command
// is the replicated unit of work, FSM applies committed commands, and
// LogStore/StableStore/SnapshotStore persist the consensus state in plain
// files of their own (a length/CRC-framed log, a write-temp-then-rename
// JSON state file, and snapshot files).
package raft

import (
	"encoding/json"
	"fmt"

	"github.com/cuemby/slotdb/internal/catalog"
	"github.com/cuemby/slotdb/internal/types"
)

// CommandKind tags a Command's variant, mirroring wal.Kind's string-tag
// style so both logs read the same way in a debugger or log dump.
type CommandKind string

const (
	CmdInsert      CommandKind = "insert"
	CmdUpdate      CommandKind = "update"
	CmdDelete      CommandKind = "delete"
	CmdCreateTable CommandKind = "create_table"
	CmdDropTable   CommandKind = "drop_table"
	CmdCreateIndex CommandKind = "create_index"
	CmdDropIndex   CommandKind = "drop_index"
)

// Command is a single state-machine operation replicated through the
// Raft log. Unlike a WAL record, an Insert command carries no RID: the
// RID is assigned during state-machine application at each replica (see
// §4.12 — only the leader's apply result is observed by clients).
type Command struct {
	Kind CommandKind `json:"kind"`

	Table string `json:"table,omitempty"`

	Row    []cmdValue `json:"row,omitempty"`
	RID    *cmdRID    `json:"rid,omitempty"`
	NewRow []cmdValue `json:"new_row,omitempty"`

	Columns    []catalog.Column `json:"columns,omitempty"`
	PrimaryKey []string         `json:"primary_key,omitempty"`

	IndexName string `json:"index_name,omitempty"`
	Column    string `json:"column,omitempty"`
}

type cmdValue struct {
	Kind byte   `json:"k"`
	Int  int64  `json:"i,omitempty"`
	Text string `json:"s,omitempty"`
	Bool bool   `json:"b,omitempty"`
}

type cmdRID struct {
	PageID uint64 `json:"page_id"`
	Slot   uint16 `json:"slot"`
}

func encodeValues(values []types.Value) []cmdValue {
	out := make([]cmdValue, len(values))
	for i, v := range values {
		switch v.Kind() {
		case types.KindNull:
			out[i] = cmdValue{Kind: 0}
		case types.KindInt:
			out[i] = cmdValue{Kind: 1, Int: v.Int()}
		case types.KindText:
			out[i] = cmdValue{Kind: 2, Text: v.Text()}
		case types.KindBool:
			out[i] = cmdValue{Kind: 3, Bool: v.Bool()}
		}
	}
	return out
}

func decodeValues(in []cmdValue) []types.Value {
	out := make([]types.Value, len(in))
	for i, v := range in {
		switch v.Kind {
		case 0:
			out[i] = types.NullValue()
		case 1:
			out[i] = types.IntValue(v.Int)
		case 2:
			out[i] = types.TextValue(v.Text)
		case 3:
			out[i] = types.BoolValue(v.Bool)
		}
	}
	return out
}

func encodeRID(rid types.RID) *cmdRID { return &cmdRID{PageID: rid.PageID, Slot: rid.Slot} }

func (r *cmdRID) decode() types.RID {
	if r == nil {
		return types.RID{}
	}
	return types.RID{PageID: r.PageID, Slot: r.Slot}
}

func InsertCommand(table string, row types.Row) Command {
	return Command{Kind: CmdInsert, Table: table, Row: encodeValues(row.Values)}
}

func UpdateCommand(table string, rid types.RID, newRow types.Row) Command {
	return Command{Kind: CmdUpdate, Table: table, RID: encodeRID(rid), NewRow: encodeValues(newRow.Values)}
}

func DeleteCommand(table string, rid types.RID) Command {
	return Command{Kind: CmdDelete, Table: table, RID: encodeRID(rid)}
}

func CreateTableCommand(table string, columns []catalog.Column, primaryKey []string) Command {
	return Command{Kind: CmdCreateTable, Table: table, Columns: columns, PrimaryKey: primaryKey}
}

func DropTableCommand(table string) Command {
	return Command{Kind: CmdDropTable, Table: table}
}

func CreateIndexCommand(indexName, table, column string) Command {
	return Command{Kind: CmdCreateIndex, IndexName: indexName, Table: table, Column: column}
}

func DropIndexCommand(indexName string) Command {
	return Command{Kind: CmdDropIndex, IndexName: indexName}
}

func (c Command) DecodedRow() types.Row    { return types.Row{Values: decodeValues(c.Row)} }
func (c Command) DecodedNewRow() types.Row { return types.Row{Values: decodeValues(c.NewRow)} }
func (c Command) DecodedRID() types.RID    { return c.RID.decode() }

func (c Command) Marshal() ([]byte, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("%w: encode command: %v", types.ErrRaft, err)
	}
	return data, nil
}

func UnmarshalCommand(data []byte) (Command, error) {
	var c Command
	if err := json.Unmarshal(data, &c); err != nil {
		return Command{}, fmt.Errorf("%w: decode command: %v", types.ErrRaft, err)
	}
	return c, nil
}

// ResponseKind tags a CommandResponse's variant.
type ResponseKind string

const (
	RespInsert ResponseKind = "insert"
	RespUpdate ResponseKind = "update"
	RespDelete ResponseKind = "delete"
	RespDDL    ResponseKind = "ddl"
	RespError  ResponseKind = "error"
)

// CommandResponse is the result of applying one Command to the local
// state machine, returned from FSM.Apply and surfaced to the caller that
// submitted the command through raft.Raft.Apply.
type CommandResponse struct {
	Kind          ResponseKind `json:"kind"`
	RID           types.RID    `json:"rid,omitempty"`
	RowsAffected  int64        `json:"rows_affected,omitempty"`
	Message       string       `json:"message,omitempty"`
}

func InsertResponse(rid types.RID) CommandResponse {
	return CommandResponse{Kind: RespInsert, RID: rid}
}

func UpdateResponse(rowsAffected int64) CommandResponse {
	return CommandResponse{Kind: RespUpdate, RowsAffected: rowsAffected}
}

func DeleteResponse(rowsAffected int64) CommandResponse {
	return CommandResponse{Kind: RespDelete, RowsAffected: rowsAffected}
}

func DDLResponse() CommandResponse { return CommandResponse{Kind: RespDDL} }

func ErrorResponse(err error) CommandResponse {
	return CommandResponse{Kind: RespError, Message: err.Error()}
}
