// Package wal implements the length-framed, fsync-disciplined redo log.
package wal

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/cuemby/slotdb/internal/log"
	"github.com/cuemby/slotdb/internal/metrics"
	"github.com/cuemby/slotdb/internal/types"
)

// Kind tags a Record's variant.
type Kind string

const (
	KindInsert     Kind = "insert"
	KindUpdate     Kind = "update"
	KindDelete     Kind = "delete"
	KindCreateTable Kind = "create_table"
	KindDropTable   Kind = "drop_table"
)

// Record is one WAL entry. Only the fields relevant to Kind are set; the
// rest are zero. This mirrors the taxonomy in the engine's record design:
// Insert{table,row,rid}, Update{table,rid,new_row}, Delete{table,rid},
// CreateTable{name,table_id}, DropTable{table_id}. Update additionally
// carries OldRID, the slot freed by the delete half of update-as-
// delete-then-insert, so replay can place new_row at RID and mark OldRID
// deleted without depending on heap append order.
type Record struct {
	Kind    Kind       `json:"kind"`
	Table   string     `json:"table,omitempty"`
	TableID uint64     `json:"table_id,omitempty"`
	Row     []rowValue `json:"row,omitempty"`
	RID     *ridValue  `json:"rid,omitempty"`
	OldRID  *ridValue  `json:"old_rid,omitempty"`
}

type rowValue struct {
	Kind byte   `json:"k"`
	Int  int64  `json:"i,omitempty"`
	Text string `json:"s,omitempty"`
	Bool bool   `json:"b,omitempty"`
}

type ridValue struct {
	PageID uint64 `json:"page_id"`
	Slot   uint16 `json:"slot"`
}

func encodeRID(rid types.RID) *ridValue {
	return &ridValue{PageID: rid.PageID, Slot: rid.Slot}
}

func (r *ridValue) decode() types.RID {
	if r == nil {
		return types.RID{}
	}
	return types.RID{PageID: r.PageID, Slot: r.Slot}
}

func encodeValues(values []types.Value) []rowValue {
	out := make([]rowValue, len(values))
	for i, v := range values {
		switch v.Kind() {
		case types.KindNull:
			out[i] = rowValue{Kind: 0}
		case types.KindInt:
			out[i] = rowValue{Kind: 1, Int: v.Int()}
		case types.KindText:
			out[i] = rowValue{Kind: 2, Text: v.Text()}
		case types.KindBool:
			out[i] = rowValue{Kind: 3, Bool: v.Bool()}
		}
	}
	return out
}

func decodeValues(in []rowValue) []types.Value {
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

func InsertRecord(table string, row types.Row, rid types.RID) Record {
	return Record{Kind: KindInsert, Table: table, Row: encodeValues(row.Values), RID: encodeRID(rid)}
}

func UpdateRecord(table string, oldRID, newRID types.RID, newRow types.Row) Record {
	return Record{Kind: KindUpdate, Table: table, Row: encodeValues(newRow.Values), RID: encodeRID(newRID), OldRID: encodeRID(oldRID)}
}

func DeleteRecord(table string, rid types.RID) Record {
	return Record{Kind: KindDelete, Table: table, RID: encodeRID(rid)}
}

func CreateTableRecord(name string, tableID uint64) Record {
	return Record{Kind: KindCreateTable, Table: name, TableID: tableID}
}

func DropTableRecord(tableID uint64) Record {
	return Record{Kind: KindDropTable, TableID: tableID}
}

func (r Record) DecodedRow() types.Row {
	return types.Row{Values: decodeValues(r.Row)}
}

func (r Record) DecodedRID() types.RID {
	return r.RID.decode()
}

func (r Record) DecodedOldRID() types.RID {
	return r.OldRID.decode()
}

// Wal is an append-only, length-framed file: repeated
// [len u32 LE][payload len bytes]. append does not fsync; Sync does.
type Wal struct {
	path string
	file *os.File
	w    *bufio.Writer
}

// Open opens path for append, creating it if missing.
func Open(path string) (*Wal, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", types.ErrWal, path, err)
	}
	return &Wal{path: path, file: f, w: bufio.NewWriter(f)}, nil
}

// Append serializes record, writes its length prefix and payload, and
// flushes the userland buffer. It does not fsync.
func (w *Wal) Append(record Record) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("%w: encode record: %v", types.ErrWal, err)
	}
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	if _, err := w.w.Write(lenBuf[:]); err != nil {
		return fmt.Errorf("%w: write length prefix: %v", types.ErrWal, err)
	}
	if _, err := w.w.Write(payload); err != nil {
		return fmt.Errorf("%w: write payload: %v", types.ErrWal, err)
	}
	if err := w.w.Flush(); err != nil {
		return fmt.Errorf("%w: flush: %v", types.ErrWal, err)
	}
	metrics.WalRecordsAppended.WithLabelValues(string(record.Kind)).Inc()
	return nil
}

// Sync fsyncs the underlying file. Required for durability before
// acknowledging a committed mutation to a caller.
func (w *Wal) Sync() error {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.WalSyncDuration)
	if err := w.file.Sync(); err != nil {
		return fmt.Errorf("%w: fsync %s: %v", types.ErrWal, w.path, err)
	}
	return nil
}

// Truncate zeroes the file; used only after a Raft snapshot installs the
// entire state.
func (w *Wal) Truncate() error {
	if err := w.file.Truncate(0); err != nil {
		return fmt.Errorf("%w: truncate %s: %v", types.ErrWal, w.path, err)
	}
	if _, err := w.file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("%w: seek %s: %v", types.ErrWal, w.path, err)
	}
	w.w = bufio.NewWriter(w.file)
	return nil
}

func (w *Wal) Close() error {
	if err := w.w.Flush(); err != nil {
		log.Logger.Warn().Err(err).Msg("wal: flush on close failed")
	}
	return w.file.Close()
}

// Replay reads path from the start, stopping at EOF or the first
// torn/partial frame. A truncated tail is not an error; a successfully
// framed but undecodable record is.
func Replay(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: open %s: %v", types.ErrWal, path, err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	var records []Record
	for {
		var lenBuf [4]byte
		n, err := io.ReadFull(r, lenBuf[:])
		if err != nil {
			if n == 0 {
				break // clean EOF between frames
			}
			break // torn length prefix: stop, not an error
		}
		length := binary.LittleEndian.Uint32(lenBuf[:])
		payload := make([]byte, length)
		if _, err := io.ReadFull(r, payload); err != nil {
			break // torn payload: stop, not an error
		}
		var record Record
		if err := json.Unmarshal(payload, &record); err != nil {
			return records, fmt.Errorf("%w: undecodable record in %s: %v", types.ErrWal, path, err)
		}
		records = append(records, record)
	}
	return records, nil
}
