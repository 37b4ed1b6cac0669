package database

import (
	"fmt"

	"github.com/cuemby/slotdb/internal/catalog"
	"github.com/cuemby/slotdb/internal/storage"
	"github.com/cuemby/slotdb/internal/types"
)

// Snapshot is the full catalog+heap state of a Database, serializable as
// the state-machine payload of a Raft snapshot (see internal/raft). It is
// not used by the core engine's own crash recovery, which relies on the
// catalog.json + heap pages + WAL replay already on disk.
type Snapshot struct {
	Tables []TableSnapshot `json:"tables"`
}

type TableSnapshot struct {
	Name       string           `json:"name"`
	Columns    []catalog.Column `json:"columns"`
	PrimaryKey []int            `json:"primary_key,omitempty"`
	EncRows    [][]snapValue    `json:"rows"`
}

type snapValue struct {
	Kind byte   `json:"k"`
	Int  int64  `json:"i,omitempty"`
	Text string `json:"s,omitempty"`
	Bool bool   `json:"b,omitempty"`
}

func encodeSnapRow(values []types.Value) []snapValue {
	out := make([]snapValue, len(values))
	for i, v := range values {
		switch v.Kind() {
		case types.KindNull:
			out[i] = snapValue{Kind: 0}
		case types.KindInt:
			out[i] = snapValue{Kind: 1, Int: v.Int()}
		case types.KindText:
			out[i] = snapValue{Kind: 2, Text: v.Text()}
		case types.KindBool:
			out[i] = snapValue{Kind: 3, Bool: v.Bool()}
		}
	}
	return out
}

func decodeSnapRow(in []snapValue) []types.Value {
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

// Snapshot scans the entire catalog and every table's heap file into an
// in-memory Snapshot, for a Raft FSM to persist as its snapshot payload.
// It takes both locks for the duration of the scan, so it observes a
// consistent point-in-time view but blocks other statements while it runs.
func (db *Database) Snapshot() (Snapshot, error) {
	db.catalogMu.RLock()
	defer db.catalogMu.RUnlock()
	db.writeMu.Lock()
	defer db.writeMu.Unlock()

	tables := db.cat.Tables()
	snap := Snapshot{Tables: make([]TableSnapshot, 0, len(tables))}
	for _, table := range tables {
		heap := storage.NewHeapFile(db.pager, fmt.Sprintf("%d", table.ID))
		ts := TableSnapshot{Name: table.Name, Columns: table.Columns, PrimaryKey: table.PrimaryKey}
		if err := heap.Scan(func(row types.Row) error {
			ts.EncRows = append(ts.EncRows, encodeSnapRow(row.Values))
			return nil
		}); err != nil {
			return Snapshot{}, err
		}
		snap.Tables = append(snap.Tables, ts)
	}
	return snap, nil
}

// Restore replaces the entire catalog and heap contents with snap, then
// truncates the WAL: a Raft snapshot install subsumes every WAL record up
// to the index it represents, so the log has nothing left to replay.
// Unlike DML, Restore does not WAL-log the rows it inserts — the snapshot
// itself, not the WAL, is the durable record of this state going forward.
func (db *Database) Restore(snap Snapshot) error {
	db.catalogMu.Lock()
	defer db.catalogMu.Unlock()
	db.writeMu.Lock()
	defer db.writeMu.Unlock()

	for _, table := range db.cat.Tables() {
		if err := db.disk.DeleteTableFile(fmt.Sprintf("%d", table.ID)); err != nil {
			return err
		}
		db.pager.DropTable(fmt.Sprintf("%d", table.ID))
		if _, err := db.cat.DropTable(table.Name); err != nil {
			return err
		}
	}

	for _, ts := range snap.Tables {
		table, err := db.cat.CreateTable(ts.Name, ts.Columns, ts.PrimaryKey)
		if err != nil {
			return err
		}
		heap := storage.NewHeapFile(db.pager, fmt.Sprintf("%d", table.ID))
		for _, enc := range ts.EncRows {
			row := types.NewRow(decodeSnapRow(enc)...)
			if _, err := heap.Insert(row); err != nil {
				return err
			}
		}
	}

	if err := db.cat.Save(); err != nil {
		return err
	}
	if err := db.pager.Flush(); err != nil {
		return err
	}
	return db.wal.Truncate()
}
