package database

import (
	"fmt"

	"github.com/cuemby/slotdb/internal/catalog"
	"github.com/cuemby/slotdb/internal/exec"
	"github.com/cuemby/slotdb/internal/parser"
	"github.com/cuemby/slotdb/internal/storage"
	"github.com/cuemby/slotdb/internal/types"
	"github.com/cuemby/slotdb/internal/wal"
)

// This file applies already-decided operations (sourced from a committed
// Raft log entry rather than parsed SQL text) to the local catalog, heap
// and WAL, using the same ordering rules §4.4 requires of direct DML:
// heap apply, then WAL append, then WAL sync. Index maintenance reuses
// the same exec.InsertIntoIndexes/RemoveFromIndexes helpers the Insert,
// Update and Delete executors call, so both entry points keep indexes in
// lockstep with the heap by construction rather than by convention.
//
// Unlike direct DML, the row values here are already fully evaluated —
// there is no expression tree to run, since a Raft command carries
// literal values decided by the leader.

// ApplyInsert inserts row into table, returning the RID the local heap
// assigned. Per §4.12, only the leader allocates RIDs: a follower
// applying the same command independently will assign whatever RID its
// own heap's append position yields, which may differ from the leader's
// — tolerated because RIDs are never observed outside a single replica.
func (db *Database) ApplyInsert(tableName string, values []types.Value) (types.RID, error) {
	db.catalogMu.RLock()
	defer db.catalogMu.RUnlock()
	db.writeMu.Lock()
	defer db.writeMu.Unlock()

	table, ok := db.cat.TableByName(tableName)
	if !ok {
		return types.RID{}, fmt.Errorf("%w: unknown table %q", types.ErrCatalog, tableName)
	}
	row := types.NewRow(values...)

	heap := storage.NewHeapFile(db.pager, fmt.Sprintf("%d", table.ID))
	rid, err := heap.Insert(row)
	if err != nil {
		return types.RID{}, err
	}
	if err := db.wal.Append(wal.InsertRecord(tableName, row, rid)); err != nil {
		return types.RID{}, err
	}
	if err := db.wal.Sync(); err != nil {
		return types.RID{}, err
	}

	ctx := db.newExecCtx()
	defer ctx.Close()
	if err := exec.InsertIntoIndexes(ctx, table, row, rid); err != nil {
		return types.RID{}, err
	}
	return rid, nil
}

// ApplyUpdate replaces the row at rid with newValues, returning the RID
// the local heap's delete-then-insert produced.
func (db *Database) ApplyUpdate(tableName string, rid types.RID, newValues []types.Value) (types.RID, error) {
	db.catalogMu.RLock()
	defer db.catalogMu.RUnlock()
	db.writeMu.Lock()
	defer db.writeMu.Unlock()

	table, ok := db.cat.TableByName(tableName)
	if !ok {
		return types.RID{}, fmt.Errorf("%w: unknown table %q", types.ErrCatalog, tableName)
	}
	heap := storage.NewHeapFile(db.pager, fmt.Sprintf("%d", table.ID))

	oldRow, err := heap.Get(rid)
	if err != nil {
		return types.RID{}, err
	}
	newRow := types.NewRow(newValues...)

	ctx := db.newExecCtx()
	defer ctx.Close()
	if err := exec.RemoveFromIndexes(ctx, table, oldRow, rid); err != nil {
		return types.RID{}, err
	}
	newRID, err := heap.Update(rid, newRow)
	if err != nil {
		return types.RID{}, err
	}
	if err := db.wal.Append(wal.UpdateRecord(tableName, rid, newRID, newRow)); err != nil {
		return types.RID{}, err
	}
	if err := db.wal.Sync(); err != nil {
		return types.RID{}, err
	}
	if err := exec.InsertIntoIndexes(ctx, table, newRow, newRID); err != nil {
		return types.RID{}, err
	}
	return newRID, nil
}

// ApplyDelete removes the row at rid from table.
func (db *Database) ApplyDelete(tableName string, rid types.RID) error {
	db.catalogMu.RLock()
	defer db.catalogMu.RUnlock()
	db.writeMu.Lock()
	defer db.writeMu.Unlock()

	table, ok := db.cat.TableByName(tableName)
	if !ok {
		return fmt.Errorf("%w: unknown table %q", types.ErrCatalog, tableName)
	}
	heap := storage.NewHeapFile(db.pager, fmt.Sprintf("%d", table.ID))

	row, err := heap.Get(rid)
	if err != nil {
		return err
	}
	if err := heap.Delete(rid); err != nil {
		return err
	}
	if err := db.wal.Append(wal.DeleteRecord(tableName, rid)); err != nil {
		return err
	}
	if err := db.wal.Sync(); err != nil {
		return err
	}

	ctx := db.newExecCtx()
	defer ctx.Close()
	return exec.RemoveFromIndexes(ctx, table, row, rid)
}

// ApplyCreateTable runs the same DDL contract as a parsed CREATE TABLE
// statement (§4.11), for a replicated CreateTable command.
func (db *Database) ApplyCreateTable(name string, columns []catalog.Column, primaryKey []string) (catalog.Table, error) {
	cols := make([]parser.ColumnDef, len(columns))
	for i, c := range columns {
		cols[i] = parser.ColumnDef{Name: c.Name, Type: c.SQLType}
	}
	if _, err := db.createTable(parser.CreateTable{Table: name, Columns: cols, PrimaryKey: primaryKey}); err != nil {
		return catalog.Table{}, err
	}
	table, _ := db.cat.TableByName(name)
	return table, nil
}

// ApplyDropTable runs the same DDL contract as a parsed DROP TABLE
// statement, for a replicated DropTable command.
func (db *Database) ApplyDropTable(name string) error {
	_, err := db.dropTable(parser.DropTable{Table: name})
	return err
}

// ApplyCreateIndex runs the same DDL contract as a parsed CREATE INDEX
// statement, for a replicated CreateIndex command.
func (db *Database) ApplyCreateIndex(indexName, tableName, column string) error {
	_, err := db.createIndex(parser.CreateIndex{Name: indexName, Table: tableName, Column: column})
	return err
}

// ApplyDropIndex runs the same DDL contract as a parsed DROP INDEX
// statement, for a replicated DropIndex command.
func (db *Database) ApplyDropIndex(indexName string) error {
	_, err := db.dropIndex(parser.DropIndex{Name: indexName})
	return err
}
