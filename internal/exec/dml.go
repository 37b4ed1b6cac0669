package exec

import (
	"fmt"

	"github.com/cuemby/slotdb/internal/btree"
	"github.com/cuemby/slotdb/internal/catalog"
	"github.com/cuemby/slotdb/internal/expr"
	"github.com/cuemby/slotdb/internal/planner"
	"github.com/cuemby/slotdb/internal/types"
	"github.com/cuemby/slotdb/internal/wal"
)

// InsertExec evaluates its literal Values once, applies the heap
// mutation, then appends and syncs the WAL record carrying the RID the
// apply produced (log-after-apply, redo-only). It probes the primary-key
// index first when the table has one, and emits a single {"count": 1}
// row.
type InsertExec struct {
	ctx       *Context
	tableID   uint64
	tableName string
	values    []expr.Expr

	done bool
}

func NewInsertExec(ctx *Context, n *planner.Insert) *InsertExec {
	return &InsertExec{ctx: ctx, tableID: n.TableID, tableName: n.TableName, values: n.Values}
}

func (e *InsertExec) Schema() []string { return []string{"count"} }

func (e *InsertExec) Open() error {
	e.done = false
	return nil
}

func (e *InsertExec) Next() (types.Row, bool, error) {
	if e.done {
		return types.Row{}, false, nil
	}
	e.done = true

	values := make([]types.Value, len(e.values))
	for i, v := range e.values {
		val, err := v.Eval(types.Row{})
		if err != nil {
			return types.Row{}, false, err
		}
		values[i] = val
	}
	row := types.NewRow(values...)

	table, ok := e.ctx.Catalog.TableByID(e.tableID)
	if !ok {
		return types.Row{}, false, fmt.Errorf("%w: unknown table id %d", types.ErrExecutor, e.tableID)
	}
	if table.HasPrimaryKey {
		if err := e.checkPrimaryKeyUnique(table, row); err != nil {
			return types.Row{}, false, err
		}
	}

	heap := e.ctx.Heap(e.tableID, e.tableName)
	rid, err := heap.Insert(row)
	if err != nil {
		return types.Row{}, false, err
	}
	if err := e.ctx.Wal.Append(wal.InsertRecord(e.tableName, row, rid)); err != nil {
		return types.Row{}, false, err
	}
	if err := e.ctx.Wal.Sync(); err != nil {
		return types.Row{}, false, err
	}

	if err := e.insertIntoIndexes(table, row, rid); err != nil {
		return types.Row{}, false, err
	}

	return types.NewRow(types.IntValue(1)), true, nil
}

// checkPrimaryKeyUnique probes the table's automatically-created _primary
// index before the heap insert happens, so a duplicate key never reaches
// the heap or the WAL.
func (e *InsertExec) checkPrimaryKeyUnique(table catalog.Table, row types.Row) error {
	idx, ok := e.indexByID(table.PrimaryKeyIdx)
	if !ok {
		return nil
	}
	key := keyForIndex(idx, row)
	bt, err := e.ctx.BTree(idx.ID, IndexFilePath(e.ctx.DataDir, idx.ID))
	if err != nil {
		return err
	}
	existing, err := bt.Search(key)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return fmt.Errorf("%w: duplicate primary key in table %q", types.ErrConstraintViolation, table.Name)
	}
	return nil
}

func (e *InsertExec) indexByID(id uint64) (catalog.Index, bool) {
	if id == 0 {
		return catalog.Index{}, false
	}
	return e.ctx.Catalog.IndexByID(id)
}

func (e *InsertExec) insertIntoIndexes(table catalog.Table, row types.Row, rid types.RID) error {
	return InsertIntoIndexes(e.ctx, table, row, rid)
}

func (e *InsertExec) Close() error { return nil }

// InsertIntoIndexes inserts (key, rid) into every index table owns,
// derived from row's values at each index's column ordinals. Shared by
// InsertExec, UpdateExec's re-insert half, and the Raft apply path in
// internal/database, which applies a replicated Command without going
// through an Executor at all.
func InsertIntoIndexes(ctx *Context, table catalog.Table, row types.Row, rid types.RID) error {
	for _, id := range table.Indexes {
		idx, ok := ctx.Catalog.IndexByID(id)
		if !ok {
			continue
		}
		key := keyForIndex(idx, row)
		path := IndexFilePath(ctx.DataDir, idx.ID)
		switch idx.Kind {
		case catalog.IndexBTree:
			bt, err := ctx.BTree(idx.ID, path)
			if err != nil {
				return err
			}
			if err := bt.Insert(key, rid); err != nil {
				return err
			}
		case catalog.IndexHash:
			h, err := ctx.Hash(idx.ID, path)
			if err != nil {
				return err
			}
			if err := h.Insert(key, rid); err != nil {
				return err
			}
		}
	}
	return nil
}

// RemoveFromIndexes removes (key, rid) from every index table owns, the
// inverse of InsertIntoIndexes.
func RemoveFromIndexes(ctx *Context, table catalog.Table, row types.Row, rid types.RID) error {
	for _, id := range table.Indexes {
		idx, ok := ctx.Catalog.IndexByID(id)
		if !ok {
			continue
		}
		key := keyForIndex(idx, row)
		path := IndexFilePath(ctx.DataDir, idx.ID)
		switch idx.Kind {
		case catalog.IndexBTree:
			bt, err := ctx.BTree(idx.ID, path)
			if err != nil {
				return err
			}
			if _, err := bt.Delete(key, rid); err != nil {
				return err
			}
		case catalog.IndexHash:
			h, err := ctx.Hash(idx.ID, path)
			if err != nil {
				return err
			}
			if _, err := h.Delete(key, rid); err != nil {
				return err
			}
		}
	}
	return nil
}

func keyForIndex(idx catalog.Index, row types.Row) btree.Key {
	values := make([]types.Value, len(idx.Columns))
	for i, ord := range idx.Columns {
		values[i] = row.Values[ord]
	}
	return btree.KeyFromValues(values...)
}

// UpdateExec pulls every row its Child selects, applies the SET
// assignments, and performs update-as-delete-then-insert on the heap and
// on every index on the table. The WAL record carries the RID the heap
// apply produced, appended and synced after the apply.
type UpdateExec struct {
	ctx         *Context
	tableID     uint64
	tableName   string
	assignments []planner.Assignment
	child       Executor

	count int64
	done  bool
}

func NewUpdateExec(ctx *Context, n *planner.Update, child Executor) *UpdateExec {
	return &UpdateExec{ctx: ctx, tableID: n.TableID, tableName: n.TableName, assignments: n.Assignments, child: child}
}

func (e *UpdateExec) Schema() []string { return []string{"count"} }

func (e *UpdateExec) Open() error {
	e.count = 0
	e.done = false
	return e.child.Open()
}

func (e *UpdateExec) Next() (types.Row, bool, error) {
	if e.done {
		return types.Row{}, false, nil
	}
	table, ok := e.ctx.Catalog.TableByID(e.tableID)
	if !ok {
		return types.Row{}, false, fmt.Errorf("%w: unknown table id %d", types.ErrExecutor, e.tableID)
	}
	heap := e.ctx.Heap(e.tableID, e.tableName)

	for {
		row, ok, err := e.child.Next()
		if err != nil {
			return types.Row{}, false, err
		}
		if !ok {
			break
		}
		if !row.HasRID {
			return types.Row{}, false, fmt.Errorf("%w: update source row carries no RID", types.ErrExecutor)
		}

		newRow := row.Clone()
		for _, a := range e.assignments {
			val, err := a.Value.Eval(row)
			if err != nil {
				return types.Row{}, false, err
			}
			newRow.Values[a.Ordinal] = val
		}

		if err := e.removeFromIndexes(table, row, row.RID); err != nil {
			return types.Row{}, false, err
		}
		newRID, err := heap.Update(row.RID, newRow)
		if err != nil {
			return types.Row{}, false, err
		}
		if err := e.ctx.Wal.Append(wal.UpdateRecord(e.tableName, row.RID, newRID, newRow)); err != nil {
			return types.Row{}, false, err
		}
		if err := e.ctx.Wal.Sync(); err != nil {
			return types.Row{}, false, err
		}
		if err := e.addToIndexes(table, newRow, newRID); err != nil {
			return types.Row{}, false, err
		}
		e.count++
	}

	e.done = true
	return types.NewRow(types.IntValue(e.count)), true, nil
}

func (e *UpdateExec) removeFromIndexes(table catalog.Table, row types.Row, rid types.RID) error {
	return RemoveFromIndexes(e.ctx, table, row, rid)
}

func (e *UpdateExec) addToIndexes(table catalog.Table, row types.Row, rid types.RID) error {
	return InsertIntoIndexes(e.ctx, table, row, rid)
}

func (e *UpdateExec) Close() error { return e.child.Close() }

// DeleteExec pulls every row its Child selects, marks its heap slot
// deleted, appends and syncs the WAL record carrying that RID, then
// removes the row from every index on the table.
type DeleteExec struct {
	ctx       *Context
	tableID   uint64
	tableName string
	child     Executor

	count int64
	done  bool
}

func NewDeleteExec(ctx *Context, n *planner.Delete, child Executor) *DeleteExec {
	return &DeleteExec{ctx: ctx, tableID: n.TableID, tableName: n.TableName, child: child}
}

func (e *DeleteExec) Schema() []string { return []string{"count"} }

func (e *DeleteExec) Open() error {
	e.count = 0
	e.done = false
	return e.child.Open()
}

func (e *DeleteExec) Next() (types.Row, bool, error) {
	if e.done {
		return types.Row{}, false, nil
	}
	table, ok := e.ctx.Catalog.TableByID(e.tableID)
	if !ok {
		return types.Row{}, false, fmt.Errorf("%w: unknown table id %d", types.ErrExecutor, e.tableID)
	}
	heap := e.ctx.Heap(e.tableID, e.tableName)

	for {
		row, ok, err := e.child.Next()
		if err != nil {
			return types.Row{}, false, err
		}
		if !ok {
			break
		}
		if !row.HasRID {
			return types.Row{}, false, fmt.Errorf("%w: delete source row carries no RID", types.ErrExecutor)
		}

		if err := heap.Delete(row.RID); err != nil {
			return types.Row{}, false, err
		}
		if err := e.ctx.Wal.Append(wal.DeleteRecord(e.tableName, row.RID)); err != nil {
			return types.Row{}, false, err
		}
		if err := e.ctx.Wal.Sync(); err != nil {
			return types.Row{}, false, err
		}

		if err := RemoveFromIndexes(e.ctx, table, row, row.RID); err != nil {
			return types.Row{}, false, err
		}

		e.count++
	}

	e.done = true
	return types.NewRow(types.IntValue(e.count)), true, nil
}

func (e *DeleteExec) Close() error { return e.child.Close() }
