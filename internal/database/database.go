// Package database implements the Database facade: execute(sql) against
// a serialized catalog/pager/WAL, handling DDL directly and routing
// DML/queries through the planner and executor tree.
package database

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/cuemby/slotdb/internal/btree"
	"github.com/cuemby/slotdb/internal/catalog"
	"github.com/cuemby/slotdb/internal/exec"
	"github.com/cuemby/slotdb/internal/log"
	"github.com/cuemby/slotdb/internal/parser"
	"github.com/cuemby/slotdb/internal/planner"
	"github.com/cuemby/slotdb/internal/storage"
	"github.com/cuemby/slotdb/internal/types"
	"github.com/cuemby/slotdb/internal/wal"
)

// Config names the on-disk layout under DataDir, matching the facade's
// accepted parameters in the external-interfaces contract.
type Config struct {
	DataDir         string
	CatalogFileName string
	WalFileName     string
	BufferPoolPages int
}

// QueryResult is the tagged result of one Execute call: Rows, Count, or
// Empty.
type QueryResult interface{ isQueryResult() }

type RowsResult struct {
	Schema []string
	Rows   []types.Row
}

type CountResult struct{ Affected int64 }

type EmptyResult struct{}

func (RowsResult) isQueryResult()  {}
func (CountResult) isQueryResult() {}
func (EmptyResult) isQueryResult() {}

// Database owns the catalog, pager and WAL, serializing every statement
// behind a pager+WAL mutex and a catalog read-write lock: DDL takes the
// catalog lock for write, queries/DML take it for read.
type Database struct {
	cfg Config

	writeMu   sync.Mutex // pager + WAL, acquired for the duration of a statement
	catalogMu sync.RWMutex

	cat    *catalog.Catalog
	disk   *storage.DiskManager
	pager  *storage.BufferPool
	wal    *wal.Wal
	logger zerolog.Logger
}

// Open opens (or creates) the catalog, pager and WAL under cfg.DataDir,
// then replays the WAL to recover any heap mutation that happened after
// the last buffer-pool flush but before a crash.
func Open(cfg Config) (*Database, error) {
	if cfg.BufferPoolPages <= 0 {
		cfg.BufferPoolPages = 256
	}
	catalogPath := filepath.Join(cfg.DataDir, cfg.CatalogFileName)
	walPath := filepath.Join(cfg.DataDir, cfg.WalFileName)

	cat, err := catalog.Open(catalogPath)
	if err != nil {
		return nil, err
	}
	disk := storage.NewDiskManager(cfg.DataDir)
	pager := storage.NewBufferPool(disk, cfg.BufferPoolPages)
	w, err := wal.Open(walPath)
	if err != nil {
		return nil, err
	}

	db := &Database{cfg: cfg, cat: cat, disk: disk, pager: pager, wal: w, logger: log.WithComponent("database")}
	if err := db.recover(walPath); err != nil {
		return nil, err
	}
	return db, nil
}

// recover replays every DML record and reapplies it to a freshly reset
// heap file for each table the WAL mentions, since replay against an
// empty heap reproduces identical RIDs deterministically (heap slot
// allocation depends only on operation order, never on the RID value).
// DDL records are skipped: CreateTable/DropTable are catalog.json
// mutations, already durable by the time the matching WAL record was
// appended (catalog save happens before WAL append per the DDL contract).
func (db *Database) recover(walPath string) error {
	records, err := wal.Replay(walPath)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}

	reset := make(map[string]bool)
	for _, rec := range records {
		switch rec.Kind {
		case wal.KindInsert, wal.KindUpdate, wal.KindDelete:
			if reset[rec.Table] {
				continue
			}
			table, ok := db.cat.TableByName(rec.Table)
			if !ok {
				continue
			}
			tableKey := fmt.Sprintf("%d", table.ID)
			if err := db.disk.DeleteTableFile(tableKey); err != nil {
				return err
			}
			reset[rec.Table] = true
		}
	}

	for _, rec := range records {
		switch rec.Kind {
		case wal.KindInsert:
			table, ok := db.cat.TableByName(rec.Table)
			if !ok {
				continue
			}
			heap := storage.NewHeapFile(db.pager, fmt.Sprintf("%d", table.ID))
			if _, err := heap.Insert(rec.DecodedRow()); err != nil {
				return err
			}
		case wal.KindUpdate:
			table, ok := db.cat.TableByName(rec.Table)
			if !ok {
				continue
			}
			heap := storage.NewHeapFile(db.pager, fmt.Sprintf("%d", table.ID))
			if _, err := heap.Update(rec.DecodedOldRID(), rec.DecodedRow()); err != nil {
				return err
			}
		case wal.KindDelete:
			table, ok := db.cat.TableByName(rec.Table)
			if !ok {
				continue
			}
			heap := storage.NewHeapFile(db.pager, fmt.Sprintf("%d", table.ID))
			if err := heap.Delete(rec.DecodedRID()); err != nil {
				return err
			}
		}
	}
	if err := db.pager.Flush(); err != nil {
		return err
	}
	db.logger.Info().Int("records", len(records)).Int("tables", len(reset)).Msg("recovered WAL records")
	return nil
}

// Execute parses sql and runs it, serializing against every other
// Execute call on this Database.
func (db *Database) Execute(sql string) (QueryResult, error) {
	stmt, err := parser.Parse(sql)
	if err != nil {
		return nil, err
	}

	switch s := stmt.(type) {
	case parser.CreateTable:
		return db.createTable(s)
	case parser.DropTable:
		return db.dropTable(s)
	case parser.CreateIndex:
		return db.createIndex(s)
	case parser.DropIndex:
		return db.dropIndex(s)
	case parser.Explain:
		return db.explain(s)
	default:
		return db.executeQuery(stmt)
	}
}

func (db *Database) newExecCtx() *exec.Context {
	return exec.NewContext(db.cat, db.pager, db.wal, db.cfg.DataDir)
}

func (db *Database) executeQuery(stmt parser.Statement) (QueryResult, error) {
	db.catalogMu.RLock()
	defer db.catalogMu.RUnlock()
	db.writeMu.Lock()
	defer db.writeMu.Unlock()

	plan, err := planner.Build(stmt, db.cat)
	if err != nil {
		return nil, err
	}

	ctx := db.newExecCtx()
	defer ctx.Close()

	execTree, err := exec.Build(plan.Root, ctx)
	if err != nil {
		return nil, err
	}
	return runExecTree(execTree, stmt)
}

func runExecTree(e exec.Executor, stmt parser.Statement) (QueryResult, error) {
	if err := e.Open(); err != nil {
		return nil, err
	}
	defer e.Close()

	switch stmt.(type) {
	case parser.Insert, parser.Update, parser.Delete:
		row, ok, err := e.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			return CountResult{Affected: 0}, nil
		}
		return CountResult{Affected: row.Values[0].Int()}, nil
	default:
		var rows []types.Row
		for {
			row, ok, err := e.Next()
			if err != nil {
				return nil, err
			}
			if !ok {
				break
			}
			rows = append(rows, row)
		}
		return RowsResult{Schema: e.Schema(), Rows: rows}, nil
	}
}

func (db *Database) explain(s parser.Explain) (QueryResult, error) {
	db.catalogMu.RLock()
	plan, err := planner.Build(s.Stmt, db.cat)
	db.catalogMu.RUnlock()
	if err != nil {
		return nil, err
	}

	if !s.Analyze {
		return RowsResult{Schema: []string{"plan"}, Rows: []types.Row{types.NewRow(types.TextValue(plan.Explain(false, nil)))}}, nil
	}

	db.catalogMu.RLock()
	defer db.catalogMu.RUnlock()
	db.writeMu.Lock()
	defer db.writeMu.Unlock()

	ctx := db.newExecCtx()
	defer ctx.Close()

	stats := make(map[planner.Node]planner.NodeStats)
	execTree, err := exec.BuildAnalyzed(plan.Root, ctx, stats)
	if err != nil {
		return nil, err
	}
	if _, err := runExecTree(execTree, s.Stmt); err != nil {
		return nil, err
	}
	return RowsResult{Schema: []string{"plan"}, Rows: []types.Row{types.NewRow(types.TextValue(plan.Explain(true, stats)))}}, nil
}

func (db *Database) createTable(s parser.CreateTable) (QueryResult, error) {
	db.catalogMu.Lock()
	defer db.catalogMu.Unlock()

	cols := make([]catalog.Column, len(s.Columns))
	for i, c := range s.Columns {
		cols[i] = catalog.Column{Name: c.Name, SQLType: c.Type}
	}
	var pk []int
	for _, name := range s.PrimaryKey {
		found := false
		for i, c := range cols {
			if strings.EqualFold(c.Name, name) {
				pk = append(pk, i)
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("%w: primary key references unknown column %q", types.ErrCatalog, name)
		}
	}

	table, err := db.cat.CreateTable(s.Table, cols, pk)
	if err != nil {
		return nil, err
	}

	if table.HasPrimaryKey {
		idx, err := db.createAutoIndex("_primary", table, pk, catalog.IndexBTree)
		if err != nil {
			return nil, err
		}
		if err := db.cat.SetPrimaryKeyIndex(table.ID, idx.ID); err != nil {
			return nil, err
		}
	}

	if err := db.cat.Save(); err != nil {
		return nil, err
	}
	if err := db.writeDDLRecord(wal.CreateTableRecord(s.Table, table.ID)); err != nil {
		return nil, err
	}
	return EmptyResult{}, nil
}

// createAutoIndex builds the file-backed index structure for a
// table's automatically-created primary-key index, named per-table so
// two tables' "_primary" indexes never collide despite sharing a name
// reserved at the catalog level.
func (db *Database) createAutoIndex(prefix string, table catalog.Table, columns []int, kind catalog.IndexKind) (catalog.Index, error) {
	name := fmt.Sprintf("%s_%d", prefix, table.ID)
	path := filepath.Join(db.cfg.DataDir, fmt.Sprintf("index_pending_%d.idx", table.ID))
	idx, err := db.cat.CreateIndex(name, table, columns, kind, path)
	if err != nil {
		return catalog.Index{}, err
	}
	realPath := exec.IndexFilePath(db.cfg.DataDir, idx.ID)
	if kind == catalog.IndexBTree {
		bt, err := btree.Open(realPath)
		if err != nil {
			return catalog.Index{}, err
		}
		bt.Close()
	}
	if err := db.cat.SetIndexFilePath(idx.ID, realPath); err != nil {
		return catalog.Index{}, err
	}
	idx.FilePath = realPath
	return idx, nil
}

func (db *Database) dropTable(s parser.DropTable) (QueryResult, error) {
	db.catalogMu.Lock()
	defer db.catalogMu.Unlock()

	table, ok := db.cat.TableByName(s.Table)
	if !ok {
		return nil, fmt.Errorf("%w: unknown table %q", types.ErrCatalog, s.Table)
	}
	for _, id := range table.Indexes {
		if idx, ok := db.cat.IndexByID(id); ok {
			_ = removeIndexFile(exec.IndexFilePath(db.cfg.DataDir, idx.ID))
		}
	}
	if _, err := db.cat.DropTable(s.Table); err != nil {
		return nil, err
	}
	if err := db.cat.Save(); err != nil {
		return nil, err
	}
	if err := db.disk.DeleteTableFile(fmt.Sprintf("%d", table.ID)); err != nil {
		return nil, err
	}
	db.pager.DropTable(fmt.Sprintf("%d", table.ID))
	if err := db.writeDDLRecord(wal.DropTableRecord(table.ID)); err != nil {
		return nil, err
	}
	return EmptyResult{}, nil
}

func (db *Database) createIndex(s parser.CreateIndex) (QueryResult, error) {
	db.catalogMu.Lock()
	defer db.catalogMu.Unlock()

	table, ok := db.cat.TableByName(s.Table)
	if !ok {
		return nil, fmt.Errorf("%w: unknown table %q", types.ErrCatalog, s.Table)
	}
	ord, ok := table.ColumnOrdinal(s.Column)
	if !ok {
		return nil, fmt.Errorf("%w: unknown column %q", types.ErrCatalog, s.Column)
	}

	path := filepath.Join(db.cfg.DataDir, fmt.Sprintf("index_pending_%s.idx", s.Name))
	idx, err := db.cat.CreateIndex(s.Name, table, []int{ord}, catalog.IndexBTree, path)
	if err != nil {
		return nil, err
	}
	realPath := exec.IndexFilePath(db.cfg.DataDir, idx.ID)
	bt, err := btree.Open(realPath)
	if err != nil {
		return nil, err
	}
	bt.Close()
	if err := db.cat.SetIndexFilePath(idx.ID, realPath); err != nil {
		return nil, err
	}
	idx.FilePath = realPath

	if err := db.backfillIndex(table, idx); err != nil {
		return nil, err
	}
	if err := db.cat.Save(); err != nil {
		return nil, err
	}
	return EmptyResult{}, nil
}

// backfillIndex scans every existing row in table and inserts it into
// idx, so CREATE INDEX on a populated table is immediately usable.
func (db *Database) backfillIndex(table catalog.Table, idx catalog.Index) error {
	heap := storage.NewHeapFile(db.pager, fmt.Sprintf("%d", table.ID))
	bt, err := btree.Open(exec.IndexFilePath(db.cfg.DataDir, idx.ID))
	if err != nil {
		return err
	}
	defer bt.Close()

	return heap.Scan(func(row types.Row) error {
		values := make([]types.Value, len(idx.Columns))
		for i, ord := range idx.Columns {
			values[i] = row.Values[ord]
		}
		return bt.Insert(btree.KeyFromValues(values...), row.RID)
	})
}

func (db *Database) dropIndex(s parser.DropIndex) (QueryResult, error) {
	db.catalogMu.Lock()
	defer db.catalogMu.Unlock()

	idx, err := db.cat.DropIndex(s.Name)
	if err != nil {
		return nil, err
	}
	if err := db.cat.Save(); err != nil {
		return nil, err
	}
	_ = removeIndexFile(exec.IndexFilePath(db.cfg.DataDir, idx.ID))
	return EmptyResult{}, nil
}

func (db *Database) writeDDLRecord(rec wal.Record) error {
	db.writeMu.Lock()
	defer db.writeMu.Unlock()
	if err := db.wal.Append(rec); err != nil {
		return err
	}
	return db.wal.Sync()
}

// removeIndexFile deletes an index's data file; a missing file is not
// an error (DROP INDEX on an index whose file was never created).
func removeIndexFile(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%w: remove index file %s: %v", types.ErrIO, path, err)
	}
	return nil
}

// Close flushes and closes the pager, catalog-owned resources and WAL.
func (db *Database) Close() error {
	if err := db.pager.Flush(); err != nil {
		return err
	}
	if err := db.wal.Close(); err != nil {
		return err
	}
	return db.disk.Close()
}
