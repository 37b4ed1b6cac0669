// Package catalog implements the in-memory tables/columns/indexes
// metadata store, persisted as a single JSON document written atomically
// (write-temp-then-rename) so a crash never leaves a torn catalog file.
package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	natomic "github.com/natefinch/atomic"

	"github.com/cuemby/slotdb/internal/types"
)

// IndexKind enumerates the index structures the catalog can record.
// Bitmap and Trie are recorded for type-restriction purposes only; this
// implementation builds BTree and Hash indexes.
type IndexKind string

const (
	IndexBTree  IndexKind = "btree"
	IndexHash   IndexKind = "hash"
	IndexBitmap IndexKind = "bitmap"
	IndexTrie   IndexKind = "trie"
)

var reservedTableNames = map[string]bool{
	"_catalog":     true,
	"sqlite_master": true,
}

const reservedIndexName = "_primary"

// Column describes one table column.
type Column struct {
	Name    string       `json:"name"`
	SQLType types.SQLType `json:"sql_type"`
}

// Index describes one secondary (or primary-key) index.
type Index struct {
	ID      uint64    `json:"id"`
	Name    string    `json:"name"`
	TableID uint64    `json:"table_id"`
	Kind    IndexKind `json:"kind"`
	// Columns are ordinals into the owning table's Columns slice, in
	// index key order.
	Columns []int `json:"columns"`
	// FilePath is the on-disk path of this index's page file, owned and
	// created/deleted in lockstep with CREATE INDEX / DROP INDEX.
	FilePath string `json:"file_path"`
}

// Table describes one table's schema, optional primary key, and indexes.
type Table struct {
	ID            uint64   `json:"id"`
	Name          string   `json:"name"`
	Columns       []Column `json:"columns"`
	PrimaryKey    []int    `json:"primary_key,omitempty"`
	PrimaryKeyIdx uint64   `json:"primary_key_index_id,omitempty"`
	HasPrimaryKey bool     `json:"has_primary_key"`
	Indexes       []uint64 `json:"indexes"`
}

func (t *Table) ColumnOrdinal(name string) (int, bool) {
	name = strings.ToLower(name)
	for i, c := range t.Columns {
		if strings.ToLower(c.Name) == name {
			return i, true
		}
	}
	return -1, false
}

// document is the on-disk JSON shape.
type document struct {
	NextTableID uint64  `json:"next_table_id"`
	NextIndexID uint64  `json:"next_index_id"`
	Tables      []Table `json:"tables"`
	Indexes     []Index `json:"indexes"`
}

// Catalog is the in-memory metadata store. All mutation goes through its
// exported methods, which keep the name/id lookup maps in sync and
// persist via Save when the caller explicitly asks.
type Catalog struct {
	mu   sync.RWMutex
	path string

	nextTableID uint64
	nextIndexID uint64

	tables     []Table
	indexes    []Index
	byName     map[string]int // table name -> index into tables
	byID       map[uint64]int // table id -> index into tables
	idxByName  map[string]int // index name -> index into indexes
	idxByID    map[uint64]int // index id -> index into indexes
}

// Open loads path if it exists, otherwise starts an empty catalog.
func Open(path string) (*Catalog, error) {
	c := &Catalog{path: path, nextTableID: 1, nextIndexID: 1}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			c.rebuildIndexes()
			return c, nil
		}
		return nil, fmt.Errorf("%w: read catalog %s: %v", types.ErrCatalog, path, err)
	}
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: decode catalog %s: %v", types.ErrCatalog, path, err)
	}
	c.nextTableID = doc.NextTableID
	c.nextIndexID = doc.NextIndexID
	c.tables = doc.Tables
	c.indexes = doc.Indexes
	if c.nextTableID == 0 {
		c.nextTableID = 1
	}
	if c.nextIndexID == 0 {
		c.nextIndexID = 1
	}
	c.rebuildIndexes()
	return c, nil
}

// rebuildIndexes recomputes the name/id lookup maps; called after every
// mutation rather than maintained incrementally, matching the source
// engine's rebuild-on-mutation approach (the catalog is small and
// changes are rare).
func (c *Catalog) rebuildIndexes() {
	c.byName = make(map[string]int, len(c.tables))
	c.byID = make(map[uint64]int, len(c.tables))
	for i, t := range c.tables {
		c.byName[strings.ToLower(t.Name)] = i
		c.byID[t.ID] = i
	}
	c.idxByName = make(map[string]int, len(c.indexes))
	c.idxByID = make(map[uint64]int, len(c.indexes))
	for i, idx := range c.indexes {
		c.idxByName[strings.ToLower(idx.Name)] = i
		c.idxByID[idx.ID] = i
	}
}

// Save serializes the catalog and writes it atomically (temp file then
// rename) so a crash mid-write never leaves a torn catalog.json.
func (c *Catalog) Save() error {
	c.mu.RLock()
	doc := document{
		NextTableID: c.nextTableID,
		NextIndexID: c.nextIndexID,
		Tables:      c.tables,
		Indexes:     c.indexes,
	}
	c.mu.RUnlock()

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode catalog: %v", types.ErrCatalog, err)
	}
	if err := natomic.WriteFile(c.path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("%w: write catalog %s: %v", types.ErrCatalog, c.path, err)
	}
	return nil
}

// CreateTable registers a new table. Fails with ErrCatalog on a reserved
// or duplicate name, duplicate column name, or a primary key that names
// an unknown or duplicate column.
func (c *Catalog) CreateTable(name string, columns []Column, primaryKey []int) (Table, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	lname := strings.ToLower(name)
	if reservedTableNames[lname] {
		return Table{}, fmt.Errorf("%w: table name %q is reserved", types.ErrCatalog, name)
	}
	if _, ok := c.byName[lname]; ok {
		return Table{}, fmt.Errorf("%w: table %q already exists", types.ErrCatalog, name)
	}
	seen := make(map[string]bool, len(columns))
	for _, col := range columns {
		lc := strings.ToLower(col.Name)
		if seen[lc] {
			return Table{}, fmt.Errorf("%w: duplicate column %q in table %q", types.ErrCatalog, col.Name, name)
		}
		seen[lc] = true
	}
	pkSeen := make(map[int]bool, len(primaryKey))
	for _, ord := range primaryKey {
		if ord < 0 || ord >= len(columns) {
			return Table{}, fmt.Errorf("%w: primary key references unknown column ordinal %d", types.ErrCatalog, ord)
		}
		if pkSeen[ord] {
			return Table{}, fmt.Errorf("%w: duplicate column in primary key", types.ErrCatalog)
		}
		pkSeen[ord] = true
	}

	table := Table{
		ID:            c.nextTableID,
		Name:          name,
		Columns:       columns,
		PrimaryKey:    primaryKey,
		HasPrimaryKey: len(primaryKey) > 0,
	}
	c.nextTableID++
	c.tables = append(c.tables, table)
	c.rebuildIndexes()
	return c.tables[len(c.tables)-1], nil
}

// SetPrimaryKeyIndex records the automatically-created PK index id for a
// table, once the caller has built it.
func (c *Catalog) SetPrimaryKeyIndex(tableID, indexID uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	i, ok := c.byID[tableID]
	if !ok {
		return fmt.Errorf("%w: unknown table id %d", types.ErrCatalog, tableID)
	}
	c.tables[i].PrimaryKeyIdx = indexID
	c.tables[i].Indexes = append(c.tables[i].Indexes, indexID)
	return nil
}

// DropTable removes table metadata (and the IDs of any indexes it owned,
// returned for the caller to delete their files).
func (c *Catalog) DropTable(name string) (Table, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	i, ok := c.byName[strings.ToLower(name)]
	if !ok {
		return Table{}, fmt.Errorf("%w: unknown table %q", types.ErrCatalog, name)
	}
	table := c.tables[i]
	c.tables = append(c.tables[:i:i], c.tables[i+1:]...)

	remaining := c.indexes[:0]
	for _, idx := range c.indexes {
		if idx.TableID == table.ID {
			continue
		}
		remaining = append(remaining, idx)
	}
	c.indexes = remaining
	c.rebuildIndexes()
	return table, nil
}

func (c *Catalog) TableByName(name string) (Table, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	i, ok := c.byName[strings.ToLower(name)]
	if !ok {
		return Table{}, false
	}
	return c.tables[i], true
}

// Tables returns a snapshot copy of every table's metadata, ordered by
// creation order. Used by Raft snapshot/restore and administrative tools;
// not on the hot query path.
func (c *Catalog) Tables() []Table {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Table, len(c.tables))
	copy(out, c.tables)
	return out
}

func (c *Catalog) TableByID(id uint64) (Table, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	i, ok := c.byID[id]
	if !ok {
		return Table{}, false
	}
	return c.tables[i], true
}

// CreateIndex registers a new index. Fails on reserved/duplicate name,
// empty column list, duplicate column, or a column type incompatible
// with the index kind.
func (c *Catalog) CreateIndex(name string, table Table, columns []int, kind IndexKind, filePath string) (Index, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	lname := strings.ToLower(name)
	if lname == reservedIndexName {
		return Index{}, fmt.Errorf("%w: index name %q is reserved", types.ErrCatalog, name)
	}
	if _, ok := c.idxByName[lname]; ok {
		return Index{}, fmt.Errorf("%w: index %q already exists", types.ErrCatalog, name)
	}
	if len(columns) == 0 {
		return Index{}, fmt.Errorf("%w: index %q has no columns", types.ErrCatalog, name)
	}
	seen := make(map[int]bool, len(columns))
	for _, ord := range columns {
		if ord < 0 || ord >= len(table.Columns) {
			return Index{}, fmt.Errorf("%w: index %q references unknown column ordinal %d", types.ErrCatalog, name, ord)
		}
		if seen[ord] {
			return Index{}, fmt.Errorf("%w: duplicate column in index %q", types.ErrCatalog, name)
		}
		seen[ord] = true
		if err := checkIndexType(kind, table.Columns[ord].SQLType); err != nil {
			return Index{}, err
		}
	}

	idx := Index{
		ID:       c.nextIndexID,
		Name:     name,
		TableID:  table.ID,
		Kind:     kind,
		Columns:  columns,
		FilePath: filePath,
	}
	c.nextIndexID++
	c.indexes = append(c.indexes, idx)
	if ti, ok := c.byID[table.ID]; ok {
		c.tables[ti].Indexes = append(c.tables[ti].Indexes, idx.ID)
	}
	c.rebuildIndexes()
	return idx, nil
}

func checkIndexType(kind IndexKind, t types.SQLType) error {
	switch kind {
	case IndexBTree, IndexHash:
		if t == types.TypeInt || t == types.TypeText || t == types.TypeBool {
			return nil
		}
		return fmt.Errorf("%w: %s index does not support column type %s", types.ErrCatalog, kind, t)
	case IndexBitmap:
		if t != types.TypeBool {
			return fmt.Errorf("%w: bitmap index requires a bool column", types.ErrCatalog)
		}
		return nil
	case IndexTrie:
		if t != types.TypeText {
			return fmt.Errorf("%w: trie index requires a text column", types.ErrCatalog)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown index kind %q", types.ErrCatalog, kind)
	}
}

func (c *Catalog) DropIndex(name string) (Index, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	i, ok := c.idxByName[strings.ToLower(name)]
	if !ok {
		return Index{}, fmt.Errorf("%w: unknown index %q", types.ErrCatalog, name)
	}
	idx := c.indexes[i]
	c.indexes = append(c.indexes[:i:i], c.indexes[i+1:]...)
	if ti, ok := c.byID[idx.TableID]; ok {
		kept := c.tables[ti].Indexes[:0]
		for _, id := range c.tables[ti].Indexes {
			if id != idx.ID {
				kept = append(kept, id)
			}
		}
		c.tables[ti].Indexes = kept
	}
	c.rebuildIndexes()
	return idx, nil
}

// SetIndexFilePath records the final on-disk path for an index once its
// id (and therefore its canonical path) is known.
func (c *Catalog) SetIndexFilePath(id uint64, path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	i, ok := c.idxByID[id]
	if !ok {
		return fmt.Errorf("%w: unknown index id %d", types.ErrCatalog, id)
	}
	c.indexes[i].FilePath = path
	return nil
}

func (c *Catalog) IndexByID(id uint64) (Index, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	i, ok := c.idxByID[id]
	if !ok {
		return Index{}, false
	}
	return c.indexes[i], true
}

func (c *Catalog) IndexByName(name string) (Index, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	i, ok := c.idxByName[strings.ToLower(name)]
	if !ok {
		return Index{}, false
	}
	return c.indexes[i], true
}

// IndexesOnColumn returns indexes on table whose key is exactly the
// single given column ordinal, used by the planner's access-method
// selection.
func (c *Catalog) IndexesOnColumn(tableID uint64, ordinal int) []Index {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []Index
	for _, idx := range c.indexes {
		if idx.TableID == tableID && len(idx.Columns) == 1 && idx.Columns[0] == ordinal {
			out = append(out, idx)
		}
	}
	return out
}
