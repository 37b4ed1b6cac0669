// Package exec implements the pull-based iterator tree that runs a
// physical plan: SeqScan, IndexScan, Filter, Project, Sort, Limit,
// NestedLoopJoin, Insert, Update, Delete.
package exec

import (
	"fmt"
	"path/filepath"

	"github.com/cuemby/slotdb/internal/btree"
	"github.com/cuemby/slotdb/internal/catalog"
	"github.com/cuemby/slotdb/internal/hashindex"
	"github.com/cuemby/slotdb/internal/storage"
	"github.com/cuemby/slotdb/internal/wal"
)

// Context exposes the catalog (read-only), pager (exclusive), WAL
// (exclusive) and the data directory to every executor in a statement.
// No executor may be reentered concurrently while a Context is in use.
type Context struct {
	Catalog *catalog.Catalog
	Pager   *storage.BufferPool
	Wal     *wal.Wal
	DataDir string

	heaps    map[uint64]*storage.HeapFile
	btrees   map[uint64]*btree.BTree
	hashes   map[uint64]*hashindex.Index
}

func NewContext(cat *catalog.Catalog, pager *storage.BufferPool, w *wal.Wal, dataDir string) *Context {
	return &Context{
		Catalog: cat,
		Pager:   pager,
		Wal:     w,
		DataDir: dataDir,
		heaps:   make(map[uint64]*storage.HeapFile),
		btrees:  make(map[uint64]*btree.BTree),
		hashes:  make(map[uint64]*hashindex.Index),
	}
}

func (c *Context) Heap(tableID uint64, tableName string) *storage.HeapFile {
	if h, ok := c.heaps[tableID]; ok {
		return h
	}
	h := storage.NewHeapFile(c.Pager, fmt.Sprintf("%d", tableID))
	c.heaps[tableID] = h
	_ = tableName
	return h
}

func (c *Context) BTree(indexID uint64, path string) (*btree.BTree, error) {
	if t, ok := c.btrees[indexID]; ok {
		return t, nil
	}
	t, err := btree.Open(path)
	if err != nil {
		return nil, err
	}
	c.btrees[indexID] = t
	return t, nil
}

func (c *Context) Hash(indexID uint64, path string) (*hashindex.Index, error) {
	if h, ok := c.hashes[indexID]; ok {
		return h, nil
	}
	h, err := hashindex.Open(path)
	if err != nil {
		return nil, err
	}
	c.hashes[indexID] = h
	return h, nil
}

// IndexFilePath is the canonical path for an index's data file, named
// by index id under the data directory so it can be created on CREATE
// INDEX and deleted on DROP INDEX.
func IndexFilePath(dataDir string, indexID uint64) string {
	return filepath.Join(dataDir, fmt.Sprintf("index_%d.idx", indexID))
}

// Close releases every index and heap handle this context opened.
func (c *Context) Close() error {
	var firstErr error
	for _, t := range c.btrees {
		if err := t.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	for _, h := range c.hashes {
		if err := h.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
