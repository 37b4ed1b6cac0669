package storage

import (
	"container/list"
	"fmt"

	"github.com/cuemby/slotdb/internal/metrics"
	"github.com/cuemby/slotdb/internal/types"
)

// pageKey identifies a cached page by the table it belongs to and its
// page id; two distinct tables have independent page spaces.
type pageKey struct {
	table string
	id    uint64
}

type bufferEntry struct {
	key  pageKey
	page *Page
}

// BufferPool is a fixed-capacity LRU cache of pages, with a separate
// dirty set so eviction can decide whether to write back without a
// per-entry bit living inside the page itself.
type BufferPool struct {
	disk     *DiskManager
	capacity int

	lru     *list.List
	entries map[pageKey]*list.Element
	dirty   map[pageKey]bool
}

func NewBufferPool(disk *DiskManager, capacity int) *BufferPool {
	if capacity <= 0 {
		capacity = 1
	}
	return &BufferPool{
		disk:     disk,
		capacity: capacity,
		lru:      list.New(),
		entries:  make(map[pageKey]*list.Element),
		dirty:    make(map[pageKey]bool),
	}
}

// FetchPage returns a cached page for (table, id), loading it from disk
// on a miss. Any successful access marks the entry most-recently-used.
func (bp *BufferPool) FetchPage(table string, id uint64) (*Page, error) {
	key := pageKey{table, id}
	if el, ok := bp.entries[key]; ok {
		bp.lru.MoveToFront(el)
		metrics.BufferPoolHits.Inc()
		return el.Value.(*bufferEntry).page, nil
	}
	metrics.BufferPoolMisses.Inc()
	page, err := bp.disk.ReadPage(table, id)
	if err != nil {
		return nil, err
	}
	bp.insert(key, page)
	return page, nil
}

// AllocatePage extends table's file by one page and inserts it into the
// cache marked dirty; pid is file_size / PageSize so allocation is
// monotonic.
func (bp *BufferPool) AllocatePage(table string) (*Page, error) {
	n, err := bp.disk.NumPages(table)
	if err != nil {
		return nil, err
	}
	page := NewPage(n)
	if err := bp.disk.WritePage(table, page); err != nil {
		return nil, err
	}
	key := pageKey{table, n}
	bp.insert(key, page)
	bp.dirty[key] = true
	return page, nil
}

// MarkDirty records that the page at (table, id) was mutated through a
// reference the caller is still holding.
func (bp *BufferPool) MarkDirty(table string, id uint64) {
	bp.dirty[pageKey{table, id}] = true
}

// NumPages delegates to the underlying disk manager so HeapFile and the
// index structures can iterate (page, slot) without a stored header.
func (bp *BufferPool) NumPages(table string) (uint64, error) {
	return bp.disk.NumPages(table)
}

func (bp *BufferPool) insert(key pageKey, page *Page) {
	if el, ok := bp.entries[key]; ok {
		el.Value.(*bufferEntry).page = page
		bp.lru.MoveToFront(el)
		return
	}
	if bp.lru.Len() >= bp.capacity {
		bp.evictOne()
	}
	el := bp.lru.PushFront(&bufferEntry{key: key, page: page})
	bp.entries[key] = el
}

func (bp *BufferPool) evictOne() {
	back := bp.lru.Back()
	if back == nil {
		return
	}
	entry := back.Value.(*bufferEntry)
	if bp.dirty[entry.key] {
		_ = bp.disk.WritePage(entry.key.table, entry.page)
		delete(bp.dirty, entry.key)
	}
	bp.lru.Remove(back)
	delete(bp.entries, entry.key)
	metrics.BufferPoolEvictions.Inc()
}

// Flush writes every dirty cached page back to disk and clears dirty
// flags. After Flush, in-memory contents equal on-disk contents for
// every cached page.
func (bp *BufferPool) Flush() error {
	for key := range bp.dirty {
		el, ok := bp.entries[key]
		if !ok {
			continue
		}
		page := el.Value.(*bufferEntry).page
		if err := bp.disk.WritePage(key.table, page); err != nil {
			return fmt.Errorf("%w: flush %s page %d: %v", types.ErrStorage, key.table, page.ID, err)
		}
	}
	bp.dirty = make(map[pageKey]bool)
	return nil
}

// DropTable evicts every cached page belonging to table without writing
// it back; used by DROP TABLE after the heap file itself is removed.
func (bp *BufferPool) DropTable(table string) {
	for key, el := range bp.entries {
		if key.table != table {
			continue
		}
		bp.lru.Remove(el)
		delete(bp.entries, key)
		delete(bp.dirty, key)
	}
}
