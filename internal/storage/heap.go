package storage

import (
	"fmt"

	"github.com/cuemby/slotdb/internal/types"
)

// Pager is the buffer pool's contract as seen by a HeapFile or an index:
// fetch/allocate pages and mark them dirty, independent of the eviction
// policy behind it.
type Pager interface {
	FetchPage(table string, id uint64) (*Page, error)
	AllocatePage(table string) (*Page, error)
	MarkDirty(table string, id uint64)
	Flush() error
}

// HeapFile is an append-only sequence of pages belonging to one table,
// accessed exclusively through the pager — there is no separate *.heap
// file alongside the pager-backed table_<id>.tbl file.
type HeapFile struct {
	pager Pager
	table string
}

func NewHeapFile(pager Pager, table string) *HeapFile {
	return &HeapFile{pager: pager, table: table}
}

// NumPages reports how many pages this table currently has.
func (h *HeapFile) NumPages() (uint64, error) {
	dm, ok := h.pager.(interface {
		NumPages(table string) (uint64, error)
	})
	if ok {
		return dm.NumPages(h.table)
	}
	// A pager without NumPages is rejected; the BufferPool always
	// satisfies the interface above.
	return 0, fmt.Errorf("%w: pager does not expose NumPages", types.ErrStorage)
}

// Insert serializes row and appends it to the last page if it fits,
// otherwise allocates a new page.
func (h *HeapFile) Insert(row types.Row) (types.RID, error) {
	tuple := EncodeRow(row)

	n, err := h.NumPages()
	if err != nil {
		return types.RID{}, err
	}

	if n > 0 {
		last := n - 1
		page, err := h.pager.FetchPage(h.table, last)
		if err != nil {
			return types.RID{}, err
		}
		if page.FreeSpace() >= len(tuple)+slotSize {
			slot, err := page.AppendTuple(tuple)
			if err != nil {
				return types.RID{}, err
			}
			h.pager.MarkDirty(h.table, last)
			return types.RID{PageID: last, Slot: slot}, nil
		}
	}

	page, err := h.pager.AllocatePage(h.table)
	if err != nil {
		return types.RID{}, err
	}
	slot, err := page.AppendTuple(tuple)
	if err != nil {
		return types.RID{}, err
	}
	h.pager.MarkDirty(h.table, page.ID)
	return types.RID{PageID: page.ID, Slot: slot}, nil
}

// Get reads the row at rid. Fails if the page is absent, the slot is
// out of range, or the slot has been deleted.
func (h *HeapFile) Get(rid types.RID) (types.Row, error) {
	page, err := h.pager.FetchPage(h.table, rid.PageID)
	if err != nil {
		return types.Row{}, err
	}
	tuple, err := page.TupleBytes(rid.Slot)
	if err != nil {
		return types.Row{}, err
	}
	row, err := DecodeRow(tuple)
	if err != nil {
		return types.Row{}, err
	}
	return row.WithRID(rid), nil
}

// Update implements update as delete + insert; the returned RID may
// differ from the input.
func (h *HeapFile) Update(rid types.RID, row types.Row) (types.RID, error) {
	if err := h.Delete(rid); err != nil {
		return types.RID{}, err
	}
	return h.Insert(row)
}

// Delete marks rid's slot empty without reclaiming space.
func (h *HeapFile) Delete(rid types.RID) error {
	page, err := h.pager.FetchPage(h.table, rid.PageID)
	if err != nil {
		return err
	}
	if err := page.MarkDeleted(rid.Slot); err != nil {
		return err
	}
	h.pager.MarkDirty(h.table, rid.PageID)
	return nil
}

// Scan calls fn for every live (non-deleted) row in page/slot order. An
// error returned by fn stops the scan and is propagated to the caller.
func (h *HeapFile) Scan(fn func(types.Row) error) error {
	n, err := h.NumPages()
	if err != nil {
		return err
	}
	for pid := uint64(0); pid < n; pid++ {
		page, err := h.pager.FetchPage(h.table, pid)
		if err != nil {
			return err
		}
		numSlots := page.NumSlots()
		for slot := uint16(0); slot < numSlots; slot++ {
			if page.IsSlotDeleted(slot) {
				continue
			}
			tuple, err := page.TupleBytes(slot)
			if err != nil {
				return err
			}
			row, err := DecodeRow(tuple)
			if err != nil {
				return err
			}
			rid := types.RID{PageID: pid, Slot: slot}
			if err := fn(row.WithRID(rid)); err != nil {
				return err
			}
		}
	}
	return nil
}
