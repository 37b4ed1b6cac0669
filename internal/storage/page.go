// Package storage implements the slotted-page heap file and the buffer
// pool that caches its pages.
package storage

import (
	"encoding/binary"
	"fmt"

	"github.com/cuemby/slotdb/internal/types"
)

const (
	// PageSize is the fixed page size used by every heap and index file.
	PageSize = 4096

	pageHeaderSize = 4 // num_slots u16 + free_offset u16
	slotSize       = 4 // offset u16 + len u16
)

// Page is one fixed-size slotted page: a header, a slot directory growing
// up from just after the header, and a tuple area growing down from the
// end of the page.
type Page struct {
	ID   uint64
	data [PageSize]byte
}

// NewPage returns a zeroed page with free_offset at the end of the page.
func NewPage(id uint64) *Page {
	p := &Page{ID: id}
	p.setNumSlots(0)
	p.setFreeOffset(PageSize)
	return p
}

// PageFromBytes copies an existing PageSize buffer into a new Page; used
// when a page is loaded from disk.
func PageFromBytes(id uint64, raw []byte) (*Page, error) {
	if len(raw) != PageSize {
		return nil, fmt.Errorf("%w: page %d: expected %d bytes, got %d", types.ErrStorage, id, PageSize, len(raw))
	}
	p := &Page{ID: id}
	copy(p.data[:], raw)
	return p, nil
}

func (p *Page) Bytes() []byte { return p.data[:] }

func (p *Page) numSlots() uint16     { return binary.LittleEndian.Uint16(p.data[0:2]) }
func (p *Page) setNumSlots(n uint16) { binary.LittleEndian.PutUint16(p.data[0:2], n) }
func (p *Page) freeOffset() uint16     { return binary.LittleEndian.Uint16(p.data[2:4]) }
func (p *Page) setFreeOffset(o uint16) { binary.LittleEndian.PutUint16(p.data[2:4], o) }

// NumSlots returns the number of slots ever appended to this page,
// including deleted ones (slot indices are never reused or renumbered).
func (p *Page) NumSlots() uint16 { return p.numSlots() }

func (p *Page) slotOffset(i uint16) int { return pageHeaderSize + int(i)*slotSize }

func (p *Page) readSlot(i uint16) (offset, length uint16) {
	base := p.slotOffset(i)
	offset = binary.LittleEndian.Uint16(p.data[base : base+2])
	length = binary.LittleEndian.Uint16(p.data[base+2 : base+4])
	return
}

func (p *Page) writeSlot(i uint16, offset, length uint16) {
	base := p.slotOffset(i)
	binary.LittleEndian.PutUint16(p.data[base:base+2], offset)
	binary.LittleEndian.PutUint16(p.data[base+2:base+4], length)
}

// FreeSpace returns the bytes available for a new tuple plus its slot.
func (p *Page) FreeSpace() int {
	used := pageHeaderSize + int(p.numSlots())*slotSize
	return int(p.freeOffset()) - used
}

// AppendTuple writes bytes into the tuple area and appends a new slot,
// returning the new slot index. Fails with ErrStorage if the tuple plus
// its slot entry does not fit in the remaining free space.
func (p *Page) AppendTuple(tuple []byte) (uint16, error) {
	need := len(tuple) + slotSize
	if need > p.FreeSpace() {
		return 0, fmt.Errorf("%w: page %d: tuple of %d bytes does not fit (free=%d)", types.ErrStorage, p.ID, len(tuple), p.FreeSpace())
	}
	if int(p.numSlots()) >= 0xFFFF {
		return 0, fmt.Errorf("%w: page %d: slot directory full", types.ErrStorage, p.ID)
	}
	newOffset := int(p.freeOffset()) - len(tuple)
	copy(p.data[newOffset:newOffset+len(tuple)], tuple)
	p.setFreeOffset(uint16(newOffset))

	idx := p.numSlots()
	p.writeSlot(idx, uint16(newOffset), uint16(len(tuple)))
	p.setNumSlots(idx + 1)
	return idx, nil
}

// ReadSlot returns the raw (offset, length) for slot i.
func (p *Page) ReadSlot(i uint16) (offset, length uint16, err error) {
	if i >= p.numSlots() {
		return 0, 0, fmt.Errorf("%w: page %d: slot %d out of range (num_slots=%d)", types.ErrStorage, p.ID, i, p.numSlots())
	}
	o, l := p.readSlot(i)
	return o, l, nil
}

// TupleBytes returns the tuple stored at slot i. Fails if the slot is
// deleted (len == 0) or out of range.
func (p *Page) TupleBytes(i uint16) ([]byte, error) {
	offset, length, err := p.ReadSlot(i)
	if err != nil {
		return nil, err
	}
	if length == 0 {
		return nil, fmt.Errorf("%w: page %d: slot %d is deleted", types.ErrStorage, p.ID, i)
	}
	return p.data[offset : offset+length], nil
}

// MarkDeleted zeroes slot i's length without reclaiming its space.
func (p *Page) MarkDeleted(i uint16) error {
	offset, _, err := p.ReadSlot(i)
	if err != nil {
		return err
	}
	p.writeSlot(i, offset, 0)
	return nil
}

// IsSlotDeleted reports whether slot i has been marked deleted. The
// caller must ensure i < NumSlots.
func (p *Page) IsSlotDeleted(i uint16) bool {
	_, length := p.readSlot(i)
	return length == 0
}
