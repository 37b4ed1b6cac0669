package btree

import (
	"encoding/binary"
	"fmt"

	"github.com/cuemby/slotdb/internal/storage"
	"github.com/cuemby/slotdb/internal/types"
)

// Key is a composite index key: an ordered tuple of Values, compared
// lexicographically component by component.
type Key []types.Value

func (k Key) compare(o Key) int {
	n := len(k)
	if len(o) < n {
		n = len(o)
	}
	for i := 0; i < n; i++ {
		if c := k[i].Compare(o[i]); c != 0 {
			return c
		}
	}
	return len(k) - len(o)
}

type leafEntry struct {
	key Key
	rid types.RID
}

const (
	nodeLeaf     byte = 0
	nodeInternal byte = 1

	noPage = ^uint64(0)

	maxLeafEntries     = 100
	maxInternalKeys    = 100
)

// node is the decoded in-memory form of one page: either a leaf or
// an internal node. Exactly one node serializes into one PageSize page;
// a node too large to encode is a hard failure rather than a silent
// rebalance, matching the design's fail-hard contract.
type node struct {
	id       uint64
	isLeaf   bool
	entries  []leafEntry // leaf only
	nextLeaf uint64      // leaf only; noPage if none

	keys     []Key    // internal only, len = len(children)-1
	children []uint64 // internal only
}

func encodeKey(buf []byte, key Key) []byte {
	var scratch [8]byte
	binary.LittleEndian.PutUint32(scratch[:4], uint32(len(key)))
	buf = append(buf, scratch[:4]...)
	for _, v := range key {
		switch v.Kind() {
		case types.KindNull:
			buf = append(buf, 0)
		case types.KindBool:
			buf = append(buf, 1)
			if v.Bool() {
				buf = append(buf, 1)
			} else {
				buf = append(buf, 0)
			}
		case types.KindInt:
			buf = append(buf, 2)
			binary.LittleEndian.PutUint64(scratch[:8], uint64(v.Int()))
			buf = append(buf, scratch[:8]...)
		case types.KindText:
			buf = append(buf, 3)
			s := v.Text()
			binary.LittleEndian.PutUint32(scratch[:4], uint32(len(s)))
			buf = append(buf, scratch[:4]...)
			buf = append(buf, s...)
		}
	}
	return buf
}

func decodeKey(data []byte, off int) (Key, int, error) {
	if off+4 > len(data) {
		return nil, 0, fmt.Errorf("%w: truncated key length", types.ErrStorage)
	}
	n := binary.LittleEndian.Uint32(data[off : off+4])
	off += 4
	key := make(Key, 0, n)
	for i := uint32(0); i < n; i++ {
		if off >= len(data) {
			return nil, 0, fmt.Errorf("%w: truncated key value", types.ErrStorage)
		}
		tag := data[off]
		off++
		switch tag {
		case 0:
			key = append(key, types.NullValue())
		case 1:
			key = append(key, types.BoolValue(data[off] != 0))
			off++
		case 2:
			key = append(key, types.IntValue(int64(binary.LittleEndian.Uint64(data[off:off+8]))))
			off += 8
		case 3:
			l := binary.LittleEndian.Uint32(data[off : off+4])
			off += 4
			key = append(key, types.TextValue(string(data[off:off+int(l)])))
			off += int(l)
		default:
			return nil, 0, fmt.Errorf("%w: unknown key tag %d", types.ErrStorage, tag)
		}
	}
	return key, off, nil
}

// encodeNode serializes n into a full PageSize page, failing if the
// encoding would overflow it.
func encodeNode(n *node) (*storage.Page, error) {
	buf := make([]byte, 0, storage.PageSize)
	var scratch [8]byte
	if n.isLeaf {
		buf = append(buf, nodeLeaf)
		binary.LittleEndian.PutUint64(scratch[:], n.nextLeaf)
		buf = append(buf, scratch[:]...)
		binary.LittleEndian.PutUint32(scratch[:4], uint32(len(n.entries)))
		buf = append(buf, scratch[:4]...)
		for _, e := range n.entries {
			buf = encodeKey(buf, e.key)
			binary.LittleEndian.PutUint64(scratch[:], e.rid.PageID)
			buf = append(buf, scratch[:]...)
			binary.LittleEndian.PutUint16(scratch[:2], e.rid.Slot)
			buf = append(buf, scratch[:2]...)
		}
	} else {
		buf = append(buf, nodeInternal)
		binary.LittleEndian.PutUint32(scratch[:4], uint32(len(n.keys)))
		buf = append(buf, scratch[:4]...)
		for _, k := range n.keys {
			buf = encodeKey(buf, k)
		}
		binary.LittleEndian.PutUint32(scratch[:4], uint32(len(n.children)))
		buf = append(buf, scratch[:4]...)
		for _, c := range n.children {
			binary.LittleEndian.PutUint64(scratch[:], c)
			buf = append(buf, scratch[:]...)
		}
	}
	if len(buf) > storage.PageSize {
		return nil, fmt.Errorf("%w: btree node %d serializes to %d bytes, exceeds page size %d", types.ErrStorage, n.id, len(buf), storage.PageSize)
	}
	page := storage.NewPage(n.id)
	copy(page.Bytes(), buf)
	return page, nil
}

func decodeNode(page *storage.Page) (*node, error) {
	data := page.Bytes()
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty index page %d", types.ErrStorage, page.ID)
	}
	n := &node{id: page.ID}
	off := 1
	switch data[0] {
	case nodeLeaf:
		n.isLeaf = true
		n.nextLeaf = binary.LittleEndian.Uint64(data[off : off+8])
		off += 8
		count := binary.LittleEndian.Uint32(data[off : off+4])
		off += 4
		n.entries = make([]leafEntry, 0, count)
		for i := uint32(0); i < count; i++ {
			key, next, err := decodeKey(data, off)
			if err != nil {
				return nil, err
			}
			off = next
			pid := binary.LittleEndian.Uint64(data[off : off+8])
			off += 8
			slot := binary.LittleEndian.Uint16(data[off : off+2])
			off += 2
			n.entries = append(n.entries, leafEntry{key: key, rid: types.RID{PageID: pid, Slot: slot}})
		}
	case nodeInternal:
		n.isLeaf = false
		keyCount := binary.LittleEndian.Uint32(data[off : off+4])
		off += 4
		n.keys = make([]Key, 0, keyCount)
		for i := uint32(0); i < keyCount; i++ {
			key, next, err := decodeKey(data, off)
			if err != nil {
				return nil, err
			}
			off = next
			n.keys = append(n.keys, key)
		}
		childCount := binary.LittleEndian.Uint32(data[off : off+4])
		off += 4
		n.children = make([]uint64, 0, childCount)
		for i := uint32(0); i < childCount; i++ {
			n.children = append(n.children, binary.LittleEndian.Uint64(data[off:off+8]))
			off += 8
		}
	default:
		return nil, fmt.Errorf("%w: unknown btree node tag %d at page %d", types.ErrStorage, data[0], page.ID)
	}
	return n, nil
}

// headerNode is the dedicated page-0 header that never changes identity
// and records the current root page id. This replaces the source
// engine's behavior of always reloading the root from page 0, which is
// a correctness gap across reopens once a root split has occurred.
type headerNode struct {
	rootPageID uint64
}

func encodeHeader(h *headerNode) *storage.Page {
	page := storage.NewPage(0)
	binary.LittleEndian.PutUint64(page.Bytes()[0:8], h.rootPageID)
	return page
}

func decodeHeader(page *storage.Page) *headerNode {
	return &headerNode{rootPageID: binary.LittleEndian.Uint64(page.Bytes()[0:8])}
}
