// Package hashindex implements the static 256-bucket hash index with
// overflow chains.
package hashindex

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"

	"github.com/cuemby/slotdb/internal/btree"
	"github.com/cuemby/slotdb/internal/storage"
	"github.com/cuemby/slotdb/internal/types"
)

const (
	numBuckets     = 256
	entriesPerPage = 40
)

// Index is a file of PageSize pages: page 0 is a header storing the
// current page count, pages 1..=256 are the primary buckets, and any
// page beyond that is an overflow page linked from a bucket or another
// overflow page's tail.
type Index struct {
	path string
	ps   *pageStore
}

// bucketPage is the decoded form of one hash bucket or overflow page.
type bucketPage struct {
	id       uint64
	entries  []entry
	overflow uint64 // 0 = none
}

type entry struct {
	key btree.Key
	rid types.RID
}

func Open(path string) (*Index, error) {
	idx := &Index{path: path}
	ps, err := openStore(path)
	if err != nil {
		return nil, err
	}
	idx.ps = ps

	n, err := ps.numPages()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		header := storage.NewPage(0)
		binary.LittleEndian.PutUint64(header.Bytes()[0:8], numBuckets+1)
		if err := ps.writePage(header); err != nil {
			return nil, err
		}
		for i := uint64(1); i <= numBuckets; i++ {
			page, err := encodeBucket(&bucketPage{id: i})
			if err != nil {
				return nil, err
			}
			if err := ps.writePage(page); err != nil {
				return nil, err
			}
		}
	}
	return idx, nil
}

func (idx *Index) Close() error { return idx.ps.close() }

func bucketFor(key btree.Key) uint64 {
	h := fnv.New64a()
	for _, v := range key {
		var tag byte
		switch v.Kind() {
		case types.KindNull:
			tag = 0
		case types.KindBool:
			tag = 1
		case types.KindInt:
			tag = 2
		case types.KindText:
			tag = 3
		}
		h.Write([]byte{tag})
		h.Write([]byte(v.String()))
	}
	return (h.Sum64() % numBuckets) + 1
}

func encodeBucket(b *bucketPage) (*storage.Page, error) {
	buf := make([]byte, 0, storage.PageSize)
	var scratch [8]byte
	binary.LittleEndian.PutUint64(scratch[:], b.overflow)
	buf = append(buf, scratch[:]...)
	binary.LittleEndian.PutUint32(scratch[:4], uint32(len(b.entries)))
	buf = append(buf, scratch[:4]...)
	for _, e := range b.entries {
		buf = encodeHashKey(buf, e.key)
		binary.LittleEndian.PutUint64(scratch[:], e.rid.PageID)
		buf = append(buf, scratch[:]...)
		binary.LittleEndian.PutUint16(scratch[:2], e.rid.Slot)
		buf = append(buf, scratch[:2]...)
	}
	if len(buf) > storage.PageSize {
		return nil, fmt.Errorf("%w: hash bucket page %d overflowed page size", types.ErrStorage, b.id)
	}
	page := storage.NewPage(b.id)
	copy(page.Bytes(), buf)
	return page, nil
}

func decodeBucket(page *storage.Page) (*bucketPage, error) {
	data := page.Bytes()
	b := &bucketPage{id: page.ID}
	b.overflow = binary.LittleEndian.Uint64(data[0:8])
	count := binary.LittleEndian.Uint32(data[8:12])
	off := 12
	for i := uint32(0); i < count; i++ {
		key, next, err := decodeHashKey(data, off)
		if err != nil {
			return nil, err
		}
		off = next
		pid := binary.LittleEndian.Uint64(data[off : off+8])
		off += 8
		slot := binary.LittleEndian.Uint16(data[off : off+2])
		off += 2
		b.entries = append(b.entries, entry{key: key, rid: types.RID{PageID: pid, Slot: slot}})
	}
	return b, nil
}

func encodeHashKey(buf []byte, key btree.Key) []byte {
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

func decodeHashKey(data []byte, off int) (btree.Key, int, error) {
	n := binary.LittleEndian.Uint32(data[off : off+4])
	off += 4
	key := make(btree.Key, 0, n)
	for i := uint32(0); i < n; i++ {
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
			return nil, 0, fmt.Errorf("%w: unknown hash key tag %d", types.ErrStorage, tag)
		}
	}
	return key, off, nil
}

func keyEqual(a, b btree.Key) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Compare(b[i]) != 0 {
			return false
		}
	}
	return true
}

// Insert walks the bucket's chain; the first page with free capacity
// receives the entry, else a new overflow page is allocated and linked
// from the current tail.
func (idx *Index) Insert(key btree.Key, rid types.RID) error {
	id := bucketFor(key)
	for {
		page, err := idx.ps.readPage(id)
		if err != nil {
			return err
		}
		b, err := decodeBucket(page)
		if err != nil {
			return err
		}
		if len(b.entries) < entriesPerPage {
			b.entries = append(b.entries, entry{key: key, rid: rid})
			encoded, err := encodeBucket(b)
			if err != nil {
				return err
			}
			return idx.ps.writePage(encoded)
		}
		if b.overflow != 0 {
			id = b.overflow
			continue
		}
		overflowPage, err := idx.ps.allocatePage()
		if err != nil {
			return err
		}
		header := storage.NewPage(0)
		binary.LittleEndian.PutUint64(header.Bytes()[0:8], overflowPage.ID+1)
		if err := idx.ps.writePage(header); err != nil {
			return err
		}
		b.overflow = overflowPage.ID
		encoded, err := encodeBucket(b)
		if err != nil {
			return err
		}
		if err := idx.ps.writePage(encoded); err != nil {
			return err
		}
		newBucket := &bucketPage{id: overflowPage.ID, entries: []entry{{key: key, rid: rid}}}
		newEncoded, err := encodeBucket(newBucket)
		if err != nil {
			return err
		}
		return idx.ps.writePage(newEncoded)
	}
}

// Search walks the bucket's chain collecting all exact matches.
func (idx *Index) Search(key btree.Key) ([]types.RID, error) {
	id := bucketFor(key)
	var out []types.RID
	for id != 0 {
		page, err := idx.ps.readPage(id)
		if err != nil {
			return nil, err
		}
		b, err := decodeBucket(page)
		if err != nil {
			return nil, err
		}
		for _, e := range b.entries {
			if keyEqual(e.key, key) {
				out = append(out, e.rid)
			}
		}
		id = b.overflow
	}
	return out, nil
}

// Delete removes the entry from the first page containing the exact
// (key, rid) pair.
func (idx *Index) Delete(key btree.Key, rid types.RID) (bool, error) {
	id := bucketFor(key)
	for id != 0 {
		page, err := idx.ps.readPage(id)
		if err != nil {
			return false, err
		}
		b, err := decodeBucket(page)
		if err != nil {
			return false, err
		}
		for i, e := range b.entries {
			if keyEqual(e.key, key) && e.rid == rid {
				b.entries = append(b.entries[:i], b.entries[i+1:]...)
				encoded, err := encodeBucket(b)
				if err != nil {
					return false, err
				}
				if err := idx.ps.writePage(encoded); err != nil {
					return false, err
				}
				return true, nil
			}
		}
		id = b.overflow
	}
	return false, nil
}
