// Package btree implements the page-based, variable-fanout B+Tree
// secondary index with sibling-linked leaves for range scans.
package btree

import (
	"fmt"
	"sort"

	"github.com/cuemby/slotdb/internal/types"
)

// BTree is a single file of PageSize pages. Page 0 is a dedicated header
// that records the current root page id and never changes identity —
// this is what lets the tree survive a root split across a close/reopen,
// unlike an implementation that always reloads the root from page 0.
type BTree struct {
	ps   *pageStore
	root uint64
}

// Open opens path, initializing a fresh empty tree if it does not exist.
func Open(path string) (*BTree, error) {
	ps, err := openPageStore(path)
	if err != nil {
		return nil, err
	}
	n, err := ps.numPages()
	if err != nil {
		return nil, err
	}
	t := &BTree{ps: ps}
	if n == 0 {
		// Page 0 is reserved for the header alone; allocate it first so
		// it can never be handed out as a node page, then allocate the
		// root leaf on the next page.
		headerPage, err := ps.allocatePage()
		if err != nil {
			return nil, err
		}
		rootPage, err := ps.allocatePage()
		if err != nil {
			return nil, err
		}
		root := &node{id: rootPage.ID, isLeaf: true, nextLeaf: noPage}
		encoded, err := encodeNode(root)
		if err != nil {
			return nil, err
		}
		if err := ps.writePage(encoded); err != nil {
			return nil, err
		}
		header := &headerNode{rootPageID: rootPage.ID}
		headerPg := encodeHeader(header)
		headerPg.ID = headerPage.ID
		if err := ps.writePage(headerPg); err != nil {
			return nil, err
		}
		t.root = rootPage.ID
		return t, nil
	}
	headerPage, err := ps.readPage(0)
	if err != nil {
		return nil, err
	}
	t.root = decodeHeader(headerPage).rootPageID
	return t, nil
}

func (t *BTree) Close() error { return t.ps.close() }

func (t *BTree) loadNode(id uint64) (*node, error) {
	page, err := t.ps.readPage(id)
	if err != nil {
		return nil, err
	}
	return decodeNode(page)
}

func (t *BTree) saveNode(n *node) error {
	page, err := encodeNode(n)
	if err != nil {
		return err
	}
	return t.ps.writePage(page)
}

func (t *BTree) saveHeader() error {
	return t.ps.writePage(encodeHeader(&headerNode{rootPageID: t.root}))
}

// childIndex implements partition_point(k <= target): the number of
// keys <= target, which is the index of the child covering target. A
// key equal to a separator therefore lands in the right child.
func childIndex(keys []Key, target Key) int {
	return sort.Search(len(keys), func(i int) bool {
		return keys[i].compare(target) > 0
	})
}

type pathStep struct {
	nodeID uint64
	idx    int
}

// descendToLeaf walks from the root to the leaf that would contain key,
// recording the path for split propagation. A nil key descends via the
// leftmost child at every level.
func (t *BTree) descendToLeaf(key Key) (*node, []pathStep, error) {
	var path []pathStep
	id := t.root
	for {
		n, err := t.loadNode(id)
		if err != nil {
			return nil, nil, err
		}
		if n.isLeaf {
			return n, path, nil
		}
		var idx int
		if key == nil {
			idx = 0
		} else {
			idx = childIndex(n.keys, key)
		}
		path = append(path, pathStep{nodeID: id, idx: idx})
		id = n.children[idx]
	}
}

// Search returns all RIDs whose key equals target, including duplicates
// that may span a leaf boundary.
func (t *BTree) Search(target Key) ([]types.RID, error) {
	return t.RangeScan(target, target)
}

// RangeScan finds the leaf containing low (or the leftmost leaf if low
// is nil) and scans forward via next_leaf, collecting entries with
// low <= k <= high (nil bounds are open), stopping at the first key
// past high.
func (t *BTree) RangeScan(low, high Key) ([]types.RID, error) {
	// Descend by the first key >= low rather than childIndex's first key
	// > low: duplicates of a separator can remain in the child to its
	// left, and starting there keeps them in the result.
	var leaf *node
	id := t.root
	for {
		n, err := t.loadNode(id)
		if err != nil {
			return nil, err
		}
		if n.isLeaf {
			leaf = n
			break
		}
		idx := 0
		if low != nil {
			idx = sort.Search(len(n.keys), func(i int) bool { return n.keys[i].compare(low) >= 0 })
		}
		id = n.children[idx]
	}

	var err error
	var out []types.RID
	for {
		for _, e := range leaf.entries {
			if low != nil && e.key.compare(low) < 0 {
				continue
			}
			if high != nil && e.key.compare(high) > 0 {
				return out, nil
			}
			out = append(out, e.rid)
		}
		if leaf.nextLeaf == noPage {
			return out, nil
		}
		leaf, err = t.loadNode(leaf.nextLeaf)
		if err != nil {
			return nil, err
		}
	}
}

// Insert descends to the target leaf, inserts in sorted position
// (after any existing equal keys, preserving insertion order among
// duplicates), and splits on overflow, propagating separators upward.
func (t *BTree) Insert(key Key, rid types.RID) error {
	leaf, path, err := t.descendToLeaf(key)
	if err != nil {
		return err
	}

	pos := sort.Search(len(leaf.entries), func(i int) bool {
		return leaf.entries[i].key.compare(key) > 0
	})
	leaf.entries = append(leaf.entries, leafEntry{})
	copy(leaf.entries[pos+1:], leaf.entries[pos:])
	leaf.entries[pos] = leafEntry{key: key, rid: rid}

	if len(leaf.entries) <= maxLeafEntries {
		return t.saveNode(leaf)
	}
	return t.splitLeafAndPropagate(leaf, path)
}

func (t *BTree) splitLeafAndPropagate(leaf *node, path []pathStep) error {
	mid := len(leaf.entries) / 2
	rightEntries := append([]leafEntry(nil), leaf.entries[mid:]...)
	leftEntries := append([]leafEntry(nil), leaf.entries[:mid]...)

	rightPage, err := t.ps.allocatePage()
	if err != nil {
		return err
	}
	right := &node{id: rightPage.ID, isLeaf: true, entries: rightEntries, nextLeaf: leaf.nextLeaf}
	left := &node{id: leaf.id, isLeaf: true, entries: leftEntries, nextLeaf: right.id}

	separator := rightEntries[0].key

	if err := t.saveNode(right); err != nil {
		return err
	}
	if err := t.saveNode(left); err != nil {
		return err
	}

	return t.propagateSplit(path, separator, right.id)
}

// propagateSplit inserts (separator, newChild) into the parent named by
// the last path step, splitting that internal node in turn if it
// overflows, up to and including a root split.
func (t *BTree) propagateSplit(path []pathStep, separator Key, newChild uint64) error {
	if len(path) == 0 {
		return t.splitRoot(separator, newChild)
	}

	last := path[len(path)-1]
	parent, err := t.loadNode(last.nodeID)
	if err != nil {
		return err
	}

	insertAt := last.idx
	parent.keys = append(parent.keys, nil)
	copy(parent.keys[insertAt+1:], parent.keys[insertAt:])
	parent.keys[insertAt] = separator

	parent.children = append(parent.children, 0)
	copy(parent.children[insertAt+2:], parent.children[insertAt+1:])
	parent.children[insertAt+1] = newChild

	if len(parent.keys) <= maxInternalKeys {
		return t.saveNode(parent)
	}
	return t.splitInternalAndPropagate(parent, path[:len(path)-1])
}

func (t *BTree) splitInternalAndPropagate(n *node, path []pathStep) error {
	mid := len(n.keys) / 2
	promoted := n.keys[mid]

	leftKeys := append([]Key(nil), n.keys[:mid]...)
	rightKeys := append([]Key(nil), n.keys[mid+1:]...)
	leftChildren := append([]uint64(nil), n.children[:mid+1]...)
	rightChildren := append([]uint64(nil), n.children[mid+1:]...)

	rightPage, err := t.ps.allocatePage()
	if err != nil {
		return err
	}
	right := &node{id: rightPage.ID, isLeaf: false, keys: rightKeys, children: rightChildren}
	left := &node{id: n.id, isLeaf: false, keys: leftKeys, children: leftChildren}

	if err := t.saveNode(right); err != nil {
		return err
	}
	if err := t.saveNode(left); err != nil {
		return err
	}

	return t.propagateSplit(path, promoted, right.id)
}

// splitRoot allocates a fresh root page carrying the promoted separator
// and the two children, and updates the persisted root pointer.
func (t *BTree) splitRoot(separator Key, rightChild uint64) error {
	oldRoot := t.root
	rootPage, err := t.ps.allocatePage()
	if err != nil {
		return err
	}
	newRoot := &node{
		id:       rootPage.ID,
		isLeaf:   false,
		keys:     []Key{separator},
		children: []uint64{oldRoot, rightChild},
	}
	if err := t.saveNode(newRoot); err != nil {
		return err
	}
	t.root = rootPage.ID
	return t.saveHeader()
}

// Delete removes one matching (key, rid) entry from its leaf. No
// rebalancing or merging is performed; a node may become empty except
// the root, which is an accepted outcome of this design.
func (t *BTree) Delete(key Key, rid types.RID) (bool, error) {
	leaf, _, err := t.descendToLeaf(key)
	if err != nil {
		return false, err
	}
	for i, e := range leaf.entries {
		if e.key.compare(key) == 0 && e.rid == rid {
			leaf.entries = append(leaf.entries[:i], leaf.entries[i+1:]...)
			if err := t.saveNode(leaf); err != nil {
				return false, err
			}
			return true, nil
		}
	}
	return false, nil
}

// KeyFromValues builds a Key from values as given; it performs no check
// on the components' kinds and accepts Null components.
func KeyFromValues(values ...types.Value) Key {
	return Key(values)
}

func (t *BTree) String() string {
	return fmt.Sprintf("BTree{root=%d}", t.root)
}
