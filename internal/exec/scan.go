package exec

import (
	"fmt"

	"github.com/cuemby/slotdb/internal/btree"
	"github.com/cuemby/slotdb/internal/catalog"
	"github.com/cuemby/slotdb/internal/planner"
	"github.com/cuemby/slotdb/internal/types"
)

// SeqScanExec iterates (page, slot) ascending over a table's heap file,
// skipping deleted slots explicitly via the page header's slot count —
// no substring matching on error messages. Every row carries its RID
// regardless of whether the caller needs it.
type SeqScanExec struct {
	ctx     *Context
	tableID uint64
	cols    []string

	rows []types.Row
	pos  int
}

func NewSeqScanExec(ctx *Context, n *planner.SeqScan) *SeqScanExec {
	return &SeqScanExec{ctx: ctx, tableID: n.TableID, cols: n.Cols}
}

func (e *SeqScanExec) Schema() []string { return e.cols }

func (e *SeqScanExec) Open() error {
	e.rows = nil
	e.pos = 0
	heap := e.ctx.Heap(e.tableID, "")
	return heap.Scan(func(row types.Row) error {
		e.rows = append(e.rows, row)
		return nil
	})
}

func (e *SeqScanExec) Next() (types.Row, bool, error) {
	if e.pos >= len(e.rows) {
		return types.Row{}, false, nil
	}
	row := e.rows[e.pos]
	e.pos++
	return row, true, nil
}

func (e *SeqScanExec) Close() error { return nil }

// IndexScanExec probes an index for matching RIDs and fetches each row
// from the heap. The Filter above it rechecks the predicate; this
// executor does not enforce it itself.
type IndexScanExec struct {
	ctx  *Context
	node *planner.IndexScan

	rows []types.Row
	pos  int
}

func NewIndexScanExec(ctx *Context, n *planner.IndexScan) *IndexScanExec {
	return &IndexScanExec{ctx: ctx, node: n}
}

func (e *IndexScanExec) Schema() []string { return e.node.Cols }

func (e *IndexScanExec) Open() error {
	e.rows = nil
	e.pos = 0

	idx, ok := e.ctx.Catalog.IndexByName(e.node.IndexName)
	if !ok {
		return fmt.Errorf("%w: unknown index %q", types.ErrExecutor, e.node.IndexName)
	}
	path := IndexFilePath(e.ctx.DataDir, idx.ID)

	var rids []types.RID
	var err error
	switch idx.Kind {
	case catalog.IndexBTree:
		bt, openErr := e.ctx.BTree(idx.ID, path)
		if openErr != nil {
			return openErr
		}
		low, high, probeErr := e.bounds()
		if probeErr != nil {
			return probeErr
		}
		if e.node.Predicate.Kind == planner.PredEq {
			rids, err = bt.Search(low)
		} else {
			rids, err = bt.RangeScan(low, high)
		}
	case catalog.IndexHash:
		h, openErr := e.ctx.Hash(idx.ID, path)
		if openErr != nil {
			return openErr
		}
		low, _, probeErr := e.bounds()
		if probeErr != nil {
			return probeErr
		}
		rids, err = h.Search(low)
	default:
		return fmt.Errorf("%w: index kind %s is not scannable", types.ErrExecutor, idx.Kind)
	}
	if err != nil {
		return err
	}

	heap := e.ctx.Heap(e.node.TableID, e.node.TableName)
	for _, rid := range rids {
		row, err := heap.Get(rid)
		if err != nil {
			continue // row was deleted since the index entry was written
		}
		e.rows = append(e.rows, row)
	}
	return nil
}

func (e *IndexScanExec) bounds() (btree.Key, btree.Key, error) {
	empty := types.Row{}
	p := e.node.Predicate
	switch p.Kind {
	case planner.PredEq:
		v, err := p.Eq.Eval(empty)
		if err != nil {
			return nil, nil, err
		}
		return btree.KeyFromValues(v), nil, nil
	default:
		var low, high btree.Key
		if p.Low != nil {
			v, err := p.Low.Eval(empty)
			if err != nil {
				return nil, nil, err
			}
			low = btree.KeyFromValues(v)
		}
		if p.High != nil {
			v, err := p.High.Eval(empty)
			if err != nil {
				return nil, nil, err
			}
			high = btree.KeyFromValues(v)
		}
		return low, high, nil
	}
}

func (e *IndexScanExec) Next() (types.Row, bool, error) {
	if e.pos >= len(e.rows) {
		return types.Row{}, false, nil
	}
	row := e.rows[e.pos]
	e.pos++
	return row, true, nil
}

func (e *IndexScanExec) Close() error { return nil }
