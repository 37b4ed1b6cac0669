package exec

import (
	"sort"

	"github.com/cuemby/slotdb/internal/planner"
	"github.com/cuemby/slotdb/internal/types"
)

// SortExec materializes the entire child into memory, then replays it in
// key order. There is no external merge sort here: the engine assumes a
// table fits comfortably in memory for ORDER BY, matching its
// cost-oblivious, single-node design.
type SortExec struct {
	Keys  []planner.SortKey
	Child Executor

	rows []types.Row
	pos  int
}

func (e *SortExec) Schema() []string { return e.Child.Schema() }

func (e *SortExec) Open() error {
	if err := e.Child.Open(); err != nil {
		return err
	}
	e.rows = nil
	e.pos = 0
	for {
		row, ok, err := e.Child.Next()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		e.rows = append(e.rows, row)
	}
	sort.SliceStable(e.rows, func(i, j int) bool {
		a, b := e.rows[i], e.rows[j]
		for _, k := range e.Keys {
			cmp := a.Values[k.Ordinal].Compare(b.Values[k.Ordinal])
			if cmp == 0 {
				continue
			}
			if k.Desc {
				return cmp > 0
			}
			return cmp < 0
		}
		return false
	})
	return nil
}

func (e *SortExec) Next() (types.Row, bool, error) {
	if e.pos >= len(e.rows) {
		return types.Row{}, false, nil
	}
	row := e.rows[e.pos]
	e.pos++
	return row, true, nil
}

func (e *SortExec) Close() error { return e.Child.Close() }
