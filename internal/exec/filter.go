package exec

import (
	"github.com/cuemby/slotdb/internal/expr"
	"github.com/cuemby/slotdb/internal/types"
)

// FilterExec pulls from Child and re-checks Pred on every row, including
// rows that already came from an IndexScan: the scan's own predicate
// match is not trusted as exact (range bounds, hash collisions).
type FilterExec struct {
	Pred  expr.Expr
	Child Executor
}

func (e *FilterExec) Schema() []string { return e.Child.Schema() }

func (e *FilterExec) Open() error { return e.Child.Open() }

func (e *FilterExec) Next() (types.Row, bool, error) {
	for {
		row, ok, err := e.Child.Next()
		if err != nil || !ok {
			return row, ok, err
		}
		keep, err := expr.EvalPredicate(e.Pred, row)
		if err != nil {
			return types.Row{}, false, err
		}
		if keep {
			return row, true, nil
		}
	}
}

func (e *FilterExec) Close() error { return e.Child.Close() }
