package exec

import (
	"github.com/cuemby/slotdb/internal/expr"
	"github.com/cuemby/slotdb/internal/types"
)

// NestedLoopJoinExec materializes the right side once per Open and
// re-scans it for every left row; no hash join, matching the planner's
// cost-oblivious stance (it never chooses a join strategy, only an
// access method for scans).
type NestedLoopJoinExec struct {
	Cond  expr.Expr
	Left  Executor
	Right Executor
	Cols  []string

	rightRows []types.Row
	leftRow   types.Row
	haveLeft  bool
	rightPos  int
}

func (e *NestedLoopJoinExec) Schema() []string { return e.Cols }

func (e *NestedLoopJoinExec) Open() error {
	if err := e.Left.Open(); err != nil {
		return err
	}
	if err := e.Right.Open(); err != nil {
		return err
	}
	e.rightRows = nil
	for {
		row, ok, err := e.Right.Next()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		e.rightRows = append(e.rightRows, row)
	}
	e.haveLeft = false
	e.rightPos = 0
	return nil
}

func (e *NestedLoopJoinExec) Next() (types.Row, bool, error) {
	for {
		if !e.haveLeft {
			row, ok, err := e.Left.Next()
			if err != nil || !ok {
				return types.Row{}, false, err
			}
			e.leftRow = row
			e.haveLeft = true
			e.rightPos = 0
		}

		for e.rightPos < len(e.rightRows) {
			right := e.rightRows[e.rightPos]
			e.rightPos++
			combined := combineRows(e.leftRow, right)
			keep, err := expr.EvalPredicate(e.Cond, combined)
			if err != nil {
				return types.Row{}, false, err
			}
			if keep {
				return combined, true, nil
			}
		}
		e.haveLeft = false
	}
}

func combineRows(left, right types.Row) types.Row {
	values := make([]types.Value, 0, len(left.Values)+len(right.Values))
	values = append(values, left.Values...)
	values = append(values, right.Values...)
	return types.NewRow(values...)
}

func (e *NestedLoopJoinExec) Close() error {
	if err := e.Left.Close(); err != nil {
		return err
	}
	return e.Right.Close()
}
