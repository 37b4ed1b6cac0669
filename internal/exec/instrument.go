package exec

import (
	"time"

	"github.com/cuemby/slotdb/internal/planner"
	"github.com/cuemby/slotdb/internal/types"
)

// statsExec wraps a built executor with its originating physical node so
// every Next() call accumulates a running row count and elapsed time into
// stats, keyed by that node. EXPLAIN ANALYZE reads the map back out once
// the tree has run to completion.
type statsExec struct {
	node  planner.Node
	child Executor
	stats map[planner.Node]planner.NodeStats

	rows    int
	elapsed time.Duration
}

func (e *statsExec) Schema() []string { return e.child.Schema() }
func (e *statsExec) Open() error      { return e.child.Open() }

func (e *statsExec) Next() (types.Row, bool, error) {
	start := time.Now()
	row, ok, err := e.child.Next()
	e.elapsed += time.Since(start)
	if ok {
		e.rows++
	}
	e.stats[e.node] = planner.NodeStats{Rows: e.rows, Took: e.elapsed.String()}
	return row, ok, err
}

func (e *statsExec) Close() error { return e.child.Close() }
