package exec

import (
	"github.com/cuemby/slotdb/internal/planner"
	"github.com/cuemby/slotdb/internal/types"
)

// ProjectExec rewrites each child row to the ordinals named by Cols,
// preserving RID so an UPDATE/DELETE above a Project can still find the
// source slot (the dialect has no aliasing, so a Project never drops a
// row's identity, only reorders/narrows its values).
type ProjectExec struct {
	Cols  []planner.ProjectedCol
	Child Executor
}

func (e *ProjectExec) Schema() []string {
	names := make([]string, len(e.Cols))
	for i, c := range e.Cols {
		names[i] = c.Name
	}
	return names
}

func (e *ProjectExec) Open() error { return e.Child.Open() }

func (e *ProjectExec) Next() (types.Row, bool, error) {
	row, ok, err := e.Child.Next()
	if err != nil || !ok {
		return row, ok, err
	}
	values := make([]types.Value, len(e.Cols))
	for i, c := range e.Cols {
		values[i] = row.Values[c.Ordinal]
	}
	out := types.NewRow(values...)
	if row.HasRID {
		out = out.WithRID(row.RID)
	}
	return out, true, nil
}

func (e *ProjectExec) Close() error { return e.Child.Close() }
