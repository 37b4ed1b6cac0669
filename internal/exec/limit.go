package exec

import "github.com/cuemby/slotdb/internal/types"

// LimitExec skips Offset rows then emits at most Limit rows. Either
// bound may be nil (no offset, or unbounded).
type LimitExec struct {
	Limit  *int64
	Offset *int64
	Child  Executor

	skipped int64
	emitted int64
}

func (e *LimitExec) Schema() []string { return e.Child.Schema() }

func (e *LimitExec) Open() error {
	e.skipped = 0
	e.emitted = 0
	return e.Child.Open()
}

func (e *LimitExec) Next() (types.Row, bool, error) {
	if e.Limit != nil && e.emitted >= *e.Limit {
		return types.Row{}, false, nil
	}
	for e.Offset != nil && e.skipped < *e.Offset {
		_, ok, err := e.Child.Next()
		if err != nil || !ok {
			return types.Row{}, false, err
		}
		e.skipped++
	}
	row, ok, err := e.Child.Next()
	if err != nil || !ok {
		return row, ok, err
	}
	e.emitted++
	return row, true, nil
}

func (e *LimitExec) Close() error { return e.Child.Close() }
