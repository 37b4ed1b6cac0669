package exec

import "github.com/cuemby/slotdb/internal/types"

// Executor is the pull-based iterator contract every operator
// implements. Open resets state and is idempotent across open/close/open
// cycles. Next returns (row, true, nil) until exhausted, then
// (zero, false, nil) forever.
type Executor interface {
	Open() error
	Next() (types.Row, bool, error)
	Close() error
	Schema() []string
}
