package types

import "errors"

// Error kinds. Every layer wraps one of these with fmt.Errorf("%w: ...", ...)
// so callers can classify failures with errors.Is without string matching.
var (
	ErrParser               = errors.New("parser error")
	ErrCatalog              = errors.New("catalog error")
	ErrPlanner              = errors.New("planner error")
	ErrExecutor             = errors.New("executor error")
	ErrStorage              = errors.New("storage error")
	ErrWal                  = errors.New("wal error")
	ErrIO                   = errors.New("io error")
	ErrConstraintViolation  = errors.New("constraint violation")
	ErrRaft                 = errors.New("raft error")
)
