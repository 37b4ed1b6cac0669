package planner

import (
	"fmt"

	"github.com/cuemby/slotdb/internal/parser"
	"github.com/cuemby/slotdb/internal/types"
)

// logical is the unresolved (name-based) logical tree: TableScan,
// Filter, Project, Insert, Update, Delete, plus Sort/Limit which the
// spec's logical algebra treats as thin wrappers produced directly by
// Lower rather than rewritten by Optimize.
type logical interface{ isLogical() }

type logicalTableScan struct{ Table string }
type logicalFilter struct {
	Pred  parser.Expr
	Child logical
}
type logicalProject struct {
	Cols  []string // ["*"] is the identity projection
	Child logical
}
type logicalSort struct {
	Keys  []parser.OrderKey
	Child logical
}
type logicalLimit struct {
	Limit, Offset *int64
	Child         logical
}
type logicalInsert struct {
	Table  string
	Values []parser.Expr
}
type logicalUpdate struct {
	Table       string
	Assignments []parser.Assignment
	Child       logical
}
type logicalDelete struct {
	Table string
	Child logical
}

func (logicalTableScan) isLogical() {}
func (*logicalFilter) isLogical()   {}
func (*logicalProject) isLogical()  {}
func (*logicalSort) isLogical()     {}
func (*logicalLimit) isLogical()    {}
func (*logicalInsert) isLogical()   {}
func (*logicalUpdate) isLogical()   {}
func (*logicalDelete) isLogical()   {}

// Lower converts a parsed statement to its logical tree. DDL statements
// are rejected here — they are handled directly by the database facade.
func Lower(stmt parser.Statement) (logical, error) {
	switch s := stmt.(type) {
	case parser.Select:
		var node logical = logicalTableScan{Table: s.Table}
		if s.Where != nil {
			node = &logicalFilter{Pred: s.Where, Child: node}
		}
		if len(s.OrderBy) > 0 {
			node = &logicalSort{Keys: s.OrderBy, Child: node}
		}
		// Project last: Sort reads table ordinals off the full row, so it
		// must sit below the column narrowing Project performs.
		node = &logicalProject{Cols: s.Columns, Child: node}
		if s.Limit != nil || s.Offset != nil {
			node = &logicalLimit{Limit: s.Limit, Offset: s.Offset, Child: node}
		}
		return node, nil
	case parser.Insert:
		return &logicalInsert{Table: s.Table, Values: s.Values}, nil
	case parser.Update:
		var node logical = logicalTableScan{Table: s.Table}
		if s.Where != nil {
			node = &logicalFilter{Pred: s.Where, Child: node}
		}
		return &logicalUpdate{Table: s.Table, Assignments: s.Assignments, Child: node}, nil
	case parser.Delete:
		var node logical = logicalTableScan{Table: s.Table}
		if s.Where != nil {
			node = &logicalFilter{Pred: s.Where, Child: node}
		}
		return &logicalDelete{Table: s.Table, Child: node}, nil
	default:
		return nil, fmt.Errorf("%w: statement is DDL and must be handled by the database facade directly", types.ErrPlanner)
	}
}

func isIdentityProjection(cols []string) bool {
	return len(cols) == 1 && cols[0] == "*"
}

// Optimize applies cost-oblivious rewrites to a fixed point: pushdown of
// a Filter below an identity Project, and pruning of a redundant
// identity Project wrapping a more specific one. One pass suffices for
// the current rule set.
func Optimize(node logical) logical {
	for {
		rewritten, changed := rewriteOnce(node)
		node = rewritten
		if !changed {
			return node
		}
	}
}

func rewriteOnce(node logical) (logical, bool) {
	switch n := node.(type) {
	case logicalTableScan:
		return n, false
	case *logicalFilter:
		child, changed := rewriteOnce(n.Child)
		n.Child = child
		if proj, ok := child.(*logicalProject); ok && isIdentityProjection(proj.Cols) {
			return &logicalProject{Cols: proj.Cols, Child: &logicalFilter{Pred: n.Pred, Child: proj.Child}}, true
		}
		return n, changed
	case *logicalProject:
		child, changed := rewriteOnce(n.Child)
		n.Child = child
		if inner, ok := child.(*logicalProject); ok && isIdentityProjection(n.Cols) {
			return inner, true
		}
		return n, changed
	case *logicalSort:
		child, changed := rewriteOnce(n.Child)
		n.Child = child
		return n, changed
	case *logicalLimit:
		child, changed := rewriteOnce(n.Child)
		n.Child = child
		return n, changed
	case *logicalUpdate:
		child, changed := rewriteOnce(n.Child)
		n.Child = child
		return n, changed
	case *logicalDelete:
		child, changed := rewriteOnce(n.Child)
		n.Child = child
		return n, changed
	case *logicalInsert:
		return n, false
	default:
		return n, false
	}
}
