package exec

import (
	"fmt"

	"github.com/cuemby/slotdb/internal/planner"
	"github.com/cuemby/slotdb/internal/types"
)

// Build recursively turns a physical plan node into the iterator tree
// that runs it; the caller drives the returned Executor via
// Open/Next/Close.
func Build(node planner.Node, ctx *Context) (Executor, error) {
	return build(node, ctx, nil)
}

// BuildAnalyzed behaves like Build but wraps every node's executor with a
// row-count/timing collector that records into stats as the tree is
// driven, for EXPLAIN ANALYZE.
func BuildAnalyzed(node planner.Node, ctx *Context, stats map[planner.Node]planner.NodeStats) (Executor, error) {
	return build(node, ctx, stats)
}

func build(node planner.Node, ctx *Context, stats map[planner.Node]planner.NodeStats) (Executor, error) {
	var built Executor
	switch n := node.(type) {
	case *planner.SeqScan:
		built = NewSeqScanExec(ctx, n)

	case *planner.IndexScan:
		built = NewIndexScanExec(ctx, n)

	case *planner.Filter:
		child, err := build(n.Child, ctx, stats)
		if err != nil {
			return nil, err
		}
		built = &FilterExec{Pred: n.Pred, Child: child}

	case *planner.Project:
		child, err := build(n.Child, ctx, stats)
		if err != nil {
			return nil, err
		}
		built = &ProjectExec{Cols: n.Cols, Child: child}

	case *planner.Sort:
		child, err := build(n.Child, ctx, stats)
		if err != nil {
			return nil, err
		}
		built = &SortExec{Keys: n.Keys, Child: child}

	case *planner.Limit:
		child, err := build(n.Child, ctx, stats)
		if err != nil {
			return nil, err
		}
		built = &LimitExec{Limit: n.Limit, Offset: n.Offset, Child: child}

	case *planner.NestedLoopJoin:
		left, err := build(n.Left, ctx, stats)
		if err != nil {
			return nil, err
		}
		right, err := build(n.Right, ctx, stats)
		if err != nil {
			return nil, err
		}
		built = &NestedLoopJoinExec{Cond: n.Condition, Left: left, Right: right, Cols: n.Cols}

	case *planner.Insert:
		built = NewInsertExec(ctx, n)

	case *planner.Update:
		child, err := build(n.Child, ctx, stats)
		if err != nil {
			return nil, err
		}
		built = NewUpdateExec(ctx, n, child)

	case *planner.Delete:
		child, err := build(n.Child, ctx, stats)
		if err != nil {
			return nil, err
		}
		built = NewDeleteExec(ctx, n, child)

	default:
		return nil, fmt.Errorf("%w: unhandled plan node %T", types.ErrExecutor, node)
	}
	if stats == nil {
		return built, nil
	}
	return &statsExec{node: node, child: built, stats: stats}, nil
}
