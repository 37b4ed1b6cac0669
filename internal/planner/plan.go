// Package planner lowers a parsed AST statement to a logical plan,
// applies cost-oblivious rewrites (predicate pushdown, projection
// pruning), then binds names to ordinals and selects access methods to
// produce the physical plan the executors run.
package planner

import (
	"fmt"
	"strings"

	"github.com/cuemby/slotdb/internal/catalog"
	"github.com/cuemby/slotdb/internal/expr"
)

// PredicateKind distinguishes an equality probe from a range probe when
// an IndexScan is chosen.
type PredicateKind int

const (
	PredEq PredicateKind = iota
	PredRange
)

// IndexPredicate describes the probe an IndexScan performs against its
// index; Low/High are nil for an open-ended range bound.
type IndexPredicate struct {
	Kind PredicateKind
	Eq   expr.Expr
	Low  expr.Expr
	High expr.Expr
}

// SortKey orders a Sort node's materialized rows.
type SortKey struct {
	Ordinal int
	Desc    bool
}

// ProjectedCol names one output column of a Project node.
type ProjectedCol struct {
	Name    string
	Ordinal int
}

// Assignment is one SET clause of an Update node, resolved to an ordinal.
type Assignment struct {
	Ordinal int
	Value   expr.Expr
}

// Node is a physical plan node, ready for internal/exec to turn into a
// pull-based iterator.
type Node interface {
	Kind() string
	Schema() []string
	Children() []Node
}

type SeqScan struct {
	TableID   uint64
	TableName string
	Cols      []string
}

func (n *SeqScan) Kind() string     { return "SeqScan" }
func (n *SeqScan) Schema() []string { return n.Cols }
func (n *SeqScan) Children() []Node { return nil }

// IndexScan probes an index for matching RIDs and fetches each row from
// the heap; the Filter above it rechecks the predicate, since the scan
// itself does not enforce it (see Filter's doc comment).
type IndexScan struct {
	TableID   uint64
	TableName string
	IndexID   uint64
	IndexName string
	IndexKind catalog.IndexKind
	Column    int
	Predicate IndexPredicate
	Cols      []string
}

func (n *IndexScan) Kind() string     { return "IndexScan" }
func (n *IndexScan) Schema() []string { return n.Cols }
func (n *IndexScan) Children() []Node { return nil }

// Filter stays above scans unconditionally (including IndexScan) because
// an IndexScan's predicate may be a range whose bounds are already
// index-exact, but literal constant-folding is not performed here; the
// Filter is the single source of truth for WHERE semantics.
type Filter struct {
	Pred  expr.Expr
	Child Node
}

func (n *Filter) Kind() string     { return "Filter" }
func (n *Filter) Schema() []string { return n.Child.Schema() }
func (n *Filter) Children() []Node { return []Node{n.Child} }

type Project struct {
	Cols  []ProjectedCol
	Child Node
}

func (n *Project) Kind() string { return "Project" }
func (n *Project) Schema() []string {
	names := make([]string, len(n.Cols))
	for i, c := range n.Cols {
		names[i] = c.Name
	}
	return names
}
func (n *Project) Children() []Node { return []Node{n.Child} }

type Sort struct {
	Keys  []SortKey
	Child Node
}

func (n *Sort) Kind() string     { return "Sort" }
func (n *Sort) Schema() []string { return n.Child.Schema() }
func (n *Sort) Children() []Node { return []Node{n.Child} }

type Limit struct {
	Limit  *int64
	Offset *int64
	Child  Node
}

func (n *Limit) Kind() string     { return "Limit" }
func (n *Limit) Schema() []string { return n.Child.Schema() }
func (n *Limit) Children() []Node { return []Node{n.Child} }

type NestedLoopJoin struct {
	Left, Right Node
	Condition   expr.Expr
	Cols        []string
}

func (n *NestedLoopJoin) Kind() string     { return "NestedLoopJoin" }
func (n *NestedLoopJoin) Schema() []string { return n.Cols }
func (n *NestedLoopJoin) Children() []Node { return []Node{n.Left, n.Right} }

type Insert struct {
	TableID   uint64
	TableName string
	Values    []expr.Expr
}

func (n *Insert) Kind() string     { return "Insert" }
func (n *Insert) Schema() []string { return []string{"count"} }
func (n *Insert) Children() []Node { return nil }

type Update struct {
	TableID     uint64
	TableName   string
	Assignments []Assignment
	Child       Node
}

func (n *Update) Kind() string     { return "Update" }
func (n *Update) Schema() []string { return []string{"count"} }
func (n *Update) Children() []Node { return []Node{n.Child} }

type Delete struct {
	TableID   uint64
	TableName string
	Child     Node
}

func (n *Delete) Kind() string     { return "Delete" }
func (n *Delete) Schema() []string { return []string{"count"} }
func (n *Delete) Children() []Node { return []Node{n.Child} }

// Plan wraps the root physical node for a SELECT-shaped statement (used
// by EXPLAIN and by Database.Execute for queries).
type Plan struct {
	Root Node
}

// Explain renders an indented tree description; with analyze=true it
// expects Stats to have been populated by a prior execution.
func (p *Plan) Explain(analyze bool, stats map[Node]NodeStats) string {
	var sb strings.Builder
	explainNode(&sb, p.Root, "", analyze, stats)
	return sb.String()
}

// NodeStats carries per-node row count and timing for EXPLAIN ANALYZE.
type NodeStats struct {
	Rows int
	Took string
}

func explainNode(sb *strings.Builder, n Node, indent string, analyze bool, stats map[Node]NodeStats) {
	fmt.Fprintf(sb, "%s%s", indent, describe(n))
	if analyze {
		if s, ok := stats[n]; ok {
			fmt.Fprintf(sb, " rows=%d time=%s", s.Rows, s.Took)
		}
	}
	sb.WriteByte('\n')
	for _, c := range n.Children() {
		explainNode(sb, c, indent+"  ", analyze, stats)
	}
}

func describe(n Node) string {
	switch v := n.(type) {
	case *SeqScan:
		return fmt.Sprintf("SeqScan(%s)", v.TableName)
	case *IndexScan:
		return fmt.Sprintf("IndexScan(%s via %s)", v.TableName, v.IndexName)
	case *Filter:
		return fmt.Sprintf("Filter(%s)", v.Pred.String())
	case *Project:
		return fmt.Sprintf("Project(%s)", strings.Join(v.Schema(), ","))
	case *Sort:
		return "Sort"
	case *Limit:
		return "Limit"
	case *NestedLoopJoin:
		return "NestedLoopJoin"
	case *Insert:
		return fmt.Sprintf("Insert(%s)", v.TableName)
	case *Update:
		return fmt.Sprintf("Update(%s)", v.TableName)
	case *Delete:
		return fmt.Sprintf("Delete(%s)", v.TableName)
	default:
		return n.Kind()
	}
}
