package planner

import (
	"fmt"

	"github.com/cuemby/slotdb/internal/catalog"
	"github.com/cuemby/slotdb/internal/expr"
	"github.com/cuemby/slotdb/internal/parser"
	"github.com/cuemby/slotdb/internal/types"
)

// Catalog is the read-only subset of catalog.Catalog the binder needs.
type Catalog interface {
	TableByName(name string) (catalog.Table, bool)
	IndexesOnColumn(tableID uint64, ordinal int) []catalog.Index
}

type binder struct {
	cat Catalog
}

// Bind resolves table/column names to ids/ordinals and selects access
// methods, producing the physical plan the executors run.
func Bind(node logical, cat Catalog) (Node, error) {
	b := &binder{cat: cat}
	return b.bind(node, nil)
}

// schema carries the currently-visible columns (name -> ordinal) so a
// Filter/Project above a scan can resolve ColumnExpr references.
type schema struct {
	table   catalog.Table
	columns []catalog.Column
}

func (b *binder) bind(node logical, sc *schema) (Node, error) {
	switch n := node.(type) {
	case logicalTableScan:
		table, ok := b.cat.TableByName(n.Table)
		if !ok {
			return nil, fmt.Errorf("%w: unknown table %q", types.ErrPlanner, n.Table)
		}
		return &SeqScan{TableID: table.ID, TableName: table.Name, Cols: columnNames(table.Columns)}, nil

	case *logicalFilter:
		table, childSchema, err := b.tableOf(n.Child)
		if err != nil {
			return nil, err
		}
		pred, err := b.resolveExpr(n.Pred, table)
		if err != nil {
			return nil, err
		}

		if scan, ok := n.Child.(logicalTableScan); ok {
			if physical, ok := b.tryIndexScan(scan, table, n.Pred, pred); ok {
				return &Filter{Pred: pred, Child: physical}, nil
			}
		}

		child, err := b.bind(n.Child, childSchema)
		if err != nil {
			return nil, err
		}
		return &Filter{Pred: pred, Child: child}, nil

	case *logicalProject:
		table, childSchema, err := b.tableOf(n.Child)
		if err != nil {
			return nil, err
		}
		child, err := b.bind(n.Child, childSchema)
		if err != nil {
			return nil, err
		}
		cols, err := b.resolveProjection(n.Cols, table)
		if err != nil {
			return nil, err
		}
		return &Project{Cols: cols, Child: child}, nil

	case *logicalSort:
		table, childSchema, err := b.tableOf(n.Child)
		if err != nil {
			return nil, err
		}
		child, err := b.bind(n.Child, childSchema)
		if err != nil {
			return nil, err
		}
		keys := make([]SortKey, len(n.Keys))
		for i, k := range n.Keys {
			ord, ok := table.ColumnOrdinal(k.Column)
			if !ok {
				return nil, fmt.Errorf("%w: unknown column %q in ORDER BY", types.ErrPlanner, k.Column)
			}
			keys[i] = SortKey{Ordinal: ordinalInSchema(child, ord, table), Desc: k.Desc}
		}
		return &Sort{Keys: keys, Child: child}, nil

	case *logicalLimit:
		table, childSchema, err := b.tableOf(n.Child)
		_ = table
		if err != nil {
			return nil, err
		}
		child, err := b.bind(n.Child, childSchema)
		if err != nil {
			return nil, err
		}
		return &Limit{Limit: n.Limit, Offset: n.Offset, Child: child}, nil

	case *logicalInsert:
		table, ok := b.cat.TableByName(n.Table)
		if !ok {
			return nil, fmt.Errorf("%w: unknown table %q", types.ErrPlanner, n.Table)
		}
		values := make([]expr.Expr, len(n.Values))
		for i, v := range n.Values {
			resolved, err := b.resolveExpr(v, catalog.Table{}) // INSERT values cannot reference columns
			if err != nil {
				return nil, err
			}
			values[i] = resolved
		}
		return &Insert{TableID: table.ID, TableName: table.Name, Values: values}, nil

	case *logicalUpdate:
		table, ok := b.cat.TableByName(n.Table)
		if !ok {
			return nil, fmt.Errorf("%w: unknown table %q", types.ErrPlanner, n.Table)
		}
		_, childSchema, err := b.tableOf(n.Child)
		if err != nil {
			return nil, err
		}
		child, err := b.bind(n.Child, childSchema)
		if err != nil {
			return nil, err
		}
		assigns := make([]Assignment, len(n.Assignments))
		for i, a := range n.Assignments {
			ord, ok := table.ColumnOrdinal(a.Column)
			if !ok {
				return nil, fmt.Errorf("%w: unknown column %q in SET", types.ErrPlanner, a.Column)
			}
			value, err := b.resolveExpr(a.Value, table)
			if err != nil {
				return nil, err
			}
			assigns[i] = Assignment{Ordinal: ord, Value: value}
		}
		return &Update{TableID: table.ID, TableName: table.Name, Assignments: assigns, Child: child}, nil

	case *logicalDelete:
		table, ok := b.cat.TableByName(n.Table)
		if !ok {
			return nil, fmt.Errorf("%w: unknown table %q", types.ErrPlanner, n.Table)
		}
		_, childSchema, err := b.tableOf(n.Child)
		if err != nil {
			return nil, err
		}
		child, err := b.bind(n.Child, childSchema)
		if err != nil {
			return nil, err
		}
		return &Delete{TableID: table.ID, TableName: table.Name, Child: child}, nil
	}
	return nil, fmt.Errorf("%w: unhandled logical node %T", types.ErrPlanner, node)
}

// ordinalInSchema is a no-op passthrough: Lower places Sort below Project,
// so Sort's child is always the unprojected scan/filter row and the table
// ordinal IS the visible ordinal. If Project is ever lowered beneath Sort
// again, this needs to remap ord into the projected schema instead.
func ordinalInSchema(_ Node, ord int, _ catalog.Table) int { return ord }

func columnNames(cols []catalog.Column) []string {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	return names
}

// tableOf walks down to the nearest logicalTableScan to recover the
// table being scanned, needed to resolve column names at any level of
// the tree above it.
func (b *binder) tableOf(node logical) (catalog.Table, *schema, error) {
	switch n := node.(type) {
	case logicalTableScan:
		table, ok := b.cat.TableByName(n.Table)
		if !ok {
			return catalog.Table{}, nil, fmt.Errorf("%w: unknown table %q", types.ErrPlanner, n.Table)
		}
		return table, &schema{table: table, columns: table.Columns}, nil
	case *logicalFilter:
		return b.tableOf(n.Child)
	case *logicalProject:
		return b.tableOf(n.Child)
	case *logicalSort:
		return b.tableOf(n.Child)
	case *logicalLimit:
		return b.tableOf(n.Child)
	default:
		return catalog.Table{}, nil, fmt.Errorf("%w: cannot resolve table for node %T", types.ErrPlanner, node)
	}
}

func (b *binder) resolveProjection(cols []string, table catalog.Table) ([]ProjectedCol, error) {
	if isIdentityProjection(cols) {
		out := make([]ProjectedCol, len(table.Columns))
		for i, c := range table.Columns {
			out[i] = ProjectedCol{Name: c.Name, Ordinal: i}
		}
		return out, nil
	}
	out := make([]ProjectedCol, len(cols))
	for i, name := range cols {
		ord, ok := table.ColumnOrdinal(name)
		if !ok {
			return nil, fmt.Errorf("%w: unknown column %q", types.ErrPlanner, name)
		}
		out[i] = ProjectedCol{Name: table.Columns[ord].Name, Ordinal: ord}
	}
	return out, nil
}

func (b *binder) resolveExpr(e parser.Expr, table catalog.Table) (expr.Expr, error) {
	switch v := e.(type) {
	case parser.LiteralExpr:
		return expr.Literal{Value: v.Value}, nil
	case parser.ColumnExpr:
		ord, ok := table.ColumnOrdinal(v.Name)
		if !ok {
			return nil, fmt.Errorf("%w: unknown column %q", types.ErrPlanner, v.Name)
		}
		return expr.Column{Ordinal: ord, Name: table.Columns[ord].Name}, nil
	case parser.NotExpr:
		x, err := b.resolveExpr(v.X, table)
		if err != nil {
			return nil, err
		}
		return expr.Not{X: x}, nil
	case parser.BinaryExpr:
		left, err := b.resolveExpr(v.Left, table)
		if err != nil {
			return nil, err
		}
		right, err := b.resolveExpr(v.Right, table)
		if err != nil {
			return nil, err
		}
		return expr.Binary{Op: resolveOp(v.Op), Left: left, Right: right}, nil
	default:
		return nil, fmt.Errorf("%w: unhandled expression node %T", types.ErrPlanner, e)
	}
}

func resolveOp(op parser.BinaryOp) expr.Op {
	switch op {
	case parser.OpEq:
		return expr.OpEq
	case parser.OpNe:
		return expr.OpNe
	case parser.OpLt:
		return expr.OpLt
	case parser.OpLe:
		return expr.OpLe
	case parser.OpGt:
		return expr.OpGt
	case parser.OpGe:
		return expr.OpGe
	case parser.OpAnd:
		return expr.OpAnd
	case parser.OpOr:
		return expr.OpOr
	}
	return expr.OpEq
}

// tryIndexScan recognizes a Filter immediately over a SeqScan whose
// predicate is a single comparison col <op> literal, and emits an
// IndexScan when a matching single-column index exists and its kind
// supports the operator (BTree: eq & ordering; Hash: eq only). The
// Filter above still rechecks the predicate — the IndexScan does not
// enforce it itself.
func (b *binder) tryIndexScan(scan logicalTableScan, table catalog.Table, rawPred parser.Expr, _ expr.Expr) (Node, bool) {
	bin, ok := rawPred.(parser.BinaryExpr)
	if !ok {
		return nil, false
	}

	var colName string
	var litExpr parser.LiteralExpr
	var op parser.BinaryOp
	switch {
	case isColumnExpr(bin.Left) && isLiteralExpr(bin.Right):
		colName = bin.Left.(parser.ColumnExpr).Name
		litExpr = bin.Right.(parser.LiteralExpr)
		op = bin.Op
	case isColumnExpr(bin.Right) && isLiteralExpr(bin.Left):
		colName = bin.Right.(parser.ColumnExpr).Name
		litExpr = bin.Left.(parser.LiteralExpr)
		op = flipOp(bin.Op)
	default:
		return nil, false
	}

	ord, ok := table.ColumnOrdinal(colName)
	if !ok {
		return nil, false
	}
	indexes := b.cat.IndexesOnColumn(table.ID, ord)
	if len(indexes) == 0 {
		return nil, false
	}

	var chosen *catalog.Index
	for i := range indexes {
		idx := indexes[i]
		switch idx.Kind {
		case catalog.IndexBTree:
			chosen = &idx
		case catalog.IndexHash:
			if op == parser.OpEq && chosen == nil {
				chosen = &idx
			}
		}
	}
	if chosen == nil {
		return nil, false
	}
	if chosen.Kind == catalog.IndexHash && op != parser.OpEq {
		return nil, false
	}

	lit := expr.Literal{Value: litExpr.Value}
	var pred IndexPredicate
	switch op {
	case parser.OpEq:
		pred = IndexPredicate{Kind: PredEq, Eq: lit}
	case parser.OpLt, parser.OpLe:
		pred = IndexPredicate{Kind: PredRange, High: lit}
	case parser.OpGt, parser.OpGe:
		pred = IndexPredicate{Kind: PredRange, Low: lit}
	default:
		return nil, false
	}

	return &IndexScan{
		TableID:   table.ID,
		TableName: table.Name,
		IndexID:   chosen.ID,
		IndexName: chosen.Name,
		IndexKind: chosen.Kind,
		Column:    ord,
		Predicate: pred,
		Cols:      columnNames(table.Columns),
	}, true
}

func isColumnExpr(e parser.Expr) bool {
	_, ok := e.(parser.ColumnExpr)
	return ok
}

func isLiteralExpr(e parser.Expr) bool {
	_, ok := e.(parser.LiteralExpr)
	return ok
}

func flipOp(op parser.BinaryOp) parser.BinaryOp {
	switch op {
	case parser.OpLt:
		return parser.OpGt
	case parser.OpLe:
		return parser.OpGe
	case parser.OpGt:
		return parser.OpLt
	case parser.OpGe:
		return parser.OpLe
	default:
		return op
	}
}
