// Package expr implements the resolved expression tree and its
// three-valued (Null-propagating) evaluator. Expressions here reference
// columns by ordinal — name resolution happens earlier, in the planner.
package expr

import (
	"fmt"

	"github.com/cuemby/slotdb/internal/types"
)

// Op enumerates binary operators.
type Op int

const (
	OpEq Op = iota
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
	OpAnd
	OpOr
)

// Expr is a resolved expression node.
type Expr interface {
	Eval(row types.Row) (types.Value, error)
	String() string
}

// Literal is a constant value.
type Literal struct{ Value types.Value }

func (l Literal) Eval(types.Row) (types.Value, error) { return l.Value, nil }
func (l Literal) String() string                      { return l.Value.String() }

// Column references row[Ordinal].
type Column struct {
	Ordinal int
	Name    string // for plan printing only
}

func (c Column) Eval(row types.Row) (types.Value, error) {
	if c.Ordinal < 0 || c.Ordinal >= len(row.Values) {
		return types.Value{}, fmt.Errorf("%w: column ordinal %d out of bounds (row has %d values)", types.ErrExecutor, c.Ordinal, len(row.Values))
	}
	return row.Values[c.Ordinal], nil
}

func (c Column) String() string { return c.Name }

// Not negates a boolean expression; Null propagates.
type Not struct{ X Expr }

func (n Not) Eval(row types.Row) (types.Value, error) {
	v, err := n.X.Eval(row)
	if err != nil {
		return types.Value{}, err
	}
	if v.IsNull() {
		return types.NullValue(), nil
	}
	if v.Kind() != types.KindBool {
		return types.Value{}, fmt.Errorf("%w: NOT requires a bool operand, got %v", types.ErrExecutor, v)
	}
	return types.BoolValue(!v.Bool()), nil
}

func (n Not) String() string { return "NOT " + n.X.String() }

// Binary is a binary comparison or boolean operator. Both sides are
// always evaluated; short-circuiting AND/OR is not required.
type Binary struct {
	Op          Op
	Left, Right Expr
}

func (b Binary) String() string {
	return fmt.Sprintf("(%s %s %s)", b.Left.String(), opSymbol(b.Op), b.Right.String())
}

func opSymbol(op Op) string {
	switch op {
	case OpEq:
		return "="
	case OpNe:
		return "!="
	case OpLt:
		return "<"
	case OpLe:
		return "<="
	case OpGt:
		return ">"
	case OpGe:
		return ">="
	case OpAnd:
		return "AND"
	case OpOr:
		return "OR"
	}
	return "?"
}

func (b Binary) Eval(row types.Row) (types.Value, error) {
	l, err := b.Left.Eval(row)
	if err != nil {
		return types.Value{}, err
	}
	r, err := b.Right.Eval(row)
	if err != nil {
		return types.Value{}, err
	}

	if l.IsNull() || r.IsNull() {
		return types.NullValue(), nil
	}

	switch b.Op {
	case OpAnd, OpOr:
		if l.Kind() != types.KindBool || r.Kind() != types.KindBool {
			return types.Value{}, fmt.Errorf("%w: %s requires bool operands", types.ErrExecutor, opSymbol(b.Op))
		}
		if b.Op == OpAnd {
			return types.BoolValue(l.Bool() && r.Bool()), nil
		}
		return types.BoolValue(l.Bool() || r.Bool()), nil
	default:
		if l.Kind() != r.Kind() {
			return types.Value{}, fmt.Errorf("%w: comparison between mismatched types %v and %v", types.ErrExecutor, l, r)
		}
		cmp := l.Compare(r)
		switch b.Op {
		case OpEq:
			return types.BoolValue(cmp == 0), nil
		case OpNe:
			return types.BoolValue(cmp != 0), nil
		case OpLt:
			return types.BoolValue(cmp < 0), nil
		case OpLe:
			return types.BoolValue(cmp <= 0), nil
		case OpGt:
			return types.BoolValue(cmp > 0), nil
		case OpGe:
			return types.BoolValue(cmp >= 0), nil
		}
	}
	return types.Value{}, fmt.Errorf("%w: unknown operator", types.ErrExecutor)
}

// EvalPredicate evaluates x as a WHERE/JOIN predicate: Null and false
// both mean "skip this row"; a non-bool non-null result is an error.
func EvalPredicate(x Expr, row types.Row) (bool, error) {
	v, err := x.Eval(row)
	if err != nil {
		return false, err
	}
	if v.IsNull() {
		return false, nil
	}
	if v.Kind() != types.KindBool {
		return false, fmt.Errorf("%w: predicate did not evaluate to bool, got %v", types.ErrExecutor, v)
	}
	return v.Bool(), nil
}
