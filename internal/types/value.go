// Package types defines the Value/Row/RID model shared by every layer of
// the engine: storage, indexes, the expression evaluator and the executors.
package types

import (
	"bytes"
	"fmt"
)

// Kind tags a Value's dynamic type.
type Kind uint8

const (
	KindNull Kind = iota
	KindInt
	KindText
	KindBool
)

// SQLType names a column's declared type, distinct from Kind because a
// column can hold Null regardless of its declared type.
type SQLType uint8

const (
	TypeInt SQLType = iota
	TypeText
	TypeBool
)

func (t SQLType) String() string {
	switch t {
	case TypeInt:
		return "INT"
	case TypeText:
		return "TEXT"
	case TypeBool:
		return "BOOL"
	default:
		return "UNKNOWN"
	}
}

// Value is a tagged union of {Int, Text, Bool, Null}.
type Value struct {
	kind Kind
	i    int64
	s    string
	b    bool
}

func NullValue() Value         { return Value{kind: KindNull} }
func IntValue(i int64) Value   { return Value{kind: KindInt, i: i} }
func TextValue(s string) Value { return Value{kind: KindText, s: s} }
func BoolValue(b bool) Value   { return Value{kind: KindBool, b: b} }

func (v Value) Kind() Kind    { return v.kind }
func (v Value) IsNull() bool  { return v.kind == KindNull }
func (v Value) Int() int64    { return v.i }
func (v Value) Text() string  { return v.s }
func (v Value) Bool() bool    { return v.b }

// Equal implements structural equality. Null is never equal to anything,
// including another Null, when used for comparison semantics — callers
// that need SQL-null-aware equality should use the expression evaluator
// instead; Equal here is the Go-level "same value" relation used by
// round-trip tests and index key comparisons.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindInt:
		return v.i == o.i
	case KindText:
		return v.s == o.s
	case KindBool:
		return v.b == o.b
	}
	return false
}

// typeRank orders cross-type comparisons: Null < Bool < Int < Text.
func typeRank(k Kind) int {
	switch k {
	case KindNull:
		return 0
	case KindBool:
		return 1
	case KindInt:
		return 2
	case KindText:
		return 3
	}
	return 4
}

// Compare orders two values: within a type by the type's natural order,
// across types by typeRank. Used by index keys and ORDER BY, which must
// total-order arbitrary Value tuples including Null.
func (v Value) Compare(o Value) int {
	if v.kind != o.kind {
		return typeRank(v.kind) - typeRank(o.kind)
	}
	switch v.kind {
	case KindNull:
		return 0
	case KindInt:
		switch {
		case v.i < o.i:
			return -1
		case v.i > o.i:
			return 1
		default:
			return 0
		}
	case KindText:
		return bytes.Compare([]byte(v.s), []byte(o.s))
	case KindBool:
		if v.b == o.b {
			return 0
		}
		if !v.b && o.b {
			return -1
		}
		return 1
	}
	return 0
}

func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return "NULL"
	case KindInt:
		return fmt.Sprintf("%d", v.i)
	case KindText:
		return v.s
	case KindBool:
		if v.b {
			return "true"
		}
		return "false"
	}
	return "?"
}

// Row is an ordered sequence of Value, optionally carrying a transient
// RID attached during scans. The RID is not part of row equality and is
// never encoded into the tuple bytes.
type Row struct {
	Values []Value
	RID    RID
	HasRID bool
}

func NewRow(values ...Value) Row {
	return Row{Values: values}
}

func (r Row) WithRID(rid RID) Row {
	r.RID = rid
	r.HasRID = true
	return r
}

func (r Row) Equal(o Row) bool {
	if len(r.Values) != len(o.Values) {
		return false
	}
	for i := range r.Values {
		if !r.Values[i].Equal(o.Values[i]) {
			return false
		}
	}
	return true
}

func (r Row) Clone() Row {
	values := make([]Value, len(r.Values))
	copy(values, r.Values)
	return Row{Values: values, RID: r.RID, HasRID: r.HasRID}
}

// RID is a stable (page, slot) address of a row within a heap file.
type RID struct {
	PageID uint64
	Slot   uint16
}

func (r RID) String() string {
	return fmt.Sprintf("(%d,%d)", r.PageID, r.Slot)
}
