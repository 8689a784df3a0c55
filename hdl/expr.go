// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package hdl

import (
	"math"
	"strconv"
	"strings"
)

// An Expr is a hardware expression.
//
type Expr interface {
	String() string
	expr()
}

// Value is a constant scalar value. Bits holds the two's complement bit
// pattern of integer types (masked to the type's width); Real holds the value
// of Real types.
//
type Value struct {
	Type Scalar
	Bits uint64
	Real float64
}

func (Value) expr() {}

// IntValue returns a Value of type t holding v.
//
func IntValue(t Scalar, v int64) Value {
	if t.Kind == Real {
		return Value{Type: t, Real: float64(v)}
	}
	return Value{Type: t, Bits: uint64(v) & Mask(t.Size)}
}

// BoolValue returns a boolean Value.
//
func BoolValue(b bool) Value {
	if b {
		return Value{Type: BooleanType, Bits: 1}
	}
	return Value{Type: BooleanType}
}

// RealValue returns a Value of type t holding v.
//
func RealValue(t Scalar, v float64) Value {
	return Value{Type: t, Real: v}
}

// StateValue returns the value used to refer to state index i.
//
func StateValue(i int) Value {
	return IntValue(IntegerType, int64(i))
}

// Mask returns a mask for the given bit width.
//
func Mask(size int) uint64 {
	if size >= 64 {
		return math.MaxUint64
	}
	return 1<<uint(size) - 1
}

// SignExtend sign extends the low size bits of v.
//
func SignExtend(v uint64, size int) int64 {
	if size >= 64 || size <= 0 {
		return int64(v)
	}
	shift := uint(64 - size)
	return int64(v<<shift) >> shift
}

// Int64 returns the value as a signed integer, honoring the signedness of the
// value's type.
//
func (v Value) Int64() int64 {
	switch v.Type.Kind {
	case Signed, Integer:
		return SignExtend(v.Bits, v.Type.Size)
	case Real:
		return int64(v.Real)
	}
	return int64(v.Bits)
}

// Bool returns the value as a boolean.
func (v Value) Bool() bool { return v.Bits != 0 }

func (v Value) String() string {
	switch v.Type.Kind {
	case Boolean:
		if v.Bits != 0 {
			return "true"
		}
		return "false"
	case Signed:
		return "to_signed(" + strconv.FormatInt(v.Int64(), 10) + ", " + strconv.Itoa(v.Type.Size) + ")"
	case Unsigned:
		return "to_unsigned(" + strconv.FormatUint(v.Bits, 10) + ", " + strconv.Itoa(v.Type.Size) + ")"
	case StdLogicVector:
		return "x\"" + strconv.FormatUint(v.Bits, 16) + "\""
	case Real:
		return strconv.FormatFloat(v.Real, 'g', -1, 64)
	}
	return strconv.FormatInt(v.Int64(), 10)
}

// ObjectKind is the kind of a data object.
//
type ObjectKind int

// Data object kinds.
//
const (
	Variable ObjectKind = iota
	Signal
	Constant
)

func (k ObjectKind) String() string {
	switch k {
	case Variable:
		return "variable"
	case Signal:
		return "signal"
	}
	return "constant"
}

// Ref is a reference to a named data object. It can be read and, unless it
// refers to a constant, assigned to.
//
type Ref struct {
	Name string
	Kind ObjectKind
}

func (Ref) expr() {}

func (r Ref) String() string { return `\` + r.Name + `\` }

// IndexRef refers to an element of an array.
//
type IndexRef struct {
	Array Expr
	Index Expr
}

func (*IndexRef) expr() {}

func (r *IndexRef) String() string { return r.Array.String() + "(" + r.Index.String() + ")" }

// FieldRef refers to a field of a record.
//
type FieldRef struct {
	Record Expr
	Field  string
}

func (*FieldRef) expr() {}

func (r *FieldRef) String() string { return r.Record.String() + "." + r.Field }

// Slice selects the range High downto Low of a vector (bits) or of an array
// (elements).
//
type Slice struct {
	X         Expr
	High, Low int
}

func (*Slice) expr() {}

func (s *Slice) String() string {
	return s.X.String() + "(" + strconv.Itoa(s.High) + " downto " + strconv.Itoa(s.Low) + ")"
}

// FieldInit is a named field value in a record Aggregate.
//
type FieldInit struct {
	Name  string
	Value Expr
}

// Aggregate is an array or record aggregate. Arrays use Others for all
// elements, records list every field.
//
type Aggregate struct {
	Type   DataType
	Others Expr
	Fields []FieldInit
}

func (*Aggregate) expr() {}

func (a *Aggregate) String() string {
	if a.Others != nil {
		return "(others => " + a.Others.String() + ")"
	}
	parts := make([]string, len(a.Fields))
	for i, f := range a.Fields {
		parts[i] = f.Name + " => " + f.Value.String()
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// BinaryOp is a binary operator.
//
type BinaryOp string

// Binary operators.
//
const (
	Add BinaryOp = "+"
	Sub BinaryOp = "-"
	Mul BinaryOp = "*"
	Div BinaryOp = "/"
	Rem BinaryOp = "rem"
	Mod BinaryOp = "mod"
	Eq  BinaryOp = "="
	Neq BinaryOp = "/="
	Lt  BinaryOp = "<"
	Le  BinaryOp = "<="
	Gt  BinaryOp = ">"
	Ge  BinaryOp = ">="
	And BinaryOp = "and"
	Or  BinaryOp = "or"
	Xor BinaryOp = "xor"
)

// IsComparison returns true for relational operators.
//
func (op BinaryOp) IsComparison() bool {
	switch op {
	case Eq, Neq, Lt, Le, Gt, Ge:
		return true
	}
	return false
}

// Binary is a binary operation.
//
type Binary struct {
	Op   BinaryOp
	X, Y Expr
}

func (*Binary) expr() {}

func (b *Binary) String() string {
	return "(" + b.X.String() + " " + string(b.Op) + " " + b.Y.String() + ")"
}

// UnaryOp is a unary operator.
//
type UnaryOp string

// Unary operators.
//
const (
	Neg      UnaryOp = "-"
	Not      UnaryOp = "not"
	Identity UnaryOp = "+"
)

// Unary is a unary operation.
//
type Unary struct {
	Op UnaryOp
	X  Expr
}

func (*Unary) expr() {}

func (u *Unary) String() string {
	if u.Op == Not {
		return "not(" + u.X.String() + ")"
	}
	return string(u.Op) + u.X.String()
}

// Function is the name of a library function usable in a Call.
//
type Function string

// Library functions.
//
const (
	// numeric_std resize: sign extends signed values, keeps the sign bit when
	// narrowing signed values.
	FuncResize Function = "resize"
	// SmartResize: extends like resize but truncates to the low bits when
	// narrowing, for both signed and unsigned values.
	FuncSmartResize      Function = "SmartResize"
	FuncToSigned         Function = "to_signed"
	FuncToUnsigned       Function = "to_unsigned"
	FuncToInteger        Function = "to_integer"
	FuncSigned           Function = "signed"
	FuncUnsigned         Function = "unsigned"
	FuncStdLogicVector   Function = "std_logic_vector"
	FuncToReal           Function = "to_real"
	FuncShiftLeft        Function = "shift_left"
	FuncShiftRight       Function = "shift_right"
	FuncBooleanToVector  Function = "BooleanToStdLogicVector"
	FuncVectorToBoolean  Function = "StdLogicVectorToBoolean"
	FuncRealToRealResize Function = "ResizeReal"
)

// Call is a call to a library function.
//
type Call struct {
	Func Function
	Args []Expr
}

func (*Call) expr() {}

func (c *Call) String() string {
	args := make([]string, len(c.Args))
	for i, a := range c.Args {
		args[i] = a.String()
	}
	return string(c.Func) + "(" + strings.Join(args, ", ") + ")"
}

// NewCall returns a call to f.
//
func NewCall(f Function, args ...Expr) *Call {
	return &Call{Func: f, Args: args}
}

// Resize returns resize(x, size).
//
func Resize(x Expr, size int) *Call {
	return NewCall(FuncResize, x, IntValue(IntegerType, int64(size)))
}

// SmartResize returns SmartResize(x, size).
//
func SmartResize(x Expr, size int) *Call {
	return NewCall(FuncSmartResize, x, IntValue(IntegerType, int64(size)))
}

// IsAssignable returns true if e can be the target of an assignment.
//
func IsAssignable(e Expr) bool {
	switch e := e.(type) {
	case Ref:
		return e.Kind != Constant
	case *IndexRef:
		return IsAssignable(e.Array)
	case *FieldRef:
		return IsAssignable(e.Record)
	case *Slice:
		return IsAssignable(e.X)
	}
	return false
}

// RootRef returns the data object reference an assignable expression writes
// into.
//
func RootRef(e Expr) (Ref, bool) {
	switch e := e.(type) {
	case Ref:
		return e, true
	case *IndexRef:
		return RootRef(e.Array)
	case *FieldRef:
		return RootRef(e.Record)
	case *Slice:
		return RootRef(e.X)
	}
	return Ref{}, false
}

// VisitExpr calls fn for e and all of its sub-expressions.
//
func VisitExpr(e Expr, fn func(Expr)) {
	if e == nil {
		return
	}
	fn(e)
	switch e := e.(type) {
	case *IndexRef:
		VisitExpr(e.Array, fn)
		VisitExpr(e.Index, fn)
	case *FieldRef:
		VisitExpr(e.Record, fn)
	case *Slice:
		VisitExpr(e.X, fn)
	case *Aggregate:
		VisitExpr(e.Others, fn)
		for _, f := range e.Fields {
			VisitExpr(f.Value, fn)
		}
	case *Binary:
		VisitExpr(e.X, fn)
		VisitExpr(e.Y, fn)
	case *Unary:
		VisitExpr(e.X, fn)
	case *Call:
		for _, a := range e.Args {
			VisitExpr(a, fn)
		}
	}
}
