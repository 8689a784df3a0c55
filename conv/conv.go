// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

// Package conv implements conversions between hardware data types.
//
// Conversions reproduce the two's complement semantics of the source
// language: narrowing keeps the low order bits, widening sign extends signed
// values and zero extends unsigned ones. SmartResize is used for every width
// adjustment since the numeric_std resize function keeps the sign bit when
// narrowing signed values.
//
package conv

import (
	"github.com/db47h/hwfsm/hdl"
	"github.com/pkg/errors"
)

// Result is the outcome of a conversion.
//
type Result struct {
	Expr hdl.Expr
	// IsLossy is set if the conversion may lose magnitude or sign information.
	IsLossy bool
	// IsResized is set if the conversion changed the length of an array.
	IsResized bool
}

// UnsupportedError is returned for type pairs that have no conversion.
//
type UnsupportedError struct {
	From, To hdl.DataType
}

func (e *UnsupportedError) Error() string {
	return "unsupported cast from " + e.From.TypeName() + " to " + e.To.TypeName()
}

func unsupported(from, to hdl.DataType) error {
	return errors.WithStack(&UnsupportedError{From: from, To: to})
}

// mantissa bits of real types.
func mantissa(size int) int {
	if size == 32 {
		return 24
	}
	return 53
}

func size(n int) hdl.Value { return hdl.IntValue(hdl.IntegerType, int64(n)) }

// Convert returns an expression converting e from type from to type to.
// Identical types yield e unchanged.
//
func Convert(from, to hdl.DataType, e hdl.Expr) (Result, error) {
	if hdl.SameType(from, to) {
		return Result{Expr: e}, nil
	}
	switch f := from.(type) {
	case hdl.Scalar:
		t, ok := to.(hdl.Scalar)
		if !ok {
			return Result{}, unsupported(from, to)
		}
		return scalar(f, t, e)
	case *hdl.Array:
		t, ok := to.(*hdl.Array)
		if !ok || !hdl.SameType(f.Elem, t.Elem) {
			return Result{}, unsupported(from, to)
		}
		if f.Length < t.Length {
			// a shorter array cannot produce a value of the longer type; use
			// Assign instead.
			return Result{}, unsupported(from, to)
		}
		return Result{Expr: &hdl.Slice{X: e, High: t.Length - 1, Low: 0}, IsLossy: true, IsResized: true}, nil
	}
	return Result{}, unsupported(from, to)
}

func scalar(from, to hdl.Scalar, e hdl.Expr) (Result, error) {
	switch from.Kind {
	case hdl.Signed, hdl.Unsigned:
		switch to.Kind {
		case hdl.Signed, hdl.Unsigned:
			return numeric(from, to, e), nil
		case hdl.Integer:
			return Result{Expr: hdl.NewCall(hdl.FuncToInteger, e), IsLossy: true}, nil
		case hdl.Real:
			return Result{Expr: hdl.NewCall(hdl.FuncToReal, e, size(to.Size)), IsLossy: from.Size > mantissa(to.Size)}, nil
		case hdl.StdLogicVector:
			r := numeric(from, hdl.Scalar{Kind: from.Kind, Size: to.Size}, e)
			r.Expr = hdl.NewCall(hdl.FuncStdLogicVector, r.Expr)
			return r, nil
		}
	case hdl.Integer:
		switch to.Kind {
		case hdl.Signed:
			return Result{Expr: hdl.NewCall(hdl.FuncToSigned, e, size(to.Size)), IsLossy: to.Size < from.Size}, nil
		case hdl.Unsigned:
			return Result{Expr: hdl.NewCall(hdl.FuncToUnsigned, e, size(to.Size)), IsLossy: true}, nil
		case hdl.Real:
			return Result{Expr: hdl.NewCall(hdl.FuncToReal, e, size(to.Size)), IsLossy: from.Size > mantissa(to.Size)}, nil
		case hdl.StdLogicVector:
			r, err := scalar(from, hdl.SignedType(to.Size), e)
			if err != nil {
				return r, err
			}
			r.Expr = hdl.NewCall(hdl.FuncStdLogicVector, r.Expr)
			return r, nil
		}
	case hdl.Real:
		switch to.Kind {
		case hdl.Real:
			return Result{Expr: hdl.NewCall(hdl.FuncRealToRealResize, e, size(to.Size)), IsLossy: to.Size < from.Size}, nil
		case hdl.Signed:
			return Result{Expr: hdl.NewCall(hdl.FuncToSigned, e, size(to.Size)), IsLossy: true}, nil
		case hdl.Unsigned:
			return Result{Expr: hdl.NewCall(hdl.FuncToUnsigned, e, size(to.Size)), IsLossy: true}, nil
		case hdl.Integer:
			return Result{Expr: hdl.NewCall(hdl.FuncToInteger, e), IsLossy: true}, nil
		}
	case hdl.StdLogicVector:
		switch to.Kind {
		case hdl.Boolean:
			return Result{Expr: hdl.NewCall(hdl.FuncVectorToBoolean, e), IsLossy: from.Size > 1}, nil
		case hdl.StdLogicVector:
			r := numeric(hdl.UnsignedType(from.Size), hdl.UnsignedType(to.Size), hdl.NewCall(hdl.FuncUnsigned, e))
			r.Expr = hdl.NewCall(hdl.FuncStdLogicVector, r.Expr)
			return r, nil
		case hdl.Signed, hdl.Unsigned:
			// reinterpret at the source width, then adjust the width in the
			// target signedness.
			f := hdl.Scalar{Kind: to.Kind, Size: from.Size}
			fn := hdl.FuncUnsigned
			if to.Kind == hdl.Signed {
				fn = hdl.FuncSigned
			}
			return numeric(f, to, hdl.NewCall(fn, e)), nil
		case hdl.Integer:
			return scalar(hdl.SignedType(from.Size), to, hdl.NewCall(hdl.FuncSigned, e))
		}
	case hdl.Boolean:
		if to.Kind == hdl.StdLogicVector {
			v := hdl.NewCall(hdl.FuncBooleanToVector, e)
			if to.Size == 1 {
				return Result{Expr: v}, nil
			}
			return scalar(hdl.VectorType(1), to, v)
		}
	}
	return Result{}, unsupported(from, to)
}

// numeric converts between signed and unsigned types.
func numeric(from, to hdl.Scalar, e hdl.Expr) Result {
	switch {
	case from.Kind == to.Kind:
		if from.Size == to.Size {
			return Result{Expr: e}
		}
		return Result{Expr: hdl.SmartResize(e, to.Size), IsLossy: to.Size < from.Size}
	case from.Kind == hdl.Unsigned:
		// widen (zero extend) or narrow before reinterpreting the sign bit.
		var x hdl.Expr = e
		if from.Size != to.Size {
			x = hdl.SmartResize(e, to.Size)
		}
		return Result{Expr: hdl.NewCall(hdl.FuncSigned, x), IsLossy: from.Size >= to.Size}
	default:
		// signed to unsigned: sign extend first when widening so that the bit
		// pattern matches the source's two's complement conversion.
		var x hdl.Expr = e
		if from.Size != to.Size {
			x = hdl.SmartResize(e, to.Size)
		}
		return Result{Expr: hdl.NewCall(hdl.FuncUnsigned, x), IsLossy: true}
	}
}

// Assign returns an assignment of value (of type vt) to target (of type tt).
// Arrays of differing lengths are both sliced to the shorter length.
//
func Assign(target hdl.Expr, tt hdl.DataType, value hdl.Expr, vt hdl.DataType) (*hdl.Assignment, Result, error) {
	if ta, ok := tt.(*hdl.Array); ok {
		if va, ok := vt.(*hdl.Array); ok && hdl.SameType(ta.Elem, va.Elem) && ta.Length != va.Length {
			n := ta.Length
			if va.Length < n {
				n = va.Length
			}
			r := Result{IsResized: true, IsLossy: va.Length > ta.Length}
			if va.Length > n {
				value = &hdl.Slice{X: value, High: n - 1, Low: 0}
			}
			if ta.Length > n {
				target = &hdl.Slice{X: target, High: n - 1, Low: 0}
			}
			r.Expr = value
			return hdl.Assign(target, value), r, nil
		}
	}
	r, err := Convert(vt, tt, value)
	if err != nil {
		return nil, r, err
	}
	return hdl.Assign(target, r.Expr), r, nil
}

// TypeOf returns the type of e, given the types of the data objects it
// references. It returns nil if the type cannot be determined.
//
func TypeOf(e hdl.Expr, lookup func(name string) hdl.DataType) hdl.DataType {
	switch e := e.(type) {
	case hdl.Value:
		return e.Type
	case hdl.Ref:
		return lookup(e.Name)
	case *hdl.IndexRef:
		if a, ok := TypeOf(e.Array, lookup).(*hdl.Array); ok {
			return a.Elem
		}
	case *hdl.FieldRef:
		if r, ok := TypeOf(e.Record, lookup).(*hdl.Record); ok {
			if f, ok := r.Field(e.Field); ok {
				return f.Type
			}
		}
	case *hdl.Slice:
		switch t := TypeOf(e.X, lookup).(type) {
		case *hdl.Array:
			return hdl.NewArray(t.Elem, e.High-e.Low+1)
		case hdl.Scalar:
			return hdl.Scalar{Kind: t.Kind, Size: e.High - e.Low + 1}
		}
	case *hdl.Aggregate:
		return e.Type
	case *hdl.Binary:
		if e.Op.IsComparison() {
			return hdl.BooleanType
		}
		xt, _ := TypeOf(e.X, lookup).(hdl.Scalar)
		yt, _ := TypeOf(e.Y, lookup).(hdl.Scalar)
		switch e.Op {
		case hdl.Mul:
			if xt.Kind == hdl.Signed || xt.Kind == hdl.Unsigned {
				return hdl.Scalar{Kind: xt.Kind, Size: xt.Size + yt.Size}
			}
		case hdl.Add, hdl.Sub:
			if yt.Size > xt.Size && xt.Kind != hdl.Real {
				return hdl.Scalar{Kind: xt.Kind, Size: yt.Size}
			}
		}
		return xt
	case *hdl.Unary:
		return TypeOf(e.X, lookup)
	case *hdl.Call:
		return callType(e, lookup)
	}
	return nil
}

func callType(c *hdl.Call, lookup func(string) hdl.DataType) hdl.DataType {
	var arg hdl.Scalar
	if len(c.Args) > 0 {
		arg, _ = TypeOf(c.Args[0], lookup).(hdl.Scalar)
	}
	n := arg.Size
	if len(c.Args) > 1 {
		if v, ok := c.Args[1].(hdl.Value); ok {
			n = int(v.Int64())
		}
	}
	switch c.Func {
	case hdl.FuncResize, hdl.FuncSmartResize:
		return hdl.Scalar{Kind: arg.Kind, Size: n}
	case hdl.FuncToSigned:
		return hdl.SignedType(n)
	case hdl.FuncToUnsigned:
		return hdl.UnsignedType(n)
	case hdl.FuncToInteger:
		return hdl.IntegerType
	case hdl.FuncSigned:
		return hdl.SignedType(arg.Size)
	case hdl.FuncUnsigned:
		return hdl.UnsignedType(arg.Size)
	case hdl.FuncStdLogicVector:
		return hdl.VectorType(arg.Size)
	case hdl.FuncToReal, hdl.FuncRealToRealResize:
		return hdl.RealType(n)
	case hdl.FuncShiftLeft, hdl.FuncShiftRight:
		return arg
	case hdl.FuncBooleanToVector:
		return hdl.VectorType(1)
	case hdl.FuncVectorToBoolean:
		return hdl.BooleanType
	}
	return nil
}
