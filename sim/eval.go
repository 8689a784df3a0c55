// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package sim

import (
	"math"

	"github.com/db47h/hwfsm/hdl"
	"github.com/pkg/errors"
)

func (m *machine) eval(e hdl.Expr) (Value, error) {
	switch e := e.(type) {
	case hdl.Value:
		return scalar(e), nil
	case hdl.Ref:
		o, err := m.object(e.Name)
		if err != nil {
			return Value{}, err
		}
		return o.cur, nil
	case *hdl.IndexRef:
		a, err := m.eval(e.Array)
		if err != nil {
			return Value{}, err
		}
		i, err := m.index(a, e.Index)
		if err != nil {
			return Value{}, err
		}
		return a.Elems[i], nil
	case *hdl.FieldRef:
		r, err := m.eval(e.Record)
		if err != nil {
			return Value{}, err
		}
		i, err := fieldIndex(r, e.Field)
		if err != nil {
			return Value{}, err
		}
		return r.Fields[i], nil
	case *hdl.Slice:
		x, err := m.eval(e.X)
		if err != nil {
			return Value{}, err
		}
		return slice(x, e.High, e.Low)
	case *hdl.Aggregate:
		return m.aggregate(e)
	case *hdl.Binary:
		x, err := m.eval(e.X)
		if err != nil {
			return Value{}, err
		}
		y, err := m.eval(e.Y)
		if err != nil {
			return Value{}, err
		}
		return binary(e.Op, x, y)
	case *hdl.Unary:
		x, err := m.eval(e.X)
		if err != nil {
			return Value{}, err
		}
		return unary(e.Op, x)
	case *hdl.Call:
		args := make([]Value, len(e.Args))
		for i, a := range e.Args {
			v, err := m.eval(a)
			if err != nil {
				return Value{}, err
			}
			args[i] = v
		}
		return call(e.Func, args)
	}
	return Value{}, errors.Errorf("cannot evaluate %T", e)
}

func (m *machine) aggregate(a *hdl.Aggregate) (Value, error) {
	switch t := a.Type.(type) {
	case *hdl.Array:
		v := Value{Type: t, Elems: make([]Value, t.Length)}
		o := Zero(t.Elem)
		if a.Others != nil {
			var err error
			if o, err = m.eval(a.Others); err != nil {
				return Value{}, err
			}
		}
		for i := range v.Elems {
			v.Elems[i] = o.clone()
		}
		return v, nil
	case *hdl.Record:
		v := Zero(t)
		for _, f := range a.Fields {
			i, err := fieldIndex(v, f.Name)
			if err != nil {
				return Value{}, err
			}
			fv, err := m.eval(f.Value)
			if err != nil {
				return Value{}, err
			}
			v.Fields[i] = fv.clone()
		}
		return v, nil
	}
	return Value{}, errors.Errorf("aggregate of type %s", a.Type.TypeName())
}

func scalarOperands(op interface{}, x, y Value) (hdl.Scalar, hdl.Scalar, error) {
	xt, ok1 := x.scalarType()
	yt, ok2 := y.scalarType()
	if !ok1 || !ok2 {
		return xt, yt, errors.Errorf("operator %v on %s and %s", op, x.Type.TypeName(), y.Type.TypeName())
	}
	return xt, yt, nil
}

func isSigned(t hdl.Scalar) bool { return t.Kind == hdl.Signed || t.Kind == hdl.Integer }

func binary(op hdl.BinaryOp, x, y Value) (Value, error) {
	if op == hdl.Eq || op == hdl.Neq {
		if _, ok := x.scalarType(); !ok {
			return Bool(x.Equal(y) == (op == hdl.Eq)), nil
		}
	}
	xt, yt, err := scalarOperands(op, x, y)
	if err != nil {
		return Value{}, err
	}
	if op.IsComparison() {
		return Bool(compare(op, xt, x, y)), nil
	}
	if xt.Kind == hdl.Real {
		return realBinary(op, xt, x.Real, y.Float64())
	}
	// result type of numeric_std operators.
	rt := xt
	switch op {
	case hdl.Mul:
		if xt.IsNumeric() {
			rt.Size = xt.Size + yt.Size
			if rt.Size > 64 {
				rt.Size = 64
			}
		}
	case hdl.Add, hdl.Sub:
		if yt.Size > rt.Size {
			rt.Size = yt.Size
		}
	}
	a, b := x.Bits, y.Bits
	if isSigned(xt) {
		a, b = uint64(x.Int64()), uint64(y.Int64())
	}
	var r uint64
	switch op {
	case hdl.Add:
		r = a + b
	case hdl.Sub:
		r = a - b
	case hdl.Mul:
		r = a * b
	case hdl.Div, hdl.Rem, hdl.Mod:
		r = divide(op, isSigned(xt), a, b)
	case hdl.And:
		r = a & b
	case hdl.Or:
		r = a | b
	case hdl.Xor:
		r = a ^ b
	default:
		return Value{}, errors.Errorf("unknown operator %s", op)
	}
	return Value{Type: rt, Bits: r & hdl.Mask(rt.Size)}, nil
}

// divide implements truncated division. Division by zero yields zero.
func divide(op hdl.BinaryOp, signed bool, a, b uint64) uint64 {
	if b == 0 {
		return 0
	}
	if !signed {
		switch op {
		case hdl.Div:
			return a / b
		}
		return a % b
	}
	x, y := int64(a), int64(b)
	switch op {
	case hdl.Div:
		if y == -1 {
			return uint64(-x)
		}
		return uint64(x / y)
	case hdl.Rem:
		if y == -1 {
			return 0
		}
		return uint64(x % y)
	}
	// mod takes the sign of the divisor.
	if y == -1 {
		return 0
	}
	r := x % y
	if r != 0 && (r < 0) != (y < 0) {
		r += y
	}
	return uint64(r)
}

func compare(op hdl.BinaryOp, t hdl.Scalar, x, y Value) bool {
	var c int
	switch {
	case t.Kind == hdl.Real:
		a, b := x.Real, y.Float64()
		switch op {
		case hdl.Eq:
			return a == b
		case hdl.Neq:
			return a != b
		}
		switch {
		case a < b:
			c = -1
		case a > b:
			c = 1
		}
	case isSigned(t):
		a, b := x.Int64(), y.Int64()
		switch {
		case a < b:
			c = -1
		case a > b:
			c = 1
		}
	default:
		a, b := x.Bits, y.Bits
		switch {
		case a < b:
			c = -1
		case a > b:
			c = 1
		}
	}
	switch op {
	case hdl.Eq:
		return c == 0
	case hdl.Neq:
		return c != 0
	case hdl.Lt:
		return c < 0
	case hdl.Le:
		return c <= 0
	case hdl.Gt:
		return c > 0
	}
	return c >= 0
}

func realBinary(op hdl.BinaryOp, t hdl.Scalar, a, b float64) (Value, error) {
	var r float64
	switch op {
	case hdl.Add:
		r = a + b
	case hdl.Sub:
		r = a - b
	case hdl.Mul:
		r = a * b
	case hdl.Div:
		r = a / b
	case hdl.Rem:
		r = math.Mod(a, b)
	default:
		return Value{}, errors.Errorf("operator %s on %s", op, t.TypeName())
	}
	return Value{Type: t, Real: roundReal(r, t.Size)}, nil
}

func unary(op hdl.UnaryOp, x Value) (Value, error) {
	t, ok := x.scalarType()
	if !ok {
		return Value{}, errors.Errorf("operator %s on %s", op, x.Type.TypeName())
	}
	switch op {
	case hdl.Identity:
		return x, nil
	case hdl.Neg:
		if t.Kind == hdl.Real {
			return Value{Type: t, Real: -x.Real}, nil
		}
		return Value{Type: t, Bits: -x.Bits & hdl.Mask(t.Size)}, nil
	case hdl.Not:
		if t.Kind == hdl.Real {
			break
		}
		return Value{Type: t, Bits: ^x.Bits & hdl.Mask(t.Size)}, nil
	}
	return Value{}, errors.Errorf("operator %s on %s", op, t.TypeName())
}

// call evaluates a library function.
func call(f hdl.Function, args []Value) (Value, error) {
	want := 1
	switch f {
	case hdl.FuncResize, hdl.FuncSmartResize, hdl.FuncToSigned, hdl.FuncToUnsigned,
		hdl.FuncToReal, hdl.FuncRealToRealResize, hdl.FuncShiftLeft, hdl.FuncShiftRight:
		want = 2
	}
	if len(args) != want {
		return Value{}, errors.Errorf("%s: %d arguments, expected %d", f, len(args), want)
	}
	x := args[0]
	t, ok := x.scalarType()
	if !ok {
		return Value{}, errors.Errorf("%s of %s", f, x.Type.TypeName())
	}
	var n int
	if want == 2 {
		n = int(args[1].Int64())
		if f != hdl.FuncShiftLeft && f != hdl.FuncShiftRight && (n <= 0 || n > 64) {
			return Value{}, errors.Errorf("%s: invalid size %d", f, n)
		}
	}
	switch f {
	case hdl.FuncSmartResize:
		return resize(x, t, hdl.Scalar{Kind: t.Kind, Size: n}), nil
	case hdl.FuncResize:
		rt := hdl.Scalar{Kind: t.Kind, Size: n}
		if t.Kind == hdl.Signed && n < t.Size {
			// numeric_std keeps the sign bit when narrowing signed values.
			r := resize(x, t, rt)
			sign := x.Bits >> uint(t.Size-1) & 1
			r.Bits = r.Bits&^(1<<uint(n-1)) | sign<<uint(n-1)
			return r, nil
		}
		return resize(x, t, rt), nil
	case hdl.FuncToSigned, hdl.FuncToUnsigned:
		kind := hdl.Signed
		if f == hdl.FuncToUnsigned {
			kind = hdl.Unsigned
		}
		i := x.Int64()
		if t.Kind == hdl.Real {
			i = realToInt(x.Real)
		}
		return Int(hdl.Scalar{Kind: kind, Size: n}, i), nil
	case hdl.FuncToInteger:
		if t.Kind == hdl.Real {
			return Int(hdl.IntegerType, realToInt(x.Real)), nil
		}
		return Int(hdl.IntegerType, x.Int64()), nil
	case hdl.FuncSigned:
		return Value{Type: hdl.SignedType(t.Size), Bits: x.Bits}, nil
	case hdl.FuncUnsigned:
		return Value{Type: hdl.UnsignedType(t.Size), Bits: x.Bits}, nil
	case hdl.FuncStdLogicVector:
		return Value{Type: hdl.VectorType(t.Size), Bits: x.Bits}, nil
	case hdl.FuncToReal, hdl.FuncRealToRealResize:
		if n != 32 && n != 64 {
			return Value{}, errors.Errorf("%s: invalid real size %d", f, n)
		}
		return Value{Type: hdl.RealType(n), Real: roundReal(x.Float64(), n)}, nil
	case hdl.FuncShiftLeft, hdl.FuncShiftRight:
		return shift(f, x, t, n), nil
	case hdl.FuncBooleanToVector:
		return Value{Type: hdl.VectorType(1), Bits: x.Bits & 1}, nil
	case hdl.FuncVectorToBoolean:
		return Bool(x.Bits != 0), nil
	}
	return Value{}, errors.Errorf("unknown function %s", f)
}

// resize sign extends signed values, zero extends the others and keeps the
// low order bits when narrowing.
func resize(x Value, from, to hdl.Scalar) Value {
	if from.Kind == hdl.Signed || from.Kind == hdl.Integer {
		return Int(to, x.Int64())
	}
	return Value{Type: to, Bits: x.Bits & hdl.Mask(to.Size)}
}

func shift(f hdl.Function, x Value, t hdl.Scalar, n int) Value {
	if n < 0 {
		n = 0
	}
	if f == hdl.FuncShiftLeft {
		if n >= 64 {
			return Value{Type: t}
		}
		return Value{Type: t, Bits: x.Bits << uint(n) & hdl.Mask(t.Size)}
	}
	if t.Kind == hdl.Signed {
		if n >= 64 {
			n = 63
		}
		return Int(t, x.Int64()>>uint(n))
	}
	if n >= 64 {
		return Value{Type: t}
	}
	return Value{Type: t, Bits: x.Bits >> uint(n)}
}
