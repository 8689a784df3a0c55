// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package sim

import (
	"math"
	"strconv"
	"strings"

	"github.com/db47h/hwfsm/hdl"
	"github.com/pkg/errors"
)

// Value is the runtime value of a data object. Scalars use Bits (two's
// complement, masked to the type's width) or Real, arrays use Elems and
// records use Fields, in the order of the record type's fields.
//
type Value struct {
	Type   hdl.DataType
	Bits   uint64
	Real   float64
	Elems  []Value
	Fields []Value
}

// Zero returns the default value of type t.
//
func Zero(t hdl.DataType) Value {
	switch t := t.(type) {
	case *hdl.Array:
		v := Value{Type: t, Elems: make([]Value, t.Length)}
		for i := range v.Elems {
			v.Elems[i] = Zero(t.Elem)
		}
		return v
	case *hdl.Record:
		v := Value{Type: t, Fields: make([]Value, len(t.Fields))}
		for i, f := range t.Fields {
			v.Fields[i] = Zero(f.Type)
		}
		return v
	case *hdl.Enum:
		return Value{Type: hdl.IntegerType}
	}
	return Value{Type: t}
}

func scalar(v hdl.Value) Value {
	return Value{Type: v.Type, Bits: v.Bits & hdl.Mask(v.Type.Size), Real: v.Real}
}

// Int returns an integer value of type t. The value is truncated to the
// width of t.
//
func Int(t hdl.Scalar, i int64) Value {
	return scalar(hdl.IntValue(t, i))
}

// Bool returns a boolean value.
func Bool(b bool) Value { return scalar(hdl.BoolValue(b)) }

func (v Value) clone() Value {
	if v.Elems != nil {
		elems := make([]Value, len(v.Elems))
		for i := range v.Elems {
			elems[i] = v.Elems[i].clone()
		}
		v.Elems = elems
	}
	if v.Fields != nil {
		fields := make([]Value, len(v.Fields))
		for i := range v.Fields {
			fields[i] = v.Fields[i].clone()
		}
		v.Fields = fields
	}
	return v
}

func (v Value) scalarType() (hdl.Scalar, bool) {
	s, ok := v.Type.(hdl.Scalar)
	return s, ok
}

// Int64 returns the value of an integer or real scalar as an int64. Signed
// and integer types are sign extended.
//
func (v Value) Int64() int64 {
	s, ok := v.scalarType()
	if !ok {
		return 0
	}
	switch s.Kind {
	case hdl.Signed, hdl.Integer:
		return hdl.SignExtend(v.Bits, s.Size)
	case hdl.Real:
		return int64(v.Real)
	}
	return int64(v.Bits)
}

// Uint64 returns the raw bits of a scalar.
func (v Value) Uint64() uint64 { return v.Bits }

// Bool returns true for a non-zero scalar.
func (v Value) Bool() bool { return v.Bits != 0 }

// Float64 returns the value of a scalar as a float64.
//
func (v Value) Float64() float64 {
	if s, ok := v.scalarType(); ok && s.Kind == hdl.Real {
		return v.Real
	}
	if s, ok := v.scalarType(); ok && s.Kind == hdl.Unsigned {
		return float64(v.Bits)
	}
	return float64(v.Int64())
}

// Field returns the value of a record field.
//
func (v Value) Field(name string) (Value, bool) {
	r, ok := v.Type.(*hdl.Record)
	if !ok {
		return Value{}, false
	}
	for i, f := range r.Fields {
		if f.Name == name {
			return v.Fields[i], true
		}
	}
	return Value{}, false
}

// Equal reports whether v and w hold the same value.
//
func (v Value) Equal(w Value) bool {
	if len(v.Elems) != len(w.Elems) || len(v.Fields) != len(w.Fields) {
		return false
	}
	for i := range v.Elems {
		if !v.Elems[i].Equal(w.Elems[i]) {
			return false
		}
	}
	for i := range v.Fields {
		if !v.Fields[i].Equal(w.Fields[i]) {
			return false
		}
	}
	return v.Bits == w.Bits && v.Real == w.Real
}

func (v Value) String() string {
	switch t := v.Type.(type) {
	case *hdl.Array:
		parts := make([]string, len(v.Elems))
		for i, e := range v.Elems {
			parts[i] = e.String()
		}
		return "[" + strings.Join(parts, " ") + "]"
	case *hdl.Record:
		parts := make([]string, len(v.Fields))
		for i, f := range v.Fields {
			parts[i] = t.Fields[i].Name + ":" + f.String()
		}
		return "{" + strings.Join(parts, " ") + "}"
	case hdl.Scalar:
		switch t.Kind {
		case hdl.Boolean:
			return strconv.FormatBool(v.Bool())
		case hdl.Real:
			return strconv.FormatFloat(v.Real, 'g', -1, t.Size)
		case hdl.Unsigned, hdl.StdLogicVector:
			return strconv.FormatUint(v.Bits, 10)
		}
		return strconv.FormatInt(v.Int64(), 10)
	}
	return "<nil>"
}

// ValueOf converts a Go value to a Value of type t. Integer and floating point
// arguments are converted with the source language's conversion rules,
// slices and arrays map to arrays and structs to records. Value arguments are
// returned as is.
//
func ValueOf(t hdl.DataType, x interface{}) (Value, error) {
	if v, ok := x.(Value); ok {
		return v, nil
	}
	switch t := t.(type) {
	case hdl.Scalar:
		return scalarOf(t, x)
	case *hdl.Record:
		return recordOf(t, x)
	case *hdl.Array:
		xs, ok := sliceOf(x)
		if !ok {
			return Value{}, errors.Errorf("cannot convert %T to %s", x, t.TypeName())
		}
		v := Zero(t)
		for i := 0; i < len(xs) && i < t.Length; i++ {
			e, err := ValueOf(t.Elem, xs[i])
			if err != nil {
				return Value{}, errors.Wrapf(err, "element %d", i)
			}
			v.Elems[i] = e
		}
		return v, nil
	}
	return Value{}, errors.Errorf("cannot convert %T to %s", x, t.TypeName())
}

func scalarOf(t hdl.Scalar, x interface{}) (Value, error) {
	var (
		i     int64
		f     float64
		float bool
	)
	switch x := basic(x).(type) {
	case bool:
		if t.Kind != hdl.Boolean {
			return Value{}, errors.Errorf("cannot convert bool to %s", t.TypeName())
		}
		return Bool(x), nil
	case int64:
		i = x
	case uint64:
		i = int64(x)
	case float64:
		f, float = x, true
	default:
		return Value{}, errors.Errorf("cannot convert %T to %s", x, t.TypeName())
	}
	switch {
	case t.Kind == hdl.Boolean:
		return Value{}, errors.Errorf("cannot convert %T to %s", x, t.TypeName())
	case t.Kind == hdl.Real && float:
		return Value{Type: t, Real: roundReal(f, t.Size)}, nil
	case t.Kind == hdl.Real:
		return Value{Type: t, Real: roundReal(float64(i), t.Size)}, nil
	case float:
		i = realToInt(f)
	}
	return Int(t, i), nil
}

func roundReal(f float64, size int) float64 {
	if size == 32 {
		return float64(float32(f))
	}
	return f
}

// realToInt truncates toward zero, saturating out of range values and
// mapping NaN to zero.
func realToInt(f float64) int64 {
	switch {
	case math.IsNaN(f):
		return 0
	case f >= math.MaxInt64:
		return math.MaxInt64
	case f <= math.MinInt64:
		return math.MinInt64
	}
	return int64(f)
}
