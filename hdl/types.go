// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package hdl

import (
	"strconv"
	"strings"
)

// A DataType is the hardware type of a data object or expression. It is one of
// Scalar, *Array, *Record or *Enum.
//
type DataType interface {
	TypeName() string
	dataType()
}

// ScalarKind enumerates scalar hardware types.
//
type ScalarKind int

// Scalar kinds.
//
const (
	Boolean ScalarKind = iota
	Signed
	Unsigned
	StdLogicVector
	Integer // unranged index type, 32 bits signed
	Real
)

var kindNames = [...]string{
	Boolean:        "boolean",
	Signed:         "signed",
	Unsigned:       "unsigned",
	StdLogicVector: "std_logic_vector",
	Integer:        "integer",
	Real:           "real",
}

func (k ScalarKind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "ScalarKind(" + strconv.Itoa(int(k)) + ")"
}

// Scalar is a scalar type with an explicit bit width.
//
type Scalar struct {
	Kind ScalarKind
	Size int
}

func (Scalar) dataType() {}

// TypeName returns the type name, including the bit range for sized types.
//
func (s Scalar) TypeName() string {
	switch s.Kind {
	case Signed, Unsigned, StdLogicVector:
		return s.Kind.String() + "(" + strconv.Itoa(s.Size-1) + " downto 0)"
	case Real:
		if s.Size == 32 {
			return "real32"
		}
	}
	return s.Kind.String()
}

// IsNumeric returns true for signed and unsigned types.
//
func (s Scalar) IsNumeric() bool {
	return s.Kind == Signed || s.Kind == Unsigned
}

// Common scalar types.
//
var (
	BooleanType = Scalar{Boolean, 1}
	IntegerType = Scalar{Integer, 32}
)

// SignedType returns a signed type of the given width.
func SignedType(size int) Scalar { return Scalar{Signed, size} }

// UnsignedType returns an unsigned type of the given width.
func UnsignedType(size int) Scalar { return Scalar{Unsigned, size} }

// VectorType returns a std_logic_vector type of the given width.
func VectorType(size int) Scalar { return Scalar{StdLogicVector, size} }

// RealType returns a floating point type of the given width (32 or 64).
func RealType(size int) Scalar { return Scalar{Real, size} }

// Array is an array of elements with a static length.
//
type Array struct {
	Name   string
	Elem   DataType
	Length int
}

func (*Array) dataType() {}

// TypeName returns a.Name.
func (a *Array) TypeName() string { return a.Name }

// NewArray returns an array type of the given element type and length. The
// type name is derived from the element type.
//
func NewArray(elem DataType, length int) *Array {
	return &Array{
		Name:   arrayTypeName(elem),
		Elem:   elem,
		Length: length,
	}
}

func arrayTypeName(elem DataType) string {
	if s, ok := elem.(Scalar); ok {
		switch s.Kind {
		case Signed, Unsigned, StdLogicVector:
			return s.Kind.String() + strconv.Itoa(s.Size) + "_Array"
		}
		return s.Kind.String() + "_Array"
	}
	return elem.TypeName() + "_Array"
}

// RecordField is a named field in a Record.
//
type RecordField struct {
	Name string
	Type DataType
}

// Record is a record made of named fields.
//
type Record struct {
	Name   string
	Fields []RecordField
}

func (*Record) dataType() {}

// TypeName returns r.Name.
func (r *Record) TypeName() string { return r.Name }

// Field looks up a field by name.
//
func (r *Record) Field(name string) (RecordField, bool) {
	for _, f := range r.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return RecordField{}, false
}

// Enum is an enumeration type.
//
type Enum struct {
	Name   string
	Values []string
}

func (*Enum) dataType() {}

// TypeName returns e.Name.
func (e *Enum) TypeName() string { return e.Name }

// SameType reports whether a and b denote the same hardware type.
//
func SameType(a, b DataType) bool {
	switch at := a.(type) {
	case Scalar:
		bt, ok := b.(Scalar)
		return ok && at == bt
	case *Array:
		bt, ok := b.(*Array)
		return ok && at.Length == bt.Length && SameType(at.Elem, bt.Elem)
	case *Record:
		bt, ok := b.(*Record)
		return ok && at.Name == bt.Name
	case *Enum:
		bt, ok := b.(*Enum)
		return ok && at.Name == bt.Name
	}
	return false
}

// IsPrimitive returns true if t is a scalar type.
//
func IsPrimitive(t DataType) bool {
	_, ok := t.(Scalar)
	return ok
}

// ZeroValue returns the default value expression for t.
//
func ZeroValue(t DataType) Expr {
	switch t := t.(type) {
	case Scalar:
		return Value{Type: t}
	case *Array:
		return &Aggregate{Type: t, Others: ZeroValue(t.Elem)}
	case *Record:
		a := &Aggregate{Type: t}
		for _, f := range t.Fields {
			a.Fields = append(a.Fields, FieldInit{Name: f.Name, Value: ZeroValue(f.Type)})
		}
		return a
	case *Enum:
		return Value{Type: IntegerType}
	}
	return nil
}

// sanitize turns a name into something usable as part of a type name.
func sanitize(name string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '(', ')', ',', ' ', ':', '<', '>', '[', ']':
			return '_'
		}
		return r
	}, name)
}
