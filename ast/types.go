// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

// Package ast defines the typed syntax tree consumed by the transformer.
//
// The tree is expected to be normalized by the frontend: constructors are
// plain methods, conditional expressions are if/else statements, object
// initializers are separate assignments and assignments embedded in
// expressions have been hoisted into statements. Every expression carries its
// resolved type.
//
package ast

import (
	"strconv"
	"strings"
)

// A Type is a resolved source type.
//
type Type interface {
	String() string
	isType()
}

// Primitive is a built-in value type.
//
type Primitive int

// Primitive types.
//
const (
	Void Primitive = iota
	Bool
	Char
	SByte
	Byte
	Short
	UShort
	Int
	UInt
	Long
	ULong
	Float
	Double
)

var primitiveNames = [...]string{
	Void:   "void",
	Bool:   "bool",
	Char:   "char",
	SByte:  "sbyte",
	Byte:   "byte",
	Short:  "short",
	UShort: "ushort",
	Int:    "int",
	UInt:   "uint",
	Long:   "long",
	ULong:  "ulong",
	Float:  "float",
	Double: "double",
}

func (Primitive) isType() {}

func (p Primitive) String() string {
	if int(p) < len(primitiveNames) {
		return primitiveNames[p]
	}
	return "Primitive(" + strconv.Itoa(int(p)) + ")"
}

// Size returns the size in bits of integer and floating point types.
//
func (p Primitive) Size() int {
	switch p {
	case Bool:
		return 1
	case SByte, Byte:
		return 8
	case Short, UShort, Char:
		return 16
	case Int, UInt, Float:
		return 32
	case Long, ULong, Double:
		return 64
	}
	return 0
}

// IsInteger returns true for integral types, including char.
//
func (p Primitive) IsInteger() bool {
	switch p {
	case Char, SByte, Byte, Short, UShort, Int, UInt, Long, ULong:
		return true
	}
	return false
}

// IsSigned returns true for signed integral types.
//
func (p Primitive) IsSigned() bool {
	switch p {
	case SByte, Short, Int, Long:
		return true
	}
	return false
}

// IsFloat returns true for floating point types.
func (p Primitive) IsFloat() bool { return p == Float || p == Double }

// ArrayType is a single dimensional array with a length known statically.
//
type ArrayType struct {
	Elem   Type
	Length int
	// Rank is the number of dimensions; 0 and 1 both mean a plain array.
	Rank int
}

func (*ArrayType) isType() {}

func (a *ArrayType) String() string {
	if a.Rank > 1 {
		return a.Elem.String() + "[" + strings.Repeat(",", a.Rank-1) + "]"
	}
	return a.Elem.String() + "[]"
}

// Field is a field of a class.
//
type Field struct {
	Name string
	Type Type
	// Init is the field initializer, if any.
	Init Expr
}

// Class is a reference type made of fields and methods. Objects are
// flattened into records.
//
type Class struct {
	Name    string
	Fields  []*Field
	Methods []*Method
}

func (*Class) isType() {}

func (c *Class) String() string { return c.Name }

// Field looks up a field by name.
//
func (c *Class) Field(name string) *Field {
	for _, f := range c.Fields {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// Names of the reserved classes recognized by the transformer.
//
const (
	MemoryClassName = "SimpleMemory"
	SimdClassName   = "SimdOperations"
)

// MemoryType is the type of the reserved memory access surface.
//
var MemoryType = &Class{Name: MemoryClassName}

// TaskType is the handle of a started parallel invocation.
//
type TaskType struct {
	Result Type
}

func (*TaskType) isType() {}

func (t *TaskType) String() string { return "Task<" + t.Result.String() + ">" }

// IsReference returns true if values of type t have reference semantics.
//
func IsReference(t Type) bool {
	switch t.(type) {
	case *ArrayType, *Class:
		return true
	}
	return false
}

// SameType reports whether a and b are the same type.
//
func SameType(a, b Type) bool {
	switch at := a.(type) {
	case Primitive:
		bt, ok := b.(Primitive)
		return ok && at == bt
	case *ArrayType:
		bt, ok := b.(*ArrayType)
		return ok && at.Length == bt.Length && at.Rank == bt.Rank && SameType(at.Elem, bt.Elem)
	case *Class:
		bt, ok := b.(*Class)
		return ok && at.Name == bt.Name
	case *TaskType:
		bt, ok := b.(*TaskType)
		return ok && SameType(at.Result, bt.Result)
	}
	return false
}
