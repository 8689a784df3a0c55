// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package ast

import "strings"

// ParamModifier is the passing mode of a parameter.
//
type ParamModifier int

// Parameter passing modes.
//
const (
	ByValue ParamModifier = iota
	Ref
	Out
)

// Param is a method parameter.
//
type Param struct {
	Name     string
	Type     Type
	Modifier ParamModifier
}

// ThisName is the name of the implicit parameter of instance methods.
//
const ThisName = "this"

// Method is a method declaration.
//
type Method struct {
	Class  *Class
	Name   string
	Params []*Param
	Result Type
	Body   *Block

	Static bool
	// Extern methods have no managed implementation.
	Extern bool
	// EntryPoint marks a hardware entry point.
	EntryPoint bool
}

// FullName returns the unique member name of m, for example
// "Calculator::Add(int,int)".
//
func (m *Method) FullName() string {
	var b strings.Builder
	if m.Class != nil {
		b.WriteString(m.Class.Name)
		b.WriteString("::")
	}
	b.WriteString(m.Name)
	b.WriteByte('(')
	for i, p := range m.Params {
		if i > 0 {
			b.WriteByte(',')
		}
		switch p.Modifier {
		case Ref:
			b.WriteString("ref ")
		case Out:
			b.WriteString("out ")
		}
		b.WriteString(p.Type.String())
	}
	b.WriteByte(')')
	return b.String()
}

// AllParams returns the parameters of m, preceded by the implicit this
// parameter for instance methods.
//
func (m *Method) AllParams() []*Param {
	if m.Static || m.Class == nil {
		return m.Params
	}
	return append([]*Param{{Name: ThisName, Type: m.Class, Modifier: Ref}}, m.Params...)
}

// IsVoid returns true if m does not return a value.
//
func (m *Method) IsVoid() bool {
	return m.Result == nil || m.Result == Void
}

// Program is the set of classes handed over by the frontend.
//
type Program struct {
	Classes []*Class
}

// EntryPoints returns the methods marked as hardware entry points.
//
func (p *Program) EntryPoints() []*Method {
	var ms []*Method
	for _, c := range p.Classes {
		for _, m := range c.Methods {
			if m.EntryPoint {
				ms = append(ms, m)
			}
		}
	}
	return ms
}
