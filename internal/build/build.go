// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

// Package build provides shorthands to build syntax trees in tests and
// examples.
//
package build

import "github.com/db47h/hwfsm/ast"

// Int returns an int literal.
func Int(v int64) *ast.Literal { return &ast.Literal{T: ast.Int, Value: v} }

// Long returns a long literal.
func Long(v int64) *ast.Literal { return &ast.Literal{T: ast.Long, Value: v} }

// UInt returns a uint literal.
func UInt(v uint64) *ast.Literal { return &ast.Literal{T: ast.UInt, Value: v} }

// Bool returns a bool literal.
func Bool(b bool) *ast.Literal { return &ast.Literal{T: ast.Bool, Value: b} }

// Double returns a double literal.
func Double(f float64) *ast.Literal { return &ast.Literal{T: ast.Double, Value: f} }

// Var refers to a local variable or parameter.
func Var(name string, t ast.Type) *ast.Ident { return &ast.Ident{Name: name, T: t} }

// Bin returns a binary operation. Comparisons and logical operators are of
// type bool, other operators of the type of x.
//
func Bin(op ast.BinaryOp, x, y ast.Expr) *ast.Binary {
	t := x.Type()
	switch op {
	case ast.OpEq, ast.OpNeq, ast.OpLt, ast.OpLe, ast.OpGt, ast.OpGe, ast.OpLogicalAnd, ast.OpLogicalOr:
		t = ast.Bool
	}
	return &ast.Binary{Op: op, X: x, Y: y, T: t}
}

// BinT returns a binary operation of type t.
func BinT(op ast.BinaryOp, x, y ast.Expr, t ast.Type) *ast.Binary {
	return &ast.Binary{Op: op, X: x, Y: y, T: t}
}

// Cast returns an explicit conversion.
func Cast(to ast.Type, x ast.Expr) *ast.Cast { return &ast.Cast{To: to, X: x} }

// Assign returns an assignment statement.
func Assign(target, value ast.Expr) *ast.ExprStmt {
	return &ast.ExprStmt{X: &ast.Assign{Target: target, Value: value}}
}

// AssignOp returns a compound assignment statement.
func AssignOp(op ast.BinaryOp, target, value ast.Expr) *ast.ExprStmt {
	return &ast.ExprStmt{X: &ast.Assign{Target: target, Value: value, Op: op}}
}

// Inc returns a post-increment statement.
func Inc(x ast.Expr) *ast.ExprStmt {
	return &ast.ExprStmt{X: &ast.Unary{Op: ast.OpPostInc, X: x, T: x.Type()}}
}

// Decl declares a local variable.
func Decl(name string, t ast.Type, init ast.Expr) *ast.VarDecl {
	return &ast.VarDecl{Name: name, Type: t, Init: init}
}

// Return returns x, which may be nil.
func Return(x ast.Expr) *ast.Return { return &ast.Return{Value: x} }

// Block returns a block.
func Block(stmts ...ast.Stmt) *ast.Block { return &ast.Block{Stmts: stmts} }

// If returns a conditional. els may be nil.
func If(cond ast.Expr, then, els ast.Stmt) *ast.If {
	return &ast.If{Cond: cond, Then: then, Else: els}
}

// While returns a pre-tested loop.
func While(cond ast.Expr, body ...ast.Stmt) *ast.While {
	return &ast.While{Cond: cond, Body: Block(body...)}
}

// Param returns a by value parameter.
func Param(name string, t ast.Type) *ast.Param { return &ast.Param{Name: name, Type: t} }

// Class returns an empty class.
func Class(name string, fields ...*ast.Field) *ast.Class {
	return &ast.Class{Name: name, Fields: fields}
}

// Static adds a static method to c.
func Static(c *ast.Class, name string, result ast.Type, params []*ast.Param, body ...ast.Stmt) *ast.Method {
	m := &ast.Method{Class: c, Name: name, Params: params, Result: result, Body: Block(body...), Static: true}
	c.Methods = append(c.Methods, m)
	return m
}

// Entry adds a static method to c and marks it as a hardware entry point.
func Entry(c *ast.Class, name string, result ast.Type, params []*ast.Param, body ...ast.Stmt) *ast.Method {
	m := Static(c, name, result, params, body...)
	m.EntryPoint = true
	return m
}

// Call returns a call to static method m.
func Call(m *ast.Method, args ...ast.Expr) *ast.Call {
	return &ast.Call{Method: m, Args: args}
}

// Program returns a program made of the given classes.
func Program(classes ...*ast.Class) *ast.Program { return &ast.Program{Classes: classes} }

// Memory returns a call to a method of the memory surface.
func Memory(name string, result ast.Type, args ...ast.Expr) *ast.Call {
	return &ast.Call{Method: &ast.Method{Class: ast.MemoryType, Name: name, Result: result, Extern: true}, Args: args}
}
