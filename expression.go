// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package hwfsm

import (
	"fmt"
	"strings"

	"github.com/db47h/hwfsm/ast"
	"github.com/db47h/hwfsm/conv"
	"github.com/db47h/hwfsm/hdl"
)

// expr lowers an expression. It returns either a constant value or a
// reference to a data object, along with its hardware type. Expressions of
// type void yield a nil expression.
//
func (s *scope) expr(e ast.Expr) (hdl.Expr, hdl.DataType, error) {
	switch e := e.(type) {
	case *ast.Literal:
		return s.literal(e)
	case *ast.Ident:
		l := s.lookup(e.Name)
		if l == nil || (l.obj == nil && l.alias == nil) {
			return nil, nil, s.errorf(ErrUnsupported, e, "unknown identifier %s", e.Name)
		}
		return l.expr(), l.hw, nil
	case *ast.This:
		l := s.lookup(ast.ThisName)
		if l == nil {
			return nil, nil, s.errorf(ErrUnsupported, e, "this in a static method")
		}
		return l.expr(), l.hw, nil
	case *ast.MemberAccess:
		return s.memberAccess(e)
	case *ast.Cast:
		return s.cast(e)
	case *ast.Binary:
		return s.binary(e)
	case *ast.Unary:
		return s.unary(e)
	case *ast.Assign:
		return s.assign(e)
	case *ast.Index:
		return s.index(e)
	case *ast.New:
		return s.newObject(e)
	case *ast.NewArray:
		t, err := s.hwType(e.T)
		if err != nil {
			return nil, nil, err
		}
		v, err := s.newVariable("array", t)
		if err != nil {
			return nil, nil, s.wrap(err, e)
		}
		s.add(hdl.Assign(v, hdl.ZeroValue(t)))
		return v, t, nil
	case *ast.Call:
		return s.call(e)
	case *ast.StartTask:
		return s.startTask(e)
	case *ast.WaitTasks:
		return nil, nil, s.waitTasks(e)
	case *ast.TaskResult:
		return s.taskResult(e)
	}
	return nil, nil, s.errorf(ErrUnsupported, e, "expression cannot be transformed")
}

func (s *scope) literal(e *ast.Literal) (hdl.Expr, hdl.DataType, error) {
	t, err := s.hwType(e.T)
	if err != nil {
		return nil, nil, err
	}
	st, ok := t.(hdl.Scalar)
	if !ok {
		return nil, nil, s.errorf(ErrUnsupported, e, "literal of type %s", e.T)
	}
	switch v := e.Value.(type) {
	case bool:
		return hdl.BoolValue(v), t, nil
	case int:
		return hdl.IntValue(st, int64(v)), t, nil
	case int64:
		return hdl.IntValue(st, v), t, nil
	case rune:
		return hdl.IntValue(st, int64(v)), t, nil
	case uint64:
		if st.Kind == hdl.Real {
			return hdl.RealValue(st, float64(v)), t, nil
		}
		return hdl.Value{Type: st, Bits: v & hdl.Mask(st.Size)}, t, nil
	case float64:
		if st.Kind == hdl.Real {
			return hdl.RealValue(st, v), t, nil
		}
		return hdl.IntValue(st, int64(v)), t, nil
	}
	return nil, nil, s.errorf(ErrUnsupported, e, "literal value %v", e.Value)
}

func (s *scope) memberAccess(e *ast.MemberAccess) (hdl.Expr, hdl.DataType, error) {
	if at, ok := e.X.Type().(*ast.ArrayType); ok && e.Name == "Length" {
		t, err := s.hwType(e.T)
		if err != nil {
			return nil, nil, err
		}
		return hdl.IntValue(t.(hdl.Scalar), int64(at.Length)), t, nil
	}
	x, xt, err := s.expr(e.X)
	if err != nil {
		return nil, nil, err
	}
	r, ok := xt.(*hdl.Record)
	if !ok {
		return nil, nil, s.errorf(ErrUnsupported, e, "member access on %s", e.X.Type())
	}
	f, ok := r.Field(e.Name)
	if !ok {
		return nil, nil, s.errorf(ErrUnsupported, e, "unknown field %s.%s", r.Name, e.Name)
	}
	return &hdl.FieldRef{Record: x, Field: e.Name}, f.Type, nil
}

// cast lowers an explicit conversion and warns if it may lose information.
func (s *scope) cast(e *ast.Cast) (hdl.Expr, hdl.DataType, error) {
	x, xt, err := s.expr(e.X)
	if err != nil {
		return nil, nil, err
	}
	t, err := s.hwType(e.To)
	if err != nil {
		return nil, nil, err
	}
	r, err := conv.Convert(xt, t, x)
	if err != nil {
		return nil, nil, s.wrap(err, e)
	}
	if r.IsLossy {
		s.lossyCasts++
		s.warn(WarnLossyCast, "cast #%d of %s from %s to %s may lose information", s.lossyCasts, operandName(e.X), e.X.Type(), e.To)
	}
	return r.Expr, t, nil
}

// operandName describes e in warnings. Instances of a member describe the
// same expression identically.
func operandName(e ast.Expr) string {
	switch e := e.(type) {
	case *ast.Ident:
		return e.Name
	case *ast.This:
		return "this"
	case *ast.Literal:
		return fmt.Sprint(e.Value)
	case *ast.MemberAccess:
		return operandName(e.X) + "." + e.Name
	}
	return strings.ToLower(construct(e))
}

func (s *scope) index(e *ast.Index) (hdl.Expr, hdl.DataType, error) {
	if at, ok := e.X.Type().(*ast.ArrayType); len(e.Indices) != 1 || ok && at.Rank > 1 {
		return nil, nil, s.errorf(ErrResource, e, "multi-dimensional arrays are not supported")
	}
	x, xt, err := s.expr(e.X)
	if err != nil {
		return nil, nil, err
	}
	at, ok := xt.(*hdl.Array)
	if !ok {
		return nil, nil, s.errorf(ErrUnsupported, e, "indexing a value of type %s", e.X.Type())
	}
	i, it, err := s.expr(e.Indices[0])
	if err != nil {
		return nil, nil, err
	}
	r, err := conv.Convert(it, hdl.IntegerType, i)
	if err != nil {
		return nil, nil, s.wrap(err, e)
	}
	return &hdl.IndexRef{Array: x, Index: r.Expr}, at.Elem, nil
}

// assign lowers an assignment and returns its target.
func (s *scope) assign(e *ast.Assign) (hdl.Expr, hdl.DataType, error) {
	if id, ok := e.Target.(*ast.Ident); ok {
		if l := s.lookup(id.Name); l != nil && l.alias != nil {
			return nil, nil, s.errorf(ErrUnsupported, e, "assignment to %s, an alias of another variable", id.Name)
		}
	}
	target, tt, err := s.expr(e.Target)
	if err != nil {
		return nil, nil, err
	}
	if !hdl.IsAssignable(target) {
		return nil, nil, s.errorf(ErrUnsupported, e, "assignment to a value")
	}
	var (
		v  hdl.Expr
		vt hdl.DataType
	)
	if e.Op != ast.OpNone {
		y, yt, err := s.expr(e.Value)
		if err != nil {
			return nil, nil, err
		}
		pt := promote(e.Target.Type(), e.Value.Type())
		if e.Op == ast.OpShl || e.Op == ast.OpShr {
			pt = promoteUnary(e.Target.Type())
		}
		op, err := s.binaryOp(e.Op, operand{target, tt, e.Target.Type()}, operand{y, yt, e.Value.Type()}, pt, e)
		if err != nil {
			return nil, nil, err
		}
		if v, vt, err = s.schedule(op); err != nil {
			return nil, nil, err
		}
	} else {
		if v, vt, err = s.expr(e.Value); err != nil {
			return nil, nil, err
		}
	}
	a, _, err := conv.Assign(target, tt, v, vt)
	if err != nil {
		return nil, nil, s.wrap(err, e)
	}
	s.add(a)
	if st, ok := e.Value.(*ast.StartTask); ok {
		if r, ok := hdl.RootRef(target); ok {
			s.taskVars[r.Name] = st.Method
		}
	}
	return target, tt, nil
}

// incDec lowers increment and decrement operators. Unless the value is
// discarded, post-increments save the previous value in a variable.
func (s *scope) incDec(e *ast.Unary, discard bool) (hdl.Expr, hdl.DataType, error) {
	target, tt, err := s.expr(e.X)
	if err != nil {
		return nil, nil, err
	}
	if !hdl.IsAssignable(target) {
		return nil, nil, s.errorf(ErrUnsupported, e, "increment of a value")
	}
	var old hdl.Expr
	if !discard && (e.Op == ast.OpPostInc || e.Op == ast.OpPostDec) {
		r, err := s.newVariable("old", tt)
		if err != nil {
			return nil, nil, s.wrap(err, e)
		}
		s.add(hdl.Assign(r, target))
		old = r
	}
	bop := ast.OpAdd
	if e.Op == ast.OpPreDec || e.Op == ast.OpPostDec {
		bop = ast.OpSub
	}
	one := operand{hdl.IntValue(hdl.SignedType(32), 1), hdl.SignedType(32), ast.Int}
	op, err := s.binaryOp(bop, operand{target, tt, e.X.Type()}, one, promote(e.X.Type(), ast.Int), e)
	if err != nil {
		return nil, nil, err
	}
	v, vt, err := s.schedule(op)
	if err != nil {
		return nil, nil, err
	}
	r, err := conv.Convert(vt, tt, v)
	if err != nil {
		return nil, nil, s.wrap(err, e)
	}
	s.add(hdl.Assign(target, r.Expr))
	if old != nil {
		return old, tt, nil
	}
	return target, tt, nil
}

// newObject lowers an object creation into a record variable initialized
// with the field defaults, on which the constructor is then invoked.
func (s *scope) newObject(e *ast.New) (hdl.Expr, hdl.DataType, error) {
	t, err := s.hwType(e.Class)
	if err != nil {
		return nil, nil, err
	}
	v, err := s.newVariable("object", t)
	if err != nil {
		return nil, nil, s.wrap(err, e)
	}
	for _, f := range e.Class.Fields {
		ft, _ := t.(*hdl.Record).Field(f.Name)
		target := &hdl.FieldRef{Record: v, Field: f.Name}
		if f.Init == nil {
			s.add(hdl.Assign(target, hdl.ZeroValue(ft.Type)))
			continue
		}
		x, xt, err := s.expr(f.Init)
		if err != nil {
			return nil, nil, err
		}
		a, _, err := conv.Assign(target, ft.Type, x, xt)
		if err != nil {
			return nil, nil, s.wrap(err, f.Init)
		}
		s.add(a)
	}
	if e.Ctor != nil {
		if _, _, err = s.invoke(e.Ctor, &argument{x: v, t: t}, e.Args); err != nil {
			return nil, nil, err
		}
	}
	return v, t, nil
}
