// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package hwfsm

import (
	"github.com/db47h/hwfsm/ast"
	"github.com/db47h/hwfsm/conv"
	"github.com/db47h/hwfsm/hdl"
)

// terminal returns true for statements after which the rest of a block is
// unreachable.
func terminal(st ast.Stmt) bool {
	switch st.(type) {
	case *ast.Return, *ast.Break, *ast.Continue, *ast.Goto:
		return true
	}
	return false
}

// stmt lowers a statement at the cursor.
//
func (s *scope) stmt(st ast.Stmt) error {
	switch st := st.(type) {
	case *ast.Block:
		return s.block(st.Stmts)
	case *ast.VarDecl:
		return s.varDecl(st)
	case *ast.ExprStmt:
		return s.exprStmt(st.X)
	case *ast.Return:
		return s.returnStmt(st)
	case *ast.If:
		return s.ifStmt(st)
	case *ast.While:
		return s.whileStmt(st)
	case *ast.DoWhile:
		return s.doWhileStmt(st)
	case *ast.For:
		return s.forStmt(st)
	case *ast.Switch:
		return s.switchStmt(st)
	case *ast.Break:
		if len(s.frames) == 0 {
			return s.errorf(ErrUnsupported, st, "break outside of a loop or switch")
		}
		s.transition(s.frames[len(s.frames)-1].breakTo)
		return nil
	case *ast.Continue:
		for i := len(s.frames) - 1; i >= 0; i-- {
			if c := s.frames[i].continueTo; c >= 0 {
				s.transition(c)
				return nil
			}
		}
		return s.errorf(ErrUnsupported, st, "continue outside of a loop")
	case *ast.Throw:
		s.warn(WarnThrowOmitted, "throw statement omitted")
		return nil
	case *ast.Goto:
		l, ok := s.labels[st.Label]
		if !ok {
			return s.errorf(ErrUnsupported, st, "unknown label %s", st.Label)
		}
		s.transition(l)
		return nil
	case *ast.Labeled:
		l := s.labels[st.Label]
		s.guard(l)
		s.moveTo(s.m.States[l])
		return s.stmt(st.Stmt)
	case *ast.Empty:
		return nil
	case nil:
		return nil
	}
	return s.errorf(ErrUnsupported, st, "statement cannot be transformed")
}

func (s *scope) block(stmts []ast.Stmt) error {
	s.pushVars()
	defer s.popVars()
	var dead bool
	for _, st := range stmts {
		if _, ok := st.(*ast.Labeled); ok {
			dead = false
		}
		if dead {
			continue
		}
		if err := s.stmt(st); err != nil {
			return err
		}
		dead = terminal(st)
	}
	return nil
}

func (s *scope) varDecl(st *ast.VarDecl) error {
	if st.Synthesized {
		return nil
	}
	if ast.IsReference(st.Type) {
		switch st.Init.(type) {
		case *ast.Ident, *ast.This:
			x, t, err := s.expr(st.Init)
			if err != nil {
				return err
			}
			s.vars[len(s.vars)-1][st.Name] = &local{alias: x, typ: st.Type, hw: t}
			return nil
		}
	}
	if _, err := s.declare(st.Name, st.Type); err != nil {
		return err
	}
	if st.Init == nil {
		return nil
	}
	_, _, err := s.assign(&ast.Assign{Target: &ast.Ident{Name: st.Name, T: st.Type}, Value: st.Init})
	return err
}

// exprStmt lowers an expression whose value is discarded.
func (s *scope) exprStmt(x ast.Expr) error {
	var err error
	switch x := x.(type) {
	case *ast.Assign:
		_, _, err = s.assign(x)
	case *ast.Unary:
		switch x.Op {
		case ast.OpPreInc, ast.OpPostInc, ast.OpPreDec, ast.OpPostDec:
			_, _, err = s.incDec(x, true)
		default:
			_, _, err = s.expr(x)
		}
	default:
		_, _, err = s.expr(x)
	}
	return err
}

func (s *scope) returnStmt(st *ast.Return) error {
	if st.Value != nil {
		v := st.Value
		if a, ok := v.(*ast.Assign); ok {
			if _, _, err := s.assign(a); err != nil {
				return err
			}
			v = a.Target
		}
		x, xt, err := s.expr(v)
		if err != nil {
			return err
		}
		ret, _ := s.m.Object(s.m.Prefixed(hdl.ReturnName))
		if ret == nil {
			return s.errorf(ErrUnsupported, st, "return value in a void method")
		}
		r, err := conv.Convert(xt, ret.Type, x)
		if err != nil {
			return s.wrap(err, st)
		}
		s.add(hdl.Assign(ret.Ref(), r.Expr))
	}
	s.transition(hdl.FinalState)
	return nil
}

// condition lowers a boolean condition.
func (s *scope) condition(e ast.Expr) (hdl.Expr, error) {
	if e == nil {
		return hdl.BoolValue(true), nil
	}
	x, xt, err := s.expr(e)
	if err != nil {
		return nil, err
	}
	if !hdl.SameType(xt, hdl.BooleanType) {
		return nil, s.errorf(ErrUnsupported, e, "condition of type %s", xt.TypeName())
	}
	return x, nil
}

// ifStmt lowers a conditional into a state per branch and a state after the
// conditional. The branches end with a guarded transition to the latter.
func (s *scope) ifStmt(st *ast.If) error {
	cond, err := s.condition(st.Cond)
	if err != nil {
		return err
	}
	t := s.newState()
	var f *hdl.State
	if st.Else != nil {
		f = s.newState()
	}
	p := s.newState()

	ie := hdl.If(cond)
	ie.True.Add(s.m.ChangeState(t.Index))
	if f != nil {
		ie.Else = &hdl.Block{Body: []hdl.Stmt{s.m.ChangeState(f.Index)}}
	} else {
		ie.Else = &hdl.Block{Body: []hdl.Stmt{s.m.ChangeState(p.Index)}}
	}
	s.add(ie)

	s.moveTo(t)
	if err = s.branch(st.Then); err != nil {
		return err
	}
	s.guard(p.Index)
	if f != nil {
		s.moveTo(f)
		if err = s.branch(st.Else); err != nil {
			return err
		}
		s.guard(p.Index)
	}
	s.moveTo(p)
	return nil
}

// branch lowers a nested statement in its own variable scope.
func (s *scope) branch(st ast.Stmt) error {
	s.pushVars()
	defer s.popVars()
	return s.stmt(st)
}

// whileStmt lowers a pre-tested loop. The condition state evaluates the
// condition and runs the body; the loop exits to the state after the loop.
func (s *scope) whileStmt(st *ast.While) error {
	if err := s.loopTasks(st.Cond, st.Body); err != nil {
		return err
	}
	c := s.newState()
	p := s.newState()
	s.transition(c.Index)
	s.moveTo(c)
	return s.loop(st.Cond, st.Body, c.Index, c.Index, p)
}

// loopTasks rejects loops that start parallel invocations without waiting
// for all of them within the same iteration. Each iteration would take a new
// instance while the previous ones may still be running.
func (s *scope) loopTasks(cond ast.Expr, body ...ast.Stmt) error {
	var (
		started *ast.StartTask
		waited  bool
	)
	find := func(e ast.Expr) {
		switch e := e.(type) {
		case *ast.StartTask:
			if started == nil {
				started = e
			}
		case *ast.WaitTasks:
			waited = waited || !e.Any
		}
	}
	ast.InspectExpr(cond, find)
	ast.Inspect(&ast.Block{Stmts: body}, find)
	if started != nil && !waited {
		return s.errorf(ErrResource, started, "parallel invocations of %s started in a loop must be waited for in the loop body",
			started.Method.FullName())
	}
	return nil
}

// loop lowers the condition and body of a loop at the cursor and then moves
// to p. The body's end transitions to next.
func (s *scope) loop(cond ast.Expr, body ast.Stmt, continueTo, next int, p *hdl.State) error {
	x, err := s.condition(cond)
	if err != nil {
		return err
	}
	ie := hdl.If(x)
	ie.Else = &hdl.Block{Body: []hdl.Stmt{s.m.ChangeState(p.Index)}}
	s.add(ie)
	s.cur.block = ie.True

	s.pushFrame(p.Index, continueTo)
	if err = s.branch(body); err != nil {
		return err
	}
	s.guard(next)
	s.popFrame()
	s.moveTo(p)
	return nil
}

func (s *scope) doWhileStmt(st *ast.DoWhile) error {
	if err := s.loopTasks(st.Cond, st.Body); err != nil {
		return err
	}
	b := s.newState()
	c := s.newState()
	p := s.newState()
	s.transition(b.Index)
	s.moveTo(b)
	s.pushFrame(p.Index, c.Index)
	if err := s.branch(st.Body); err != nil {
		return err
	}
	s.guard(c.Index)
	s.popFrame()

	s.moveTo(c)
	x, err := s.condition(st.Cond)
	if err != nil {
		return err
	}
	ie := hdl.If(x)
	ie.True.Add(s.m.ChangeState(b.Index))
	ie.Else = &hdl.Block{Body: []hdl.Stmt{s.m.ChangeState(p.Index)}}
	s.add(ie)
	s.moveTo(p)
	return nil
}

// forStmt lowers a counting loop. The iterator statements get their own state,
// which is also the target of continue.
func (s *scope) forStmt(st *ast.For) error {
	if err := s.loopTasks(st.Cond, append([]ast.Stmt{st.Body}, st.Post...)...); err != nil {
		return err
	}
	s.pushVars()
	defer s.popVars()
	for _, init := range st.Init {
		if err := s.stmt(init); err != nil {
			return err
		}
	}
	c := s.newState()
	it := s.newState()
	p := s.newState()
	s.transition(c.Index)

	s.moveTo(it)
	for _, post := range st.Post {
		if err := s.stmt(post); err != nil {
			return err
		}
	}
	s.guard(c.Index)

	s.moveTo(c)
	return s.loop(st.Cond, st.Body, it.Index, it.Index, p)
}

// switchStmt lowers a switch into a state per section. The case statement
// always has an others branch since the hardware type may hold values the
// source does not list.
func (s *scope) switchStmt(st *ast.Switch) error {
	tag, tt, err := s.expr(st.Tag)
	if err != nil {
		return err
	}
	states := make([]*hdl.State, len(st.Sections))
	for i := range st.Sections {
		states[i] = s.newState()
	}
	p := s.newState()

	c := &hdl.Case{X: tag, Others: &hdl.Block{}}
	def := p.Index
	for i, sec := range st.Sections {
		if sec.Labels == nil {
			def = states[i].Index
			continue
		}
		w := &hdl.When{Body: &hdl.Block{Body: []hdl.Stmt{s.m.ChangeState(states[i].Index)}}}
		for _, l := range sec.Labels {
			v, vt, err := s.expr(l)
			if err != nil {
				return err
			}
			r, err := conv.Convert(vt, tt, v)
			if err != nil {
				return s.wrap(err, l)
			}
			w.Choices = append(w.Choices, r.Expr)
		}
		c.Whens = append(c.Whens, w)
	}
	c.Others.Add(s.m.ChangeState(def))
	s.add(c)

	s.pushFrame(p.Index, -1)
	for i, sec := range st.Sections {
		s.moveTo(states[i])
		if err := s.block(sec.Body); err != nil {
			return err
		}
		s.guard(p.Index)
	}
	s.popFrame()
	s.moveTo(p)
	return nil
}
