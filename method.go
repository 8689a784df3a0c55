// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package hwfsm

import (
	"github.com/db47h/hwfsm/ast"
	"github.com/db47h/hwfsm/hdl"
	"github.com/pkg/errors"
)

// isOutFlow returns true if changes made by the callee to parameter p are
// visible to the caller.
//
func isOutFlow(p *ast.Param) bool {
	return p.Modifier != ast.ByValue || ast.IsReference(p.Type)
}

// transformMethod builds the state machine of one instance of s.method.
//
// State 0 waits for the started signal and state 1 copies the parameters
// into local variables before running the body. The final state raises the
// finished signal and drives output parameters until started drops.
//
func (s *scope) transformMethod() (*hdl.StateMachine, error) {
	m := s.m
	if s.method.Extern || s.method.Body == nil {
		return nil, s.errorf(ErrExtern, nil, "managed code is required for %s", s.member)
	}
	started, err := m.AddExternalSignal(m.Prefixed(hdl.StartedName), hdl.BooleanType)
	if err != nil {
		return nil, err
	}
	finished, err := m.AddInternalSignal(m.Prefixed(hdl.FinishedName), hdl.BooleanType)
	if err != nil {
		return nil, err
	}
	if !s.method.IsVoid() {
		rt, err := s.hwType(s.method.Result)
		if err != nil {
			return nil, err
		}
		if _, err = m.AddInternalSignal(m.Prefixed(hdl.ReturnName), rt); err != nil {
			return nil, err
		}
	}

	idle := m.AddState()
	ie := hdl.If(started.Ref())
	ie.True.Add(m.ChangeState(1))
	idle.Body.Add(ie)

	s.moveTo(m.AddState())
	s.pushVars()
	var outs []hdl.Stmt
	for _, p := range s.method.AllParams() {
		if isMemory(p.Type) {
			s.vars[0][p.Name] = &local{typ: p.Type}
			continue
		}
		l, err := s.declare(p.Name, p.Type)
		if err != nil {
			return nil, err
		}
		in, err := m.AddExternalSignal(m.Prefixed(p.Name+hdl.ParamInSuffix), l.hw)
		if err != nil {
			return nil, s.wrap(err, p)
		}
		s.add(hdl.Assign(l.obj.Ref(), in.Ref()))
		if isOutFlow(p) {
			out, err := m.AddInternalSignal(m.Prefixed(p.Name+hdl.ParamOutSuffix), l.hw)
			if err != nil {
				return nil, s.wrap(err, p)
			}
			outs = append(outs, hdl.Assign(out.Ref(), l.obj.Ref()))
		}
	}

	if err = s.registerLabels(); err != nil {
		return nil, err
	}
	if err = s.stmt(s.method.Body); err != nil {
		return nil, err
	}
	s.guard(hdl.FinalState)
	s.popVars()

	final := m.AddState()
	final.Body.Add(hdl.Assign(finished.Ref(), hdl.BoolValue(true)))
	final.Body.Add(outs...)
	ie = hdl.If(&hdl.Unary{Op: hdl.Not, X: started.Ref()})
	ie.True.Add(hdl.Assign(finished.Ref(), hdl.BoolValue(false)), m.ChangeState(0))
	final.Body.Add(ie)

	m.Finalize()
	if err = m.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid state machine")
	}
	return m, nil
}

// registerLabels allocates the states targeted by goto statements.
func (s *scope) registerLabels() error {
	var err error
	ast.WalkStmt(s.method.Body, func(st ast.Stmt) {
		l, ok := st.(*ast.Labeled)
		if !ok || err != nil {
			return
		}
		if _, dup := s.labels[l.Label]; dup {
			err = s.errorf(ErrUnsupported, l, "duplicate label %s", l.Label)
			return
		}
		s.labels[l.Label] = s.newState().Index
	})
	return err
}
