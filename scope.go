// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package hwfsm

import (
	"fmt"
	"strconv"

	"github.com/db47h/hwfsm/ast"
	"github.com/db47h/hwfsm/conv"
	"github.com/db47h/hwfsm/hdl"
	"github.com/pkg/errors"
)

// cursor is the position where lowered statements go: a block within a
// state. It moves whenever a construct opens a new state.
//
type cursor struct {
	state *hdl.State
	block *hdl.Block
}

// local is a source variable or parameter. Aliases of reference typed
// variables have no data object of their own.
//
type local struct {
	obj   *hdl.DataObject
	alias hdl.Expr
	typ   ast.Type
	hw    hdl.DataType
}

func (l *local) expr() hdl.Expr {
	if l.alias != nil {
		return l.alias
	}
	return l.obj.Ref()
}

// frame is a break/continue target. Switch frames have no continue target of
// their own.
//
type frame struct {
	breakTo    int
	continueTo int
}

// scope holds the lowering state of one instance of a method.
//
type scope struct {
	t         *Transformer
	graph     *callGraph
	method    *ast.Method
	member    string
	instance  int
	instances int
	m         *hdl.StateMachine
	warnings  []Warning

	cur    cursor
	vars   []map[string]*local
	frames []frame
	labels map[string]int
	// justFinished records, per state index, the invocation slots (or the
	// memory) whose completion was observed in that state.
	justFinished map[int]map[string]bool

	calls     map[string]*callSignals
	tasks     map[string]*taskSlots
	taskVars  map[string]*ast.Method
	memory    *memorySignals
	cycles    hdl.Ref
	hasCycles bool
	counter   int

	// lossyCasts numbers lossy cast warnings.
	lossyCasts int
}

func newScope(t *Transformer, graph *callGraph, method *ast.Method, instance, instances int) *scope {
	member := method.FullName()
	return &scope{
		t:            t,
		graph:        graph,
		method:       method,
		member:       member,
		instance:     instance,
		instances:    instances,
		m:            hdl.NewStateMachine(instanceName(method, instance)),
		labels:       make(map[string]int),
		justFinished: make(map[int]map[string]bool),
		calls:        make(map[string]*callSignals),
		tasks:        make(map[string]*taskSlots),
		taskVars:     make(map[string]*ast.Method),
	}
}

// instanceName returns the name of the state machine implementing instance i
// of method m.
//
func instanceName(m *ast.Method, i int) string {
	return m.FullName() + "." + strconv.Itoa(i)
}

func (s *scope) errorf(kind ErrorKind, node interface{}, format string, args ...interface{}) error {
	var c string
	if node != nil {
		c = construct(node)
	}
	return newError(kind, s.member, c, format, args...)
}

// wrap turns errors from the hdl and conv packages into unsupported construct
// errors naming the member.
func (s *scope) wrap(err error, node interface{}) error {
	if err == nil {
		return nil
	}
	if _, ok := errors.Cause(err).(*Error); ok {
		return err
	}
	return s.errorf(ErrUnsupported, node, "%v", errors.Cause(err))
}

func (s *scope) warn(code WarningCode, format string, args ...interface{}) {
	s.warnings = append(s.warnings, Warning{Code: code, Member: s.member, Message: fmt.Sprintf(format, args...)})
}

// fresh returns a unique data object name derived from base.
func (s *scope) fresh(base string) string {
	s.counter++
	return s.m.Prefixed(base + "." + strconv.Itoa(s.counter))
}

func (s *scope) newVariable(base string, t hdl.DataType) (hdl.Ref, error) {
	o, err := s.m.AddVariable(s.fresh(base), t, hdl.ZeroValue(t))
	if err != nil {
		return hdl.Ref{}, err
	}
	return o.Ref(), nil
}

// typeOf returns the hardware type of a lowered expression.
func (s *scope) typeOf(e hdl.Expr) hdl.DataType {
	return conv.TypeOf(e, func(name string) hdl.DataType {
		if o, ok := s.m.Object(name); ok {
			return o.Type
		}
		return nil
	})
}

func (s *scope) add(st ...hdl.Stmt) { s.cur.block.Add(st...) }

func (s *scope) moveTo(st *hdl.State) { s.cur = cursor{state: st, block: st.Body} }

func (s *scope) newState() *hdl.State { return s.m.AddState() }

// transition adds an unconditional transition to state i at the cursor.
func (s *scope) transition(i int) { s.add(s.m.ChangeState(i)) }

// guard adds a transition to state i that only applies if no transition was
// made since the current state started executing.
func (s *scope) guard(i int) {
	ie := hdl.If(&hdl.Binary{Op: hdl.Eq, X: s.m.NextState(), Y: hdl.StateValue(s.cur.state.Index)})
	ie.True.Add(s.m.ChangeState(i))
	s.add(ie)
}

// openState continues lowering in a new state.
func (s *scope) openState() *hdl.State {
	st := s.newState()
	s.transition(st.Index)
	s.moveTo(st)
	return st
}

// reserve accounts for an operation of the given cost in the current state,
// opening a new state if the operation would not fit in a clock cycle.
func (s *scope) reserve(cost float64) {
	if s.cur.state.RequiredClockCycles > 0 && s.cur.state.RequiredClockCycles+cost > 1 {
		s.openState()
	}
	s.cur.state.RequiredClockCycles += cost
}

func (s *scope) markFinished(keys ...string) {
	f := s.justFinished[s.cur.state.Index]
	if f == nil {
		f = make(map[string]bool)
		s.justFinished[s.cur.state.Index] = f
	}
	for _, k := range keys {
		f[k] = true
	}
}

// settle opens a new state if any of the given slots completed in the current
// state. A callee needs a clock cycle to notice that its start signal dropped
// before it can be started again.
func (s *scope) settle(keys ...string) {
	f := s.justFinished[s.cur.state.Index]
	for _, k := range keys {
		if f[k] {
			s.openState()
			return
		}
	}
}

func (s *scope) pushVars() { s.vars = append(s.vars, make(map[string]*local)) }

func (s *scope) popVars() { s.vars = s.vars[:len(s.vars)-1] }

func (s *scope) lookup(name string) *local {
	for i := len(s.vars) - 1; i >= 0; i-- {
		if l, ok := s.vars[i][name]; ok {
			return l
		}
	}
	return nil
}

// declare adds a local variable. Variables declared in sibling blocks under
// the same name get distinct data objects.
func (s *scope) declare(name string, t ast.Type) (*local, error) {
	ht, err := s.hwType(t)
	if err != nil {
		return nil, err
	}
	n := s.m.Prefixed(name)
	if _, ok := s.m.Object(n); ok {
		n = s.fresh(name)
	}
	o, err := s.m.AddVariable(n, ht, hdl.ZeroValue(ht))
	if err != nil {
		return nil, s.wrap(err, nil)
	}
	l := &local{obj: o, typ: t, hw: ht}
	s.vars[len(s.vars)-1][name] = l
	return l, nil
}

func (s *scope) pushFrame(breakTo, continueTo int) {
	s.frames = append(s.frames, frame{breakTo: breakTo, continueTo: continueTo})
}

func (s *scope) popFrame() { s.frames = s.frames[:len(s.frames)-1] }

// clockCounter returns the variable counting cycles in wait states.
func (s *scope) clockCounter() hdl.Ref {
	if !s.hasCycles {
		o, _ := s.m.AddVariable(s.m.Prefixed("_ClockCycleCounter"), hdl.IntegerType, hdl.StateValue(0))
		s.cycles, s.hasCycles = o.Ref(), true
	}
	return s.cycles
}
