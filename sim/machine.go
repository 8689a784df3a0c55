// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package sim

import (
	"github.com/db47h/hwfsm/hdl"
	"github.com/pkg/errors"
)

// object is the storage of a data object. Signals are double buffered:
// reads see cur, assignments go to next and become visible once the clock
// cycle is committed. Variables only use cur.
//
type object struct {
	kind    hdl.ObjectKind
	cur     Value
	next    Value
	written bool
}

// view returns the value assignments build upon: the pending value of a
// signal already assigned in this cycle, the current value otherwise.
func (o *object) view() Value {
	if o.written {
		return o.next
	}
	return o.cur
}

func (o *object) set(v Value) {
	if o.kind == hdl.Signal {
		o.next, o.written = v, true
		return
	}
	o.cur = v
}

func (o *object) commit() {
	if o.written {
		o.cur, o.written = o.next, false
	}
}

// machine runs a state machine. A machine only ever touches its own data
// objects; values cross machine boundaries in the wiring phase.
//
type machine struct {
	sm      *hdl.StateMachine
	objs    map[string]*object
	signals []*object
	ns      *object
	cycles  uint64
}

func newMachine(sm *hdl.StateMachine) (*machine, error) {
	m := &machine{sm: sm, objs: make(map[string]*object)}
	for _, o := range sm.Variables {
		v := Zero(o.Type)
		if o.Init != nil {
			var err error
			if v, err = m.eval(o.Init); err != nil {
				return nil, errors.Wrapf(err, "%s: initial value of %s", sm.Name, o.Name)
			}
			v = v.clone()
		}
		m.objs[o.Name] = &object{kind: hdl.Variable, cur: v}
	}
	for _, list := range [][]*hdl.DataObject{sm.ExternalSignals, sm.InternalSignals} {
		for _, o := range list {
			so := &object{kind: hdl.Signal, cur: Zero(o.Type)}
			m.objs[o.Name] = so
			m.signals = append(m.signals, so)
		}
	}
	m.ns = m.objs[sm.NextState().Name]
	if m.ns == nil {
		return nil, errors.Errorf("%s: no next state variable", sm.Name)
	}
	return m, nil
}

// State returns the index of the state the machine executes next.
func (m *machine) state() int { return int(m.ns.cur.Int64()) }

// step executes the current state's body and commits signal assignments.
//
func (m *machine) step() error {
	i := m.state()
	if i < 0 || i >= len(m.sm.States) {
		return errors.Errorf("%s: invalid state %d", m.sm.Name, i)
	}
	if i != 0 {
		m.cycles++
	}
	if err := m.exec(m.sm.States[i].Body); err != nil {
		return errors.Wrapf(err, "%s: state %d", m.sm.Name, i)
	}
	for _, o := range m.signals {
		o.commit()
	}
	return nil
}

func (m *machine) exec(b *hdl.Block) error {
	if b == nil {
		return nil
	}
	for _, s := range b.Body {
		switch s := s.(type) {
		case *hdl.Assignment:
			v, err := m.eval(s.Value)
			if err != nil {
				return err
			}
			if err = m.assign(s.Target, v); err != nil {
				return err
			}
		case *hdl.IfElse:
			c, err := m.eval(s.Cond)
			if err != nil {
				return err
			}
			if c.Bool() {
				err = m.exec(s.True)
			} else {
				err = m.exec(s.Else)
			}
			if err != nil {
				return err
			}
		case *hdl.Case:
			if err := m.execCase(s); err != nil {
				return err
			}
		case *hdl.Block:
			if err := m.exec(s); err != nil {
				return err
			}
		case *hdl.Comment:
		default:
			return errors.Errorf("unknown statement %T", s)
		}
	}
	return nil
}

func (m *machine) execCase(c *hdl.Case) error {
	x, err := m.eval(c.X)
	if err != nil {
		return err
	}
	for _, w := range c.Whens {
		for _, ch := range w.Choices {
			v, err := m.eval(ch)
			if err != nil {
				return err
			}
			if x.Equal(v) {
				return m.exec(w.Body)
			}
		}
	}
	return m.exec(c.Others)
}

func (m *machine) object(name string) (*object, error) {
	o, ok := m.objs[name]
	if !ok {
		return nil, errors.Errorf("unknown data object %s", name)
	}
	return o, nil
}

func (m *machine) index(a Value, ie hdl.Expr) (int, error) {
	iv, err := m.eval(ie)
	if err != nil {
		return 0, err
	}
	i := int(iv.Int64())
	if i < 0 || i >= len(a.Elems) {
		return 0, errors.Errorf("index %d out of range [0:%d]", i, len(a.Elems))
	}
	return i, nil
}

func fieldIndex(r Value, name string) (int, error) {
	if rt, ok := r.Type.(*hdl.Record); ok {
		for i, f := range rt.Fields {
			if f.Name == name {
				return i, nil
			}
		}
	}
	return 0, errors.Errorf("no field %s in %s", name, r.Type.TypeName())
}

// view returns the value of an assignable expression as seen by
// assignments.
func (m *machine) view(e hdl.Expr) (Value, error) {
	switch e := e.(type) {
	case hdl.Ref:
		o, err := m.object(e.Name)
		if err != nil {
			return Value{}, err
		}
		return o.view(), nil
	case *hdl.IndexRef:
		a, err := m.view(e.Array)
		if err != nil {
			return Value{}, err
		}
		i, err := m.index(a, e.Index)
		if err != nil {
			return Value{}, err
		}
		return a.Elems[i], nil
	case *hdl.FieldRef:
		r, err := m.view(e.Record)
		if err != nil {
			return Value{}, err
		}
		i, err := fieldIndex(r, e.Field)
		if err != nil {
			return Value{}, err
		}
		return r.Fields[i], nil
	case *hdl.Slice:
		x, err := m.view(e.X)
		if err != nil {
			return Value{}, err
		}
		return slice(x, e.High, e.Low)
	}
	return Value{}, errors.Errorf("%s is not assignable", e)
}

// assign stores v into target. Element, field and slice assignments rebuild
// the enclosing value and assign it in turn.
func (m *machine) assign(target hdl.Expr, v Value) error {
	switch t := target.(type) {
	case hdl.Ref:
		o, err := m.object(t.Name)
		if err != nil {
			return err
		}
		if o.kind == hdl.Constant {
			return errors.Errorf("assignment to constant %s", t.Name)
		}
		o.set(v.clone())
		return nil
	case *hdl.IndexRef:
		a, err := m.view(t.Array)
		if err != nil {
			return err
		}
		i, err := m.index(a, t.Index)
		if err != nil {
			return err
		}
		a = a.clone()
		a.Elems[i] = v.clone()
		return m.assign(t.Array, a)
	case *hdl.FieldRef:
		r, err := m.view(t.Record)
		if err != nil {
			return err
		}
		i, err := fieldIndex(r, t.Field)
		if err != nil {
			return err
		}
		r = r.clone()
		r.Fields[i] = v.clone()
		return m.assign(t.Record, r)
	case *hdl.Slice:
		x, err := m.view(t.X)
		if err != nil {
			return err
		}
		if x, err = setSlice(x, t.High, t.Low, v); err != nil {
			return err
		}
		return m.assign(t.X, x)
	}
	return errors.Errorf("%s is not assignable", target)
}

// slice returns the elements or bits high downto low of x.
func slice(x Value, high, low int) (Value, error) {
	if high < low || low < 0 {
		return Value{}, errors.Errorf("invalid slice (%d downto %d)", high, low)
	}
	switch t := x.Type.(type) {
	case *hdl.Array:
		if high >= t.Length {
			return Value{}, errors.Errorf("slice (%d downto %d) of an array of length %d", high, low, t.Length)
		}
		v := Value{Type: hdl.NewArray(t.Elem, high-low+1)}
		for _, e := range x.Elems[low : high+1] {
			v.Elems = append(v.Elems, e.clone())
		}
		return v, nil
	case hdl.Scalar:
		if t.Kind == hdl.Real || high >= t.Size {
			return Value{}, errors.Errorf("slice (%d downto %d) of %s", high, low, t.TypeName())
		}
		n := high - low + 1
		return Value{Type: hdl.Scalar{Kind: t.Kind, Size: n}, Bits: x.Bits >> uint(low) & hdl.Mask(n)}, nil
	}
	return Value{}, errors.Errorf("slice of %s", x.Type.TypeName())
}

// setSlice returns a copy of x with the elements or bits high downto low
// replaced by v.
func setSlice(x Value, high, low int, v Value) (Value, error) {
	if _, err := slice(x, high, low); err != nil {
		return Value{}, err
	}
	x = x.clone()
	if _, ok := x.Type.(*hdl.Array); ok {
		for i := low; i <= high && i-low < len(v.Elems); i++ {
			x.Elems[i] = v.Elems[i-low].clone()
		}
		return x, nil
	}
	mask := hdl.Mask(high-low+1) << uint(low)
	x.Bits = x.Bits&^mask | v.Bits<<uint(low)&mask
	return x, nil
}
