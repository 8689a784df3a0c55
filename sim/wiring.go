// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package sim

import (
	"strings"

	"github.com/db47h/hwfsm/hdl"
	"github.com/pkg/errors"
)

// A port is one caller's view of a callee instance. Its drive objects are
// the caller's copies of the callee's external signals (started and the
// parameter inputs); its sense objects receive the callee's internal
// signals (finished, the return value and the parameter outputs). Both maps
// are keyed by the callee's signal name.
//
type port struct {
	name  string
	drive map[string]*object
	sense map[string]*object
}

// proxy connects the ports of every caller of a callee instance to the
// callee. The first caller found raising started owns the callee until it
// drops started and the callee has dropped finished. Other callers see an
// idle callee meanwhile.
//
type proxy struct {
	callee   *machine
	started  *object
	finished *object
	ports    []*port
	owner    *port
}

func newProxy(callee *machine) *proxy {
	return &proxy{
		callee:   callee,
		started:  callee.objs[callee.sm.Prefixed(hdl.StartedName)],
		finished: callee.objs[callee.sm.Prefixed(hdl.FinishedName)],
	}
}

func (p *proxy) startedName() string { return p.callee.sm.Prefixed(hdl.StartedName) }

func (p *proxy) finishedName() string { return p.callee.sm.Prefixed(hdl.FinishedName) }

// raised returns true if the port drives the start signal.
func (p *proxy) raised(pt *port) bool {
	s, ok := pt.drive[p.startedName()]
	return ok && s.cur.Bool()
}

// wire copies the owner's signals to the callee and back. It runs between
// clock cycles.
//
func (p *proxy) wire() {
	if p.owner != nil && !p.raised(p.owner) && !p.finished.cur.Bool() {
		p.owner = nil
	}
	if p.owner == nil {
		for _, pt := range p.ports {
			if p.raised(pt) {
				p.owner = pt
				break
			}
		}
	}
	if p.owner == nil {
		p.started.cur = Bool(false)
	}
	for _, pt := range p.ports {
		if pt != p.owner {
			if f, ok := pt.sense[p.finishedName()]; ok {
				f.cur = Bool(false)
			}
			continue
		}
		for name, o := range pt.drive {
			p.callee.objs[name].cur = o.cur.clone()
		}
		for name, o := range pt.sense {
			o.cur = p.callee.objs[name].cur.clone()
		}
	}
}

// isInterface returns true for the signals of machine m that make up its
// calling interface, as opposed to the signals m uses to call other machines
// or the memory.
func isInterface(m *hdl.StateMachine, name string) bool {
	rest := strings.TrimPrefix(name, m.Name+".")
	switch rest {
	case hdl.StartedName, hdl.FinishedName, hdl.ReturnName:
		return true
	}
	for _, suffix := range []string{hdl.ParamInSuffix, hdl.ParamOutSuffix} {
		if strings.HasSuffix(rest, suffix) && !strings.Contains(strings.TrimSuffix(rest, suffix), ".") {
			return true
		}
	}
	return false
}

// callerPort builds the port through which caller drives callee. The
// caller's signals are named after the callee's, prefixed with the caller's
// name.
func callerPort(caller, callee *machine) (*port, error) {
	pt := &port{name: caller.sm.Name, drive: make(map[string]*object), sense: make(map[string]*object)}
	bind := func(list []*hdl.DataObject, to map[string]*object) error {
		for _, o := range list {
			if !isInterface(callee.sm, o.Name) {
				continue
			}
			co, ok := caller.objs[caller.sm.Prefixed(o.Name)]
			if !ok {
				return errors.Errorf("%s has no signal for %s", caller.sm.Name, o.Name)
			}
			to[o.Name] = co
		}
		return nil
	}
	if err := bind(callee.sm.ExternalSignals, pt.drive); err != nil {
		return nil, err
	}
	if err := bind(callee.sm.InternalSignals, pt.sense); err != nil {
		return nil, err
	}
	return pt, nil
}

// hostPort builds a port with its own signals, used to drive an entry
// machine from Go code.
func hostPort(callee *machine) *port {
	pt := &port{name: "", drive: make(map[string]*object), sense: make(map[string]*object)}
	for _, o := range callee.sm.ExternalSignals {
		if isInterface(callee.sm, o.Name) {
			pt.drive[o.Name] = &object{kind: hdl.Signal, cur: Zero(o.Type)}
		}
	}
	for _, o := range callee.sm.InternalSignals {
		if isInterface(callee.sm, o.Name) {
			pt.sense[o.Name] = &object{kind: hdl.Signal, cur: Zero(o.Type)}
		}
	}
	return pt
}
