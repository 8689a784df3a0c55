// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package sim

import (
	"context"
	"strings"

	"github.com/db47h/hwfsm/hdl"
	"github.com/pkg/errors"
)

// CallResult holds the outcome of a Call.
//
type CallResult struct {
	// Value is the return value, the zero Value for void members.
	Value Value
	// Params holds the final value of parameters whose changes flow back to
	// the caller, by parameter name.
	Params map[string]Value
	// Cycles is the number of clock cycles from start to finish.
	Cycles uint64
}

// Param describes a parameter of a member as seen by the simulator.
//
type Param struct {
	Name string
	Type hdl.DataType
}

// Params returns the parameters of the machine implementing instance 0 of
// member, in declaration order. The receiver of instance methods comes
// first.
//
func (s *Simulator) Params(member string) ([]Param, error) {
	m, err := s.entry(member)
	if err != nil {
		return nil, err
	}
	var ps []Param
	for _, o := range m.sm.ExternalSignals {
		if strings.HasSuffix(o.Name, hdl.ParamInSuffix) && isInterface(m.sm, o.Name) {
			ps = append(ps, Param{Name: paramName(m.sm, o.Name), Type: o.Type})
		}
	}
	return ps, nil
}

func paramName(sm *hdl.StateMachine, signal string) string {
	n := strings.TrimPrefix(signal, sm.Name+".")
	n = strings.TrimSuffix(n, hdl.ParamInSuffix)
	return strings.TrimSuffix(n, hdl.ParamOutSuffix)
}

func (s *Simulator) entry(member string) (*machine, error) {
	m, ok := s.byName[member+".0"]
	if !ok {
		return nil, errors.Errorf("no machine for member %s", member)
	}
	return m, nil
}

// Call runs instance 0 of member with the given arguments, as a caller
// would: it drives the parameters and the start signal, waits for the
// finished signal, reads the results, then drops the start signal and waits
// for the machine to go idle.
//
// Arguments are converted with ValueOf. The call fails if it does not
// complete within the simulator's cycle limit or if ctx is done.
//
func (s *Simulator) Call(ctx context.Context, member string, args ...interface{}) (*CallResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.entry(member)
	if err != nil {
		return nil, err
	}
	host := s.hosts[m.sm.Name]
	var ins []*hdl.DataObject
	for _, o := range m.sm.ExternalSignals {
		if strings.HasSuffix(o.Name, hdl.ParamInSuffix) && isInterface(m.sm, o.Name) {
			ins = append(ins, o)
		}
	}
	if len(args) != len(ins) {
		return nil, errors.Errorf("call to %s with %d arguments, expected %d", member, len(args), len(ins))
	}
	for i, o := range ins {
		v, err := ValueOf(o.Type, args[i])
		if err != nil {
			return nil, errors.Wrapf(err, "argument %s", paramName(m.sm, o.Name))
		}
		host.drive[o.Name].cur = v.clone()
	}

	started := host.drive[m.sm.Prefixed(hdl.StartedName)]
	finished := host.sense[m.sm.Prefixed(hdl.FinishedName)]
	start := s.cycles
	started.cur = Bool(true)
	for !finished.cur.Bool() {
		if err = s.tick(ctx, member, start); err != nil {
			started.cur = Bool(false)
			return nil, err
		}
	}

	res := &CallResult{Params: make(map[string]Value), Cycles: s.cycles - start}
	if r, ok := host.sense[m.sm.Prefixed(hdl.ReturnName)]; ok {
		res.Value = r.cur.clone()
	}
	for name, o := range host.sense {
		if strings.HasSuffix(name, hdl.ParamOutSuffix) {
			res.Params[paramName(m.sm, name)] = o.cur.clone()
		}
	}

	started.cur = Bool(false)
	for finished.cur.Bool() {
		if err = s.tick(ctx, member, start); err != nil {
			return nil, err
		}
	}
	return res, nil
}

func (s *Simulator) tick(ctx context.Context, member string, start uint64) error {
	if s.cycles-start >= s.maxCycles {
		return errors.Errorf("call to %s did not complete within %d clock cycles", member, s.maxCycles)
	}
	if (s.cycles-start)&1023 == 0 {
		if err := ctx.Err(); err != nil {
			return errors.WithStack(err)
		}
	}
	return s.Step()
}
