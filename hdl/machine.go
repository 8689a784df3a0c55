// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package hdl

import (
	"strconv"

	"github.com/pkg/errors"
)

// Reserved data object names. They are prefixed with the machine name.
//
const (
	StartedName   = "started"
	FinishedName  = "finished"
	ReturnName    = "return"
	NextStateName = "_NextState"

	ParamInSuffix  = ".param.in"
	ParamOutSuffix = ".param.out"
)

// FinalState is a state index referring to the final state of a machine. It
// is replaced by the actual index in Finalize.
//
const FinalState = -1

// DataObject is a named variable, signal or constant.
//
type DataObject struct {
	Kind ObjectKind
	Name string
	Type DataType
	Init Expr
}

// Ref returns a reference to o.
func (o *DataObject) Ref() Ref { return Ref{Name: o.Name, Kind: o.Kind} }

// State is a single state of a StateMachine. Its body executes within one or
// more clock cycles.
//
type State struct {
	Index int
	Body  *Block
	// RequiredClockCycles is the estimated duration of the body's
	// combinational path, in clock cycles.
	RequiredClockCycles float64
}

// StateMachine is the hardware implementation of one instance of a method.
//
type StateMachine struct {
	Name   string
	States []*State

	// Variables are local to one execution of the machine.
	Variables []*DataObject
	// ExternalSignals are driven by callers or other components.
	ExternalSignals []*DataObject
	// InternalSignals are driven by the machine itself.
	InternalSignals []*DataObject

	// OtherMemberMaxInvocationInstanceCounts maps invoked members to the
	// number of their instances this machine may drive.
	OtherMemberMaxInvocationInstanceCounts map[string]int
	// Invoked lists the names of the machine instances this machine calls.
	Invoked []string
	// UsesMemory is set when the machine accesses the memory surface.
	UsesMemory bool

	objects map[string]*DataObject
}

// NewStateMachine returns an empty state machine with its next state variable.
//
func NewStateMachine(name string) *StateMachine {
	m := &StateMachine{
		Name: name,
		OtherMemberMaxInvocationInstanceCounts: make(map[string]int),
		objects:                                make(map[string]*DataObject),
	}
	m.mustAdd(&m.Variables, &DataObject{
		Kind: Variable,
		Name: m.Prefixed(NextStateName),
		Type: IntegerType,
		Init: StateValue(0),
	})
	return m
}

// Prefixed returns name prefixed with the machine name.
//
func (m *StateMachine) Prefixed(name string) string {
	return m.Name + "." + name
}

func (m *StateMachine) add(list *[]*DataObject, o *DataObject) error {
	if _, ok := m.objects[o.Name]; ok {
		return errors.Errorf("duplicate data object name %q in %s", o.Name, m.Name)
	}
	m.objects[o.Name] = o
	*list = append(*list, o)
	return nil
}

func (m *StateMachine) mustAdd(list *[]*DataObject, o *DataObject) {
	if err := m.add(list, o); err != nil {
		panic(err)
	}
}

// AddVariable adds a variable. Names must be unique within the machine.
//
func (m *StateMachine) AddVariable(name string, t DataType, init Expr) (*DataObject, error) {
	o := &DataObject{Kind: Variable, Name: name, Type: t, Init: init}
	return o, m.add(&m.Variables, o)
}

// AddExternalSignal adds a signal driven from outside the machine.
//
func (m *StateMachine) AddExternalSignal(name string, t DataType) (*DataObject, error) {
	o := &DataObject{Kind: Signal, Name: name, Type: t}
	return o, m.add(&m.ExternalSignals, o)
}

// AddInternalSignal adds a signal driven by the machine.
//
func (m *StateMachine) AddInternalSignal(name string, t DataType) (*DataObject, error) {
	o := &DataObject{Kind: Signal, Name: name, Type: t}
	return o, m.add(&m.InternalSignals, o)
}

// Object looks up a data object by its full name.
//
func (m *StateMachine) Object(name string) (*DataObject, bool) {
	o, ok := m.objects[name]
	return o, ok
}

// IsExternal returns true if o is an externally driven signal of m.
//
func (m *StateMachine) IsExternal(o *DataObject) bool {
	for _, s := range m.ExternalSignals {
		if s == o {
			return true
		}
	}
	return false
}

// AddState appends a new empty state.
//
func (m *StateMachine) AddState() *State {
	s := &State{Index: len(m.States), Body: &Block{}}
	m.States = append(m.States, s)
	return s
}

// NextState returns a reference to the next state variable. The variable
// holds the current state index when a state body starts executing.
//
func (m *StateMachine) NextState() Ref {
	return Ref{Name: m.Prefixed(NextStateName), Kind: Variable}
}

// ChangeState returns a transition to state index i.
//
func (m *StateMachine) ChangeState(i int) *Assignment {
	return Assign(m.NextState(), StateValue(i))
}

// IsTransition returns the target of s if s is a state transition of m.
//
func (m *StateMachine) IsTransition(s Stmt) (int, bool) {
	a, ok := s.(*Assignment)
	if !ok {
		return 0, false
	}
	if r, ok := a.Target.(Ref); !ok || r != m.NextState() {
		return 0, false
	}
	v, ok := a.Value.(Value)
	if !ok {
		return 0, false
	}
	return int(v.Int64()), true
}

// AddInvoked records that m calls the machine instance named instance.
//
func (m *StateMachine) AddInvoked(instance string) {
	for _, n := range m.Invoked {
		if n == instance {
			return
		}
	}
	m.Invoked = append(m.Invoked, instance)
}

// Finalize resolves transitions to FinalState into the index of the last state.
//
func (m *StateMachine) Finalize() {
	final := len(m.States) - 1
	for _, s := range m.States {
		Walk(s.Body, func(st Stmt) {
			if i, ok := m.IsTransition(st); ok && i == FinalState {
				st.(*Assignment).Value = StateValue(final)
			}
		})
	}
}

// StateEnum returns the enumeration type naming the machine's states.
//
func (m *StateMachine) StateEnum() *Enum {
	e := &Enum{Name: sanitize(m.Name) + "._States"}
	for i := range m.States {
		e.Values = append(e.Values, sanitize(m.Name)+"._State_"+strconv.Itoa(i))
	}
	return e
}

// Validate checks the structural invariants of a finalized machine: state
// indices match their position, every state has a transition to a valid state
// and every reference in a state body names a data object of the machine.
//
func (m *StateMachine) Validate() error {
	if len(m.States) < 2 {
		return errors.Errorf("%s: a state machine needs at least a start and a final state", m.Name)
	}
	for i, s := range m.States {
		if s.Index != i {
			return errors.Errorf("%s: state %d has index %d", m.Name, i, s.Index)
		}
		var hasTransition bool
		var err error
		Walk(s.Body, func(st Stmt) {
			if t, ok := m.IsTransition(st); ok {
				hasTransition = true
				if (t < 0 || t >= len(m.States)) && err == nil {
					err = errors.Errorf("%s: state %d transitions to invalid state %d", m.Name, i, t)
				}
			}
		})
		if err != nil {
			return err
		}
		Walk(s.Body, func(st Stmt) {
			forEachExpr(st, func(e Expr) {
				if r, ok := e.(Ref); ok && err == nil {
					if _, ok := m.objects[r.Name]; !ok {
						err = errors.Errorf("%s: state %d references unknown data object %s", m.Name, i, r.Name)
					}
				}
			})
		})
		if err != nil {
			return err
		}
		if !hasTransition {
			return errors.Errorf("%s: state %d has no transition", m.Name, i)
		}
	}
	return nil
}
