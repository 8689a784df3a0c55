package hdl_test

import (
	"strings"
	"testing"

	"github.com/db47h/hwfsm/hdl"
)

// newMachine returns a minimal valid machine: idle, body and final states.
func newMachine(t *testing.T) (*hdl.StateMachine, *hdl.DataObject) {
	t.Helper()
	m := hdl.NewStateMachine("M.0")
	started, err := m.AddExternalSignal(m.Prefixed(hdl.StartedName), hdl.BooleanType)
	if err != nil {
		t.Fatal(err)
	}
	idle := m.AddState()
	ie := hdl.If(started.Ref())
	ie.True.Add(m.ChangeState(1))
	idle.Body.Add(ie)
	m.AddState().Body.Add(m.ChangeState(hdl.FinalState))
	m.AddState().Body.Add(m.ChangeState(0))
	return m, started
}

func TestStateMachine_objects(t *testing.T) {
	m, started := newMachine(t)
	if o, ok := m.Object("M.0._NextState"); !ok || o.Kind != hdl.Variable {
		t.Fatal("missing next state variable")
	}
	if !m.IsExternal(started) {
		t.Error("started is not external")
	}
	if _, err := m.AddInternalSignal(m.Prefixed(hdl.StartedName), hdl.BooleanType); err == nil {
		t.Error("duplicate data object accepted")
	}
	m.AddInvoked("N.0")
	m.AddInvoked("N.0")
	if len(m.Invoked) != 1 {
		t.Errorf("invoked instances recorded twice: %v", m.Invoked)
	}
}

func TestStateMachine_Finalize(t *testing.T) {
	m, _ := newMachine(t)
	if err := m.Validate(); err == nil {
		t.Fatal("unresolved final state transition accepted")
	}
	m.Finalize()
	if err := m.Validate(); err != nil {
		t.Fatal(err)
	}
	i, ok := m.IsTransition(m.States[1].Body.Body[0])
	if !ok || i != 2 {
		t.Errorf("expected a transition to state 2, got %d", i)
	}
	if e := m.StateEnum(); len(e.Values) != 3 {
		t.Errorf("expected 3 state names, got %v", e.Values)
	}
}

func TestStateMachine_Validate(t *testing.T) {
	data := []struct {
		name  string
		build func(m *hdl.StateMachine)
	}{
		{"noTransition", func(m *hdl.StateMachine) {
			m.AddState()
		}},
		{"badTarget", func(m *hdl.StateMachine) {
			m.States[1].Body.Add(m.ChangeState(7))
		}},
		{"unknownObject", func(m *hdl.StateMachine) {
			m.States[1].Body.Add(hdl.Assign(hdl.Ref{Name: "M.0.x", Kind: hdl.Variable}, hdl.StateValue(1)))
		}},
	}
	for _, d := range data {
		t.Run(d.name, func(t *testing.T) {
			m, _ := newMachine(t)
			m.Finalize()
			d.build(m)
			if err := m.Validate(); err == nil {
				t.Fatal("invalid machine accepted")
			}
		})
	}
}

func TestDump(t *testing.T) {
	m, _ := newMachine(t)
	m.Finalize()
	var b strings.Builder
	if err := hdl.Dump(&b, m); err != nil {
		t.Fatal(err)
	}
	out := b.String()
	for _, s := range []string{"machine M.0", "in signal M.0.started", "state 2", "if "} {
		if !strings.Contains(out, s) {
			t.Errorf("missing %q in:\n%s", s, out)
		}
	}
}
