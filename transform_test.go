package hwfsm_test

import (
	"context"
	"strings"
	"testing"

	"github.com/db47h/hwfsm"
	"github.com/db47h/hwfsm/ast"
	. "github.com/db47h/hwfsm/internal/build"
	"github.com/db47h/hwfsm/config"
	"github.com/db47h/hwfsm/hdl"
	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
)

func trace(t *testing.T, err error) {
	t.Helper()
	if err, ok := err.(interface {
		StackTrace() errors.StackTrace
	}); ok {
		for _, f := range err.StackTrace() {
			t.Logf("%+v ", f)
		}
	}
}

func transform(t *testing.T, cfg *config.Config, p *ast.Program) *hwfsm.Result {
	t.Helper()
	r, err := hwfsm.New(cfg).Transform(context.Background(), p)
	if err != nil {
		trace(t, err)
		t.Fatal(err)
	}
	for _, m := range r.Machines() {
		if err = m.Validate(); err != nil {
			t.Fatal(err)
		}
	}
	return r
}

// transformError transforms p and returns the fatal error it must fail with.
func transformError(t *testing.T, cfg *config.Config, p *ast.Program) *hwfsm.Error {
	t.Helper()
	r, err := hwfsm.New(cfg).Transform(context.Background(), p)
	if err == nil {
		t.Fatal("transformation succeeded")
	}
	if r != nil {
		t.Error("partial result returned along with an error")
	}
	e, ok := errors.Cause(err).(*hwfsm.Error)
	if !ok {
		trace(t, err)
		t.Fatalf("unexpected error type %T: %v", errors.Cause(err), err)
	}
	return e
}

func hasWarning(r *hwfsm.Result, code hwfsm.WarningCode) bool {
	for _, w := range r.Warnings {
		if w.Code == code {
			return true
		}
	}
	return false
}

func machine(t *testing.T, r *hwfsm.Result, m *ast.Method, instance int) *hdl.StateMachine {
	t.Helper()
	for _, c := range r.Instances(m.FullName()) {
		if c.Instance == instance {
			return c.Machine
		}
	}
	t.Fatalf("no instance %d of %s", instance, m.FullName())
	return nil
}

func TestTransform_skeleton(t *testing.T) {
	c := Class("Calc")
	a, b := Var("a", ast.Int), Var("b", ast.Int)
	add := Entry(c, "Add", ast.Int, []*ast.Param{Param("a", ast.Int), Param("b", ast.Int)},
		Return(Bin(ast.OpAdd, a, b)))
	r := transform(t, nil, Program(c))

	if len(r.Components) != 1 {
		t.Fatalf("expected 1 component, got %d", len(r.Components))
	}
	m := machine(t, r, add, 0)
	if m.Name != "Calc::Add(int,int).0" {
		t.Errorf("machine name %q", m.Name)
	}
	var ext, internal []string
	for _, o := range m.ExternalSignals {
		ext = append(ext, strings.TrimPrefix(o.Name, m.Name+"."))
	}
	for _, o := range m.InternalSignals {
		internal = append(internal, strings.TrimPrefix(o.Name, m.Name+"."))
	}
	if diff := cmp.Diff([]string{"started", "a.param.in", "b.param.in"}, ext); diff != "" {
		t.Errorf("external signals (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"finished", "return"}, internal); diff != "" {
		t.Errorf("internal signals (-want +got):\n%s", diff)
	}
	// idle, body, final
	if len(m.States) != 3 {
		t.Errorf("expected 3 states, got %d", len(m.States))
	}
	if _, ok := m.Object(m.Prefixed("a")); !ok {
		t.Error("no shadow variable for parameter a")
	}
}

func TestTransform_ifStates(t *testing.T) {
	data := []struct {
		name   string
		els    ast.Stmt
		states int
	}{
		// idle, body, true branch, post-if, final
		{"if", nil, 5},
		// plus the false branch
		{"ifElse", Assign(Var("x", ast.Int), Int(2)), 6},
	}
	for _, d := range data {
		t.Run(d.name, func(t *testing.T) {
			c := Class("C")
			x := Var("x", ast.Int)
			f := Entry(c, "F", ast.Int, []*ast.Param{Param("a", ast.Int)},
				Decl("x", ast.Int, Int(0)),
				If(Bin(ast.OpGt, Var("a", ast.Int), Int(0)), Assign(x, Int(1)), d.els),
				Return(x))
			m := machine(t, transform(t, nil, Program(c)), f, 0)
			if len(m.States) != d.states {
				t.Errorf("expected %d states, got %d", d.states, len(m.States))
			}
		})
	}
}

func TestTransform_whileStates(t *testing.T) {
	c := Class("C")
	i := Var("i", ast.Int)
	f := Entry(c, "F", ast.Int, []*ast.Param{Param("n", ast.Int)},
		Decl("i", ast.Int, Int(0)),
		While(Bin(ast.OpLt, i, Var("n", ast.Int)),
			Inc(i),
			If(Bin(ast.OpEq, i, Int(10)), &ast.Break{}, nil)),
		Return(i))
	m := machine(t, transform(t, nil, Program(c)), f, 0)
	// idle, body, condition, post-loop, if true, post-if, final
	if len(m.States) != 7 {
		t.Fatalf("expected 7 states, got %d", len(m.States))
	}
	// break jumps straight to the post-loop state.
	if i, ok := m.IsTransition(m.States[4].Body.Body[0]); !ok || i != 3 {
		t.Errorf("break: expected a transition to state 3, got %d (%v)", i, ok)
	}
	var exits bool
	hdl.Walk(m.States[2].Body, func(st hdl.Stmt) {
		if i, ok := m.IsTransition(st); ok && i == 3 {
			exits = true
		}
	})
	if !exits {
		t.Error("condition state does not exit to the post-loop state")
	}
}

func TestTransform_multiCycle(t *testing.T) {
	c := Class("C")
	a, b := Var("a", ast.Int), Var("b", ast.Int)
	f := Entry(c, "Mul", ast.Int, []*ast.Param{Param("a", ast.Int), Param("b", ast.Int)},
		Return(Bin(ast.OpMul, a, b)))
	m := machine(t, transform(t, nil, Program(c)), f, 0)
	if _, ok := m.Object(m.Prefixed("_ClockCycleCounter")); !ok {
		t.Fatal("no clock cycle counter for a multi-cycle operation")
	}
	var wait *hdl.State
	for _, s := range m.States {
		if s.RequiredClockCycles > 1 {
			wait = s
		}
	}
	if wait == nil {
		t.Fatal("no wait state")
	}
}

func TestTransform_shiftCount(t *testing.T) {
	c := Class("C")
	f := Entry(c, "Shl", ast.Int, []*ast.Param{Param("a", ast.Int)},
		Return(Bin(ast.OpShl, Var("a", ast.Int), Int(33))))
	m := machine(t, transform(t, nil, Program(c)), f, 0)
	var count int64 = -1
	for _, s := range m.States {
		hdl.Walk(s.Body, func(st hdl.Stmt) {
			a, ok := st.(*hdl.Assignment)
			if !ok {
				return
			}
			hdl.VisitExpr(a.Value, func(e hdl.Expr) {
				if c, ok := e.(*hdl.Call); ok && c.Func == hdl.FuncShiftLeft {
					count = c.Args[1].(hdl.Value).Int64()
				}
			})
		})
	}
	if count != 1 {
		t.Errorf("expected a shift count of 1, got %d", count)
	}
}

func TestTransform_invocation(t *testing.T) {
	c := Class("C")
	a, b := Var("a", ast.Int), Var("b", ast.Int)
	add := Static(c, "Add", ast.Int, []*ast.Param{Param("a", ast.Int), Param("b", ast.Int)},
		Return(Bin(ast.OpAdd, a, b)))
	f := Entry(c, "F", ast.Int, []*ast.Param{Param("x", ast.Int)},
		Decl("y", ast.Int, Call(add, Var("x", ast.Int), Int(1))),
		Return(Call(add, Var("y", ast.Int), Int(2))))
	r := transform(t, nil, Program(c))
	if len(r.Components) != 2 {
		t.Fatalf("expected 2 components, got %d", len(r.Components))
	}
	m := machine(t, r, f, 0)
	callee := machine(t, r, add, 0)
	if diff := cmp.Diff([]string{callee.Name}, m.Invoked); diff != "" {
		t.Errorf("invoked (-want +got):\n%s", diff)
	}
	if n := m.OtherMemberMaxInvocationInstanceCounts[add.FullName()]; n != 1 {
		t.Errorf("expected 1 instance of %s, got %d", add.FullName(), n)
	}
	for _, s := range []string{"started", "a.param.in", "b.param.in"} {
		o, ok := m.Object(m.Prefixed(callee.Name + "." + s))
		if !ok || m.IsExternal(o) {
			t.Errorf("caller signal %s missing or not driven by the caller", s)
		}
	}
	for _, s := range []string{"finished", "return"} {
		o, ok := m.Object(m.Prefixed(callee.Name + "." + s))
		if !ok || !m.IsExternal(o) {
			t.Errorf("caller signal %s missing or driven by the caller", s)
		}
	}
}

func TestTransform_recursion(t *testing.T) {
	c := Class("C")
	n := Var("n", ast.Int)
	fib := Entry(c, "Fib", ast.Int, []*ast.Param{Param("n", ast.Int)})
	fib.Body = Block(
		If(Bin(ast.OpLt, n, Int(2)), Return(n), nil),
		Return(Bin(ast.OpAdd,
			Call(fib, Bin(ast.OpSub, n, Int(1))),
			Call(fib, Bin(ast.OpSub, n, Int(2))))))
	cfg := config.Default()
	cfg.SetMember(config.MemberConfig{Name: fib.FullName(), MaxRecursionDepth: 3})
	r := transform(t, cfg, Program(c))
	if len(r.Instances(fib.FullName())) != 4 {
		t.Fatalf("expected 4 instances, got %d", len(r.Instances(fib.FullName())))
	}
	for k := 0; k < 3; k++ {
		m := machine(t, r, fib, k)
		next := machine(t, r, fib, k+1)
		if diff := cmp.Diff([]string{next.Name}, m.Invoked); diff != "" {
			t.Errorf("instance %d invoked (-want +got):\n%s", k, diff)
		}
	}
	if m := machine(t, r, fib, 3); len(m.Invoked) != 0 {
		t.Errorf("deepest instance invokes %v", m.Invoked)
	}
	if !hasWarning(r, hwfsm.WarnRecursionDepth) {
		t.Error("no recursion depth warning")
	}
}

func TestTransform_mutualRecursion(t *testing.T) {
	c := Class("C")
	n := Var("n", ast.Int)
	params := []*ast.Param{Param("n", ast.Int)}
	even := Entry(c, "IsEven", ast.Int, params)
	odd := Static(c, "IsOdd", ast.Int, params)
	even.Body = Block(
		If(Bin(ast.OpEq, n, Int(0)), Return(Int(1)), nil),
		Return(Call(odd, Bin(ast.OpSub, n, Int(1)))))
	odd.Body = Block(
		If(Bin(ast.OpEq, n, Int(0)), Return(Int(0)), nil),
		Return(Call(even, Bin(ast.OpSub, n, Int(1)))))
	cfg := config.Default()
	cfg.SetMember(config.MemberConfig{Name: even.FullName(), MaxRecursionDepth: 2})
	cfg.SetMember(config.MemberConfig{Name: odd.FullName(), MaxRecursionDepth: 2})
	r := transform(t, cfg, Program(c))

	for k := 0; k < 3; k++ {
		want := []string{machine(t, r, odd, k).Name}
		if diff := cmp.Diff(want, machine(t, r, even, k).Invoked); diff != "" {
			t.Errorf("IsEven.%d invoked (-want +got):\n%s", k, diff)
		}
		if k == 2 {
			break
		}
		want = []string{machine(t, r, even, k+1).Name}
		if diff := cmp.Diff(want, machine(t, r, odd, k).Invoked); diff != "" {
			t.Errorf("IsOdd.%d invoked (-want +got):\n%s", k, diff)
		}
	}
	if m := machine(t, r, odd, 2); len(m.Invoked) != 0 {
		t.Errorf("deepest instance invokes %v", m.Invoked)
	}
	if !hasWarning(r, hwfsm.WarnRecursionDepth) {
		t.Error("no recursion depth warning")
	}
}

func TestTransform_warnings(t *testing.T) {
	node := Class("Node", &ast.Field{Name: "Value", Type: ast.Int})
	data := []struct {
		name string
		code hwfsm.WarningCode
		body []ast.Stmt
	}{
		{"lossyCast", hwfsm.WarnLossyCast, []ast.Stmt{
			Return(Cast(ast.Int, Cast(ast.Byte, Var("a", ast.Int)))),
		}},
		{"throw", hwfsm.WarnThrowOmitted, []ast.Stmt{
			If(Bin(ast.OpLt, Var("a", ast.Int), Int(0)), &ast.Throw{}, nil),
			Return(Var("a", ast.Int)),
		}},
		{"oversizedArray", hwfsm.WarnOversizedArray, []ast.Stmt{
			Decl("nodes", &ast.ArrayType{Elem: node, Length: 200}, &ast.NewArray{T: &ast.ArrayType{Elem: node, Length: 200}}),
			Return(Var("a", ast.Int)),
		}},
	}
	for _, d := range data {
		t.Run(d.name, func(t *testing.T) {
			c := Class("C")
			Entry(c, "F", ast.Int, []*ast.Param{Param("a", ast.Int)}, d.body...)
			r := transform(t, nil, Program(c))
			if !hasWarning(r, d.code) {
				t.Errorf("expected warning %s, got %v", d.code, r.Warnings)
			}
			for _, w := range r.Warnings {
				if w.Member != "C::F(int)" {
					t.Errorf("warning for member %q", w.Member)
				}
			}
		})
	}
}

func TestTransform_lossyCasts(t *testing.T) {
	c := Class("C")
	a, b := Var("a", ast.Int), Var("b", ast.Int)
	f := Entry(c, "F", ast.Int, []*ast.Param{Param("a", ast.Int), Param("b", ast.Int)},
		Return(Bin(ast.OpAdd, Cast(ast.Int, Cast(ast.Byte, a)), Cast(ast.Int, Cast(ast.Byte, b)))))
	cfg := config.Default()
	cfg.SetMember(config.MemberConfig{Name: f.FullName(), MaxDegreeOfParallelism: 2})
	r := transform(t, cfg, Program(c))
	var n int
	for _, w := range r.Warnings {
		if w.Code == hwfsm.WarnLossyCast {
			n++
		}
	}
	// one per cast, not per instance
	if n != 2 {
		t.Errorf("expected 2 lossy cast warnings, got %v", r.Warnings)
	}
}

func TestTransform_errors(t *testing.T) {
	self := Class("Node")
	self.Fields = []*ast.Field{{Name: "Next", Type: self}}
	extern := &ast.Method{Class: Class("Native"), Name: "Tick", Result: ast.Int, Static: true, Extern: true}
	matrix := &ast.ArrayType{Elem: ast.Int, Length: 4, Rank: 2}
	arr := &ast.ArrayType{Elem: ast.Int, Length: 4}

	data := []struct {
		name string
		kind hwfsm.ErrorKind
		body func(c *ast.Class) []ast.Stmt
	}{
		{"extern", hwfsm.ErrExtern, func(*ast.Class) []ast.Stmt {
			return []ast.Stmt{Return(Call(extern))}
		}},
		{"multiDim", hwfsm.ErrResource, func(*ast.Class) []ast.Stmt {
			return []ast.Stmt{Decl("m", matrix, &ast.NewArray{T: matrix}), Return(Int(0))}
		}},
		{"selfReference", hwfsm.ErrResource, func(*ast.Class) []ast.Stmt {
			return []ast.Stmt{Decl("n", self, &ast.New{Class: self}), Return(Int(0))}
		}},
		{"alias", hwfsm.ErrUnsupported, func(*ast.Class) []ast.Stmt {
			return []ast.Stmt{
				Decl("a", arr, &ast.NewArray{T: arr}),
				Decl("b", arr, Var("a", arr)),
				Assign(Var("b", arr), &ast.NewArray{T: arr}),
				Return(Int(0)),
			}
		}},
		{"tryCatch", hwfsm.ErrUnsupported, func(*ast.Class) []ast.Stmt {
			return []ast.Stmt{&ast.TryCatch{Try: Block()}, Return(Int(0))}
		}},
		{"unknownLabel", hwfsm.ErrUnsupported, func(*ast.Class) []ast.Stmt {
			return []ast.Stmt{&ast.Goto{Label: "nowhere"}, Return(Int(0))}
		}},
		{"oversubscribed", hwfsm.ErrResource, func(c *ast.Class) []ast.Stmt {
			work := Static(c, "Work", ast.Int, []*ast.Param{Param("x", ast.Int)}, Return(Var("x", ast.Int)))
			task := &ast.TaskType{Result: ast.Int}
			return []ast.Stmt{
				Decl("t0", task, &ast.StartTask{Method: work, Args: []ast.Expr{Int(1)}}),
				Decl("t1", task, &ast.StartTask{Method: work, Args: []ast.Expr{Int(2)}}),
				Decl("t2", task, &ast.StartTask{Method: work, Args: []ast.Expr{Int(3)}}),
				&ast.ExprStmt{X: &ast.WaitTasks{Tasks: []ast.Expr{Var("t0", task), Var("t1", task), Var("t2", task)}}},
				Return(Int(0)),
			}
		}},
		{"loopTasks", hwfsm.ErrResource, func(c *ast.Class) []ast.Stmt {
			work := Static(c, "Work", ast.Int, []*ast.Param{Param("x", ast.Int)}, Return(Var("x", ast.Int)))
			task := &ast.TaskType{Result: ast.Int}
			i := Var("i", ast.Int)
			return []ast.Stmt{
				Decl("i", ast.Int, Int(0)),
				While(Bin(ast.OpLt, i, Int(3)),
					Decl("t", task, &ast.StartTask{Method: work, Args: []ast.Expr{i}}),
					Inc(i)),
				&ast.ExprStmt{X: &ast.WaitTasks{}},
				Return(Int(0)),
			}
		}},
		{"loopTasksWaitAny", hwfsm.ErrResource, func(c *ast.Class) []ast.Stmt {
			work := Static(c, "Work", ast.Int, []*ast.Param{Param("x", ast.Int)}, Return(Var("x", ast.Int)))
			task := &ast.TaskType{Result: ast.Int}
			i := Var("i", ast.Int)
			return []ast.Stmt{
				&ast.For{
					Init: []ast.Stmt{Decl("i", ast.Int, Int(0))},
					Cond: Bin(ast.OpLt, i, Int(3)),
					Post: []ast.Stmt{Inc(i)},
					Body: Block(
						Decl("t", task, &ast.StartTask{Method: work, Args: []ast.Expr{i}}),
						&ast.ExprStmt{X: &ast.WaitTasks{Tasks: []ast.Expr{Var("t", task)}, Any: true}}),
				},
				Return(Int(0)),
			}
		}},
	}
	for _, d := range data {
		t.Run(d.name, func(t *testing.T) {
			c := Class("C")
			Entry(c, "F", ast.Int, nil, d.body(c)...)
			cfg := config.Default()
			cfg.SetMember(config.MemberConfig{Name: "C::Work(int)", MaxDegreeOfParallelism: 2})
			e := transformError(t, cfg, Program(c))
			if e.Kind != d.kind {
				t.Errorf("expected a %s error, got %s: %v", d.kind, e.Kind, e)
			}
			if e.Member == "" {
				t.Error("error does not name a member")
			}
		})
	}
}

func TestTransform_noEntryPoint(t *testing.T) {
	c := Class("C")
	Static(c, "F", ast.Int, nil, Return(Int(1)))
	if _, err := hwfsm.New(nil).Transform(context.Background(), Program(c)); err == nil {
		t.Fatal("transformation without entry point succeeded")
	}
}

func TestTransform_unreachableExtern(t *testing.T) {
	c := Class("C")
	c.Methods = append(c.Methods, &ast.Method{Class: c, Name: "Native", Static: true, Extern: true})
	Entry(c, "F", ast.Int, nil, Return(Int(1)))
	r := transform(t, nil, Program(c))
	if len(r.Components) != 1 {
		t.Errorf("expected 1 component, got %d", len(r.Components))
	}
}

func TestTransform_parallelInstances(t *testing.T) {
	c := Class("C")
	work := Static(c, "Work", ast.Int, []*ast.Param{Param("x", ast.Int)},
		Return(Bin(ast.OpAdd, Var("x", ast.Int), Int(1))))
	Entry(c, "F", ast.Int, nil, Return(Call(work, Int(1))))
	cfg := config.Default()
	cfg.ParallelInstanceThreshold = 4
	cfg.SetMember(config.MemberConfig{Name: work.FullName(), MaxDegreeOfParallelism: 10})
	r := transform(t, cfg, Program(c))
	comps := r.Instances(work.FullName())
	if len(comps) != 10 {
		t.Fatalf("expected 10 instances, got %d", len(comps))
	}
	for k, c := range comps {
		if c.Instance != k {
			t.Errorf("component %d is instance %d", k, c.Instance)
		}
	}
}
