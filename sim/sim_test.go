package sim_test

import (
	"context"
	"testing"

	"github.com/db47h/hwfsm"
	"github.com/db47h/hwfsm/ast"
	"github.com/db47h/hwfsm/config"
	. "github.com/db47h/hwfsm/internal/build"
	"github.com/db47h/hwfsm/sim"
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

func compile(t *testing.T, cfg *config.Config, p *ast.Program, opts ...sim.Option) *sim.Simulator {
	t.Helper()
	r, err := hwfsm.New(cfg).Transform(context.Background(), p)
	if err != nil {
		trace(t, err)
		t.Fatal(err)
	}
	s, err := sim.New(r, opts...)
	if err != nil {
		trace(t, err)
		t.Fatal(err)
	}
	return s
}

type callTest struct {
	args []interface{}
	want int64
}

func testCalls(t *testing.T, s *sim.Simulator, m *ast.Method, data []callTest) {
	t.Helper()
	for _, d := range data {
		r, err := s.Call(context.Background(), m.FullName(), d.args...)
		if err != nil {
			trace(t, err)
			t.Fatalf("%s%v: %v", m.Name, d.args, err)
		}
		if got := r.Value.Int64(); got != d.want {
			t.Errorf("%s%v: expected %d, got %d", m.Name, d.args, d.want, got)
		}
		if st, _ := s.State(m.FullName() + ".0"); st != 0 {
			t.Errorf("%s%v: machine not idle after the call, in state %d", m.Name, d.args, st)
		}
	}
}

func TestSimulator_add(t *testing.T) {
	c := Class("Calc")
	a, b := Var("a", ast.Int), Var("b", ast.Int)
	add := Entry(c, "Add", ast.Int, []*ast.Param{Param("a", ast.Int), Param("b", ast.Int)},
		Return(Bin(ast.OpAdd, a, b)))
	s := compile(t, nil, Program(c))
	defer s.Dispose()

	testCalls(t, s, add, []callTest{
		{[]interface{}{3, 4}, 7},
		{[]interface{}{-5, 2}, -3},
		{[]interface{}{0x7fffffff, 1}, -0x80000000},
	})
	ps, err := s.Params(add.FullName())
	if err != nil {
		t.Fatal(err)
	}
	if len(ps) != 2 || ps[0].Name != "a" || ps[1].Name != "b" {
		t.Errorf("unexpected parameters %v", ps)
	}
	if _, err = s.Call(context.Background(), add.FullName(), 1); err == nil {
		t.Error("call with a missing argument succeeded")
	}
	if _, err = s.Call(context.Background(), "Calc::Sub(int,int)"); err == nil {
		t.Error("call to an unknown member succeeded")
	}
}

func TestSimulator_loop(t *testing.T) {
	c := Class("C")
	i, n, sum := Var("i", ast.Int), Var("n", ast.Int), Var("sum", ast.Int)
	f := Entry(c, "Sum", ast.Int, []*ast.Param{Param("n", ast.Int)},
		Decl("sum", ast.Int, Int(0)),
		Decl("i", ast.Int, Int(0)),
		While(Bin(ast.OpLt, i, n),
			AssignOp(ast.OpAdd, sum, i),
			Inc(i)),
		Return(sum))
	s := compile(t, nil, Program(c), sim.Workers(1))
	defer s.Dispose()

	testCalls(t, s, f, []callTest{
		{[]interface{}{0}, 0},
		{[]interface{}{1}, 0},
		{[]interface{}{10}, 45},
		{[]interface{}{100}, 4950},
	})
}

func TestSimulator_loopForms(t *testing.T) {
	c := Class("C")
	i, k, n, sum := Var("i", ast.Int), Var("k", ast.Int), Var("n", ast.Int), Var("sum", ast.Int)
	evens := Entry(c, "Evens", ast.Int, []*ast.Param{Param("n", ast.Int)},
		Decl("sum", ast.Int, Int(0)),
		&ast.For{
			Init: []ast.Stmt{Decl("i", ast.Int, Int(0))},
			Cond: Bin(ast.OpLt, i, n),
			Post: []ast.Stmt{Inc(i)},
			Body: Block(
				If(Bin(ast.OpEq, Bin(ast.OpAnd, i, Int(1)), Int(1)), &ast.Continue{}, nil),
				AssignOp(ast.OpAdd, sum, i)),
		},
		Return(sum))
	down := Entry(c, "Down", ast.Int, []*ast.Param{Param("n", ast.Int)},
		Decl("sum", ast.Int, Int(0)),
		Decl("k", ast.Int, n),
		&ast.DoWhile{
			Body: Block(
				AssignOp(ast.OpAdd, sum, k),
				AssignOp(ast.OpSub, k, Int(1))),
			Cond: Bin(ast.OpGt, k, Int(0)),
		},
		Return(sum))
	s := compile(t, nil, Program(c))
	defer s.Dispose()

	testCalls(t, s, evens, []callTest{
		{[]interface{}{0}, 0},
		{[]interface{}{10}, 20},
	})
	testCalls(t, s, down, []callTest{
		{[]interface{}{0}, 0},
		{[]interface{}{4}, 10},
	})
}

func TestSimulator_vectors(t *testing.T) {
	c := Class("C")
	vec := &ast.ArrayType{Elem: ast.Int, Length: 4}
	simd := &ast.Class{Name: ast.SimdClassName}
	x, y := Var("x", vec), Var("y", vec)
	sum := &ast.Call{Method: &ast.Method{Class: simd, Name: "AddVectors", Result: vec, Extern: true}, Args: []ast.Expr{x, y}}
	f := Entry(c, "F", ast.Int, []*ast.Param{Param("x", vec), Param("y", vec)},
		Decl("r", vec, sum),
		Return(&ast.Index{X: Var("r", vec), Indices: []ast.Expr{Int(2)}, T: ast.Int}))
	s := compile(t, nil, Program(c))
	defer s.Dispose()

	testCalls(t, s, f, []callTest{
		{[]interface{}{[]int32{1, 2, 3, 4}, []int32{10, 20, 30, 40}}, 33},
		{[]interface{}{[]int{0, 0, -7, 0}, []int{0, 0, 2, 0}}, -5},
	})
}

func TestSimulator_shift(t *testing.T) {
	c := Class("C")
	a := Var("a", ast.Int)
	shl := Entry(c, "Shl", ast.Int, []*ast.Param{Param("a", ast.Int)}, Return(Bin(ast.OpShl, a, Int(33))))
	shr := Entry(c, "Shr", ast.Int, []*ast.Param{Param("a", ast.Int), Param("n", ast.Int)},
		Return(Bin(ast.OpShr, a, Var("n", ast.Int))))
	s := compile(t, nil, Program(c))
	defer s.Dispose()

	testCalls(t, s, shl, []callTest{
		{[]interface{}{1}, 2},
		{[]interface{}{3}, 6},
	})
	testCalls(t, s, shr, []callTest{
		{[]interface{}{-8, 1}, -4},
		{[]interface{}{256, 36}, 16},
		{[]interface{}{7, 0}, 7},
	})

	l := Var("l", ast.Long)
	shlL := Entry(c, "ShlL", ast.Long, []*ast.Param{Param("l", ast.Long), Param("n", ast.Int)},
		Return(Bin(ast.OpShl, l, Var("n", ast.Int))))
	shrL := Entry(c, "ShrL", ast.Long, []*ast.Param{Param("l", ast.Long), Param("n", ast.Int)},
		Return(Bin(ast.OpShr, l, Var("n", ast.Int))))
	s = compile(t, nil, Program(c))
	defer s.Dispose()

	// 64-bit counts are taken modulo 64.
	testCalls(t, s, shlL, []callTest{
		{[]interface{}{1, 40}, 1 << 40},
		{[]interface{}{1, 65}, 2},
		{[]interface{}{3, 64}, 3},
	})
	testCalls(t, s, shrL, []callTest{
		{[]interface{}{int64(-1) << 40, 36}, -16},
		{[]interface{}{int64(1) << 62, 126}, 1},
	})
}

func TestSimulator_multiCycle(t *testing.T) {
	c := Class("C")
	a, b := Var("a", ast.Int), Var("b", ast.Int)
	mul := Entry(c, "Mul", ast.Int, []*ast.Param{Param("a", ast.Int), Param("b", ast.Int)},
		Return(Bin(ast.OpMul, a, b)))
	div := Entry(c, "Div", ast.Int, []*ast.Param{Param("a", ast.Int), Param("b", ast.Int)},
		Return(Bin(ast.OpDiv, a, b)))
	rem := Entry(c, "Rem", ast.Int, []*ast.Param{Param("a", ast.Int), Param("b", ast.Int)},
		Return(Bin(ast.OpRem, a, b)))
	s := compile(t, nil, Program(c))
	defer s.Dispose()

	testCalls(t, s, mul, []callTest{
		{[]interface{}{6, 7}, 42},
		{[]interface{}{-3, 5}, -15},
		{[]interface{}{0x10000, 0x10000}, 0},
	})
	testCalls(t, s, div, []callTest{
		{[]interface{}{7, 2}, 3},
		{[]interface{}{-7, 2}, -3},
		{[]interface{}{7, 0}, 0},
		{[]interface{}{-0x80000000, -1}, -0x80000000},
	})
	testCalls(t, s, rem, []callTest{
		{[]interface{}{7, 3}, 1},
		{[]interface{}{-7, 3}, -1},
	})

	r, err := s.Call(context.Background(), div.FullName(), 100, 10)
	if err != nil {
		t.Fatal(err)
	}
	// at least the wait state's cycles on top of idle, parameter copy and
	// final states.
	if r.Cycles < 30 {
		t.Errorf("division completed in %d clock cycles", r.Cycles)
	}
}

func TestSimulator_invocation(t *testing.T) {
	c := Class("C")
	a, b := Var("a", ast.Int), Var("b", ast.Int)
	add := Static(c, "Add", ast.Int, []*ast.Param{Param("a", ast.Int), Param("b", ast.Int)},
		Return(Bin(ast.OpAdd, a, b)))
	x := Var("x", ast.Int)
	f := Entry(c, "F", ast.Int, []*ast.Param{Param("x", ast.Int)},
		Decl("y", ast.Int, Call(add, x, x)),
		Return(Bin(ast.OpAdd, Var("y", ast.Int), Call(add, Int(1), Int(1)))))
	s := compile(t, nil, Program(c))
	defer s.Dispose()

	if s.Size() != 2 {
		t.Fatalf("expected 2 machines, got %d", s.Size())
	}
	testCalls(t, s, f, []callTest{
		{[]interface{}{5}, 12},
		{[]interface{}{-1}, 0},
	})
	if n := s.MachineCycles(add.FullName() + ".0"); n == 0 {
		t.Error("callee never ran")
	}
}

func TestSimulator_outParams(t *testing.T) {
	c := Class("C")
	p := &ast.Param{Name: "p", Type: ast.Int, Modifier: ast.Ref}
	f := Entry(c, "Swap", ast.Int, []*ast.Param{p, Param("v", ast.Int)},
		Decl("old", ast.Int, Var("p", ast.Int)),
		Assign(Var("p", ast.Int), Var("v", ast.Int)),
		Return(Var("old", ast.Int)))
	s := compile(t, nil, Program(c))
	defer s.Dispose()

	r, err := s.Call(context.Background(), f.FullName(), 1, 2)
	if err != nil {
		t.Fatal(err)
	}
	if r.Value.Int64() != 1 {
		t.Errorf("expected 1, got %v", r.Value)
	}
	if v, ok := r.Params["p"]; !ok || v.Int64() != 2 {
		t.Errorf("expected p = 2, got %v", r.Params)
	}
	if _, ok := r.Params["v"]; ok {
		t.Error("by value parameter flows back to the caller")
	}
}

func TestSimulator_recursion(t *testing.T) {
	c := Class("C")
	n := Var("n", ast.Int)
	fib := Entry(c, "Fib", ast.Int, []*ast.Param{Param("n", ast.Int)})
	fib.Body = Block(
		If(Bin(ast.OpLt, n, Int(2)), Return(n), nil),
		Return(Bin(ast.OpAdd,
			Call(fib, Bin(ast.OpSub, n, Int(1))),
			Call(fib, Bin(ast.OpSub, n, Int(2))))))
	cfg := config.Default()
	cfg.SetMember(config.MemberConfig{Name: fib.FullName(), MaxRecursionDepth: 6})
	s := compile(t, cfg, Program(c), sim.Workers(2))
	defer s.Dispose()

	if s.Size() != 7 {
		t.Fatalf("expected 7 machines, got %d", s.Size())
	}
	testCalls(t, s, fib, []callTest{
		{[]interface{}{0}, 0},
		{[]interface{}{1}, 1},
		{[]interface{}{2}, 1},
		{[]interface{}{7}, 13},
	})
}

func TestSimulator_mutualRecursion(t *testing.T) {
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
	cfg.SetMember(config.MemberConfig{Name: even.FullName(), MaxRecursionDepth: 4})
	cfg.SetMember(config.MemberConfig{Name: odd.FullName(), MaxRecursionDepth: 4})
	s := compile(t, cfg, Program(c))
	defer s.Dispose()

	testCalls(t, s, even, []callTest{
		{[]interface{}{0}, 1},
		{[]interface{}{2}, 1},
		{[]interface{}{7}, 0},
		{[]interface{}{8}, 1},
	})
}

func TestSimulator_tasks(t *testing.T) {
	c := Class("C")
	x := Var("x", ast.Int)
	work := Static(c, "Work", ast.Int, []*ast.Param{Param("x", ast.Int)},
		Return(Bin(ast.OpMul, x, Int(2))))
	task := &ast.TaskType{Result: ast.Int}
	t0, t1 := Var("t0", task), Var("t1", task)
	f := Entry(c, "F", ast.Int, []*ast.Param{Param("x", ast.Int)},
		Decl("t0", task, &ast.StartTask{Method: work, Args: []ast.Expr{x}}),
		Decl("t1", task, &ast.StartTask{Method: work, Args: []ast.Expr{Bin(ast.OpAdd, x, Int(1))}}),
		&ast.ExprStmt{X: &ast.WaitTasks{Tasks: []ast.Expr{t0, t1}}},
		Return(Bin(ast.OpAdd, &ast.TaskResult{Task: t0}, &ast.TaskResult{Task: t1})))
	cfg := config.Default()
	cfg.SetMember(config.MemberConfig{Name: work.FullName(), MaxDegreeOfParallelism: 2})
	s := compile(t, cfg, Program(c), sim.Workers(4))
	defer s.Dispose()

	if s.Size() != 3 {
		t.Fatalf("expected 3 machines, got %d", s.Size())
	}
	testCalls(t, s, f, []callTest{
		{[]interface{}{3}, 14},
		{[]interface{}{10}, 42},
	})
	// both instances ran
	for _, i := range []string{".0", ".1"} {
		if s.MachineCycles(work.FullName()+i) == 0 {
			t.Errorf("instance %s never ran", work.FullName()+i)
		}
	}
}

func TestSimulator_loopTasks(t *testing.T) {
	c := Class("C")
	x, i, sum := Var("x", ast.Int), Var("i", ast.Int), Var("sum", ast.Int)
	work := Static(c, "Work", ast.Int, []*ast.Param{Param("x", ast.Int)},
		Return(Bin(ast.OpMul, x, Int(2))))
	task := &ast.TaskType{Result: ast.Int}
	h := Var("h", task)
	f := Entry(c, "F", ast.Int, []*ast.Param{Param("x", ast.Int)},
		Decl("sum", ast.Int, Int(0)),
		Decl("i", ast.Int, Int(0)),
		While(Bin(ast.OpLt, i, x),
			Inc(i),
			Decl("h", task, &ast.StartTask{Method: work, Args: []ast.Expr{i}}),
			&ast.ExprStmt{X: &ast.WaitTasks{Tasks: []ast.Expr{h}}},
			AssignOp(ast.OpAdd, sum, &ast.TaskResult{Task: h})),
		Return(sum))
	cfg := config.Default()
	cfg.SetMember(config.MemberConfig{Name: work.FullName(), MaxDegreeOfParallelism: 2})
	s := compile(t, cfg, Program(c), sim.Workers(4))
	defer s.Dispose()

	testCalls(t, s, f, []callTest{
		{[]interface{}{3}, 12},
		{[]interface{}{5}, 30},
	})
}

func TestSimulator_memory(t *testing.T) {
	c := Class("C")
	i, v := Var("i", ast.Int), Var("v", ast.Int)
	f := Entry(c, "F", ast.Int, []*ast.Param{Param("i", ast.Int), Param("v", ast.Int)},
		&ast.ExprStmt{X: Memory("WriteInt32", ast.Void, i, v)},
		Return(Bin(ast.OpAdd, Memory("ReadInt32", ast.Int, i), Int(1))))
	bytes := &ast.ArrayType{Elem: ast.Byte, Length: 4}
	g := Entry(c, "G", ast.Byte, []*ast.Param{Param("i", ast.Int)},
		Decl("b", bytes, Memory("Read4Bytes", bytes, i)),
		Return(&ast.Index{X: Var("b", bytes), Indices: []ast.Expr{Int(1)}, T: ast.Byte}))

	mem := sim.NewMemory(16)
	s := compile(t, nil, Program(c), sim.WithMemory(mem))
	defer s.Dispose()

	testCalls(t, s, f, []callTest{
		{[]interface{}{3, 41}, 42},
		{[]interface{}{15, -2}, -1},
	})
	if got := mem.Read(3); got != 41 {
		t.Errorf("cell 3: expected 41, got %d", got)
	}
	if got := int32(mem.Read(15)); got != -2 {
		t.Errorf("cell 15: expected -2, got %d", got)
	}

	mem.Write(7, 0x44332211)
	testCalls(t, s, g, []callTest{{[]interface{}{7}, 0x22}})

	if _, err := s.Call(context.Background(), f.FullName(), 16, 0); err == nil {
		t.Error("out of range memory access succeeded")
	}
}

func TestSimulator_noMemory(t *testing.T) {
	c := Class("C")
	Entry(c, "F", ast.Int, []*ast.Param{Param("i", ast.Int)},
		Return(Memory("ReadInt32", ast.Int, Var("i", ast.Int))))
	r, err := hwfsm.New(nil).Transform(context.Background(), Program(c))
	if err != nil {
		t.Fatal(err)
	}
	if _, err = sim.New(r); err == nil {
		t.Fatal("simulator without memory accepted machines using memory")
	}
}

func TestSimulator_switch(t *testing.T) {
	c := Class("C")
	x := Var("x", ast.Int)
	f := Entry(c, "F", ast.Int, []*ast.Param{Param("x", ast.Int)},
		Decl("r", ast.Int, Int(0)),
		&ast.Switch{Tag: x, Sections: []*ast.SwitchSection{
			{Labels: []ast.Expr{Int(1)}, Body: []ast.Stmt{Return(Int(10))}},
			{Labels: []ast.Expr{Int(2), Int(3)}, Body: []ast.Stmt{Assign(Var("r", ast.Int), Int(20)), &ast.Break{}}},
			{Body: []ast.Stmt{Assign(Var("r", ast.Int), Int(30)), &ast.Break{}}},
		}},
		Return(Bin(ast.OpAdd, Var("r", ast.Int), Int(1))))
	s := compile(t, nil, Program(c))
	defer s.Dispose()

	testCalls(t, s, f, []callTest{
		{[]interface{}{1}, 10},
		{[]interface{}{2}, 21},
		{[]interface{}{3}, 21},
		{[]interface{}{4}, 31},
		{[]interface{}{-1}, 31},
	})
}

func TestSimulator_goto(t *testing.T) {
	c := Class("C")
	i, n := Var("i", ast.Int), Var("n", ast.Int)
	f := Entry(c, "F", ast.Int, []*ast.Param{Param("n", ast.Int)},
		Decl("i", ast.Int, Int(0)),
		&ast.Labeled{Label: "again", Stmt: Inc(i)},
		If(Bin(ast.OpLt, i, n), &ast.Goto{Label: "again"}, nil),
		Return(i))
	s := compile(t, nil, Program(c))
	defer s.Dispose()

	testCalls(t, s, f, []callTest{
		{[]interface{}{0}, 1},
		{[]interface{}{5}, 5},
	})
}

func TestSimulator_maxCycles(t *testing.T) {
	c := Class("C")
	f := Entry(c, "F", ast.Int, nil,
		While(Bool(true)),
		Return(Int(0)))
	s := compile(t, nil, Program(c), sim.MaxCycles(100))
	defer s.Dispose()

	_, err := s.Call(context.Background(), f.FullName())
	if err == nil {
		t.Fatal("endless loop completed")
	}
	if s.Cycles() != 100 {
		t.Errorf("expected 100 clock cycles, got %d", s.Cycles())
	}
}

func TestSimulator_canceled(t *testing.T) {
	c := Class("C")
	f := Entry(c, "F", ast.Int, nil,
		While(Bool(true)),
		Return(Int(0)))
	s := compile(t, nil, Program(c))
	defer s.Dispose()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.Call(ctx, f.FullName())
	if errors.Cause(err) != context.Canceled {
		t.Fatalf("expected %v, got %v", context.Canceled, err)
	}
}
