package sim_test

import (
	"context"
	"testing"

	"github.com/db47h/hwfsm/ast"
	"github.com/db47h/hwfsm/hdl"
	. "github.com/db47h/hwfsm/internal/build"
	"github.com/db47h/hwfsm/sim"
	"github.com/google/go-cmp/cmp"
)

type level int16

type sample struct {
	X    int
	Flag bool   `hw:"y"`
	Note string `hw:"-"`
}

func TestValueOf_array(t *testing.T) {
	at := hdl.NewArray(hdl.SignedType(8), 4)
	v, err := sim.ValueOf(at, []level{1, -1, 300})
	if err != nil {
		t.Fatal(err)
	}
	var got []int16
	if err = v.Decode(&got); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]int16{1, -1, 44, 0}, got); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
	var short [2]int
	if err = v.Decode(&short); err == nil {
		t.Error("decoding into a short array succeeded")
	}
}

func TestValueOf_record(t *testing.T) {
	rt := &hdl.Record{Name: "Sample", Fields: []hdl.RecordField{
		{Name: "X", Type: hdl.SignedType(32)},
		{Name: "y", Type: hdl.BooleanType},
	}}
	v, err := sim.ValueOf(rt, &sample{X: -7, Flag: true, Note: "ignored"})
	if err != nil {
		t.Fatal(err)
	}
	if x, ok := v.Field("X"); !ok || x.Int64() != -7 {
		t.Errorf("field X: got %v", x)
	}
	var got sample
	if err = v.Decode(&got); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(sample{X: -7, Flag: true}, got); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
	if _, err = sim.ValueOf(rt, struct{ Z int }{}); err == nil {
		t.Error("struct with an unknown field accepted")
	}
	if _, err = sim.ValueOf(rt, 42); err == nil {
		t.Error("int accepted as a record")
	}
}

func TestSimulator_record(t *testing.T) {
	point := Class("Point", &ast.Field{Name: "X", Type: ast.Int}, &ast.Field{Name: "Y", Type: ast.Int})
	p := Var("p", point)
	x := &ast.MemberAccess{X: p, Name: "X", T: ast.Int}
	y := &ast.MemberAccess{X: p, Name: "Y", T: ast.Int}
	c := Class("C")
	f := Entry(c, "Fold", ast.Int, []*ast.Param{Param("p", point)},
		AssignOp(ast.OpAdd, x, y),
		Return(y))
	s := compile(t, nil, Program(point, c))
	defer s.Dispose()

	type pt struct{ X, Y int32 }
	r, err := s.Call(context.Background(), f.FullName(), pt{3, 4})
	if err != nil {
		trace(t, err)
		t.Fatal(err)
	}
	if r.Value.Int64() != 4 {
		t.Errorf("expected 4, got %v", r.Value)
	}
	var out pt
	if err = r.Params["p"].Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out != (pt{7, 4}) {
		t.Errorf("expected {7 4}, got %v", out)
	}
}
